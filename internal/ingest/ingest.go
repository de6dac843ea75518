// 包 ingest：区划数据集的解析与批量导入，作为离线数据通道
package ingest

import (
	"bufio"
	"database/sql"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"region-api/internal/logger"
)

// Row：一行区划记录
// 约束：code 非空；parent 为空表示顶级；lat/lng 缺失时 HasGeo 为 false
type Row struct {
	Code   string
	Parent string
	Name   string
	Level  int
	Leaf   bool
	Lat    float64
	Lng    float64
	HasGeo bool
}

var errSkipLine = errors.New("skip line")

// ParseLine：解析一行 CSV（code,parent,name,level,leaf[,lat,lng]）
// 异常：空行/注释行/字段不足返回 errSkipLine，由调用方计数后跳过，不中断导入
func ParseLine(line string) (Row, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Row{}, errSkipLine
	}
	parts := strings.Split(line, ",")
	if len(parts) < 5 {
		return Row{}, errSkipLine
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	r := Row{Code: parts[0], Parent: parts[1], Name: parts[2]}
	if r.Code == "" || r.Name == "" {
		return Row{}, errSkipLine
	}
	lv, err := strconv.Atoi(parts[3])
	if err != nil || lv < 0 {
		return Row{}, errSkipLine
	}
	r.Level = lv
	switch strings.ToLower(parts[4]) {
	case "1", "true", "t", "y":
		r.Leaf = true
	}
	if len(parts) >= 7 && parts[5] != "" && parts[6] != "" {
		lat, e1 := strconv.ParseFloat(parts[5], 64)
		lng, e2 := strconv.ParseFloat(parts[6], 64)
		if e1 == nil && e2 == nil {
			r.Lat, r.Lng, r.HasGeo = lat, lng, true
		}
	}
	return r, nil
}

const upsertSQL = "INSERT INTO _region_divisions(code,parent,name,level,leaf,lat,lng) VALUES($1,$2,$3,$4,$5,$6,$7) " +
	"ON CONFLICT (code) DO UPDATE SET parent=EXCLUDED.parent, name=EXCLUDED.name, level=EXCLUDED.level, leaf=EXCLUDED.leaf, lat=EXCLUDED.lat, lng=EXCLUDED.lng"

// Import：按行解析并批量 UPSERT；5000 行为一批提交，降低锁持有与 WAL 压力
// 异常：解析失败的行计数后跳过；数据库错误直接返回，不做重试（交由调度层处理）
func Import(db *sql.DB, src io.Reader) (int, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(upsertSQL)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	rd := bufio.NewScanner(src)
	rd.Buffer(make([]byte, 1024), 1024*1024)
	count, skipped := 0, 0
	for rd.Scan() {
		row, err := ParseLine(rd.Text())
		if err != nil {
			skipped++
			continue
		}
		var lat, lng any
		if row.HasGeo {
			lat, lng = row.Lat, row.Lng
		}
		if _, err := stmt.Exec(row.Code, row.Parent, row.Name, row.Level, row.Leaf, lat, lng); err != nil {
			return count, err
		}
		count++
		if count%5000 == 0 {
			logger.L().Info("ingest_progress", "count", count)
			if err = tx.Commit(); err != nil {
				return count, err
			}
			tx, err = db.Begin()
			if err != nil {
				return count, err
			}
			stmt, err = tx.Prepare(upsertSQL)
			if err != nil {
				return count, err
			}
		}
	}
	if err = rd.Err(); err != nil {
		return count, err
	}
	if err = tx.Commit(); err != nil {
		return count, err
	}
	logger.L().Info("ingest_done", "count", count, "skipped", skipped)
	return count, nil
}

// FetchAndImport：拉取上游数据集并导入
func FetchAndImport(db *sql.DB, srcURL string) error {
	logger.L().Info("ingest_start", "src", srcURL)
	resp, err := http.Get(srcURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return errors.New("bad status")
	}
	_, err = Import(db, resp.Body)
	return err
}

// EnsureInitialized：区划表为空时执行一次初始化导入
// 为什么：简化部署流程，避免独立手动导入步骤
func EnsureInitialized(db *sql.DB, srcURL string) error {
	var c int64
	row := db.QueryRow("SELECT COUNT(1) FROM _region_divisions")
	_ = row.Scan(&c)
	if c > 0 || srcURL == "" {
		return nil
	}
	return FetchAndImport(db, srcURL)
}
