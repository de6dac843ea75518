// 包 store: 提供与 PostgreSQL 的数据访问层，包含行政区划查询与统计读写
package store

import (
	"context"
	"database/sql"
	"errors"

	"region-api/internal/logger"

	_ "github.com/lib/pq"
)

// ErrNotFound：code 在区划表中不存在
var ErrNotFound = errors.New("division not found")

// Store: 数据库访问入口，持有连接池并提供查询/统计接口
type Store struct {
	db *sql.DB
}

func AttachDB(db *sql.DB) *Store { return &Store{db: db} }

// Division: 一条行政区划记录
// 背景：code 全局唯一（各级编码方案自带前缀层次）；parent 为空串表示根层；
// lat/lng 为质心坐标，仅叶子层保证有值，供本地逆地理索引使用
type Division struct {
	Code   string
	Parent string
	Name   string
	Level  int
	Leaf   bool
	Lat    sql.NullFloat64
	Lng    sql.NullFloat64
}

// Picked: related 查询返回的节点，附带选中标记
type Picked struct {
	Division
	Selected bool
}

// Open: 使用 DSN 打开数据库连接并配置连接池参数
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	return &Store{db: db}, nil
}

// Close: 关闭数据库连接
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

const divisionCols = "code, parent, name, level, leaf, lat, lng"

func scanDivision(row interface{ Scan(...any) error }) (Division, error) {
	var d Division
	err := row.Scan(&d.Code, &d.Parent, &d.Name, &d.Level, &d.Leaf, &d.Lat, &d.Lng)
	return d, err
}

// Get: 按 code 取单条区划
func (s *Store) Get(ctx context.Context, code string) (*Division, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+divisionCols+" FROM _region_divisions WHERE code=$1", code)
	d, err := scanDivision(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

// Children: 列出 parent 的全部下级，parent 为空串表示根层
func (s *Store) Children(ctx context.Context, parent string) ([]Division, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+divisionCols+" FROM _region_divisions WHERE parent=$1 ORDER BY code", parent)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Division
	for rows.Next() {
		d, err := scanDivision(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// PathOf: 自 code 逐级上溯到根，返回 根→code 顺序的祖先链
// 约束：父链断裂（父 code 缺失）按数据缺陷处理，返回 ErrNotFound
func (s *Store) PathOf(ctx context.Context, code string) ([]Division, error) {
	var chain []Division
	cur := code
	for cur != "" {
		d, err := s.Get(ctx, cur)
		if err != nil {
			return nil, err
		}
		chain = append(chain, *d)
		cur = d.Parent
		if len(chain) > 16 {
			// 防御环状父链
			return nil, errors.New("division parent chain too deep")
		}
	}
	// 反转为 根→code
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// Related: 一次取回 code 的整链数据：每一级的完整兄弟列表与选中标记
// 背景：选择器回显已选值时避免逐层多次往返；选中标记优先于客户端的前缀匹配兜底
func (s *Store) Related(ctx context.Context, code string) ([][]Picked, error) {
	chain, err := s.PathOf(ctx, code)
	if err != nil {
		return nil, err
	}
	out := make([][]Picked, 0, len(chain))
	parent := ""
	for _, sel := range chain {
		sib, err := s.Children(ctx, parent)
		if err != nil {
			return nil, err
		}
		lv := make([]Picked, len(sib))
		for i, d := range sib {
			lv[i] = Picked{Division: d, Selected: d.Code == sel.Code}
		}
		out = append(out, lv)
		parent = sel.Code
	}
	logger.L().Debug("db_related", "code", code, "levels", len(out))
	return out, nil
}

// Search: 名称模糊检索，每条命中展开为 根→命中节点 的候选路径
// 约束：limit 上限由调用方控制；候选按层级浅→深、code 升序稳定排序
func (s *Store) Search(ctx context.Context, keyword string, limit int) ([][]Division, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+divisionCols+" FROM _region_divisions WHERE name ILIKE '%' || $1 || '%' ORDER BY level, code LIMIT $2",
		keyword, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var hits []Division
	for rows.Next() {
		d, err := scanDivision(rows)
		if err != nil {
			return nil, err
		}
		hits = append(hits, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make([][]Division, 0, len(hits))
	for _, h := range hits {
		chain, err := s.PathOf(ctx, h.Code)
		if err != nil {
			// 单条父链缺陷不影响其余候选
			logger.L().Debug("db_search_path_skip", "code", h.Code, "err", err)
			continue
		}
		out = append(out, chain)
	}
	logger.L().Debug("db_search", "keyword", keyword, "hits", len(out))
	return out, nil
}

// Centroid: 叶子区划质心（本地逆地理索引的数据源）
type Centroid struct {
	Code string
	Name string
	Lat  float64
	Lng  float64
}

// Centroids: 读取全部带坐标的叶子区划质心
func (s *Store) Centroids(ctx context.Context) ([]Centroid, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT code, name, lat, lng FROM _region_divisions WHERE leaf=TRUE AND lat IS NOT NULL AND lng IS NOT NULL")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Centroid
	for rows.Next() {
		var c Centroid
		if err := rows.Scan(&c.Code, &c.Name, &c.Lat, &c.Lng); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// All: 读取全表（内存快照构建用）
func (s *Store) All(ctx context.Context) ([]Division, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+divisionCols+" FROM _region_divisions ORDER BY level, code")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Division
	for rows.Next() {
		d, err := scanDivision(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// IncrStats: 成功查询后递增总计与当日计数
func (s *Store) IncrStats(ctx context.Context) error {
	_, _ = s.db.ExecContext(ctx, "UPDATE _region_stats_total SET total_queries=total_queries+1 WHERE id=1")
	_, _ = s.db.ExecContext(ctx, "INSERT INTO _region_stats_daily(day, queries) VALUES(current_date, 1) ON CONFLICT (day) DO UPDATE SET queries=_region_stats_daily.queries+1")
	return nil
}

// Totals: 统计返回结构，包含累计与当日查询次数
type Totals struct {
	Total int64
	Today int64
}

// GetTotals: 读取累计与当日查询次数，用于接口返回
func (s *Store) GetTotals(ctx context.Context) (*Totals, error) {
	var t Totals
	row := s.db.QueryRowContext(ctx, "SELECT total_queries FROM _region_stats_total WHERE id=1")
	_ = row.Scan(&t.Total)
	row2 := s.db.QueryRowContext(ctx, "SELECT queries FROM _region_stats_daily WHERE day=current_date")
	_ = row2.Scan(&t.Today)
	logger.L().Debug("stats_totals", "total", t.Total, "today", t.Today)
	return &t, nil
}
