package migrate

import (
	"database/sql"

	"region-api/internal/logger"
)

// 背景：首次运行自动创建所需表与索引，保障后续导入与查询
// 约束：使用 IF NOT EXISTS 避免与既有结构冲突；仅创建最小必需结构
func EnsureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS _region_divisions (
            code TEXT PRIMARY KEY,
            parent TEXT NOT NULL DEFAULT '',
            name TEXT NOT NULL,
            level INT NOT NULL,
            leaf BOOLEAN NOT NULL DEFAULT FALSE,
            lat DOUBLE PRECISION,
            lng DOUBLE PRECISION
        )`,
		`CREATE INDEX IF NOT EXISTS idx_division_parent ON _region_divisions(parent)`,
		`CREATE INDEX IF NOT EXISTS idx_division_name ON _region_divisions(name)`,
		`CREATE INDEX IF NOT EXISTS idx_division_level ON _region_divisions(level)`,
		`CREATE TABLE IF NOT EXISTS _region_stats_total (
            id INT PRIMARY KEY,
            total_queries BIGINT NOT NULL DEFAULT 0
        )`,
		`CREATE TABLE IF NOT EXISTS _region_stats_daily (
            day DATE PRIMARY KEY,
            queries BIGINT NOT NULL DEFAULT 0
        )`,
		`INSERT INTO _region_stats_total(id, total_queries)
         VALUES(1, 0)
         ON CONFLICT (id) DO NOTHING`,
	}
	for i, s := range stmts {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	logger.L().Debug("schema_done")
	return nil
}
