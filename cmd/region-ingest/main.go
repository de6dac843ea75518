// 数据导入工具：从本地 CSV 或上游数据集批量写入 PostgreSQL 区划表
package main

import (
	"fmt"
	"log"
	"os"

	"region-api/internal/ingest"
	"region-api/internal/migrate"
	"region-api/internal/utils"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// 用法：
//
//	region-ingest <file.csv>        从本地文件导入
//	REGION_SRC_URL=... region-ingest  从上游拉取导入
func main() {
	_ = godotenv.Load(".env")
	db, err := utils.OpenPostgresFromEnv()
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	if err := migrate.EnsureSchema(db); err != nil {
		log.Fatal(err)
	}

	if len(os.Args) > 1 {
		f, err := os.Open(os.Args[1])
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()
		n, err := ingest.Import(db, f)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println("imported", n)
		return
	}

	src := os.Getenv("REGION_SRC_URL")
	if src == "" {
		log.Fatal("no input: pass a csv path or set REGION_SRC_URL")
	}
	if err := ingest.FetchAndImport(db, src); err != nil {
		log.Fatal(err)
	}
	fmt.Println("imported from", src)
}
