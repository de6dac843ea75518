// 程序入口：仅负责读取配置、初始化依赖并启动服务；API 注册在 internal/api 以便扩展
package main

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"region-api/internal/api"
	"region-api/internal/geoip"
	"region-api/internal/ingest"
	"region-api/internal/locate"
	"region-api/internal/logger"
	"region-api/internal/metrics"
	"region-api/internal/middleware"
	"region-api/internal/migrate"
	"region-api/internal/regiondb"
	"region-api/internal/store"
	"region-api/internal/utils"
	"region-api/internal/version"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	// 日志初始化
	l := logger.Setup()
	l.Debug("log_init_ok")
	apiBase := os.Getenv("API_BASE")
	if apiBase == "" {
		apiBase = "/api"
	}
	l.Debug("config_api_base", "base", apiBase)

	db, err := utils.OpenPostgresFromEnv()
	if err != nil {
		l.Error("db_open_error", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	l.Info("db_open_ok")
	if err := db.Ping(); err != nil {
		l.Error("db_ping_error", "err", err)
	} else {
		l.Info("db_ping_ok")
	}
	st := store.AttachDB(db)
	if err := migrate.EnsureSchema(db); err != nil {
		l.Error("schema_error", "err", err)
		os.Exit(1)
	}

	rc := utils.OpenRedisFromEnv()
	if rc == nil {
		l.Info("redis_disabled")
	} else {
		if err := rc.Ping(context.Background()).Err(); err != nil {
			l.Error("redis_ping_error", "err", err)
		} else {
			l.Info("redis_ping_ok")
		}
	}

	// 空库时从上游拉取区划数据集初始化，简化首次部署
	if src := os.Getenv("REGION_SRC_URL"); src != "" {
		go func() {
			if err := ingest.EnsureInitialized(db, src); err != nil {
				l.Error("region_init_error", "err", err)
			}
		}()
	}

	// 全量快照：构建后热切换，读路径零锁；空库时周期重试直至数据就绪
	var dyn regiondb.DynamicSnapshot
	chain := regiondb.NewChain(&dyn, st)
	pm := locate.NewManager()
	go func() {
		for {
			if err := chain.Rebuild(context.Background()); err != nil {
				l.Error("snapshot_build_error", "err", err)
			} else if snap := chain.Snapshot(); snap != nil && snap.Len() > 0 {
				l.Info("snapshot_ready", "divisions", snap.Len())
				// 本地最近邻定位依赖质心集合，快照就绪后注册
				if cs, err := st.Centroids(context.Background()); err == nil && len(cs) > 0 {
					pm.Register(locate.NewLocal(cs))
					l.Info("locate_register", "name", "local", "centroids", len(cs))
				} else {
					l.Warn("locate_local_skipped", "err", err)
				}
				break
			}
			time.Sleep(5 * time.Second)
		}
	}()

	// 在线逆地理：需要服务端密钥，权重高于本地库
	if key := os.Getenv("AMAP_SERVER_KEY"); key != "" {
		client := &http.Client{Timeout: 4 * time.Second}
		pm.Register(locate.NewAMap(key, client))
		l.Info("locate_register", "name", "amap")
	}
	pm.Start(context.Background())

	// IP 归属定位：ip2region 给出省市名，经快照映射为区划 code
	var ipl api.IPLocator
	if p := os.Getenv("IP2REGION_V4_PATH"); p != "" {
		if c, err := locate.NewIPLocator(p, &dyn); err == nil {
			ipl = c
			l.Info("ip2region_ready", "path", p)
		} else {
			l.Error("ip2region_error", "err", err)
		}
	}
	// IP 坐标定位：GeoIP mmdb 给出经纬度，走正常逆地理链路
	var pos api.IPPositioner
	if p := os.Getenv("GEOIP_MMDB_PATH"); p != "" {
		if r, err := geoip.Open(p); err == nil {
			pos = r
			defer r.Close()
			l.Info("geoip_ready", "path", p, "build_at", r.BuildAt())
		} else {
			l.Error("geoip_open_error", "err", err)
		}
	}

	mux := http.NewServeMux()
	apiMux := api.BuildRoutes(chain, st, rc, pm, pos, ipl)
	mux.Handle(apiBase+"/", http.StripPrefix(apiBase, apiMux))
	mux.Handle(apiBase+"/metrics", metrics.Handler())
	// 管理端：数据导入后触发快照重建；需管理令牌
	mux.HandleFunc(apiBase+"/reload-snapshot", func(w http.ResponseWriter, r *http.Request) {
		t := r.Header.Get("x-admin-token")
		if t == "" || t != os.Getenv("ADMIN_TOKEN") {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if err := chain.Rebuild(r.Context()); err != nil {
			l.Error("snapshot_reload_error", "err", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		l.Info("snapshot_reloaded", "divisions", chain.Snapshot().Len())
		w.WriteHeader(http.StatusNoContent)
	})

	// NOTE: 向前端暴露 API 基础路径，避免硬编码；生产环境由后端统一提供
	mux.HandleFunc("/config.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/javascript; charset=utf-8")
		w.Header().Set("cache-control", "no-store")
		_, _ = w.Write([]byte("window.__API_BASE__='" + apiBase + "'"))
		_, _ = w.Write([]byte("\n"))
		_, _ = w.Write([]byte("window.__COMMIT_SHA__='" + version.Commit + "'"))
	})

	addr := os.Getenv("ADDR")
	if addr == "" {
		addr = ":8080"
	}
	handler := logger.AccessMiddleware(l)(mux)
	handler = middleware.Wrap(handler)
	s := &http.Server{Addr: addr, Handler: handler}
	tlsEnable := os.Getenv("TLS_ENABLE")
	if tlsEnable == "true" {
		certPath := os.Getenv("TLS_CERT_PATH")
		keyPath := os.Getenv("TLS_KEY_PATH")
		if certPath == "" {
			certPath = filepath.Join("data", "certs", "server.crt")
		}
		if keyPath == "" {
			keyPath = filepath.Join("data", "certs", "server.key")
		}
		_ = utils.EnsureSelfSignedCert(certPath, keyPath, "region-api.local")
		// 可选：HTTP 重定向到 HTTPS（不改变 HTTPS 运行端口）
		if os.Getenv("TLS_REDIRECT_ENABLE") == "true" {
			redirAddr := os.Getenv("TLS_REDIRECT_ADDR")
			if redirAddr == "" {
				redirAddr = ":80"
			}
			go func() {
				httpRedir := http.NewServeMux()
				httpRedir.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
					httpsPort := strings.TrimPrefix(addr, ":")
					baseHost := r.Host
					if i := strings.LastIndex(baseHost, ":"); i != -1 {
						baseHost = baseHost[:i]
					}
					targetHost := baseHost
					if httpsPort != "" {
						targetHost = baseHost + ":" + httpsPort
					}
					target := "https://" + targetHost + r.URL.RequestURI()
					http.Redirect(w, r, target, http.StatusMovedPermanently)
					l.Debug("http_redirect", "from", r.Host, "to", target)
				})
				l.Info("http_redirect_listening", "addr", redirAddr)
				_ = http.ListenAndServe(redirAddr, logger.AccessMiddleware(l)(httpRedir))
			}()
		}
		l.Info("listening_tls", "addr", addr, "cert", certPath)
		_ = s.ListenAndServeTLS(certPath, keyPath)
		return
	}
	l.Info("listening", "addr", addr)
	_ = s.ListenAndServe()
}
