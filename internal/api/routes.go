// 包 api：集中注册 HTTP API 路由以解耦主入口，便于后续扩展与替换
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"region-api/internal/locate"
	"region-api/internal/logger"
	"region-api/internal/metrics"
	"region-api/internal/store"

	"github.com/redis/go-redis/v9"
)

// Node: 对外返回的区划节点
type Node struct {
	Code string `json:"code"`
	Name string `json:"name"`
	Leaf bool   `json:"leaf"`
}

// RelatedNode: related 查询的节点，附带选中标记
type RelatedNode struct {
	Node
	Selected bool `json:"selected,omitempty"`
}

// RegionSource: 路由层需要的最小区划查询接口（快照链或直连 store 均可满足）
type RegionSource interface {
	Children(ctx context.Context, parent string) ([]store.Division, error)
	PathOf(ctx context.Context, code string) ([]store.Division, error)
	Related(ctx context.Context, code string) ([][]store.Picked, error)
	Search(ctx context.Context, keyword string, limit int) ([][]store.Division, error)
}

// StatsSource: 统计读写（可为 nil，测试与纯内存部署不记统计）
type StatsSource interface {
	IncrStats(ctx context.Context) error
	GetTotals(ctx context.Context) (*store.Totals, error)
}

// Resolver: 坐标 → 区划 code（locate.Manager 满足）
type Resolver interface {
	Resolve(ctx context.Context, lat, lng float64) (locate.Result, string, bool)
}

// IPPositioner: IP → 坐标（geoip 满足）
type IPPositioner interface {
	Position(ip string) (float64, float64, error)
}

// IPLocator: IP → 区划 code（ip2region 满足）
type IPLocator interface {
	LocateIP(ip string) (string, bool)
}

func nodeOf(d store.Division) Node {
	return Node{Code: d.Code, Name: d.Name, Leaf: d.Leaf}
}

func nodesOf(ds []store.Division) []Node {
	out := make([]Node, len(ds))
	for i, d := range ds {
		out[i] = nodeOf(d)
	}
	return out
}

// 解析访问者 IP：优先参数，其次常见反向代理头；多层代理场景下稳定获取源 IP
func getClientIP(r *http.Request) string {
	if q := r.URL.Query().Get("ip"); q != "" {
		return q
	}
	h := r.Header
	if x := h.Get("x-forwarded-for"); x != "" {
		return strings.TrimSpace(strings.Split(x, ",")[0])
	}
	if x := h.Get("x-real-ip"); x != "" {
		return x
	}
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i != -1 {
		host = host[:i]
	}
	return host
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	_ = json.NewEncoder(w).Encode(v)
}

// instrument：端点级计数与耗时
func instrument(endpoint string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t0 := time.Now()
		metrics.RequestsTotal.WithLabelValues(endpoint).Inc()
		h(w, r)
		metrics.RequestDurationMs.WithLabelValues(endpoint).Observe(float64(time.Since(t0).Milliseconds()))
	}
}

// cachedJSON：Redis 旁路缓存；rc 为 nil 时直接回源
// 背景：children/related 属热点只读数据，短 TTL 旁路缓存即可挡掉绝大多数回源
func cachedJSON(ctx context.Context, rc *redis.Client, key string, ttl time.Duration, w http.ResponseWriter, load func() (any, error)) {
	if rc != nil {
		if s, _ := rc.Get(ctx, key).Result(); s != "" {
			metrics.RedisHitsTotal.Inc()
			w.Header().Set("content-type", "application/json; charset=utf-8")
			w.Header().Set("cache-control", "no-store")
			_, _ = w.Write([]byte(s))
			return
		}
		metrics.RedisMissesTotal.Inc()
	}
	v, err := load()
	if err != nil {
		logger.L().Error("api_load_error", "key", key, "err", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	b, _ := json.Marshal(v)
	b = append(b, '\n')
	// 缓存与回源写出同一份字节，命中回放与首次响应完全一致
	if rc != nil {
		rc.Set(ctx, key, string(b), ttl)
	}
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	_, _ = w.Write(b)
}

// 构建并返回 API 路由：独立 ServeMux 便于在主入口挂载到 /api 前缀
func BuildRoutes(src RegionSource, stats StatsSource, rc *redis.Client, rv Resolver, pos IPPositioner, ipl IPLocator) *http.ServeMux {
	apiMux := http.NewServeMux()

	apiMux.HandleFunc("/children", instrument("children", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		parent := r.URL.Query().Get("parent")
		cachedJSON(ctx, rc, "children:"+parent, 24*time.Hour, w, func() (any, error) {
			ds, err := src.Children(ctx, parent)
			if err != nil {
				return nil, err
			}
			if len(ds) == 0 {
				metrics.EmptyResultsTotal.Inc()
			}
			return map[string]any{"parent": parent, "children": nodesOf(ds)}, nil
		})
		if stats != nil {
			_ = stats.IncrStats(ctx)
		}
	}))

	apiMux.HandleFunc("/path", instrument("path", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		code := r.URL.Query().Get("code")
		if code == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		cachedJSON(ctx, rc, "path:"+code, 24*time.Hour, w, func() (any, error) {
			chain, err := src.PathOf(ctx, code)
			if err != nil {
				if err == store.ErrNotFound {
					metrics.EmptyResultsTotal.Inc()
					return map[string]any{"code": code, "path": []Node{}}, nil
				}
				return nil, err
			}
			return map[string]any{"code": code, "path": nodesOf(chain)}, nil
		})
	}))

	apiMux.HandleFunc("/related", instrument("related", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		code := r.URL.Query().Get("code")
		if code == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		cachedJSON(ctx, rc, "related:"+code, 24*time.Hour, w, func() (any, error) {
			lvs, err := src.Related(ctx, code)
			if err != nil {
				if err == store.ErrNotFound {
					metrics.EmptyResultsTotal.Inc()
					return map[string]any{"code": code, "levels": [][]RelatedNode{}}, nil
				}
				return nil, err
			}
			out := make([][]RelatedNode, len(lvs))
			for i, lv := range lvs {
				out[i] = make([]RelatedNode, len(lv))
				for j, p := range lv {
					out[i][j] = RelatedNode{Node: nodeOf(p.Division), Selected: p.Selected}
				}
			}
			return map[string]any{"code": code, "levels": out}, nil
		})
	}))

	apiMux.HandleFunc("/search", instrument("search", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		kw := strings.TrimSpace(r.URL.Query().Get("keyword"))
		if kw == "" {
			writeJSON(w, map[string]any{"keyword": kw, "results": [][]Node{}})
			return
		}
		limit := 20
		if s := r.URL.Query().Get("limit"); s != "" {
			if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 100 {
				limit = n
			}
		}
		cachedJSON(ctx, rc, "search:"+strconv.Itoa(limit)+":"+kw, 10*time.Minute, w, func() (any, error) {
			paths, err := src.Search(ctx, kw, limit)
			if err != nil {
				return nil, err
			}
			if len(paths) == 0 {
				metrics.EmptyResultsTotal.Inc()
			}
			out := make([][]Node, len(paths))
			for i, p := range paths {
				out[i] = nodesOf(p)
			}
			return map[string]any{"keyword": kw, "results": out}, nil
		})
	}))

	apiMux.HandleFunc("/reverse_geo", instrument("reverse_geo", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		q := r.URL.Query()
		lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
		lng, errLng := strconv.ParseFloat(q.Get("lng"), 64)
		var code, provider string
		switch {
		case errLat == nil && errLng == nil:
			if rv != nil {
				if res, name, ok := rv.Resolve(ctx, lat, lng); ok {
					code, provider = res.Code, name
				}
			}
		default:
			// 无坐标：尝试把访问者 IP 转为坐标再解析，最后退回 IP 归属库
			ip := getClientIP(r)
			if pos != nil && rv != nil {
				if la, ln, err := pos.Position(ip); err == nil {
					if res, name, ok := rv.Resolve(ctx, la, ln); ok {
						code, provider = res.Code, name
						lat, lng = la, ln
					}
				}
			}
			if code == "" && ipl != nil {
				if c, ok := ipl.LocateIP(ip); ok {
					code, provider = c, "ip2region"
				}
			}
		}
		if code == "" {
			metrics.EmptyResultsTotal.Inc()
			writeJSON(w, map[string]any{"path": []Node{}})
			return
		}
		chain, err := src.PathOf(ctx, code)
		if err != nil {
			logger.L().Error("reverse_geo_path_error", "code", code, "err", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{"code": code, "provider": provider, "path": nodesOf(chain)})
	}))

	apiMux.HandleFunc("/position", instrument("position", func(w http.ResponseWriter, r *http.Request) {
		if pos == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		ip := getClientIP(r)
		lat, lng, err := pos.Position(ip)
		if err != nil {
			metrics.EmptyResultsTotal.Inc()
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, map[string]any{"ip": ip, "latitude": lat, "longitude": lng})
	}))

	apiMux.HandleFunc("/stats", instrument("stats", func(w http.ResponseWriter, r *http.Request) {
		if stats == nil {
			writeJSON(w, map[string]any{"total": 0, "today": 0})
			return
		}
		t, err := stats.GetTotals(r.Context())
		if err != nil || t == nil {
			writeJSON(w, map[string]any{"total": 0, "today": 0})
			return
		}
		writeJSON(w, map[string]any{"total": t.Total, "today": t.Today})
	}))

	return apiMux
}
