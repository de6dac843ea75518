// 包 locate：坐标/IP 到行政区划 code 的解析提供方与编排
package locate

import (
	"context"
	"sort"
	"sync"
	"time"

	"region-api/internal/logger"
	"region-api/internal/metrics"
)

// Result: 一次定位解析的结果（区划 code 与置信度）
type Result struct {
	Code       string
	Confidence float64
}

// 文档注释：定位提供方接口（统一契约）
// 背景：在线（高德）与离线（质心索引）数据源同构为提供方，按权重排序逐个尝试；
// Heartbeat 用于健康检测与剔除
// 约束：Locate 未命中返回 ok=false 而非错误；错误在提供方内部消化并记日志
type Provider interface {
	Name() string
	Version() string
	Locate(ctx context.Context, lat, lng float64) (Result, bool)
	Weight() float64
	Heartbeat(ctx context.Context) error
}

type status struct {
	healthy bool
	last    time.Time
}

// 文档注释：提供方管理器
// 背景：负责注册、心跳、健康筛选；逆地理端点经由 Resolve 统一取结果
// 约束：心跳周期默认 10s；心跳异常视为不健康，自动从尝试序列剔除；线程安全读写
type Manager struct {
	mu         sync.RWMutex
	ps         map[string]Provider
	st         map[string]status
	hbInterval time.Duration
}

func NewManager() *Manager {
	return &Manager{ps: make(map[string]Provider), st: make(map[string]status), hbInterval: 10 * time.Second}
}

// Register：注册提供方，默认置为健康以便立即参与解析
func (m *Manager) Register(p Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ps[p.Name()] = p
	m.st[p.Name()] = status{healthy: true, last: time.Now()}
	logger.L().Info("locate_provider_registered", "name", p.Name(), "version", p.Version())
}

// healthy：当前健康的提供方，按权重降序
func (m *Manager) healthy() []Provider {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Provider
	for k, p := range m.ps {
		if m.st[k].healthy {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Weight() > out[j].Weight() })
	return out
}

// Resolve：按权重顺序尝试健康提供方，第一个命中即返回
func (m *Manager) Resolve(ctx context.Context, lat, lng float64) (Result, string, bool) {
	for _, p := range m.healthy() {
		t0 := time.Now()
		metrics.LocateRequestsTotal.WithLabelValues(p.Name()).Inc()
		r, ok := p.Locate(ctx, lat, lng)
		metrics.LocateDurationMs.WithLabelValues(p.Name()).Observe(float64(time.Since(t0).Milliseconds()))
		if ok && r.Code != "" {
			metrics.LocateSuccessTotal.WithLabelValues(p.Name()).Inc()
			logger.L().Debug("locate_hit", "provider", p.Name(), "code", r.Code, "conf", r.Confidence)
			return r, p.Name(), true
		}
		metrics.LocateFailTotal.WithLabelValues(p.Name()).Inc()
		if ctx.Err() != nil {
			break
		}
	}
	return Result{}, "", false
}

// Start：启动心跳循环，在 ctx 取消时停止
func (m *Manager) Start(ctx context.Context) {
	t := time.NewTicker(m.hbInterval)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				m.doHeartbeat(ctx)
			}
		}
	}()
}

func (m *Manager) doHeartbeat(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, p := range m.ps {
		err := p.Heartbeat(ctx)
		if err != nil {
			m.st[k] = status{healthy: false, last: time.Now()}
			logger.L().Debug("locate_heartbeat_fail", "name", p.Name(), "err", err)
			metrics.LocateHeartbeatTotal.WithLabelValues(p.Name(), "fail").Inc()
		} else {
			m.st[k] = status{healthy: true, last: time.Now()}
			metrics.LocateHeartbeatTotal.WithLabelValues(p.Name(), "ok").Inc()
		}
	}
}
