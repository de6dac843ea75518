package cascader

import (
	"context"
	"errors"
	"time"

	"region-api/internal/logger"
	"region-api/internal/metrics"
)

// Locate：定位链路入口
// 背景：设备定位 → 逆地理为整链路径 → 与搜索同法重建兄弟列表 → 按配置深度截断定案，
// 结果携带原始经纬度；与普通定案不同，保持打开让用户确认解析出的位置
// 约束：失败按权限/不可用/超时/未知分类提示，不自动重试，状态保持在尝试前
func (s *Selector) Locate() error {
	s.mu.Lock()
	if s.disabled {
		s.mu.Unlock()
		return ErrDisabled
	}
	if !s.enableGeo || s.pos == nil {
		s.mu.Unlock()
		return ErrLocateDisabled
	}
	if !s.open {
		s.mu.Unlock()
		return ErrNotOpen
	}
	var root []Node
	if len(s.levels) > 0 {
		root = copyLevel(s.levels[0])
	}
	ctx, gen := s.co.begin(s.base)
	s.pending.Add(1)
	go s.locate(ctx, gen, root)
	s.mu.Unlock()
	return nil
}

func (s *Selector) locate(ctx context.Context, gen uint64, root []Node) {
	defer s.pending.Done()
	t0 := time.Now()
	metrics.CascaderLocateTotal.Inc()
	pctx, cancel := context.WithTimeout(ctx, s.posTimeout)
	pt, err := s.pos.Position(pctx, PositionOptions{Timeout: s.posTimeout, MaximumAge: s.posMaxAge})
	cancel()
	if err != nil {
		if canceled(err) {
			return
		}
		if errors.Is(err, context.DeadlineExceeded) {
			err = ErrPositionTimeout
		}
		metrics.CascaderLocateFailTotal.Inc()
		logger.L().Error("cascader_position_error", "err", err)
		s.notify(positionMessage(err))
		return
	}
	chain, err := s.dir.ReverseGeocode(ctx, pt.Latitude, pt.Longitude)
	if err != nil || len(chain) == 0 {
		if err != nil && canceled(err) {
			return
		}
		metrics.CascaderLocateFailTotal.Inc()
		logger.L().Error("cascader_revgeo_error", "lat", pt.Latitude, "lng", pt.Longitude, "err", err)
		s.notify("定位结果解析失败，请重试")
		return
	}
	levels, path, err := s.res.rebuild(ctx, chain, root)
	if err != nil {
		if canceled(err) {
			return
		}
		metrics.CascaderLocateFailTotal.Inc()
		logger.L().Error("cascader_locate_rebuild_error", "err", err)
		s.notify("定位结果解析失败，请重试")
		return
	}
	s.mu.Lock()
	if !s.co.current(gen) || !s.open {
		s.mu.Unlock()
		return
	}
	levels, path = truncate(levels, path, s.selectLevel)
	s.levels = levels
	s.path = path
	geo := &GeoPoint{Latitude: pt.Latitude, Longitude: pt.Longitude}
	sel := s.completeLocked(geo, true)
	s.mu.Unlock()
	metrics.CascaderLocateDurationMs.Observe(float64(time.Since(t0).Milliseconds()))
	s.fire(sel)
}
