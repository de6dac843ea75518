package locate

import (
	"context"
	"errors"
	"os"
	"strconv"
	"time"

	"region-api/internal/store"
)

// readWeight：从环境变量读取提供方权重，缺省用默认值
func readWeight(env string, def float64) float64 {
	if s := os.Getenv(env); s != "" {
		if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
			return f
		}
	}
	return def
}

// 文档注释：本地质心索引提供方
// 背景：叶子区划质心构建 KD-Tree，坐标归属到最近质心；无外部依赖、毫秒级返回，
// 作为离线主力数据源
// 约束：最大半径外视为未命中（海上/境外）；边界附近可能误归属相邻区划，置信度
// 低于在线逆地理，靠权重排序让在线源优先
type LocalProvider struct {
	kd          *kdNode
	cache       *lru
	maxRadiusKm float64
}

// NewLocal：从质心表构建本地提供方
func NewLocal(cs []store.Centroid) *LocalProvider {
	radius := 50.0
	if s := os.Getenv("LOCATE_LOCAL_RADIUS_KM"); s != "" {
		if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
			radius = f
		}
	}
	ttl := time.Hour
	if s := os.Getenv("LOCATE_CACHE_TTL_S"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			ttl = time.Duration(n) * time.Second
		}
	}
	var kd *kdNode
	if len(cs) > 0 {
		kd = buildKD(append([]store.Centroid{}, cs...), 0)
	}
	return &LocalProvider{kd: kd, cache: newLRU(4096, ttl), maxRadiusKm: radius}
}

func (p *LocalProvider) Name() string    { return "local" }
func (p *LocalProvider) Version() string { return "1.0" }
func (p *LocalProvider) Weight() float64 { return readWeight("LOCATE_WEIGHT_LOCAL", 5.0) }

func (p *LocalProvider) Locate(ctx context.Context, lat, lng float64) (Result, bool) {
	if p.kd == nil {
		return Result{}, false
	}
	key := encodeGeohash(lat, lng, 6)
	if r, ok := p.cache.get(key); ok {
		return r, true
	}
	c, d := nearest(p.kd, lat, lng)
	if d > p.maxRadiusKm {
		return Result{}, false
	}
	conf := 0.7
	if d > 30 {
		conf = 0.5
	}
	r := Result{Code: c.Code, Confidence: conf}
	p.cache.set(key, r)
	return r, true
}

func (p *LocalProvider) Heartbeat(ctx context.Context) error {
	if p.kd == nil {
		return errors.New("centroid index empty")
	}
	return nil
}
