// 包 geoip：基于 MaxMind mmdb 的 IP 定位，作为无坐标请求的位置兜底来源
package geoip

import (
	"errors"
	"net"
	"time"

	"region-api/internal/logger"

	"github.com/oschwald/geoip2-golang"
	"github.com/oschwald/maxminddb-golang"
)

// ErrNoPosition：IP 不在库中或记录不含坐标
var ErrNoPosition = errors.New("no position for ip")

// 文档注释：mmdb 查询器
// 背景：City 库携带经纬度，可把访问者 IP 粗定位到城市级坐标，供逆地理链路在
// 客户端未授权定位时兜底
// 约束：精度仅城市级；私网/保留地址无记录，返回 ErrNoPosition 交上层降级
type Reader struct {
	r       *geoip2.Reader
	buildAt time.Time
}

// Open：打开 mmdb 并校验元数据
// 为什么：先以 maxminddb 原始读取器检查库类型与构建时间，损坏或过旧的库在启动期暴露
func Open(path string) (*Reader, error) {
	raw, err := maxminddb.Open(path)
	if err != nil {
		return nil, err
	}
	meta := raw.Metadata
	_ = raw.Close()
	buildAt := time.Unix(int64(meta.BuildEpoch), 0)
	logger.L().Info("geoip_open", "type", meta.DatabaseType, "built", buildAt, "nodes", meta.NodeCount)
	r, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{r: r, buildAt: buildAt}, nil
}

func (g *Reader) Close() error       { return g.r.Close() }
func (g *Reader) BuildAt() time.Time { return g.buildAt }

// Position：IP → 经纬度
func (g *Reader) Position(ip string) (lat, lng float64, err error) {
	p := net.ParseIP(ip)
	if p == nil {
		return 0, 0, ErrNoPosition
	}
	rec, err := g.r.City(p)
	if err != nil {
		return 0, 0, err
	}
	if rec == nil || (rec.Location.Latitude == 0 && rec.Location.Longitude == 0) {
		return 0, 0, ErrNoPosition
	}
	return rec.Location.Latitude, rec.Location.Longitude, nil
}
