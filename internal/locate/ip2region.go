package locate

import (
	"strings"

	"region-api/internal/logger"
	"region-api/internal/regiondb"

	"github.com/lionsoul2014/ip2region/binding/golang/xdb"
)

// 文档注释：IP2Region XDB 的 IP 归属查询
// 背景：客户端既无坐标也无 GeoIP 命中时的最后兜底：XDB 给出省/市名称，
// 经快照的名称索引映射回区划 code
// 约束：仅支持 IPv4/IPv6 文本；名称映射依赖快照就绪，未就绪时直接未命中
type IPLocator struct {
	searcher *xdb.Searcher
	dyn      *regiondb.DynamicSnapshot
}

func NewIPLocator(path string, dyn *regiondb.DynamicSnapshot) (*IPLocator, error) {
	s, err := xdb.NewWithFileOnly(xdb.IPv4, path)
	if err != nil {
		return nil, err
	}
	return &IPLocator{searcher: s, dyn: dyn}, nil
}

// LocateIP：IP → 区划 code
// 返回最深可映射层级的 code（市优先于省）
func (l *IPLocator) LocateIP(ip string) (string, bool) {
	if ip == "" || l.searcher == nil {
		return "", false
	}
	region, err := l.searcher.SearchByStr(ip)
	if err != nil || region == "" {
		return "", false
	}
	province, city := parseRegion(region)
	snap := l.dyn.Get()
	if snap == nil {
		return "", false
	}
	if city != "" {
		if d, ok := snap.ByName(city, 1); ok {
			return d.Code, true
		}
	}
	if province != "" {
		if d, ok := snap.ByName(province, 0); ok {
			return d.Code, true
		}
	}
	logger.L().Debug("ip2region_unmapped", "region", region)
	return "", false
}

// parseRegion：解析 “国家|区域|省份|城市|ISP” 串，剔除占位值
func parseRegion(s string) (province, city string) {
	parts := strings.Split(s, "|")
	if len(parts) > 2 {
		province = clean(parts[2])
	}
	if len(parts) > 3 {
		city = clean(parts[3])
	}
	return
}

func clean(s string) string {
	if s == "0" || s == "" || strings.EqualFold(s, "unknown") {
		return ""
	}
	return s
}
