package locate

import (
	"math"

	"region-api/internal/store"
)

// 文档注释：KD-Tree 最近邻（二维经纬）
// 背景：把坐标归属到最近的叶子区划质心，作为离线逆地理的主索引；限制最大半径
// 避免海上或偏远地点误归属
// 约束：按经度/纬度交替分割构建；仅支持最近一个点查询
type kdNode struct {
	c  store.Centroid
	ax int // 0:lng,1:lat
	l  *kdNode
	r  *kdNode
}

func buildKD(cs []store.Centroid, depth int) *kdNode {
	if len(cs) == 0 {
		return nil
	}
	ax := depth % 2
	// 中位数分割，避免外部排序带来的额外依赖
	mid := len(cs) / 2
	selectNth(cs, mid, ax)
	node := &kdNode{c: cs[mid], ax: ax}
	node.l = buildKD(cs[:mid], depth+1)
	node.r = buildKD(cs[mid+1:], depth+1)
	return node
}

// 原地 nth 元素选择（轴为经度/纬度）
func selectNth(a []store.Centroid, n int, ax int) {
	lo, hi := 0, len(a)-1
	for lo < hi {
		p := partition(a, lo, hi, (lo+hi)/2, ax)
		if p == n {
			return
		}
		if n < p {
			hi = p - 1
		} else {
			lo = p + 1
		}
	}
}

func partition(a []store.Centroid, lo, hi, pivot, ax int) int {
	pv := a[pivot]
	a[pivot], a[hi] = a[hi], a[pivot]
	i := lo
	for j := lo; j < hi; j++ {
		if lessCent(a[j], pv, ax) {
			a[i], a[j] = a[j], a[i]
			i++
		}
	}
	a[i], a[hi] = a[hi], a[i]
	return i
}

func lessCent(x, y store.Centroid, ax int) bool {
	if ax == 0 {
		return x.Lng < y.Lng
	}
	return x.Lat < y.Lat
}

// 最近邻查询，返回质心与距离（千米）
func nearest(node *kdNode, lat, lng float64) (store.Centroid, float64) {
	best := store.Centroid{}
	bestD := math.MaxFloat64
	var dfs func(n *kdNode)
	dfs = func(n *kdNode) {
		if n == nil {
			return
		}
		d := haversine(lat, lng, n.c.Lat, n.c.Lng)
		if d < bestD {
			bestD = d
			best = n.c
		}
		var key, q float64
		if n.ax == 0 {
			key = lng
			q = n.c.Lng
		} else {
			key = lat
			q = n.c.Lat
		}
		first, second := n.l, n.r
		if key > q {
			first, second = n.r, n.l
		}
		dfs(first)
		// 仅当分割平面到查询点的距离小于当前最优距离时才遍历另一侧
		if math.Abs(key-q) < bestD/111.0 {
			dfs(second)
		}
	}
	dfs(node)
	return best, bestD
}

// 球面距离（Haversine），返回千米
func haversine(lat1, lng1, lat2, lng2 float64) float64 {
	const R = 6371.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}
