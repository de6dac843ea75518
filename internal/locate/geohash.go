package locate

// 文档注释：轻量 geohash 编码（base32）
// 背景：作为热点坐标缓存键，精度 6 字符约 1.2km，与本地索引的城市级精度匹配
// 约束：仅用于缓存键，不做行政区映射
var geohashBase32 = []rune("0123456789bcdefghjkmnpqrstuvwxyz")

func encodeGeohash(lat, lng float64, precision int) string {
	latInt := []float64{-90, 90}
	lngInt := []float64{-180, 180}
	bits := []int{16, 8, 4, 2, 1}
	bit := 0
	ch := 0
	even := true
	out := make([]rune, 0, precision)
	for len(out) < precision {
		if even {
			mid := (lngInt[0] + lngInt[1]) / 2
			if lng >= mid {
				ch |= bits[bit]
				lngInt[0] = mid
			} else {
				lngInt[1] = mid
			}
		} else {
			mid := (latInt[0] + latInt[1]) / 2
			if lat >= mid {
				ch |= bits[bit]
				latInt[0] = mid
			} else {
				latInt[1] = mid
			}
		}
		even = !even
		if bit < 4 {
			bit++
		} else {
			out = append(out, geohashBase32[ch])
			bit = 0
			ch = 0
		}
	}
	return string(out)
}
