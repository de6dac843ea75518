// 包 cascader：级联行政区选择器内核，管理层级数据、选中路径与三条解析链路（逐级点选/搜索/定位）的汇聚
package cascader

import "strings"

// Node：某一层级中的一个可选节点
// 背景：code 在同层内唯一；leaf 表示无下级，点选即完成；拉取后不再修改
type Node struct {
	Code string `json:"code"`
	Name string `json:"name"`
	Leaf bool   `json:"leaf"`
}

// RelatedNode：服务端整链查询返回的节点，附带选中标记
// 约束：Selected 仅在 related 查询中有意义，优先于前缀匹配兜底
type RelatedNode struct {
	Node
	Selected bool `json:"selected,omitempty"`
}

// GeoPoint：原始经纬度坐标（定位链路透传给宿主）
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Selection：对外回调的最终选择结果
// 背景：DisplayText 为路径节点名按分隔符拼接；Geo 仅在定位链路产生的选择中存在
type Selection struct {
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	DisplayText string    `json:"displayText"`
	Geo         *GeoPoint `json:"geo,omitempty"`
}

// copyLevel：单层节点列表的值拷贝
func copyLevel(level []Node) []Node {
	if level == nil {
		return nil
	}
	out := make([]Node, len(level))
	copy(out, level)
	return out
}

// copyLevels：层级数据的深拷贝
// 为什么：缓存条目与活动状态必须互不引用，任一侧后续修改不能影响另一侧
func copyLevels(levels [][]Node) [][]Node {
	if levels == nil {
		return nil
	}
	out := make([][]Node, len(levels))
	for i, lv := range levels {
		out[i] = copyLevel(lv)
	}
	return out
}

// joinNames：按分隔符拼接路径节点名，作为 DisplayText
func joinNames(path []Node, sep string) string {
	if len(path) == 0 {
		return ""
	}
	names := make([]string, len(path))
	for i, n := range path {
		names[i] = n.Name
	}
	return strings.Join(names, sep)
}

// stripRelated：去除选中标记，转为普通层级数据
func stripRelated(levels [][]RelatedNode) [][]Node {
	out := make([][]Node, len(levels))
	for i, lv := range levels {
		out[i] = make([]Node, len(lv))
		for j, n := range lv {
			out[i][j] = n.Node
		}
	}
	return out
}
