package cascader

import (
	"context"
	"errors"
	"strings"
)

// ErrNodeNotFound：重建层级时候选路径节点在父层子集中不存在
var ErrNodeNotFound = errors.New("node not in level")

// CodeMatcher：在一层节点中定位目标 code 的兜底匹配器
// 背景：服务端未打选中标记时使用；返回命中下标；未命中返回 false，路径构造在上一深度截止
// 约束：不允许猜测，宁可接受较短路径
type CodeMatcher func(depth int, target string, level []RelatedNode) (int, bool)

// DefaultPrefixLengths：各深度行政区划代码长度（GB/T 2260 风格：省2 市4 县6 乡9 村12）
// 背景：固定长度只适用于一种编码方案，按配置覆盖而非写死在匹配逻辑里
var DefaultPrefixLengths = []int{2, 4, 6, 9, 12}

// PrefixMatcher：按深度对应的代码长度做前缀匹配，长度表不足时退化为全等比较
func PrefixMatcher(lengths []int) CodeMatcher {
	if len(lengths) == 0 {
		lengths = DefaultPrefixLengths
	}
	return func(depth int, target string, level []RelatedNode) (int, bool) {
		if depth < len(lengths) {
			n := lengths[depth]
			if len(target) >= n {
				want := target[:n]
				for i, nd := range level {
					if len(nd.Code) >= n && nd.Code[:n] == want {
						return i, true
					}
				}
			}
		}
		for i, nd := range level {
			if nd.Code == target {
				return i, true
			}
		}
		return 0, false
	}
}

// 文档注释：解析引擎
// 背景：把“如何取得一条候选路径”的逻辑集中在此，状态机只负责应用结果；
// 三条链路（整链解析/搜索/定位）共用重建与截断
type resolver struct {
	dir     Directory
	matcher CodeMatcher
}

// fullPath：按目标 code 一次取回整链（各层兄弟列表+选中标记），抽取选中路径
// 约束：每层优先服务端标记，其次匹配器；某层无命中则路径止于上一层，层级数据保留到该层为止
func (r *resolver) fullPath(ctx context.Context, code string) ([][]Node, []Node, error) {
	raw, err := r.dir.Related(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	var levels [][]Node
	var path []Node
	for depth, lv := range raw {
		if len(lv) == 0 {
			break
		}
		levels = append(levels, stripRelated(raw[depth : depth+1])[0])
		idx, ok := pickSelected(lv)
		if !ok {
			idx, ok = r.matcher(depth, code, lv)
		}
		if !ok {
			break
		}
		path = append(path, lv[idx].Node)
	}
	return levels, path, nil
}

// pickSelected：服务端选中标记优先
func pickSelected(lv []RelatedNode) (int, bool) {
	for i, n := range lv {
		if n.Selected {
			return i, true
		}
	}
	return 0, false
}

// rebuild：按候选路径逐层拉取兄弟列表，重建可继续逐级下探的层级数据
// 背景：搜索与定位返回的是裸路径，UI 需要每层完整子集；根层可复用已有数据避免一次根拉取
// 约束：任一层拉取失败即整体失败，不应用半截结果；路径节点以拉取回的同 code 节点为准（携带 leaf 标记）
func (r *resolver) rebuild(ctx context.Context, candidate []Node, root []Node) ([][]Node, []Node, error) {
	var levels [][]Node
	var path []Node
	parent := ""
	for depth, want := range candidate {
		var lv []Node
		if depth == 0 && len(root) > 0 {
			lv = copyLevel(root)
		} else {
			fetched, err := r.dir.Children(ctx, parent)
			if err != nil {
				return nil, nil, err
			}
			lv = fetched
		}
		found := false
		for _, n := range lv {
			if n.Code == want.Code {
				path = append(path, n)
				found = true
				break
			}
		}
		if !found {
			return nil, nil, ErrNodeNotFound
		}
		levels = append(levels, lv)
		parent = want.Code
	}
	return levels, path, nil
}

// singleLevels：用路径自身构造每层单节点的层级数据
// 背景：达到配置深度直接定案时无需再拉兄弟列表，快照仍需自洽的层级结构
func singleLevels(path []Node) [][]Node {
	out := make([][]Node, len(path))
	for i, n := range path {
		out[i] = []Node{n}
	}
	return out
}

// truncate：按配置的最大深度截断路径与层级，返回截断后对外生效的末节点
func truncate(levels [][]Node, path []Node, selectLevel int) ([][]Node, []Node) {
	if selectLevel <= 0 {
		return levels, path
	}
	if len(path) > selectLevel {
		path = path[:selectLevel]
	}
	if len(levels) > selectLevel {
		levels = levels[:selectLevel]
	}
	return levels, path
}

// canceled：被新操作顶替的取消不是错误，静默丢弃；超时等其余失败交由调用方提示
func canceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// normalizeKeyword：搜索关键字归一化（去首尾空白；空串不触发搜索）
func normalizeKeyword(s string) string { return strings.TrimSpace(s) }
