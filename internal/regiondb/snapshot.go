// 包 regiondb：行政区划的进程内快照，承担绝大多数只读查询以避免击穿数据库
package regiondb

import (
	"sort"
	"strings"
	"time"

	"region-api/internal/store"
)

// 文档注释：区划树快照
// 背景：全量区划常驻内存（几万条量级），children/path/related 全部 O(层数) 完成；
// 快照只读，重建后整体替换
// 约束：构建后不得修改内部切片；对外返回的切片调用方只读使用
type Snapshot struct {
	byCode   map[string]store.Division
	children map[string][]store.Division
	byName   map[string][]store.Division
	builtAt  time.Time
}

// Build：从全量记录构建快照
func Build(divs []store.Division) *Snapshot {
	s := &Snapshot{
		byCode:   make(map[string]store.Division, len(divs)),
		children: make(map[string][]store.Division),
		byName:   make(map[string][]store.Division),
		builtAt:  time.Now(),
	}
	for _, d := range divs {
		s.byCode[d.Code] = d
		s.children[d.Parent] = append(s.children[d.Parent], d)
		s.byName[d.Name] = append(s.byName[d.Name], d)
	}
	for k := range s.children {
		lv := s.children[k]
		sort.Slice(lv, func(i, j int) bool { return lv[i].Code < lv[j].Code })
	}
	return s
}

func (s *Snapshot) Len() int            { return len(s.byCode) }
func (s *Snapshot) BuiltAt() time.Time  { return s.builtAt }

// Get：按 code 取单条
func (s *Snapshot) Get(code string) (store.Division, bool) {
	d, ok := s.byCode[code]
	return d, ok
}

// Children：parent 的下级列表（parent 空串为根层）
func (s *Snapshot) Children(parent string) []store.Division {
	return s.children[parent]
}

// PathOf：根→code 的祖先链；code 不存在或父链断裂返回 false
func (s *Snapshot) PathOf(code string) ([]store.Division, bool) {
	var chain []store.Division
	cur := code
	for cur != "" {
		d, ok := s.byCode[cur]
		if !ok {
			return nil, false
		}
		chain = append(chain, d)
		cur = d.Parent
		if len(chain) > 16 {
			return nil, false
		}
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, true
}

// Related：整链数据（各级兄弟列表+选中标记），语义与 store.Related 一致
func (s *Snapshot) Related(code string) ([][]store.Picked, bool) {
	chain, ok := s.PathOf(code)
	if !ok {
		return nil, false
	}
	out := make([][]store.Picked, 0, len(chain))
	parent := ""
	for _, sel := range chain {
		sib := s.children[parent]
		lv := make([]store.Picked, len(sib))
		for i, d := range sib {
			lv[i] = store.Picked{Division: d, Selected: d.Code == sel.Code}
		}
		out = append(out, lv)
		parent = sel.Code
	}
	return out, true
}

// Search：名称子串检索，展开为候选路径；命中按层级浅→深、code 升序
func (s *Snapshot) Search(keyword string, limit int) [][]store.Division {
	if keyword == "" {
		return nil
	}
	if limit <= 0 {
		limit = 20
	}
	var hits []store.Division
	for _, d := range s.byCode {
		if strings.Contains(d.Name, keyword) {
			hits = append(hits, d)
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Level != hits[j].Level {
			return hits[i].Level < hits[j].Level
		}
		return hits[i].Code < hits[j].Code
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([][]store.Division, 0, len(hits))
	for _, h := range hits {
		if chain, ok := s.PathOf(h.Code); ok {
			out = append(out, chain)
		}
	}
	return out
}

// ByName：按名称与层级定位区划（层级传 -1 匹配任意层）
// 背景：IP 库只给省/市名称，需要映射回编码体系
func (s *Snapshot) ByName(name string, level int) (store.Division, bool) {
	for _, d := range s.byName[name] {
		if level < 0 || d.Level == level {
			return d, true
		}
	}
	// 短名兜底：如 “北京” 对 “北京市”
	for full, ds := range s.byName {
		if strings.HasPrefix(full, name) {
			for _, d := range ds {
				if level < 0 || d.Level == level {
					return d, true
				}
			}
		}
	}
	return store.Division{}, false
}
