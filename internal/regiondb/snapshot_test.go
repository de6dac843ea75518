package regiondb

import (
	"testing"

	"region-api/internal/store"
)

func testDivisions() []store.Division {
	return []store.Division{
		{Code: "11", Parent: "", Name: "北京市", Level: 0},
		{Code: "12", Parent: "", Name: "天津市", Level: 0},
		{Code: "1101", Parent: "11", Name: "市辖区", Level: 1},
		{Code: "110108", Parent: "1101", Name: "海淀区", Level: 2, Leaf: true},
		{Code: "110101", Parent: "1101", Name: "东城区", Level: 2, Leaf: true},
	}
}

func TestSnapshotChildrenSorted(t *testing.T) {
	s := Build(testDivisions())
	if s.Len() != 5 {
		t.Fatalf("Len = %d", s.Len())
	}
	root := s.Children("")
	if len(root) != 2 || root[0].Code != "11" || root[1].Code != "12" {
		t.Fatalf("root = %+v", root)
	}
	lv := s.Children("1101")
	if len(lv) != 2 || lv[0].Code != "110101" {
		t.Fatalf("children must be code-ordered: %+v", lv)
	}
	if got := s.Children("404"); len(got) != 0 {
		t.Fatalf("unknown parent: %+v", got)
	}
}

func TestSnapshotPathOf(t *testing.T) {
	s := Build(testDivisions())
	chain, ok := s.PathOf("110108")
	if !ok || len(chain) != 3 {
		t.Fatalf("chain = %+v ok=%v", chain, ok)
	}
	if chain[0].Code != "11" || chain[2].Code != "110108" {
		t.Fatalf("chain order: %+v", chain)
	}
	if _, ok := s.PathOf("404"); ok {
		t.Fatalf("unknown code resolved")
	}
	// 父链断裂（父节点缺失）不返回半截链
	broken := append(testDivisions(), store.Division{Code: "999999", Parent: "9999", Name: "孤儿", Level: 2})
	s2 := Build(broken)
	if _, ok := s2.PathOf("999999"); ok {
		t.Fatalf("broken chain resolved")
	}
}

func TestSnapshotRelated(t *testing.T) {
	s := Build(testDivisions())
	lvs, ok := s.Related("110108")
	if !ok || len(lvs) != 3 {
		t.Fatalf("levels = %d ok=%v", len(lvs), ok)
	}
	// 每层兄弟完整、且仅路径节点被标记
	if len(lvs[0]) != 2 || len(lvs[2]) != 2 {
		t.Fatalf("sibling shape: %d/%d", len(lvs[0]), len(lvs[2]))
	}
	marks := 0
	for _, lv := range lvs {
		for _, p := range lv {
			if p.Selected {
				marks++
			}
		}
	}
	if marks != 3 {
		t.Fatalf("selected marks = %d, want 3", marks)
	}
	if !lvs[2][1].Selected || lvs[2][1].Code != "110108" {
		t.Fatalf("leaf mark: %+v", lvs[2])
	}
}

func TestSnapshotSearch(t *testing.T) {
	s := Build(testDivisions())
	res := s.Search("海淀", 20)
	if len(res) != 1 || len(res[0]) != 3 || res[0][2].Code != "110108" {
		t.Fatalf("search = %+v", res)
	}
	// 浅层命中排在前面
	res = s.Search("市", 20)
	if len(res) < 2 || res[0][len(res[0])-1].Level != 0 {
		t.Fatalf("ordering: %+v", res)
	}
	if got := s.Search("市", 1); len(got) != 1 {
		t.Fatalf("limit ignored: %d", len(got))
	}
	if got := s.Search("", 20); got != nil {
		t.Fatalf("empty keyword: %+v", got)
	}
}

func TestSnapshotByName(t *testing.T) {
	s := Build(testDivisions())
	if d, ok := s.ByName("海淀区", 2); !ok || d.Code != "110108" {
		t.Fatalf("exact: %+v ok=%v", d, ok)
	}
	if d, ok := s.ByName("海淀区", -1); !ok || d.Code != "110108" {
		t.Fatalf("any level: %+v ok=%v", d, ok)
	}
	// IP 库常给短名：前缀兜底
	if d, ok := s.ByName("北京", 0); !ok || d.Code != "11" {
		t.Fatalf("prefix fallback: %+v ok=%v", d, ok)
	}
	if _, ok := s.ByName("不存在", -1); ok {
		t.Fatalf("phantom match")
	}
	if _, ok := s.ByName("海淀区", 0); ok {
		t.Fatalf("level filter ignored")
	}
}

func TestDynamicSnapshotSwap(t *testing.T) {
	var dyn DynamicSnapshot
	if dyn.Get() != nil {
		t.Fatalf("empty cache must return nil")
	}
	s1 := Build(testDivisions()[:2])
	dyn.Set(s1)
	if got := dyn.Get(); got == nil || got.Len() != 2 {
		t.Fatalf("after set: %v", got)
	}
	s2 := Build(testDivisions())
	dyn.Set(s2)
	if got := dyn.Get(); got.Len() != 5 {
		t.Fatalf("hot swap failed: %d", got.Len())
	}
}
