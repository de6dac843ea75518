package cascader

import (
	"errors"
	"testing"
	"time"
)

func newTestSelector(t *testing.T, dir *fakeDirectory, mutate func(*Config)) (*Selector, *changeRecorder, *notifyRecorder) {
	t.Helper()
	changes := &changeRecorder{}
	notes := &notifyRecorder{}
	cfg := Config{
		Directory: dir,
		OnChange:  changes.fn(),
		Notify:    notes.fn(),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := NewSelector(cfg)
	if err != nil {
		t.Fatalf("NewSelector: %v", err)
	}
	disarmCooldown(s)
	return s, changes, notes
}

func TestNewSelectorRequiresDirectory(t *testing.T) {
	if _, err := NewSelector(Config{}); err == nil {
		t.Fatalf("expected error without directory")
	}
}

func TestOpenLoadsRoot(t *testing.T) {
	dir := newFakeDirectory()
	s, _, _ := newTestSelector(t, dir, nil)

	if err := s.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	waitIdle(s)

	if s.State() != StateOpenBrowsing {
		t.Fatalf("state = %v, want browsing", s.State())
	}
	lv := s.Levels()
	if len(lv) != 1 || len(lv[0]) != 3 {
		t.Fatalf("root level shape: %v", lv)
	}
	// 重复打开是幂等的
	if err := s.Open(); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if dir.callsTo("") != 1 {
		t.Fatalf("root fetched %d times, want 1", dir.callsTo(""))
	}
}

func TestOpenDisabled(t *testing.T) {
	dir := newFakeDirectory()
	s, _, _ := newTestSelector(t, dir, func(c *Config) { c.Disabled = true })
	if err := s.Open(); !errors.Is(err, ErrDisabled) {
		t.Fatalf("err = %v, want ErrDisabled", err)
	}
}

func TestDrillDownToLeaf(t *testing.T) {
	dir := newFakeDirectory()
	s, changes, notes := newTestSelector(t, dir, nil)
	_ = s.Open()
	waitIdle(s)

	if err := s.Click(0, "11"); err != nil {
		t.Fatalf("click province: %v", err)
	}
	waitIdle(s)
	if got := len(s.Levels()); got != 2 {
		t.Fatalf("levels after province = %d, want 2", got)
	}

	if err := s.Click(1, "1101"); err != nil {
		t.Fatalf("click city: %v", err)
	}
	waitIdle(s)
	if got := len(s.Levels()); got != 3 {
		t.Fatalf("levels after city = %d, want 3", got)
	}

	if err := s.Click(2, "110108"); err != nil {
		t.Fatalf("click district: %v", err)
	}
	// 叶子点选同步定案并关闭
	if s.IsOpen() {
		t.Fatalf("selector must close after leaf pick")
	}
	if s.Value() != "110108" {
		t.Fatalf("value = %q, want 110108", s.Value())
	}
	if s.DisplayText() != "北京市 / 市辖区 / 海淀区" {
		t.Fatalf("display = %q", s.DisplayText())
	}
	if changes.count() != 1 {
		t.Fatalf("onChange fired %d times, want 1", changes.count())
	}
	sel := changes.last()
	if sel == nil || sel.Code != "110108" || sel.Name != "海淀区" || sel.Geo != nil {
		t.Fatalf("selection = %+v", sel)
	}
	if notes.last() != "" {
		t.Fatalf("unexpected notify: %q", notes.last())
	}
}

func TestClickValidation(t *testing.T) {
	dir := newFakeDirectory()
	s, _, _ := newTestSelector(t, dir, nil)

	if err := s.Click(0, "11"); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("closed click err = %v, want ErrNotOpen", err)
	}
	_ = s.Open()
	waitIdle(s)
	if err := s.Click(5, "11"); !errors.Is(err, ErrBadDepth) {
		t.Fatalf("bad depth err = %v", err)
	}
	if err := s.Click(0, "99"); !errors.Is(err, ErrNodeNotFound) {
		t.Fatalf("unknown code err = %v", err)
	}
}

func TestClickRejectedWhileLevelLoading(t *testing.T) {
	dir := newFakeDirectory()
	release := dir.gateChildren("11")
	s, _, _ := newTestSelector(t, dir, nil)
	_ = s.Open()
	waitIdle(s)

	if err := s.Click(0, "11"); err != nil {
		t.Fatalf("click: %v", err)
	}
	if s.State() != StateOpenLevelLoading {
		t.Fatalf("state = %v, want level loading", s.State())
	}
	if got := s.LoadingDepth(); got != 0 {
		t.Fatalf("loading depth = %d, want 0", got)
	}
	if err := s.Click(0, "12"); !errors.Is(err, ErrLevelLoading) {
		t.Fatalf("in-flight click err = %v, want ErrLevelLoading", err)
	}
	release()
	waitIdle(s)
	if s.State() != StateOpenBrowsing || s.LoadingDepth() != -1 {
		t.Fatalf("state = %v depth = %d after settle", s.State(), s.LoadingDepth())
	}
}

func TestClickCooldownSilentlyDrops(t *testing.T) {
	dir := newFakeDirectory()
	s, _, _ := newTestSelector(t, dir, nil)
	// 冻结时钟：首次点击通过，其后全部落在冷却期内
	fixed := time.Now()
	s.co.mu.Lock()
	s.co.now = func() time.Time { return fixed }
	s.co.mu.Unlock()

	_ = s.Open()
	waitIdle(s)
	if err := s.Click(0, "11"); err != nil {
		t.Fatalf("first click: %v", err)
	}
	waitIdle(s)
	if err := s.Click(1, "1101"); err != nil {
		t.Fatalf("cooldown click must be silent, got %v", err)
	}
	if dir.callsTo("1101") != 0 {
		t.Fatalf("cooldown click still fetched children")
	}
	if s.State() != StateOpenBrowsing {
		t.Fatalf("state = %v", s.State())
	}
}

func TestSameNodeReuse(t *testing.T) {
	dir := newFakeDirectory()
	s, _, _ := newTestSelector(t, dir, nil)
	_ = s.Open()
	waitIdle(s)
	_ = s.Click(0, "11")
	waitIdle(s)

	if err := s.Click(0, "11"); err != nil {
		t.Fatalf("repeat click: %v", err)
	}
	if dir.callsTo("11") != 1 {
		t.Fatalf("repeat click on current path must not refetch, calls = %d", dir.callsTo("11"))
	}
	if got := len(s.Levels()); got != 2 {
		t.Fatalf("levels = %d, want 2", got)
	}
}

func TestImplicitLeafPromotion(t *testing.T) {
	dir := newFakeDirectory()
	dir.children[""] = append(dir.children[""], Node{Code: "14", Name: "空省"})
	s, changes, _ := newTestSelector(t, dir, nil)
	_ = s.Open()
	waitIdle(s)

	// 节点未标叶子，但下级为空：按到达叶子定案
	if err := s.Click(0, "14"); err != nil {
		t.Fatalf("click: %v", err)
	}
	waitIdle(s)
	if s.IsOpen() {
		t.Fatalf("selector must close on implicit leaf")
	}
	if s.Value() != "14" || changes.count() != 1 {
		t.Fatalf("value = %q changes = %d", s.Value(), changes.count())
	}
}

func TestSelectLevelFinalizesEarly(t *testing.T) {
	dir := newFakeDirectory()
	s, changes, _ := newTestSelector(t, dir, func(c *Config) { c.SelectLevel = 2 })
	_ = s.Open()
	waitIdle(s)
	_ = s.Click(0, "11")
	waitIdle(s)

	// 到达配置深度：非叶子也定案，不再下探
	if err := s.Click(1, "1101"); err != nil {
		t.Fatalf("click: %v", err)
	}
	if s.IsOpen() {
		t.Fatalf("must close at configured depth")
	}
	if s.Value() != "1101" || s.DisplayText() != "北京市 / 市辖区" {
		t.Fatalf("value = %q display = %q", s.Value(), s.DisplayText())
	}
	if dir.callsTo("1101") != 0 {
		t.Fatalf("no fetch expected past configured depth")
	}
	if changes.last().Code != "1101" {
		t.Fatalf("selection = %+v", changes.last())
	}
}

func TestFetchErrorStaysBrowsing(t *testing.T) {
	dir := newFakeDirectory()
	dir.childrenErr["11"] = errors.New("boom")
	s, changes, notes := newTestSelector(t, dir, nil)
	_ = s.Open()
	waitIdle(s)

	_ = s.Click(0, "11")
	waitIdle(s)
	if s.State() != StateOpenBrowsing {
		t.Fatalf("state = %v, want browsing after failure", s.State())
	}
	if got := len(s.Levels()); got != 1 {
		t.Fatalf("levels = %d, failure must not append", got)
	}
	if notes.last() != "加载下级区划失败，请重试" {
		t.Fatalf("notify = %q", notes.last())
	}
	if changes.count() != 0 {
		t.Fatalf("failure must not finalize")
	}
}

func TestCloseRevertsUncommitted(t *testing.T) {
	dir := newFakeDirectory()
	s, changes, _ := newTestSelector(t, dir, nil)

	// 先完成一次选择作为既有状态
	_ = s.Open()
	waitIdle(s)
	_ = s.Click(0, "11")
	waitIdle(s)
	_ = s.Click(1, "1101")
	waitIdle(s)
	_ = s.Click(2, "110108")
	if s.Value() != "110108" {
		t.Fatalf("precondition: value = %q", s.Value())
	}

	// 重新打开（缓存命中），浏览到别处但不定案，关闭必须整体回滚
	_ = s.Open()
	if s.State() != StateOpenBrowsing {
		t.Fatalf("cached reopen state = %v", s.State())
	}
	_ = s.Click(0, "12")
	waitIdle(s)
	if got := s.Path(); len(got) == 0 || got[0].Code != "12" {
		t.Fatalf("browsing path = %+v", got)
	}
	s.Close()
	if s.Value() != "110108" || s.DisplayText() != "北京市 / 市辖区 / 海淀区" {
		t.Fatalf("revert failed: value = %q display = %q", s.Value(), s.DisplayText())
	}
	if p := s.Path(); len(p) != 3 || p[2].Code != "110108" {
		t.Fatalf("path not reverted: %+v", p)
	}
	// 关闭是幂等的
	s.Close()
	if s.State() != StateClosed {
		t.Fatalf("state = %v", s.State())
	}
	if changes.count() != 1 {
		t.Fatalf("revert must not fire onChange, count = %d", changes.count())
	}
}

func TestCloseCancelsInFlight(t *testing.T) {
	dir := newFakeDirectory()
	release := dir.gateChildren("11")
	s, _, notes := newTestSelector(t, dir, nil)
	_ = s.Open()
	waitIdle(s)

	_ = s.Click(0, "11")
	s.Close()
	release()
	waitIdle(s)

	if s.State() != StateClosed {
		t.Fatalf("state = %v", s.State())
	}
	// 迟到结果不得落到关闭后的状态；取消静默，无提示
	if s.Value() != "" || len(s.Levels()) != 0 {
		t.Fatalf("late result applied after close: value=%q levels=%d", s.Value(), len(s.Levels()))
	}
	if notes.last() != "" {
		t.Fatalf("cancellation must be silent, got %q", notes.last())
	}
}

func TestInitialValueResolvesViaRelated(t *testing.T) {
	dir := newFakeDirectory()
	dir.related["110108"] = [][]RelatedNode{
		relLevel(0, Node{Code: "11", Name: "北京市"}, Node{Code: "12", Name: "天津市"}),
		relLevel(0, Node{Code: "1101", Name: "市辖区"}),
		relLevel(1, Node{Code: "110101", Name: "东城区", Leaf: true}, Node{Code: "110108", Name: "海淀区", Leaf: true}),
	}
	s, _, notes := newTestSelector(t, dir, func(c *Config) { c.InitialValue = "110108" })

	_ = s.Open()
	waitIdle(s)
	if s.State() != StateOpenBrowsing {
		t.Fatalf("state = %v", s.State())
	}
	if p := s.Path(); len(p) != 3 || p[2].Code != "110108" {
		t.Fatalf("path = %+v", p)
	}
	if s.DisplayText() != "北京市 / 市辖区 / 海淀区" {
		t.Fatalf("display = %q", s.DisplayText())
	}
	// 整链一次取回，不逐层拉取
	if dir.relatedCount() != 1 || dir.callsTo("") != 0 {
		t.Fatalf("related=%d rootCalls=%d", dir.relatedCount(), dir.callsTo(""))
	}
	if notes.last() != "" {
		t.Fatalf("unexpected notify %q", notes.last())
	}

	// 解析结果进入缓存：关闭重开零网络恢复
	s.Close()
	_ = s.Open()
	if s.State() != StateOpenBrowsing || dir.relatedCount() != 1 {
		t.Fatalf("cached reopen hit the network")
	}
}

func TestInitialValuePartialPathAccepted(t *testing.T) {
	dir := newFakeDirectory()
	dir.related["110108"] = [][]RelatedNode{
		relLevel(-1, Node{Code: "11", Name: "北京市"}),
		relLevel(-1, Node{Code: "9901", Name: "不相关"}),
	}
	s, _, notes := newTestSelector(t, dir, func(c *Config) { c.InitialValue = "110108" })
	_ = s.Open()
	waitIdle(s)

	// 部分路径静默接受，生效值退到可解析的末节点
	if p := s.Path(); len(p) != 1 || p[0].Code != "11" {
		t.Fatalf("path = %+v", p)
	}
	if s.Value() != "11" || s.DisplayText() != "北京市" {
		t.Fatalf("value = %q display = %q", s.Value(), s.DisplayText())
	}
	if notes.last() != "" {
		t.Fatalf("partial path must be silent, got %q", notes.last())
	}
}

func TestInitialValueFallsBackToFindPath(t *testing.T) {
	dir := newFakeDirectory()
	dir.paths["110108"] = []Node{{Code: "11"}, {Code: "1101"}, {Code: "110108"}}
	s, _, notes := newTestSelector(t, dir, func(c *Config) { c.InitialValue = "110108" })
	_ = s.Open()
	waitIdle(s)

	if p := s.Path(); len(p) != 3 || p[2].Code != "110108" {
		t.Fatalf("path = %+v", p)
	}
	if s.DisplayText() != "北京市 / 市辖区 / 海淀区" {
		t.Fatalf("display = %q", s.DisplayText())
	}
	if notes.last() != "" {
		t.Fatalf("fallback success must be silent, got %q", notes.last())
	}
}

func TestInitialValueFailureLoadsRoot(t *testing.T) {
	dir := newFakeDirectory()
	s, _, notes := newTestSelector(t, dir, func(c *Config) { c.InitialValue = "110108" })
	_ = s.Open()
	waitIdle(s)

	if s.State() != StateOpenBrowsing {
		t.Fatalf("state = %v", s.State())
	}
	if lv := s.Levels(); len(lv) != 1 || len(lv[0]) != 3 {
		t.Fatalf("root fallback levels = %v", lv)
	}
	if notes.last() != "回显已选区划失败" {
		t.Fatalf("notify = %q", notes.last())
	}
}

// 两次解析重叠时以发起顺序为准，与到达顺序无关：先发起的迟到结果必须被丢弃
func TestSupersededResolutionDropped(t *testing.T) {
	dir := newFakeDirectory()
	dir.related["110108"] = [][]RelatedNode{
		relLevel(0, Node{Code: "11", Name: "北京市"}),
		relLevel(0, Node{Code: "1101", Name: "市辖区"}),
		relLevel(0, Node{Code: "110108", Name: "海淀区", Leaf: true}),
	}
	dir.related["120101"] = [][]RelatedNode{
		relLevel(1, Node{Code: "11", Name: "北京市"}, Node{Code: "12", Name: "天津市"}),
		relLevel(0, Node{Code: "1201", Name: "市辖区"}),
		relLevel(0, Node{Code: "120101", Name: "和平区", Leaf: true}),
	}
	relA := dir.gateRelated("110108")
	relB := dir.gateRelated("120101")

	s, _, notes := newTestSelector(t, dir, nil)
	_ = s.Open()
	waitIdle(s)

	s.SetValue("110108")
	s.SetValue("120101")
	// 迟到的 A 先返回，再放行 B
	relA()
	relB()
	waitIdle(s)

	if s.Value() != "120101" {
		t.Fatalf("value = %q, want the later request to win", s.Value())
	}
	if s.DisplayText() != "天津市 / 市辖区 / 和平区" {
		t.Fatalf("display = %q", s.DisplayText())
	}
	if notes.last() != "" {
		t.Fatalf("superseded request must be silent, got %q", notes.last())
	}
}

func TestSetValueCacheHit(t *testing.T) {
	dir := newFakeDirectory()
	s, _, _ := newTestSelector(t, dir, nil)
	_ = s.Open()
	waitIdle(s)
	_ = s.Click(0, "11")
	waitIdle(s)
	_ = s.Click(1, "1101")
	waitIdle(s)
	_ = s.Click(2, "110108")

	_ = s.Open()
	calls := dir.callsTo("") + dir.callsTo("11") + dir.callsTo("1101")
	s.SetValue("110108")
	if s.State() != StateOpenBrowsing {
		t.Fatalf("state = %v", s.State())
	}
	after := dir.callsTo("") + dir.callsTo("11") + dir.callsTo("1101")
	if after != calls {
		t.Fatalf("cache hit must not fetch: %d -> %d", calls, after)
	}
	if p := s.Path(); len(p) != 3 || p[2].Code != "110108" {
		t.Fatalf("path = %+v", p)
	}
}

func TestClearFiresNil(t *testing.T) {
	dir := newFakeDirectory()
	s, changes, _ := newTestSelector(t, dir, nil)
	_ = s.Open()
	waitIdle(s)
	_ = s.Click(0, "11")
	waitIdle(s)
	_ = s.Click(1, "1101")
	waitIdle(s)
	_ = s.Click(2, "110108")

	s.Clear()
	if s.Value() != "" || s.DisplayText() != "" {
		t.Fatalf("clear left value=%q display=%q", s.Value(), s.DisplayText())
	}
	if changes.count() != 2 || changes.last() != nil {
		t.Fatalf("clear must fire nil, count=%d last=%+v", changes.count(), changes.last())
	}
}

func assertLevelsCoverPath(t *testing.T, s *Selector) {
	t.Helper()
	lv := s.Levels()
	path := s.Path()
	if len(path) > len(lv) {
		t.Fatalf("path depth %d exceeds level count %d", len(path), len(lv))
	}
	for i, p := range path {
		found := false
		for _, n := range lv[i] {
			if n.Code == p.Code {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("path[%d]=%s missing from its level", i, p.Code)
		}
	}
}

func TestLevelsAlwaysCoverPath(t *testing.T) {
	dir := newFakeDirectory()
	dir.related["110108"] = [][]RelatedNode{
		relLevel(0, Node{Code: "11", Name: "北京市"}),
		relLevel(0, Node{Code: "1101", Name: "市辖区"}),
		relLevel(0, Node{Code: "110108", Name: "海淀区", Leaf: true}),
	}
	s, _, _ := newTestSelector(t, dir, nil)

	_ = s.Open()
	waitIdle(s)
	assertLevelsCoverPath(t, s)

	// 正在加载下一级时，已点的节点先进路径
	release := dir.gateChildren("11")
	_ = s.Click(0, "11")
	assertLevelsCoverPath(t, s)
	release()
	waitIdle(s)
	assertLevelsCoverPath(t, s)

	// 切换兄弟节点把更深层级截断
	_ = s.Click(0, "12")
	waitIdle(s)
	assertLevelsCoverPath(t, s)

	_ = s.Click(1, "1201")
	waitIdle(s)
	assertLevelsCoverPath(t, s)

	_ = s.Click(2, "120101")
	assertLevelsCoverPath(t, s)

	// 外部赋值回显后再打开
	s.SetValue("110108")
	waitIdle(s)
	_ = s.Open()
	waitIdle(s)
	assertLevelsCoverPath(t, s)

	s.Clear()
	waitIdle(s)
	assertLevelsCoverPath(t, s)
}
