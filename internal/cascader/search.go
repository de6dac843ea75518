package cascader

import (
	"context"
	"time"

	"region-api/internal/logger"
	"region-api/internal/metrics"
)

// SearchInput：搜索浮层的关键字输入
// 背景：每次键入重置防抖计时，延迟结束后仍为最新的关键字才发起一次搜索；
// 在飞的被覆盖搜索不在传输层取消，但其结果只在关键字仍是最新时应用
func (s *Selector) SearchInput(text string) error {
	s.mu.Lock()
	if s.disabled {
		s.mu.Unlock()
		return ErrDisabled
	}
	if !s.enableSearch {
		s.mu.Unlock()
		return ErrSearchDisabled
	}
	if !s.open {
		s.mu.Unlock()
		return ErrNotOpen
	}
	s.state = StateOpenSearch
	kw := normalizeKeyword(text)
	s.keyword = kw
	s.candidates = nil
	s.mu.Unlock()
	if kw == "" {
		return nil
	}
	s.co.scheduleSearch(func(seq uint64) { s.runSearch(kw, seq) })
	return nil
}

func (s *Selector) runSearch(kw string, seq uint64) {
	s.pending.Add(1)
	defer s.pending.Done()
	t0 := time.Now()
	res, err := s.dir.Search(s.base, kw)
	metrics.CascaderSearchDurationMs.Observe(float64(time.Since(t0).Milliseconds()))
	s.mu.Lock()
	if !s.co.searchCurrent(seq) || !s.open || s.keyword != kw {
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.mu.Unlock()
		if !canceled(err) {
			logger.L().Error("cascader_search_error", "keyword", kw, "err", err)
			s.notify("搜索失败，请重试")
		}
		return
	}
	s.candidates = res
	s.mu.Unlock()
}

// Candidates：当前搜索候选路径（副本）
func (s *Selector) Candidates() [][]Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyLevels(s.candidates)
}

// CancelSearch：退出搜索浮层，回到浏览态，候选丢弃
func (s *Selector) CancelSearch() {
	s.mu.Lock()
	if s.open && s.state == StateOpenSearch {
		s.keyword = ""
		s.candidates = nil
		if len(s.levels) > 0 {
			s.state = StateOpenBrowsing
		} else {
			s.state = StateOpenLoading
			ctx, gen := s.co.begin(s.base)
			s.pending.Add(1)
			go s.loadRoot(ctx, gen)
		}
	}
	s.mu.Unlock()
}

// PickCandidate：选中第 i 条候选路径
// 背景：候选长度已达配置深度或末节点为叶子时直接定案，不再发网络；
// 否则逐层重建兄弟列表以便从该点继续手动下探（根层复用已有数据）
func (s *Selector) PickCandidate(i int) error {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return ErrNotOpen
	}
	if i < 0 || i >= len(s.candidates) {
		s.mu.Unlock()
		return ErrNoCandidate
	}
	cand := copyLevel(s.candidates[i])
	if len(cand) == 0 {
		s.mu.Unlock()
		return ErrNoCandidate
	}
	if s.selectLevel > 0 && len(cand) >= s.selectLevel {
		cand = cand[:s.selectLevel]
		s.levels = singleLevels(cand)
		s.path = cand
		sel := s.completeLocked(nil, false)
		s.mu.Unlock()
		s.fire(sel)
		return nil
	}
	if cand[len(cand)-1].Leaf {
		// 末节点为叶子：直接定案，不发任何网络请求
		s.levels = singleLevels(cand)
		s.path = cand
		sel := s.completeLocked(nil, false)
		s.mu.Unlock()
		s.fire(sel)
		return nil
	}
	var root []Node
	if len(s.levels) > 0 {
		root = copyLevel(s.levels[0])
	}
	s.state = StateOpenLevelLoading
	ctx, gen := s.co.begin(s.base)
	s.pending.Add(1)
	go s.applyCandidate(ctx, gen, cand, root)
	s.mu.Unlock()
	return nil
}

// applyCandidate：候选路径的多步重建
// 约束：任一步失败即中止浮层流程并提示，不落半截状态；取消静默返回
func (s *Selector) applyCandidate(ctx context.Context, gen uint64, cand []Node, root []Node) {
	defer s.pending.Done()
	levels, path, err := s.res.rebuild(ctx, cand, root)
	var next []Node
	if err == nil {
		last := path[len(path)-1]
		if !last.Leaf {
			next, err = s.dir.Children(ctx, last.Code)
		}
	}
	s.mu.Lock()
	if !s.co.current(gen) || !s.open {
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.state = StateOpenSearch
		s.mu.Unlock()
		if !canceled(err) {
			logger.L().Error("cascader_candidate_error", "err", err)
			s.notify("加载搜索结果失败，请重试")
		}
		return
	}
	s.levels = levels
	s.path = path
	last := path[len(path)-1]
	if last.Leaf || len(next) == 0 {
		// 末节点为叶子，或非叶子却无下级（隐式叶子）：直接定案
		sel := s.completeLocked(nil, false)
		s.mu.Unlock()
		s.fire(sel)
		return
	}
	s.levels = append(s.levels, next)
	s.keyword = ""
	s.candidates = nil
	s.state = StateOpenBrowsing
	s.mu.Unlock()
}
