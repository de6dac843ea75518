package cascader

import (
	"context"
	"errors"
	"sync"
	"time"

	"region-api/internal/logger"
	"region-api/internal/metrics"
)

// State：选择器状态机的可观测状态
type State int

const (
	StateClosed State = iota
	StateOpenLoading      // 打开但初始层级未就绪
	StateOpenBrowsing     // 层级已展示，等待点选
	StateOpenLevelLoading // 点选后下级拉取在飞
	StateOpenSearch       // 搜索浮层激活
	StateCompleted        // 选择已定案（随即回到 Closed，定位链路除外）
)

var (
	ErrDisabled        = errors.New("selector disabled")
	ErrNotOpen         = errors.New("selector not open")
	ErrLevelLoading    = errors.New("level fetch in flight")
	ErrBadDepth        = errors.New("depth out of range")
	ErrSearchDisabled  = errors.New("search disabled")
	ErrLocateDisabled  = errors.New("geolocation disabled")
	ErrNoCandidate     = errors.New("candidate index out of range")
	errMissingDirectory = errors.New("cascader: directory is required")
)

// Config：选择器配置面
// 背景：SelectLevel 为配置的最大深度（0 表示不限），到达该深度即定案并以截断路径末节点对外生效；
// Notify 为非阻塞的用户提示出口（toast 同类物），缺省仅写日志
type Config struct {
	Directory Directory
	Position  PositionProvider

	InitialValue      string
	SelectLevel       int
	EnableSearch      bool
	EnableGeolocation bool
	Disabled          bool

	Separator       string // 缺省 " / "
	CacheSize       int
	ClickCooldown   time.Duration
	SearchDebounce  time.Duration
	PositionTimeout time.Duration
	PositionMaxAge  time.Duration
	Matcher         CodeMatcher

	OnChange func(*Selection) // 定案或清空时回调；清空传 nil
	Notify   func(msg string)
}

type openSnapshot struct {
	value   string
	display string
	path    []Node
	levels  [][]Node
	geo     *GeoPoint
}

// 文档注释：选择状态机
// 背景：三条解析链路（逐级点选/搜索/定位）以及初始值回显全部汇入同一套应用与定案逻辑；
// 打开时留快照，未定案关闭按快照回滚
// 约束：异步完成必须先通过协调器代号检查再落状态；任何失败不允许留下半应用状态
type Selector struct {
	mu    sync.Mutex
	dir   Directory
	pos   PositionProvider
	cache *PathCache
	co    *coordinator
	res   *resolver
	base  context.Context

	selectLevel int
	sep         string
	enableSearch bool
	enableGeo    bool
	disabled     bool
	posTimeout   time.Duration
	posMaxAge    time.Duration
	onChange     func(*Selection)
	notify       func(string)

	state        State
	open         bool
	levels       [][]Node
	path         []Node
	value        string
	display      string
	geo          *GeoPoint
	manual       bool
	snap         *openSnapshot
	loadingDepth int

	keyword    string
	candidates [][]Node

	pending sync.WaitGroup
}

func NewSelector(cfg Config) (*Selector, error) {
	if cfg.Directory == nil {
		return nil, errMissingDirectory
	}
	sep := cfg.Separator
	if sep == "" {
		sep = " / "
	}
	matcher := cfg.Matcher
	if matcher == nil {
		matcher = PrefixMatcher(nil)
	}
	posTimeout := cfg.PositionTimeout
	if posTimeout <= 0 {
		posTimeout = defaultPositionTimeout
	}
	posMaxAge := cfg.PositionMaxAge
	if posMaxAge <= 0 {
		posMaxAge = defaultPositionMaxAge
	}
	notify := cfg.Notify
	if notify == nil {
		notify = func(msg string) { logger.L().Info("cascader_notify", "msg", msg) }
	}
	s := &Selector{
		dir:          cfg.Directory,
		pos:          cfg.Position,
		cache:        NewPathCache(cfg.CacheSize),
		co:           newCoordinator(cfg.ClickCooldown, cfg.SearchDebounce),
		res:          &resolver{dir: cfg.Directory, matcher: matcher},
		base:         context.Background(),
		selectLevel:  cfg.SelectLevel,
		sep:          sep,
		enableSearch: cfg.EnableSearch,
		enableGeo:    cfg.EnableGeolocation,
		disabled:     cfg.Disabled,
		posTimeout:   posTimeout,
		posMaxAge:    posMaxAge,
		onChange:     cfg.OnChange,
		notify:       notify,
		value:        cfg.InitialValue,
		loadingDepth: -1,
	}
	return s, nil
}

// Open：Closed → Open 转换
// 背景：先留快照供未定案关闭时回滚；绑定值有缓存则零网络恢复，否则走整链解析；
// 无绑定值时仅确保根层可用
func (s *Selector) Open() error {
	s.mu.Lock()
	if s.disabled {
		s.mu.Unlock()
		return ErrDisabled
	}
	if s.open {
		s.mu.Unlock()
		return nil
	}
	s.open = true
	s.manual = false
	s.snap = &openSnapshot{
		value:   s.value,
		display: s.display,
		path:    copyLevel(s.path),
		levels:  copyLevels(s.levels),
		geo:     s.geo,
	}
	if s.value != "" {
		if lv, p, ok := s.cache.Get(s.value); ok {
			metrics.CascaderCacheHitsTotal.Inc()
			s.levels, s.path = lv, p
			s.display = joinNames(p, s.sep)
			s.state = StateOpenBrowsing
			s.mu.Unlock()
			return nil
		}
		metrics.CascaderCacheMissesTotal.Inc()
		s.state = StateOpenLoading
		ctx, gen := s.co.begin(s.base)
		s.pending.Add(1)
		go s.resolveInitial(ctx, gen, s.value)
		s.mu.Unlock()
		return nil
	}
	if len(s.levels) == 0 {
		s.state = StateOpenLoading
		ctx, gen := s.co.begin(s.base)
		s.pending.Add(1)
		go s.loadRoot(ctx, gen)
	} else {
		s.state = StateOpenBrowsing
	}
	s.mu.Unlock()
	return nil
}

// Close：关闭选择器
// 约束：未定案（无手动选择）时按打开快照整体回滚；已定案时保留定案状态；
// 在飞请求一律取消，不允许迟到结果落到关闭后的状态上
func (s *Selector) Close() {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return
	}
	s.closeLocked(!s.manual)
	s.mu.Unlock()
}

func (s *Selector) closeLocked(revert bool) {
	if revert && s.snap != nil {
		s.value = s.snap.value
		s.display = s.snap.display
		s.path = s.snap.path
		s.levels = s.snap.levels
		s.geo = s.snap.geo
	}
	s.snap = nil
	s.open = false
	s.state = StateClosed
	s.loadingDepth = -1
	s.keyword = ""
	s.candidates = nil
	s.co.abort()
}

// Click：在 depth 层点选 code 节点
// 算法（与各链路共用的定案逻辑汇聚在 completeLocked）：
//  1. 下级拉取在飞时拒绝，防止并发分叉；
//  2. 到达配置深度或叶子节点：截断并定案；
//  3. 重复点选当前路径节点且下级已就绪：复用既有数据，不发网络；
//  4. 其余：乐观截断过期的更深层级后拉取下级；零子节点按隐式叶子定案
func (s *Selector) Click(depth int, code string) error {
	s.mu.Lock()
	if s.disabled {
		s.mu.Unlock()
		return ErrDisabled
	}
	if !s.open {
		s.mu.Unlock()
		return ErrNotOpen
	}
	if s.state == StateOpenLevelLoading {
		s.mu.Unlock()
		return ErrLevelLoading
	}
	if depth < 0 || depth >= len(s.levels) {
		s.mu.Unlock()
		return ErrBadDepth
	}
	var node Node
	found := false
	for _, n := range s.levels[depth] {
		if n.Code == code {
			node = n
			found = true
			break
		}
	}
	if !found {
		s.mu.Unlock()
		return ErrNodeNotFound
	}
	if !s.co.allowClick() {
		// 冷却期内的连点静默丢弃
		s.mu.Unlock()
		logger.L().Debug("cascader_click_cooldown", "code", code)
		return nil
	}
	if (s.selectLevel > 0 && depth+1 >= s.selectLevel) || node.Leaf {
		s.path = append(s.path[:depth], node)
		s.levels = s.levels[:depth+1]
		sel := s.completeLocked(nil, false)
		s.mu.Unlock()
		s.fire(sel)
		return nil
	}
	if depth < len(s.path) && s.path[depth].Code == code && len(s.levels) > depth+1 {
		s.path[depth] = node
		s.path = s.path[:depth+1]
		s.levels = s.levels[:depth+2]
		s.state = StateOpenBrowsing
		s.mu.Unlock()
		return nil
	}
	// 乐观截断：在飞期间不展示与新选择不一致的更深层级
	s.levels = s.levels[:depth+1]
	s.path = append(s.path[:depth], node)
	s.state = StateOpenLevelLoading
	s.loadingDepth = depth
	ctx, gen := s.co.begin(s.base)
	s.pending.Add(1)
	go s.fetchLevel(ctx, gen, depth, node)
	s.mu.Unlock()
	return nil
}

func (s *Selector) fetchLevel(ctx context.Context, gen uint64, depth int, node Node) {
	defer s.pending.Done()
	t0 := time.Now()
	children, err := s.dir.Children(ctx, node.Code)
	metrics.CascaderFetchDurationMs.Observe(float64(time.Since(t0).Milliseconds()))
	s.mu.Lock()
	if !s.co.current(gen) || !s.open {
		s.mu.Unlock()
		return
	}
	s.loadingDepth = -1
	if err != nil {
		// 失败保持在已截断的层级上，用户可重点重试
		if s.state == StateOpenLevelLoading {
			s.state = StateOpenBrowsing
		}
		s.mu.Unlock()
		if !canceled(err) {
			logger.L().Error("cascader_children_error", "parent", node.Code, "err", err)
			s.notify("加载下级区划失败，请重试")
		}
		return
	}
	if len(children) == 0 {
		// 非叶子返回零子节点：按到达叶子定案，避免界面卡死
		sel := s.completeLocked(nil, false)
		s.mu.Unlock()
		s.fire(sel)
		return
	}
	s.levels = append(s.levels, children)
	// 用户可能已在加载期间进入搜索浮层，完成的拉取不把浮层顶回浏览态
	if s.state == StateOpenLevelLoading {
		s.state = StateOpenBrowsing
	}
	s.mu.Unlock()
}

// completeLocked：统一定案出口（四条链路共用）
// 前置：s.path 已是最终路径、s.levels 与之一致；geo 仅定位链路携带；
// keepOpen 仅定位链路为真（保持打开让用户确认解析结果）
func (s *Selector) completeLocked(geo *GeoPoint, keepOpen bool) *Selection {
	last := s.path[len(s.path)-1]
	s.display = joinNames(s.path, s.sep)
	s.value = last.Code
	s.geo = geo
	s.manual = true
	s.cache.Put(last.Code, s.levels, s.path)
	s.state = StateCompleted
	metrics.CascaderFinalizeTotal.Inc()
	sel := &Selection{Code: last.Code, Name: last.Name, DisplayText: s.display}
	if geo != nil {
		g := *geo
		sel.Geo = &g
	}
	if keepOpen {
		s.state = StateOpenBrowsing
	} else {
		s.closeLocked(false)
	}
	return sel
}

// SetValue：宿主改写绑定值
// 背景：层级/路径/显示文本全部清空并清除手动标志，打开状态下重跑初始值解析管线
func (s *Selector) SetValue(code string) {
	s.mu.Lock()
	s.value = code
	s.path = nil
	s.levels = nil
	s.display = ""
	s.geo = nil
	s.manual = false
	if s.open {
		if code != "" {
			if lv, p, ok := s.cache.Get(code); ok {
				metrics.CascaderCacheHitsTotal.Inc()
				s.levels, s.path = lv, p
				s.display = joinNames(p, s.sep)
				s.state = StateOpenBrowsing
				s.mu.Unlock()
				return
			}
			metrics.CascaderCacheMissesTotal.Inc()
			s.state = StateOpenLoading
			ctx, gen := s.co.begin(s.base)
			s.pending.Add(1)
			go s.resolveInitial(ctx, gen, code)
			s.mu.Unlock()
			return
		}
		s.state = StateOpenLoading
		ctx, gen := s.co.begin(s.base)
		s.pending.Add(1)
		go s.loadRoot(ctx, gen)
	}
	s.mu.Unlock()
}

// Clear：用户主动清空选择，回调 nil 通知宿主
func (s *Selector) Clear() {
	s.SetValue("")
	s.fire(nil)
}

// resolveInitial：绑定值的整链解析管线
// 背景：优先 related 一次拉全；不可用时退回 findPath+逐层重建；两者都失败则提示并
// 退回根层加载，保证仍可手动下探。部分路径不是错误，按最优可得结果接受
func (s *Selector) resolveInitial(ctx context.Context, gen uint64, code string) {
	defer s.pending.Done()
	levels, path, err := s.res.fullPath(ctx, code)
	if err != nil && !canceled(err) {
		if chain, err2 := s.dir.FindPath(ctx, code); err2 == nil && len(chain) > 0 {
			levels, path, err = s.res.rebuild(ctx, chain, nil)
		}
	}
	s.mu.Lock()
	if !s.co.current(gen) || !s.open {
		s.mu.Unlock()
		return
	}
	if err != nil || len(levels) == 0 {
		s.state = StateOpenLoading
		ctx2, gen2 := s.co.begin(s.base)
		s.pending.Add(1)
		go s.loadRoot(ctx2, gen2)
		s.mu.Unlock()
		if err != nil && !canceled(err) {
			logger.L().Error("cascader_resolve_error", "code", code, "err", err)
			s.notify("回显已选区划失败")
		}
		return
	}
	levels, path = truncate(levels, path, s.selectLevel)
	s.levels = levels
	s.path = path
	if len(path) > 0 {
		last := path[len(path)-1]
		s.value = last.Code
		s.display = joinNames(path, s.sep)
		s.cache.Put(last.Code, levels, path)
	}
	s.state = StateOpenBrowsing
	s.mu.Unlock()
}

func (s *Selector) loadRoot(ctx context.Context, gen uint64) {
	defer s.pending.Done()
	children, err := s.dir.Children(ctx, "")
	s.mu.Lock()
	if !s.co.current(gen) || !s.open {
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.state = StateOpenBrowsing
		s.mu.Unlock()
		if !canceled(err) {
			logger.L().Error("cascader_root_error", "err", err)
			s.notify("加载区划数据失败，请重试")
		}
		return
	}
	s.levels = [][]Node{children}
	s.path = nil
	s.state = StateOpenBrowsing
	s.mu.Unlock()
}

// fire：回调放在互斥域外执行，宿主在回调内回调选择器也不会死锁
func (s *Selector) fire(sel *Selection) {
	if s.onChange != nil {
		s.onChange(sel)
	}
}

// ---- 只读访问（均返回副本，外部持有不影响内部状态）----

func (s *Selector) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Selector) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *Selector) Value() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

func (s *Selector) DisplayText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.display
}

func (s *Selector) Levels() [][]Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyLevels(s.levels)
}

func (s *Selector) Path() []Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyLevel(s.path)
}

func (s *Selector) Geo() *GeoPoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.geo == nil {
		return nil
	}
	g := *s.geo
	return &g
}

// LoadingDepth：当前在飞拉取对应的层深，用于按节点展示加载态；无在飞时为 -1
func (s *Selector) LoadingDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadingDepth
}
