package cascader

import (
	"context"
	"errors"
	"sync"
	"time"
)

var errFakeUnavailable = errors.New("fake: unavailable")

// fakeDirectory：内存区划目录，默认载入一份小型 GB/T 2260 风格数据集
// 可按父节点挂闸门（gate）让拉取悬停，用于构造在飞/顶替场景
type fakeDirectory struct {
	mu            sync.Mutex
	children      map[string][]Node
	related       map[string][][]RelatedNode
	paths         map[string][]Node
	searches      map[string][][]Node
	revgeo        []Node
	revgeoErr     error
	childrenErr   map[string]error
	searchErr     error
	childrenCalls map[string]int
	searchCalls   int
	relatedCalls  int
	gates         map[string]chan struct{}
	relatedGates  map[string]chan struct{}
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		children: map[string][]Node{
			"": {
				{Code: "11", Name: "北京市"},
				{Code: "12", Name: "天津市"},
				{Code: "13", Name: "河北省"},
			},
			"11": {{Code: "1101", Name: "市辖区"}},
			"1101": {
				{Code: "110101", Name: "东城区", Leaf: true},
				{Code: "110108", Name: "海淀区", Leaf: true},
			},
			"12":   {{Code: "1201", Name: "市辖区"}},
			"1201": {{Code: "120101", Name: "和平区", Leaf: true}},
			"13":   {{Code: "1301", Name: "石家庄市"}},
			"1301": {
				{Code: "130102", Name: "长安区", Leaf: true},
				{Code: "130104", Name: "桥西区", Leaf: true},
			},
		},
		related:       map[string][][]RelatedNode{},
		paths:         map[string][]Node{},
		searches:      map[string][][]Node{},
		childrenErr:   map[string]error{},
		childrenCalls: map[string]int{},
		gates:         map[string]chan struct{}{},
		relatedGates:  map[string]chan struct{}{},
	}
}

// gateChildren：让指定父节点的拉取悬停，直到返回的 release 被调用
func (d *fakeDirectory) gateChildren(parent string) (release func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch := make(chan struct{})
	d.gates[parent] = ch
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (d *fakeDirectory) gateRelated(code string) (release func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch := make(chan struct{})
	d.relatedGates[code] = ch
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (d *fakeDirectory) Children(ctx context.Context, parent string) ([]Node, error) {
	d.mu.Lock()
	d.childrenCalls[parent]++
	gate := d.gates[parent]
	err := d.childrenErr[parent]
	out := copyLevel(d.children[parent])
	d.mu.Unlock()
	if gate != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-gate:
		}
	}
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return out, nil
}

func (d *fakeDirectory) FindPath(ctx context.Context, code string) ([]Node, error) {
	d.mu.Lock()
	p := copyLevel(d.paths[code])
	d.mu.Unlock()
	return p, nil
}

func (d *fakeDirectory) Related(ctx context.Context, code string) ([][]RelatedNode, error) {
	d.mu.Lock()
	d.relatedCalls++
	gate := d.relatedGates[code]
	lv, ok := d.related[code]
	d.mu.Unlock()
	if gate != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-gate:
		}
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if !ok {
		return nil, errFakeUnavailable
	}
	return lv, nil
}

func (d *fakeDirectory) Search(ctx context.Context, keyword string) ([][]Node, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.searchCalls++
	if d.searchErr != nil {
		return nil, d.searchErr
	}
	return d.searches[keyword], nil
}

func (d *fakeDirectory) ReverseGeocode(ctx context.Context, lat, lng float64) ([]Node, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.revgeoErr != nil {
		return nil, d.revgeoErr
	}
	return copyLevel(d.revgeo), nil
}

func (d *fakeDirectory) callsTo(parent string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.childrenCalls[parent]
}

func (d *fakeDirectory) relatedCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.relatedCalls
}

// fakePosition：固定坐标或固定错误的定位源
type fakePosition struct {
	pt  GeoPoint
	err error
}

func (p *fakePosition) Position(ctx context.Context, opt PositionOptions) (GeoPoint, error) {
	if p.err != nil {
		return GeoPoint{}, p.err
	}
	return p.pt, nil
}

// notifyRecorder：捕获用户提示，供断言
type notifyRecorder struct {
	mu   sync.Mutex
	msgs []string
}

func (r *notifyRecorder) fn() func(string) {
	return func(msg string) {
		r.mu.Lock()
		r.msgs = append(r.msgs, msg)
		r.mu.Unlock()
	}
}

func (r *notifyRecorder) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.msgs) == 0 {
		return ""
	}
	return r.msgs[len(r.msgs)-1]
}

// changeRecorder：捕获定案/清空回调
type changeRecorder struct {
	mu   sync.Mutex
	sels []*Selection
}

func (r *changeRecorder) fn() func(*Selection) {
	return func(sel *Selection) {
		r.mu.Lock()
		r.sels = append(r.sels, sel)
		r.mu.Unlock()
	}
}

func (r *changeRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sels)
}

func (r *changeRecorder) last() *Selection {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sels) == 0 {
		return nil
	}
	return r.sels[len(r.sels)-1]
}

// waitIdle：等待所有在飞协程收尾（含被顶替后静默退出的）
func waitIdle(s *Selector) { s.pending.Wait() }

// disarmCooldown：测试内连续点选不受冷却影响
func disarmCooldown(s *Selector) {
	t := time.Now()
	s.co.mu.Lock()
	s.co.now = func() time.Time {
		t = t.Add(time.Second)
		return t
	}
	s.co.mu.Unlock()
}

// captureSearchTimers：替换防抖计时器为手动触发，返回逐次排定的回调队列
func captureSearchTimers(s *Selector) *timerQueue {
	q := &timerQueue{}
	s.co.mu.Lock()
	s.co.afterFunc = func(d time.Duration, f func()) *time.Timer {
		q.mu.Lock()
		q.fns = append(q.fns, f)
		q.mu.Unlock()
		// 返回已停止的真实计时器，满足 Stop 调用
		tm := time.NewTimer(time.Hour)
		tm.Stop()
		return tm
	}
	s.co.mu.Unlock()
	return q
}

type timerQueue struct {
	mu  sync.Mutex
	fns []func()
}

func (q *timerQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.fns)
}

// fire：同步触发第 i 次排定的防抖回调
func (q *timerQueue) fire(i int) {
	q.mu.Lock()
	f := q.fns[i]
	q.mu.Unlock()
	f()
}
