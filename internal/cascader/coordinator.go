package cascader

import (
	"context"
	"sync"
	"time"
)

// 文档注释：请求协调器
// 背景：同一时刻至多一个“拉取/解析”操作在飞；新操作先取消旧操作的上下文再发起，
// 旧操作的迟到结果按代号判定后丢弃，而不是按到达顺序
// 约束：代号比较必须在应用结果前进行；点击冷却与搜索防抖同样由此统一管理
type coordinator struct {
	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc

	cooldown  time.Duration
	lastClick time.Time

	debounce  time.Duration
	searchSeq uint64
	timer     *time.Timer

	now       func() time.Time
	afterFunc func(d time.Duration, f func()) *time.Timer
}

func newCoordinator(cooldown, debounce time.Duration) *coordinator {
	if cooldown <= 0 {
		cooldown = 300 * time.Millisecond
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &coordinator{
		cooldown:  cooldown,
		debounce:  debounce,
		now:       time.Now,
		afterFunc: time.AfterFunc,
	}
}

// begin：取消上一个在飞操作并开启新代，返回携带取消的上下文与代号
func (c *coordinator) begin(parent context.Context) (context.Context, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
	c.gen++
	ctx, cancel := context.WithCancel(parent)
	c.cancel = cancel
	return ctx, c.gen
}

// current：判定代号是否仍是最新；应用任何异步结果前必须通过此检查
func (c *coordinator) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen == c.gen
}

// abort：取消在飞操作并使所有已发出的代号失效（关闭/卸载时调用，避免泄漏）
func (c *coordinator) abort() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.searchSeq++
}

// allowClick：点击冷却，抑制与网络时延无关的连点双提交
func (c *coordinator) allowClick() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now()
	if !c.lastClick.IsZero() && t.Sub(c.lastClick) < c.cooldown {
		return false
	}
	c.lastClick = t
	return true
}

// scheduleSearch：每次键入重置防抖计时器，仅延迟结束后仍为最新的序号触发回调
// 约束：回调在计时器协程执行，调用方自行回到自己的互斥域
func (c *coordinator) scheduleSearch(fire func(seq uint64)) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
	}
	c.searchSeq++
	seq := c.searchSeq
	c.timer = c.afterFunc(c.debounce, func() {
		if c.searchCurrent(seq) {
			fire(seq)
		}
	})
	return seq
}

// searchCurrent：搜索序号是否仍是最新（用于丢弃被覆盖的关键字结果）
func (c *coordinator) searchCurrent(seq uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return seq == c.searchSeq
}
