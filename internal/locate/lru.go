package locate

import (
	"container/list"
	"sync"
	"time"
)

// 文档注释：本地 LRU 缓存（geohash 为键）
// 背景：热点坐标在短周期内重复查询，进程内缓存降低索引与外部调用开销；TTL 可调
// 约束：仅缓存命中结果；容量超限按最久未用淘汰
type lru struct {
	mu   sync.Mutex
	cap  int
	ttl  time.Duration
	lst  *list.List
	dict map[string]*list.Element
}

type lruItem struct {
	k   string
	v   Result
	exp time.Time
}

func newLRU(capacity int, ttl time.Duration) *lru {
	return &lru{cap: capacity, ttl: ttl, lst: list.New(), dict: make(map[string]*list.Element)}
}

func (c *lru) get(k string) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.dict[k]; ok {
		it := e.Value.(lruItem)
		if time.Now().Before(it.exp) {
			c.lst.MoveToFront(e)
			return it.v, true
		}
		c.lst.Remove(e)
		delete(c.dict, k)
	}
	return Result{}, false
}

func (c *lru) set(k string, v Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.dict[k]; ok {
		e.Value = lruItem{k: k, v: v, exp: time.Now().Add(c.ttl)}
		c.lst.MoveToFront(e)
		return
	}
	e := c.lst.PushFront(lruItem{k: k, v: v, exp: time.Now().Add(c.ttl)})
	c.dict[k] = e
	for c.lst.Len() > c.cap {
		back := c.lst.Back()
		if back == nil {
			break
		}
		it := back.Value.(lruItem)
		delete(c.dict, it.k)
		c.lst.Remove(back)
	}
}
