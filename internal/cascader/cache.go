package cascader

import (
	"container/list"
	"sync"
)

// 文档注释：路径缓存（叶子 code → 层级+路径快照）
// 背景：同一会话内重复打开或回显已选值时避免再次整链拉取；按条目数做简单 LRU 上界
// 约束：写入与读出都做深拷贝，缓存条目是值而非活动状态的引用；同键写入整体覆盖，不做合并
type PathCache struct {
	mu   sync.Mutex
	cap  int
	lst  *list.List
	dict map[string]*list.Element
}

type pathEntry struct {
	code   string
	levels [][]Node
	path   []Node
}

func NewPathCache(capacity int) *PathCache {
	if capacity <= 0 {
		capacity = 64
	}
	return &PathCache{cap: capacity, lst: list.New(), dict: make(map[string]*list.Element)}
}

// Get：按叶子 code 取快照，返回的层级与路径为独立副本
func (c *PathCache) Get(code string) ([][]Node, []Node, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.dict[code]
	if !ok {
		return nil, nil, false
	}
	c.lst.MoveToFront(e)
	it := e.Value.(pathEntry)
	return copyLevels(it.levels), copyLevel(it.path), true
}

// Put：存入快照（深拷贝），同键覆盖旧条目；超出容量时淘汰最久未用
func (c *PathCache) Put(code string, levels [][]Node, path []Node) {
	if code == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	it := pathEntry{code: code, levels: copyLevels(levels), path: copyLevel(path)}
	if e, ok := c.dict[code]; ok {
		e.Value = it
		c.lst.MoveToFront(e)
		return
	}
	e := c.lst.PushFront(it)
	c.dict[code] = e
	for c.lst.Len() > c.cap {
		back := c.lst.Back()
		if back == nil {
			break
		}
		old := back.Value.(pathEntry)
		delete(c.dict, old.code)
		c.lst.Remove(back)
	}
}

// Len：当前条目数（用于观测与测试）
func (c *PathCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lst.Len()
}
