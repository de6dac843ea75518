package regiondb

import "sync/atomic"

// 文档注释：快照的动态包装器
// 背景：通过 atomic.Value 提供无锁读写切换（导入完成或管理端触发重建后整体替换），
// 高并发读路径不阻塞
// 约束：Set 前必须保证快照完整可用；未设置时 Get 返回 nil，调用方回退数据库
type DynamicSnapshot struct {
	v atomic.Value
}

// Get：原子读取当前快照，未设置时返回 nil
func (d *DynamicSnapshot) Get() *Snapshot {
	x := d.v.Load()
	if x == nil {
		return nil
	}
	return x.(*Snapshot)
}

// Set：替换当前快照，写入后立即对后续读取生效
func (d *DynamicSnapshot) Set(s *Snapshot) { d.v.Store(s) }
