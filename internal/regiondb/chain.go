package regiondb

import (
	"context"

	"region-api/internal/logger"
	"region-api/internal/metrics"
	"region-api/internal/store"
)

// 文档注释：快照优先、数据库兜底的链式查询
// 背景：快照未就绪（冷启动/重建中）时退回数据库直查，服务不中断；
// 快照就绪后读路径不再触达数据库
type Chain struct {
	dyn *DynamicSnapshot
	st  *store.Store
}

func NewChain(dyn *DynamicSnapshot, st *store.Store) *Chain {
	return &Chain{dyn: dyn, st: st}
}

func (c *Chain) Children(ctx context.Context, parent string) ([]store.Division, error) {
	if s := c.dyn.Get(); s != nil {
		metrics.SnapshotHitsTotal.Inc()
		return s.Children(parent), nil
	}
	return c.st.Children(ctx, parent)
}

func (c *Chain) PathOf(ctx context.Context, code string) ([]store.Division, error) {
	if s := c.dyn.Get(); s != nil {
		metrics.SnapshotHitsTotal.Inc()
		if chain, ok := s.PathOf(code); ok {
			return chain, nil
		}
		return nil, store.ErrNotFound
	}
	return c.st.PathOf(ctx, code)
}

func (c *Chain) Related(ctx context.Context, code string) ([][]store.Picked, error) {
	if s := c.dyn.Get(); s != nil {
		metrics.SnapshotHitsTotal.Inc()
		if out, ok := s.Related(code); ok {
			return out, nil
		}
		return nil, store.ErrNotFound
	}
	return c.st.Related(ctx, code)
}

func (c *Chain) Search(ctx context.Context, keyword string, limit int) ([][]store.Division, error) {
	if s := c.dyn.Get(); s != nil {
		metrics.SnapshotHitsTotal.Inc()
		return s.Search(keyword, limit), nil
	}
	return c.st.Search(ctx, keyword, limit)
}

// Rebuild：全量读库重建快照并原子替换
func (c *Chain) Rebuild(ctx context.Context) error {
	divs, err := c.st.All(ctx)
	if err != nil {
		return err
	}
	snap := Build(divs)
	c.dyn.Set(snap)
	metrics.SnapshotRebuildTotal.Inc()
	logger.L().Info("snapshot_rebuilt", "divisions", snap.Len())
	return nil
}

// Snapshot：当前快照（可能为 nil）
func (c *Chain) Snapshot() *Snapshot { return c.dyn.Get() }
