package cascader

import "context"

// Directory：行政区划目录的抽象，五个网络操作均接受取消信号
// 背景：内核不关心传输层（HTTP/进程内快照均可）；调用被取消时实现方必须放弃副作用
// 约束：Children 的 parent 为空串表示根层；Search 每个内层切片是一条 根→命中节点 的候选路径
type Directory interface {
	Children(ctx context.Context, parent string) ([]Node, error)
	FindPath(ctx context.Context, code string) ([]Node, error)
	Related(ctx context.Context, code string) ([][]RelatedNode, error)
	Search(ctx context.Context, keyword string) ([][]Node, error)
	ReverseGeocode(ctx context.Context, lat, lng float64) ([]Node, error)
}
