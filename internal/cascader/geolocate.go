package cascader

import (
	"context"
	"errors"
	"time"
)

// 定位失败分类：逐类提示，不自动重试
var (
	ErrPermissionDenied    = errors.New("position permission denied")
	ErrPositionUnavailable = errors.New("position unavailable")
	ErrPositionTimeout     = errors.New("position timeout")
)

// PositionOptions：设备定位参数
// 约束：Timeout 为单次定位的硬上限；MaximumAge 内的缓存位置可直接返回，避免重复唤起定位
type PositionOptions struct {
	Timeout    time.Duration
	MaximumAge time.Duration
}

// PositionProvider：设备位置来源的抽象（GPS/基站/IP 定位均可）
// 背景：内核只消费坐标；失败必须映射到上面的分类错误之一，未知失败原样返回
type PositionProvider interface {
	Position(ctx context.Context, opt PositionOptions) (GeoPoint, error)
}

const (
	defaultPositionTimeout = 15 * time.Second
	defaultPositionMaxAge  = 5 * time.Minute
)

// positionMessage：定位失败的分类提示文案
func positionMessage(err error) string {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return "定位权限被拒绝，请在系统设置中允许定位"
	case errors.Is(err, ErrPositionUnavailable):
		return "无法获取当前位置，请稍后重试"
	case errors.Is(err, ErrPositionTimeout):
		return "定位超时，请重试"
	default:
		return "定位失败，请重试"
	}
}
