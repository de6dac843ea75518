package locate

import (
	"context"
	"errors"
	"net/http"

	"region-api/internal/amap"
)

var errMissingKey = errors.New("missing amap key")

// 文档注释：高德在线逆地理提供方
// 背景：作为最高权重的实时数据源；需要服务端密钥，外部不可用时心跳剔除后
// 自动退回本地索引
// 约束：adcode 即区划 code，直接返回；超出配额或网络异常按未命中处理
type AMapProvider struct {
	key    string
	client *http.Client
}

func NewAMap(key string, client *http.Client) *AMapProvider {
	return &AMapProvider{key: key, client: client}
}

func (p *AMapProvider) Name() string    { return "amap" }
func (p *AMapProvider) Version() string { return "1.0" }
func (p *AMapProvider) Weight() float64 { return readWeight("LOCATE_WEIGHT_AMAP", 10.0) }

func (p *AMapProvider) Locate(ctx context.Context, lat, lng float64) (Result, bool) {
	r, err := amap.QueryRegeo(ctx, p.client, p.key, lat, lng)
	if err != nil || r.Adcode == "" {
		return Result{}, false
	}
	return Result{Code: r.Adcode, Confidence: 0.9}, true
}

// Heartbeat：密钥缺失视为不健康；不主动打外部探活请求以免消耗配额
func (p *AMapProvider) Heartbeat(ctx context.Context) error {
	if p.key == "" {
		return errMissingKey
	}
	return nil
}
