package amap

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"region-api/internal/logger"
	"region-api/internal/metrics"
)

// 文档注释：高德逆地理编码响应结构
// 背景：对齐高德 REST API 的返回字段，仅解析本方案需要的省/市/区与 adcode；
// status/infocode 用于错误判定
// 约束：city 字段在直辖市场景返回空数组而非字符串，需原样接收后再归一化
type RegeoResponse struct {
	Status    string `json:"status"`
	Info      string `json:"info"`
	Infocode  string `json:"infocode"`
	Regeocode struct {
		AddressComponent struct {
			Province json.RawMessage `json:"province"`
			City     json.RawMessage `json:"city"`
			District json.RawMessage `json:"district"`
			Adcode   json.RawMessage `json:"adcode"`
		} `json:"addressComponent"`
	} `json:"regeocode"`
}

// Regeo: 归一化后的逆地理结果
type Regeo struct {
	Province string
	City     string
	District string
	Adcode   string
}

// rawString：把可能为字符串或空数组的字段归一化为字符串
func rawString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

// 文档注释：按坐标查询行政区（REST）
// 为什么：作为在线逆地理数据源，弥补本地质心索引在边界附近的误差；与本地索引解耦，
// 外部不可用时由上层降级
// 参数：
// - ctx：请求上下文，用于控制超时与取消；
// - client：HTTP 客户端，可传入共享实例；为空时使用 5s 超时的默认客户端；
// - key：高德 Web 服务 API 的后端密钥，必填；
// - lat/lng：WGS84 下的目标坐标，经度在前拼接为 location 参数。
// 返回：归一化后的省/市/区与 adcode；当 status!="1" 时返回错误供上层记录。
func QueryRegeo(ctx context.Context, client *http.Client, key string, lat, lng float64) (*Regeo, error) {
	if key == "" {
		return nil, errors.New("missing key")
	}
	q := url.Values{}
	q.Set("key", key)
	q.Set("location", strconv.FormatFloat(lng, 'f', 6, 64)+","+strconv.FormatFloat(lat, 'f', 6, 64))
	u := "https://restapi.amap.com/v3/geocode/regeo?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	t0 := time.Now()
	metrics.AMapRequestsTotal.Inc()
	logger.L().Debug("amap_regeo_req", "lat", lat, "lng", lng)
	resp, err := client.Do(req)
	if err != nil {
		logger.L().Error("amap_http_error", "err", err)
		metrics.AMapFailTotal.Inc()
		return nil, err
	}
	defer resp.Body.Close()
	var r RegeoResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		logger.L().Error("amap_decode_error", "err", err)
		metrics.AMapFailTotal.Inc()
		return nil, err
	}
	dur := time.Since(t0).Milliseconds()
	metrics.AMapDurationMs.Observe(float64(dur))
	if r.Status != "1" {
		metrics.AMapFailTotal.Inc()
		logger.L().Debug("amap_regeo_fail", "status", r.Status, "infocode", r.Infocode)
		return nil, errors.New("amap error")
	}
	out := &Regeo{
		Province: rawString(r.Regeocode.AddressComponent.Province),
		City:     rawString(r.Regeocode.AddressComponent.City),
		District: rawString(r.Regeocode.AddressComponent.District),
		Adcode:   rawString(r.Regeocode.AddressComponent.Adcode),
	}
	logger.L().Debug("amap_regeo_resp", "adcode", out.Adcode, "province", out.Province, "city", out.City, "district", out.District, "duration_ms", dur)
	return out, nil
}
