// 包 regionclient：区划服务 HTTP API 的客户端封装
// 背景：级联选择器核心（internal/cascader）只依赖 Directory 接口，
// 本包把接口落到本服务的 /api 端点上，嵌入式部署可直接改用 store 实现
package regionclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"region-api/internal/cascader"
	"region-api/internal/logger"
	"region-api/internal/metrics"
)

// Client 实现 cascader.Directory 与 cascader.PositionProvider
type Client struct {
	base string
	hc   *http.Client
}

// New 创建客户端；base 形如 http://127.0.0.1:8080/api（不带尾斜杠）
func New(base string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{base: base, hc: hc}
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	metrics.ClientRequestsTotal.WithLabelValues(path).Inc()
	u := c.base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		metrics.ClientFailTotal.WithLabelValues(path).Inc()
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		metrics.ClientFailTotal.WithLabelValues(path).Inc()
		logger.L().Warn("regionclient_bad_status", "path", path, "status", resp.StatusCode)
		return fmt.Errorf("region api %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) Children(ctx context.Context, parent string) ([]cascader.Node, error) {
	var body struct {
		Children []cascader.Node `json:"children"`
	}
	q := url.Values{"parent": {parent}}
	if err := c.getJSON(ctx, "/children", q, &body); err != nil {
		return nil, err
	}
	return body.Children, nil
}

func (c *Client) FindPath(ctx context.Context, code string) ([]cascader.Node, error) {
	var body struct {
		Path []cascader.Node `json:"path"`
	}
	q := url.Values{"code": {code}}
	if err := c.getJSON(ctx, "/path", q, &body); err != nil {
		return nil, err
	}
	return body.Path, nil
}

func (c *Client) Related(ctx context.Context, code string) ([][]cascader.RelatedNode, error) {
	var body struct {
		Levels [][]cascader.RelatedNode `json:"levels"`
	}
	q := url.Values{"code": {code}}
	if err := c.getJSON(ctx, "/related", q, &body); err != nil {
		return nil, err
	}
	return body.Levels, nil
}

func (c *Client) Search(ctx context.Context, keyword string) ([][]cascader.Node, error) {
	var body struct {
		Results [][]cascader.Node `json:"results"`
	}
	q := url.Values{"keyword": {keyword}}
	if err := c.getJSON(ctx, "/search", q, &body); err != nil {
		return nil, err
	}
	return body.Results, nil
}

func (c *Client) ReverseGeocode(ctx context.Context, lat, lng float64) ([]cascader.Node, error) {
	var body struct {
		Path []cascader.Node `json:"path"`
	}
	q := url.Values{
		"lat": {strconv.FormatFloat(lat, 'f', -1, 64)},
		"lng": {strconv.FormatFloat(lng, 'f', -1, 64)},
	}
	if err := c.getJSON(ctx, "/reverse_geo", q, &body); err != nil {
		return nil, err
	}
	return body.Path, nil
}

// Position 通过服务端的 IP 定位接口取访问者坐标
func (c *Client) Position(ctx context.Context, opt cascader.PositionOptions) (cascader.GeoPoint, error) {
	if opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opt.Timeout)
		defer cancel()
	}
	var body struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	}
	if err := c.getJSON(ctx, "/position", nil, &body); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return cascader.GeoPoint{}, cascader.ErrPositionTimeout
		}
		return cascader.GeoPoint{}, cascader.ErrPositionUnavailable
	}
	return cascader.GeoPoint{Latitude: body.Latitude, Longitude: body.Longitude}, nil
}
