// Package qimenapi 提供了一个与上游奇门遁甲排盘 API 交互的客户端。
package qimenapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"qimen-smart-go/internal/config"
	"qimen-smart-go/internal/model"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// ForwardResult 是一次透传调用的原始结果：上游状态码与响应体原样保留。
type ForwardResult struct {
	StatusCode int
	Body       []byte
}

// Client 定义了排盘 API 客户端的接口。
type Client interface {
	// Forward 把表单参数透传给上游，服务端凭证覆盖表单中的 api_key 字段。
	// 单次调用，不重试；返回上游的原始状态码与响应体。
	Forward(ctx context.Context, form url.Values) (*ForwardResult, error)
	// Paipan 以结构化输入发起排盘，解析业务响应（errcode=0 为成功）。
	Paipan(ctx context.Context, input model.QimenInput) (*model.QimenAPIResponse, error)
}

type client struct {
	cfg        config.QimenConfig
	httpClient *http.Client
}

// NewClient 创建一个新的排盘 API 客户端实例。
func NewClient(cfg config.QimenConfig) Client {
	return &client{
		cfg:        cfg,
		httpClient: &http.Client{},
	}
}

func (c *client) Forward(ctx context.Context, form url.Values) (*ForwardResult, error) {
	// 服务端持有的凭证覆盖客户端可能携带的任何 api_key
	form.Set("api_key", c.cfg.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("创建排盘请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("调用排盘 API 失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取排盘响应失败: %w", err)
	}

	return &ForwardResult{StatusCode: resp.StatusCode, Body: body}, nil
}

func (c *client) Paipan(ctx context.Context, input model.QimenInput) (*model.QimenAPIResponse, error) {
	result, err := c.Forward(ctx, buildForm(input))
	if err != nil {
		return nil, err
	}
	if result.StatusCode < 200 || result.StatusCode >= 300 {
		return nil, fmt.Errorf("排盘 API 返回非 2xx 状态 [%d]: %s", result.StatusCode, string(result.Body))
	}

	var apiResp model.QimenAPIResponse
	if err := json.Unmarshal(result.Body, &apiResp); err != nil {
		return nil, fmt.Errorf("解析排盘响应失败: %w", err)
	}
	if apiResp.Errcode != 0 {
		return nil, fmt.Errorf("排盘 API 业务错误 [%d]: %s", apiResp.Errcode, apiResp.Errmsg)
	}
	return &apiResp, nil
}

// buildForm 把结构化输入转换为上游要求的表单字段。
func buildForm(input model.QimenInput) url.Values {
	form := url.Values{}
	form.Set("name", "用户")
	if input.Gender == "female" {
		form.Set("sex", "1")
	} else {
		form.Set("sex", "0")
	}
	form.Set("type", "1") // 公历
	form.Set("year", strconv.Itoa(input.Year))
	form.Set("month", strconv.Itoa(input.Month))
	form.Set("day", strconv.Itoa(input.Day))
	form.Set("hours", strconv.Itoa(input.Hours))
	form.Set("minute", strconv.Itoa(input.Minute))
	form.Set("ju_model", strconv.Itoa(input.JuModel))
	form.Set("pan_model", strconv.Itoa(input.PanModel))
	form.Set("zhen", strconv.Itoa(input.Zhen))

	// 飞盘奇门时必传飞盘排法
	if input.PanModel == 0 && input.FeiPanModel != 0 {
		form.Set("fei_pan_model", strconv.Itoa(input.FeiPanModel))
	}
	// 真太阳时必传省市
	if input.Zhen == 1 {
		form.Set("province", input.Province)
		form.Set("city", input.City)
	}
	return form
}
