// Package client 封装对外部课程目录与排课优化器的 HTTP 调用。
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// maxErrorBody 错误响应体最多读取的字节数
const maxErrorBody = 4 << 10

type tokenKey struct{}

// WithBearerToken 将调用方的 Bearer Token 放入 context，随外部请求转发
func WithBearerToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenKey{}, token)
}

// BearerToken 从 context 中取出 Bearer Token
func BearerToken(ctx context.Context) string {
	s, _ := ctx.Value(tokenKey{}).(string)
	return s
}

// StatusError 外部服务返回的非 2xx 响应（不含 5xx）
type StatusError struct {
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("外部服务返回状态码 %d", e.StatusCode)
	}
	return fmt.Sprintf("外部服务返回状态码 %d: %s", e.StatusCode, e.Detail)
}

// transport 课程目录与优化器共用的 JSON over HTTP 调用
// unavailable 为传输失败 / 超时 / 5xx 时包装的哨兵错误
type transport struct {
	baseURL     string
	http        *http.Client
	logger      *zap.Logger
	unavailable error
}

func newTransport(baseURL string, timeout time.Duration, logger *zap.Logger, unavailable error) transport {
	return transport{
		baseURL:     strings.TrimRight(baseURL, "/"),
		http:        &http.Client{Timeout: timeout},
		logger:      logger,
		unavailable: unavailable,
	}
}

// do 发送请求并把 2xx 响应解码到 out
// 传输错误与 5xx 返回包装了 t.unavailable 的错误；其他非 2xx 返回 *StatusError
func (t transport) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := t.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("序列化请求失败: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("构造请求失败: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := BearerToken(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := t.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", t.unavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		detail := readDetail(resp.Body)
		t.logger.Warn("外部服务返回错误",
			zap.String("url", u),
			zap.Int("status", resp.StatusCode),
			zap.String("detail", detail),
		)
		return fmt.Errorf("%w: %w", t.unavailable, &StatusError{StatusCode: resp.StatusCode, Detail: detail})
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode, Detail: readDetail(resp.Body)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: 解析响应失败: %v", t.unavailable, err)
	}
	return nil
}

// readDetail 读取错误响应中的 detail 字段，缺失时返回原始文本
func readDetail(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(b, &payload); err == nil && len(payload.Detail) > 0 {
		var s string
		if json.Unmarshal(payload.Detail, &s) == nil {
			return s
		}
		return string(payload.Detail)
	}
	return strings.TrimSpace(string(b))
}
