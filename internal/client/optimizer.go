package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/rigo1357/saprotmon/config"
	"github.com/rigo1357/saprotmon/internal/builder"
	"github.com/rigo1357/saprotmon/internal/model"
)

var (
	// ErrOptimizerUnavailable 优化器不可达、超时或返回 5xx
	ErrOptimizerUnavailable = errors.New("排课优化服务不可用")
	// ErrOptimizerRejected 优化器拒绝了请求（4xx）
	ErrOptimizerRejected = errors.New("排课优化服务拒绝了请求")
)

// OptimizerClient 排课优化器接口
type OptimizerClient interface {
	Generate(ctx context.Context, req builder.ScheduleRequest) (*model.ScheduleResult, error)
}

type optimizerClient struct {
	t transport
}

// NewOptimizerClient 创建优化器客户端
// 超时同时决定会话 submitting 阶段的最长可见时间
func NewOptimizerClient(cfg *config.UpstreamConfig, logger *zap.Logger) OptimizerClient {
	return &optimizerClient{t: newTransport(cfg.BaseURL, cfg.Timeout, logger, ErrOptimizerUnavailable)}
}

// Generate POST /schedule
// 4xx 响应返回包装了 ErrOptimizerRejected 的 *StatusError，detail 可通过 DetailOf 取出
func (c *optimizerClient) Generate(ctx context.Context, req builder.ScheduleRequest) (*model.ScheduleResult, error) {
	var result model.ScheduleResult
	err := c.t.do(ctx, http.MethodPost, "/schedule", nil, req, &result)
	if err != nil {
		var se *StatusError
		if !errors.Is(err, ErrOptimizerUnavailable) && errors.As(err, &se) {
			return nil, fmt.Errorf("%w: %w", ErrOptimizerRejected, se)
		}
		return nil, err
	}

	if result.Schedule == nil {
		result.Schedule = []model.ScheduleItem{}
	}
	if result.RemovedConflicts == nil {
		result.RemovedConflicts = []model.ConflictEntry{}
	}
	return &result, nil
}

// DetailOf 取出外部服务错误中的 detail 文本
func DetailOf(err error) string {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Detail
	}
	return ""
}
