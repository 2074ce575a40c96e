package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/rigo1357/saprotmon/internal/client"
	"github.com/rigo1357/saprotmon/pkg/response"
)

// MustGetUserID 从 Gin 上下文中安全提取 user_id。
// 如果 JWT 中间件未正确注入 user_id，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetUserID(c *gin.Context) (string, bool) {
	v, exists := c.Get("user_id")
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}

// requestContext 请求上下文，附带原始 Access Token 供外部服务调用转发
func requestContext(c *gin.Context) context.Context {
	return client.WithBearerToken(c.Request.Context(), c.GetString("access_token"))
}
