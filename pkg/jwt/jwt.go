package jwt

import (
	"errors"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/rigo1357/saprotmon/config"
)

var (
	ErrTokenExpired = errors.New("token 已过期")
	ErrTokenInvalid = errors.New("token 无效")
)

// Claims 认证服务签发的 JWT 声明
// sub 为用户 ID，与认证服务约定一致
type Claims struct {
	Username  string `json:"username,omitempty"`
	IsAdmin   bool   `json:"is_admin,omitempty"`
	TokenType string `json:"token_type,omitempty"` // 为空视为 access
	jwtv5.RegisteredClaims
}

// UserID 返回声明中的用户 ID
func (c *Claims) UserID() string {
	return c.Subject
}

// Manager JWT 校验器
// 本服务不负责登录流程，签发方法仅用于本地调试与测试
type Manager struct {
	secret []byte
	issuer string
}

// NewManager 创建 JWT 校验器
func NewManager(cfg *config.AuthConfig) *Manager {
	return &Manager{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.Issuer,
	}
}

// GenerateAccessToken 生成 Access Token（调试 / 测试用）
func (m *Manager) GenerateAccessToken(userID, username string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Username:  username,
		TokenType: "access",
		RegisteredClaims: jwtv5.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   userID,
			IssuedAt:  jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(ttl)),
			Issuer:    m.issuer,
		},
	}

	token := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ParseToken 解析并验证 Access Token
func (m *Manager) ParseToken(tokenString string) (*Claims, error) {
	opts := []jwtv5.ParserOption{jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()})}
	if m.issuer != "" {
		opts = append(opts, jwtv5.WithIssuer(m.issuer))
	}

	token, err := jwtv5.ParseWithClaims(tokenString, &Claims{}, func(t *jwtv5.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtv5.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return m.secret, nil
	}, opts...)

	if err != nil {
		if errors.Is(err, jwtv5.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.TokenType != "" && claims.TokenType != "access" {
		return nil, ErrTokenInvalid
	}
	if claims.UserID() == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
