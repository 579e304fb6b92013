package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/taichu-system/rental-management/internal/constants"
	"github.com/taichu-system/rental-management/pkg/utils"
)

const (
	ContextUserID = "user_id"
	ContextRole   = "role"
)

// JWTClaims JWT声明结构
type JWTClaims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

func parseToken(tokenString, secretKey, issuer string) (*JWTClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secretKey), nil
	}, opts...)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if _, err := uuid.Parse(claims.UserID); err != nil {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

func bearerToken(c *gin.Context) (string, bool) {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return parts[1], true
}

// JWTMiddleware JWT认证中间件
func JWTMiddleware(secretKey, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			utils.Error(c, utils.ErrCodeUnauthorized, constants.AuthHeaderRequired)
			c.Abort()
			return
		}

		tokenString, ok := bearerToken(c)
		if !ok {
			utils.Error(c, utils.ErrCodeUnauthorized, constants.AuthHeaderInvalidFormat)
			c.Abort()
			return
		}

		claims, err := parseToken(tokenString, secretKey, issuer)
		if err != nil {
			utils.Error(c, utils.ErrCodeUnauthorized, constants.AuthTokenInvalidOrExpired)
			c.Abort()
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set("username", claims.Username)
		c.Set(ContextRole, claims.Role)
		c.Next()
	}
}

// OptionalAuthMiddleware 可选认证中间件，token 无效时按匿名处理
func OptionalAuthMiddleware(secretKey, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			c.Next()
			return
		}

		if claims, err := parseToken(tokenString, secretKey, issuer); err == nil {
			c.Set(ContextUserID, claims.UserID)
			c.Set("username", claims.Username)
			c.Set(ContextRole, claims.Role)
		}
		c.Next()
	}
}

// GenerateToken 生成JWT token
func GenerateToken(userID, username, role, secretKey, issuer string, ttl time.Duration) (string, error) {
	claims := JWTClaims{
		UserID:   userID,
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secretKey))
}

// RoleMiddleware 角色权限中间件
func RoleMiddleware(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get(ContextRole)
		if !exists {
			utils.Error(c, utils.ErrCodeForbidden, constants.AuthUserRoleNotFound)
			c.Abort()
			return
		}

		userRole, ok := role.(string)
		if !ok {
			utils.Error(c, utils.ErrCodeForbidden, constants.AuthInvalidUserRoleFormat)
			c.Abort()
			return
		}

		for _, allowedRole := range allowedRoles {
			if userRole == allowedRole {
				c.Next()
				return
			}
		}

		utils.Error(c, utils.ErrCodeForbidden, constants.AuthInsufficientPermissions)
		c.Abort()
	}
}

// CurrentUser 当前请求的用户ID与角色，未认证时 ok 为 false
func CurrentUser(c *gin.Context) (uuid.UUID, string, bool) {
	raw := c.GetString(ContextUserID)
	if raw == "" {
		return uuid.Nil, "", false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, "", false
	}
	return id, c.GetString(ContextRole), true
}
