package user

import (
	"net/http"
	"strings"

	"github.com/SlpAus/warcry-match-backend/pkg/token"
	"github.com/gin-gonic/gin"
)

const (
	// UserIDKey 是已验证用户ID在Gin上下文中的键
	UserIDKey = "userID"
	// UsernameKey 是已验证用户名在Gin上下文中的键
	UsernameKey = "username"
)

// RequireUser 验证请求携带的身份令牌，并将已验证的用户身份放入Gin上下文。
// 令牌由外部认证服务签发；本中间件只验证签名、有效期和用户是否存在。
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "缺少身份令牌"})
			return
		}

		payload, err := token.ValidateIdentityToken(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "身份令牌无效: " + err.Error()})
			return
		}

		// 快速路径：Redis已知用户集合；未命中或缓存不可用时回查SQLite
		if !IsKnown(payload.UserID) {
			if _, err := GetByID(payload.UserID); err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "令牌对应的用户不存在"})
				return
			}
			MarkKnown(payload.UserID)
		}

		c.Set(UserIDKey, payload.UserID)
		c.Set(UsernameKey, payload.Username)
		c.Next()
	}
}

// CurrentUserID 从Gin上下文中取出已验证的用户ID。
// 只能在RequireUser之后的handler中调用。
func CurrentUserID(c *gin.Context) uint {
	return c.GetUint(UserIDKey)
}
