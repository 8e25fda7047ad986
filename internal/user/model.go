package user

import (
	"time"
)

// User 定义了用户在SQLite数据库中的持久化模型。
// 用户的注册、登录和凭证管理由外部认证服务负责，
// 本服务只读取这张表来解析已验证的身份。
type User struct {
	ID uint `gorm:"primarykey"`

	// Username 是用户的登录名，全局唯一
	Username string `gorm:"uniqueIndex;not null"`

	// Password 是BCrypt哈希后的凭证，由认证服务写入，本服务从不读取
	Password string `gorm:"not null"`

	// Nickname 是展示给其他玩家的昵称
	Nickname string `gorm:"not null"`

	CreatedAt time.Time
}
