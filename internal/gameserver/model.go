package gameserver

import (
	"time"
)

// ServerStatus 定义了游戏服务器的状态枚举类型
type ServerStatus string

const (
	// StatusAvailable 表示服务器空闲，可以被分配给新的匹配
	StatusAvailable ServerStatus = "AVAILABLE"
	// StatusInUse 表示服务器已被某场匹配占用
	StatusInUse ServerStatus = "IN_USE"
	// StatusMaintenance 表示服务器处于维护状态，不参与分配
	StatusMaintenance ServerStatus = "MAINTENANCE"
)

// GameServer 定义了池化游戏服务器的持久化模型。
// 非自建主机的匹配在创建时从这张表中原子地分配一台空闲服务器，
// 并在结果提交或解散时归还。
type GameServer struct {
	ID uint `gorm:"primarykey"`

	ServerIP   string       `gorm:"not null"`
	ServerPort int          `gorm:"not null"`
	Status     ServerStatus `gorm:"not null"`

	// LastUpdated 记录状态最近一次变化的时间
	LastUpdated time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}
