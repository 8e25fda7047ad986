package gameserver

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNoServerAvailable 表示服务器池中没有空闲的服务器
var ErrNoServerAvailable = errors.New("没有可用的游戏服务器")

// AcquireFirstAvailableTx 在事务中分配编号最小的一台空闲服务器并标记为占用。
// 查询使用行级锁，保证并发创建匹配时同一台服务器不会被分配两次。
func AcquireFirstAvailableTx(tx *gorm.DB, now time.Time) (*GameServer, error) {
	var server GameServer
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("status = ?", StatusAvailable).
		Order("id asc").
		First(&server).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoServerAvailable
		}
		return nil, fmt.Errorf("查询空闲服务器失败: %w", err)
	}

	server.Status = StatusInUse
	server.LastUpdated = now
	if err := tx.Save(&server).Error; err != nil {
		return nil, fmt.Errorf("无法更新服务器状态: %w", err)
	}
	return &server, nil
}

// ReleaseTx 在事务中将一台服务器归还到空闲状态。
// 只有处于占用状态的服务器会被归还，维护中的服务器不受影响。
func ReleaseTx(tx *gorm.DB, serverID uint, now time.Time) error {
	result := tx.Model(&GameServer{}).
		Where("id = ? AND status = ?", serverID, StatusInUse).
		Updates(map[string]interface{}{
			"status":       StatusAvailable,
			"last_updated": now,
		})
	if result.Error != nil {
		return fmt.Errorf("无法归还服务器 %d: %w", serverID, result.Error)
	}
	return nil
}

// GetByID 按主键查询服务器。
func GetByID(db *gorm.DB, id uint) (*GameServer, error) {
	var server GameServer
	if err := db.First(&server, id).Error; err != nil {
		return nil, fmt.Errorf("查询服务器 %d 失败: %w", id, err)
	}
	return &server, nil
}
