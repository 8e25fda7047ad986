package gameserver

import (
	"fmt"
	"time"

	"github.com/SlpAus/warcry-match-backend/internal/platform/config"
	"github.com/SlpAus/warcry-match-backend/internal/platform/database"
)

// PrimeDB 负责初始化gameserver模块的数据库表，并在首次启动时预置服务器池
func PrimeDB() error {
	if err := database.DB.AutoMigrate(&GameServer{}); err != nil {
		return fmt.Errorf("无法迁移game_server表: %w", err)
	}
	fmt.Println("GameServer数据库表迁移成功。")

	return seedFromConfig()
}

// seedFromConfig 在服务器池为空时，按配置文件预置初始的服务器记录
func seedFromConfig() error {
	var count int64
	if err := database.DB.Model(&GameServer{}).Count(&count).Error; err != nil {
		return fmt.Errorf("无法统计服务器池: %w", err)
	}
	if count > 0 || config.Cfg == nil || len(config.Cfg.GameServers) == 0 {
		return nil
	}

	now := time.Now()
	servers := make([]GameServer, 0, len(config.Cfg.GameServers))
	for _, entry := range config.Cfg.GameServers {
		servers = append(servers, GameServer{
			ServerIP:    entry.IP,
			ServerPort:  entry.Port,
			Status:      StatusAvailable,
			LastUpdated: now,
		})
	}
	if err := database.DB.Create(&servers).Error; err != nil {
		return fmt.Errorf("无法预置服务器池: %w", err)
	}

	fmt.Printf("成功预置 %d 台游戏服务器。\n", len(servers))
	return nil
}
