package gameserver

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("无法打开内存数据库: %v", err)
	}
	if err := db.AutoMigrate(&GameServer{}); err != nil {
		t.Fatalf("迁移测试表失败: %v", err)
	}
	return db
}

func TestAcquireFirstAvailable(t *testing.T) {
	db := setupTestDB(t)
	now := time.Now()

	servers := []GameServer{
		{ServerIP: "10.0.0.1", ServerPort: 27015, Status: StatusInUse, LastUpdated: now},
		{ServerIP: "10.0.0.2", ServerPort: 27015, Status: StatusAvailable, LastUpdated: now},
		{ServerIP: "10.0.0.3", ServerPort: 27015, Status: StatusAvailable, LastUpdated: now},
	}
	if err := db.Create(&servers).Error; err != nil {
		t.Fatalf("创建测试服务器失败: %v", err)
	}

	var acquired *GameServer
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		acquired, err = AcquireFirstAvailableTx(tx, now)
		return err
	})
	if err != nil {
		t.Fatalf("分配服务器失败: %v", err)
	}
	// 编号最小的空闲服务器优先
	if acquired.ServerIP != "10.0.0.2" {
		t.Fatalf("分配的服务器 = %s, want 10.0.0.2", acquired.ServerIP)
	}
	if acquired.Status != StatusInUse {
		t.Fatalf("分配后状态 = %s, want IN_USE", acquired.Status)
	}

	var stored GameServer
	db.First(&stored, acquired.ID)
	if stored.Status != StatusInUse {
		t.Fatalf("数据库中状态 = %s, want IN_USE", stored.Status)
	}
}

func TestAcquireExhaustsPool(t *testing.T) {
	db := setupTestDB(t)
	now := time.Now()

	server := GameServer{ServerIP: "10.0.0.1", ServerPort: 27015, Status: StatusMaintenance, LastUpdated: now}
	if err := db.Create(&server).Error; err != nil {
		t.Fatalf("创建测试服务器失败: %v", err)
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := AcquireFirstAvailableTx(tx, now)
		return err
	})
	if !errors.Is(err, ErrNoServerAvailable) {
		t.Fatalf("维护中的服务器不应被分配, got %v", err)
	}
}

func TestReleaseOnlyInUse(t *testing.T) {
	db := setupTestDB(t)
	now := time.Now()

	servers := []GameServer{
		{ServerIP: "10.0.0.1", ServerPort: 27015, Status: StatusInUse, LastUpdated: now},
		{ServerIP: "10.0.0.2", ServerPort: 27015, Status: StatusMaintenance, LastUpdated: now},
	}
	if err := db.Create(&servers).Error; err != nil {
		t.Fatalf("创建测试服务器失败: %v", err)
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := ReleaseTx(tx, servers[0].ID, now); err != nil {
			return err
		}
		return ReleaseTx(tx, servers[1].ID, now)
	})
	if err != nil {
		t.Fatalf("归还服务器失败: %v", err)
	}

	var first, second GameServer
	db.First(&first, servers[0].ID)
	db.First(&second, servers[1].ID)
	if first.Status != StatusAvailable {
		t.Fatalf("占用中的服务器应被归还, got %s", first.Status)
	}
	if second.Status != StatusMaintenance {
		t.Fatalf("维护中的服务器不应被归还, got %s", second.Status)
	}
}
