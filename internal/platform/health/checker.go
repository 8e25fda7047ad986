package health

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/SlpAus/warcry-match-backend/internal/platform/database"
	"github.com/SlpAus/warcry-match-backend/pkg/lifecycle"
)

const (
	checkInterval = 5 * time.Second
	pingTimeout   = 2 * time.Second
)

var runIDPattern = regexp.MustCompile(`run_id:([a-f0-9]+)`)

// getRedisRunID 从Redis服务器信息中提取run_id
func getRedisRunID() (string, error) {
	ctx, cancel := context.WithTimeout(database.Ctx, pingTimeout)
	defer cancel()
	info, err := database.RDB.Info(ctx, "server").Result()
	if err != nil {
		return "", err
	}
	matches := runIDPattern.FindStringSubmatch(info)
	if len(matches) < 2 {
		return "", fmt.Errorf("无法在Redis INFO中找到run_id")
	}
	return matches[1], nil
}

// InitializeRunID 在启动预热完成后执行一次，记录当前Redis实例的run_id。
// 此后run_id发生变化即意味着缓存内容丢失，需要重建。
func InitializeRunID() {
	runID, err := getRedisRunID()
	if err != nil {
		fmt.Printf("警告: 无法获取Redis Run ID: %v\n", err)
		database.SetRedisHealthy(false)
		return
	}
	database.SetLastKnownRunID(runID)
	fmt.Printf("获取初始Redis Run ID成功: %s\n", runID)
}

// PerformCheck 执行一次完整的健康检查和可能的修复操作。
// rebuildCache 是Redis重启后用于重建排名缓存的回调（由startup包提供）。
func PerformCheck(rebuildCache func() error) {
	currentRunID, err := getRedisRunID()
	if err != nil {
		// 无法连接到Redis，直接标记为不可用
		database.SetRedisHealthy(false)
		return
	}

	lastKnownRunID := database.GetLastKnownRunID()

	if currentRunID == lastKnownRunID {
		// run_id未变，说明服务健康
		database.SetRedisHealthy(true)
		return
	}

	// 检测到Redis重启（或首次连接成功），缓存内容不可信，触发重建
	fmt.Printf("健康检查: 检测到Redis重启或首次可用 (run_id: %s -> %s)，正在重建缓存...\n", lastKnownRunID, currentRunID)
	if err := rebuildCache(); err != nil {
		fmt.Printf("健康检查错误: 缓存重建失败: %v\n", err)
		database.SetRedisHealthy(false)
		return
	}

	// 重建后再次校验run_id，确认重建期间Redis没有再次重启
	idAfterRebuild, err := getRedisRunID()
	if err != nil || idAfterRebuild != currentRunID {
		fmt.Println("健康检查错误: 缓存重建期间Redis状态发生变化，重建无效。")
		database.SetRedisHealthy(false)
		return
	}

	database.SetLastKnownRunID(currentRunID)
	database.SetRedisHealthy(true)
	fmt.Println("健康检查: 缓存重建成功，Redis恢复可用。")
}

// StartRedisHealthCheck 启动一个后台循环来定期执行健康检查。
// 它的生命周期由传入的handle控制，收到停机信号后退出。
func StartRedisHealthCheck(handle *lifecycle.Handle, rebuildCache func() error) {
	defer handle.Close()
	fmt.Println("Redis健康检查器已启动。")

	for {
		if err := handle.Sleep(checkInterval); err != nil {
			fmt.Println("Redis健康检查器已退出。")
			return
		}
		PerformCheck(rebuildCache)
	}
}
