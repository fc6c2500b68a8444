package health

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/SlpAus/pyramid-lottery-backend/internal/platform/database"
	"github.com/SlpAus/pyramid-lottery-backend/pkg/lifecycle"
)

const (
	checkInterval = 5 * time.Second
	pingTimeout   = 2 * time.Second
)

// getRedisRunID 从Redis服务器信息中提取run_id
func getRedisRunID() (string, error) {
	ctx, cancel := context.WithTimeout(database.Ctx, pingTimeout)
	defer cancel()
	info, err := database.RDB.Info(ctx, "server").Result()
	if err != nil {
		return "", err
	}
	re := regexp.MustCompile(`run_id:([a-f0-9]+)`)
	matches := re.FindStringSubmatch(info)
	if len(matches) < 2 {
		return "", fmt.Errorf("无法在Redis INFO中找到run_id")
	}
	return matches[1], nil
}

// InitializeRunID 在应用启动时执行一次，获取并设置初始的run_id。
// Redis不可用时不会panic：幂等守卫允许降级运行。
func InitializeRunID() {
	runID, err := getRedisRunID()
	if err != nil {
		fmt.Printf("警告: 无法在启动时获取Redis Run ID: %v\n", err)
		database.UpdateStatus(false, "")
		return
	}
	database.SetInitialRunID(runID)
	fmt.Printf("获取初始Redis Run ID成功: %s\n", runID)
}

// PerformCheck 执行一次完整的健康检查。
// 检测到Redis重启（run_id变化）时，意味着幂等锁与响应缓存已丢失，
// 只需记录告警并继续：数据库层的唯一约束仍然兜底防止重复效果。
func PerformCheck() {
	currentRunID, err := getRedisRunID()
	if err != nil {
		database.UpdateStatus(false, "")
		return
	}

	lastKnownRunID := database.GetLastKnownRunID()

	if lastKnownRunID != "" && currentRunID != lastKnownRunID {
		fmt.Printf("健康检查: 检测到Redis重启 (run_id: %s -> %s)，幂等缓存已失效\n", lastKnownRunID, currentRunID)
	}
	database.UpdateStatus(true, currentRunID)
}

// StartRedisHealthCheck 启动一个后台Goroutine来定期、阻塞式地执行健康检查。
// 它通过生命周期句柄响应停机信号。
func StartRedisHealthCheck(handle *lifecycle.Handle) {
	defer handle.Close()
	fmt.Println("Redis健康检查器已启动。")

	for {
		if err := handle.Sleep(checkInterval); err != nil {
			fmt.Println("Redis健康检查器已停止。")
			return
		}
		PerformCheck()
	}
}
