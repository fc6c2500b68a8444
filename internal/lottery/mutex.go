package lottery

import (
	"fmt"
	"time"

	"github.com/SlpAus/pyramid-lottery-backend/internal/platform/database"
	"github.com/google/uuid"
)

// acquireDrawLock 尝试为指定活动获取开奖互斥锁。
// 实现是draw_locks表上的条件插入：主键冲突说明另一次开奖正在进行，
// 立即失败而不是排队等待。已过期的锁（持有者崩溃）可被接管。
// 成功时返回带持有者令牌的锁，未抢到时返回nil。
func acquireDrawLock(campaignID uint, ttl time.Duration) (*DrawLock, error) {
	holder, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("无法生成锁持有者令牌: %w", err)
	}

	now := time.Now()
	lock := DrawLock{
		CampaignID: campaignID,
		Holder:     holder.String(),
		AcquiredAt: now,
		ExpiresAt:  now.Add(ttl),
	}

	err = database.DB.Create(&lock).Error
	if err == nil {
		return &lock, nil
	}
	if !database.IsDuplicateKeyError(err) {
		return nil, fmt.Errorf("无法获取开奖锁: %w", err)
	}

	// 锁已存在：仅当它已过期时才允许接管
	result := database.DB.Model(&DrawLock{}).
		Where("campaign_id = ? AND expires_at < ?", campaignID, now).
		Updates(map[string]interface{}{
			"holder":      lock.Holder,
			"acquired_at": now,
			"expires_at":  now.Add(ttl),
		})
	if result.Error != nil {
		return nil, fmt.Errorf("无法接管过期开奖锁: %w", result.Error)
	}
	if result.RowsAffected == 1 {
		return &lock, nil
	}
	return nil, nil
}

// releaseDrawLock 释放活动的开奖互斥锁。
// 删除按持有者令牌匹配：锁已被他人接管时这里是空操作。
func releaseDrawLock(lock *DrawLock) {
	err := database.DB.
		Delete(&DrawLock{}, "campaign_id = ? AND holder = ?", lock.CampaignID, lock.Holder).Error
	if err != nil {
		fmt.Printf("警告: 释放开奖锁失败 (活动 %d): %v\n", lock.CampaignID, err)
	}
}
