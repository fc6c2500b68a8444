package user

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreateProvisionalUser 生成一个临时的、尚未持久化的新买家UUID。
// 这个UUID将被设置到cookie中；首次购买时才会落库。
func CreateProvisionalUser() (string, error) {
	newUUID, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("无法生成UUID v7: %w", err)
	}
	return newUUID.String(), nil
}

// IsValidUUID 检查字符串是否是合法的UUID。
func IsValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// EnsureUser 在事务内确保买家记录存在（首次购买时创建）。
func EnsureUser(tx *gorm.DB, userID string) error {
	return tx.Where(User{UUID: userID}).FirstOrCreate(&User{UUID: userID}).Error
}

// AdjustStats 在事务内原子地调整买家的聚合统计。
// 认购创建时正向调整；支付失败、取消和退款按相同幅度反向回滚。
func AdjustStats(tx *gorm.DB, userID string, deltaCount int, deltaSpent int64) error {
	result := tx.Model(&User{}).
		Where("uuid = ?", userID).
		UpdateColumns(map[string]interface{}{
			"purchase_count": gorm.Expr("purchase_count + ?", deltaCount),
			"total_spent":    gorm.Expr("total_spent + ?", deltaSpent),
		})
	if result.Error != nil {
		return fmt.Errorf("无法更新买家统计: %w", result.Error)
	}
	return nil
}
