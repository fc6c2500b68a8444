package user

import (
	"time"

	"gorm.io/gorm"
)

// User 定义了买家在数据库中的持久化模型。
// 聚合统计与购买流程在同一个数据库事务内更新，保持严格一致。
type User struct {
	// UUID 是买家的主键，来自客户端Cookie。
	UUID string `gorm:"primarykey;type:varchar(36)"`

	// PurchaseCount 记录了买家当前持有的有效认购数（pending/processing/completed）。
	PurchaseCount int

	// TotalSpent 记录了买家累计的有效认购金额（分）。
	TotalSpent int64

	// 部分gorm.Model，由GORM自动管理
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}
