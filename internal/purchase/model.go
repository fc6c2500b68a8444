package purchase

import (
	"time"
)

// Status 定义了单笔认购的状态机。
// pending -> processing -> {completed | failed | cancelled}，
// completed 之后还可以转入 refunded。
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

// activeStatuses 是计入买家限购额度的状态集合。
var activeStatuses = []Status{StatusPending, StatusProcessing, StatusCompleted}

// Purchase 定义了一笔认购在数据库中的持久化模型。
// 一行对应一个仓位；批量购买会生成多行，共享同一个基础幂等键。
// 不变量: completed 蕴含对应仓位为 sold；failed/cancelled/refunded
// 蕴含仓位已回到 available 且归属被清空。
type Purchase struct {
	// ID 是UUID主键
	ID string `gorm:"primarykey;type:varchar(36)"`

	CampaignID uint   `gorm:"index"`
	PositionID uint   `gorm:"index"`
	UserID     string `gorm:"type:varchar(36);index"`

	// Amount 单位为分
	Amount int64

	Status Status `gorm:"type:varchar(16);index"`

	// PaymentIntentID 在网关支付对象创建后回填，回调事件用它关联
	PaymentIntentID string `gorm:"type:varchar(64);index"`

	// IdempotencyKey 由基础键加仓位ID派生，在(买家,活动,仓位)上唯一，
	// 整批请求的重试因此自然幂等
	IdempotencyKey string `gorm:"type:varchar(160);uniqueIndex"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
