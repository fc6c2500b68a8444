package campaign

import (
	"time"

	"gorm.io/gorm"
)

// Status 定义了活动生命周期的枚举类型。
// 状态只能单向推进：draft -> published -> closed -> drawn。
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusClosed    Status = "closed"
	StatusDrawn     Status = "drawn"
)

// PositionStatus 定义了单个仓位的状态。
type PositionStatus string

const (
	PositionAvailable PositionStatus = "available"
	PositionReserved  PositionStatus = "reserved"
	PositionSold      PositionStatus = "sold"
)

// Campaign 定义了一期奖品活动在数据库中的持久化模型。
// PositionsSold 统计已被认购（reserved或sold）的仓位数，
// 任何时刻都不允许超过 PositionsTotal。
type Campaign struct {
	ID    uint   `gorm:"primarykey"`
	Title string `gorm:"type:varchar(128)"`

	// BaseLength 是三角形网格的底边长度N，
	// 总仓位数恒等于 N*(N+1)/2，在创建时一次性生成。
	BaseLength     int
	PositionsTotal int
	PositionsSold  int

	Status Status `gorm:"type:varchar(16);default:'draft';index"`

	// AutoDraw 为真时，售罄或到期会自动触发开奖
	AutoDraw bool

	// PerUserLimit 是单个买家在本活动中的认购上限，0表示不限制
	PerUserLimit int

	// EndTime 是可选的活动截止时间，到期后活动可开奖
	EndTime *time.Time

	// DrawnAt 仅在开奖完成后被设置
	DrawnAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

// Layer 定义了网格中的一层。同层的仓位共享同一价格。
// 层号从1（塔顶，1个仓位）到N（塔底，N个仓位）。
type Layer struct {
	ID         uint `gorm:"primarykey"`
	CampaignID uint `gorm:"uniqueIndex:ux_campaign_layer,priority:1"`
	Number     int  `gorm:"uniqueIndex:ux_campaign_layer,priority:2"`

	// Price 单位为分
	Price int64

	CreatedAt time.Time
}

// Position 定义了网格中一个可售卖的仓位。
// 不变量: UserID 有值当且仅当状态为 reserved 或 sold；
// SoldAt 有值当且仅当状态为 sold。
type Position struct {
	ID         uint `gorm:"primarykey"`
	CampaignID uint `gorm:"index;uniqueIndex:ux_campaign_cell,priority:1"`

	// Layer/Offset 是仓位在三角形中的坐标，在活动内唯一
	Layer  int `gorm:"uniqueIndex:ux_campaign_cell,priority:2"`
	Offset int `gorm:"uniqueIndex:ux_campaign_cell,priority:3"`

	// Number 是仓位在活动内的连续编号，从1开始，便于展示
	Number int

	Price  int64
	Status PositionStatus `gorm:"type:varchar(16);default:'available';index"`

	// UserID 是当前占有该仓位的买家，可为空
	UserID *string `gorm:"type:varchar(36);index"`
	SoldAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}
