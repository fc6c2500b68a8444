package lottery

import (
	"time"
)

// PrizeTier 定义了活动的一个奖级。
// Rank越小奖级越高；开奖按Rank升序逐级抽取Quantity个中奖仓位。
type PrizeTier struct {
	ID         uint   `gorm:"primarykey"`
	CampaignID uint   `gorm:"uniqueIndex:ux_campaign_rank,priority:1"`
	Rank       int    `gorm:"uniqueIndex:ux_campaign_rank,priority:2"`
	Title      string `gorm:"type:varchar(64)"`
	Quantity   int

	CreatedAt time.Time
}

// LotteryResult 定义了一条开奖结果。
// 每个活动的结果集只创建一次，创建后不可变——即使之后发生退款，
// 已产生的中奖记录也不会被追溯修改。
type LotteryResult struct {
	ID         uint `gorm:"primarykey"`
	CampaignID uint `gorm:"index;uniqueIndex:ux_campaign_position,priority:1"`

	// PositionID 是中奖仓位；唯一索引保证一个仓位最多中一个奖级
	PositionID uint `gorm:"uniqueIndex:ux_campaign_position,priority:2"`

	Rank   int
	UserID string `gorm:"type:varchar(36);index"`

	CreatedAt time.Time
}

// DrawLock 是开奖互斥锁的落库形态：一个活动最多一行。
// 主键冲突即表示另一次开奖正在进行；ExpiresAt允许在持有者
// 崩溃后被其他进程接管。
type DrawLock struct {
	CampaignID uint `gorm:"primarykey"`

	// Holder 是持有者令牌。释放锁时按它匹配，
	// 超时后姗姗来迟的旧持有者不会误删接管者的锁。
	Holder string `gorm:"type:varchar(36)"`

	AcquiredAt time.Time
	ExpiresAt  time.Time
}
