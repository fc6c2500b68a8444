package lottery

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/SlpAus/pyramid-lottery-backend/internal/campaign"
	"github.com/SlpAus/pyramid-lottery-backend/internal/notification"
	"github.com/SlpAus/pyramid-lottery-backend/internal/platform/database"
	"gorm.io/gorm"
)

var (
	ErrDrawInProgress = errors.New("另一次开奖正在进行中")
	ErrNotReady       = errors.New("活动尚不满足开奖条件")
)

// Engine 是开奖引擎。
// 它保证每个活动恰好产生一次开奖结果：开奖锁排除并发尝试，
// 事务内的已开奖检查让重复调用直接返回既有结果。
type Engine struct {
	notifier notification.Notifier
	lockTTL  time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// defaultEngine 是模块级单例，由main在启动时装配
var defaultEngine *Engine

// NewEngine 创建一个开奖引擎。notifier可以为nil（测试场景）。
func NewEngine(notifier notification.Notifier, lockTTL time.Duration) *Engine {
	return &Engine{
		notifier: notifier,
		lockTTL:  lockTTL,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// InitEngine 装配模块级单例，供HTTP处理器使用。
func InitEngine(e *Engine) {
	defaultEngine = e
}

// DrawLottery 为指定活动执行开奖。
// 前置条件（满足其一）: 活动已关闭；或已售罄；或已过截止时间。
// 已开奖的活动直接返回既有结果集，不会产生第二份。
func (e *Engine) DrawLottery(campaignID uint) ([]LotteryResult, error) {
	lock, err := acquireDrawLock(campaignID, e.lockTTL)
	if err != nil {
		return nil, err
	}
	if lock == nil {
		return nil, ErrDrawInProgress
	}
	defer releaseDrawLock(lock)

	var (
		results []LotteryResult
		winners []LotteryResult
	)
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		c, err := campaign.GetCampaignForUpdate(tx, campaignID)
		if err != nil {
			return err
		}

		// 已开奖：返回既有结果，保证对外恰好一份
		if c.Status == campaign.StatusDrawn {
			return tx.Where("campaign_id = ?", campaignID).
				Order("rank asc, id asc").
				Find(&results).Error
		}

		if !drawReady(c) {
			return ErrNotReady
		}

		pool, err := campaign.GetSoldPositions(tx, campaignID)
		if err != nil {
			return fmt.Errorf("无法加载售出仓位: %w", err)
		}

		tiers, err := loadPrizeTiers(tx, campaignID)
		if err != nil {
			return err
		}

		winners, err = e.sampleWinners(pool, tiers)
		if err != nil {
			return err
		}
		if len(winners) > 0 {
			if err := tx.Create(&winners).Error; err != nil {
				return fmt.Errorf("无法写入开奖结果: %w", err)
			}
		}

		// 结果落库与状态推进在同一事务内提交，开奖对外是原子的
		now := time.Now()
		if err := tx.Model(&campaign.Campaign{}).
			Where("id = ?", campaignID).
			Updates(map[string]interface{}{
				"status":   campaign.StatusDrawn,
				"drawn_at": now,
			}).Error; err != nil {
			return fmt.Errorf("无法推进活动到已开奖状态: %w", err)
		}

		results = winners
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 中奖通知是事务提交后的尽力而为副作用
	for _, w := range winners {
		notification.Dispatch(e.notifier, w.UserID, notification.TypeWinner, map[string]interface{}{
			"campaign_id": w.CampaignID,
			"position_id": w.PositionID,
			"rank":        w.Rank,
		})
	}

	return results, nil
}

// drawReady 判断活动是否满足开奖前置条件。
// 草稿活动即使设置了截止时间也不能开奖。
func drawReady(c *campaign.Campaign) bool {
	switch c.Status {
	case campaign.StatusClosed:
		return true
	case campaign.StatusPublished:
		if c.PositionsSold == c.PositionsTotal {
			return true
		}
		if c.EndTime != nil && time.Now().After(*c.EndTime) {
			return true
		}
	}
	return false
}

// loadPrizeTiers 加载活动配置的奖级，按Rank升序。
// 未配置奖级的活动退化为单个一等奖。
func loadPrizeTiers(tx *gorm.DB, campaignID uint) ([]PrizeTier, error) {
	var tiers []PrizeTier
	if err := tx.Where("campaign_id = ?", campaignID).
		Order("rank asc").
		Find(&tiers).Error; err != nil {
		return nil, fmt.Errorf("无法加载奖级配置: %w", err)
	}
	if len(tiers) == 0 {
		tiers = []PrizeTier{{CampaignID: campaignID, Rank: 1, Title: "头奖", Quantity: 1}}
	}
	return tiers, nil
}

// sampleWinners 在售出仓位池上按奖级做不放回抽样。
// 池子小于奖级名额总数时，低奖级的多余名额留空，不算错误。
func (e *Engine) sampleWinners(pool []campaign.Position, tiers []PrizeTier) ([]LotteryResult, error) {
	if len(pool) == 0 {
		return nil, nil
	}
	sampler, err := newSamplePool(len(pool))
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var winners []LotteryResult
	for _, tier := range tiers {
		for i := 0; i < tier.Quantity; i++ {
			if sampler.remaining == 0 {
				return winners, nil
			}
			index, err := sampler.draw(e.rng)
			if err != nil {
				return nil, err
			}
			p := pool[index]
			if p.UserID == nil {
				return nil, fmt.Errorf("售出仓位 %d 缺少归属买家", p.ID)
			}
			winners = append(winners, LotteryResult{
				CampaignID: p.CampaignID,
				PositionID: p.ID,
				Rank:       tier.Rank,
				UserID:     *p.UserID,
			})
		}
	}
	return winners, nil
}

// GetResults 返回活动的开奖结果集。
// 尚未开奖的活动返回ErrNotReady。
func GetResults(campaignID uint) ([]LotteryResult, error) {
	c, err := campaign.GetCampaignByID(campaignID)
	if err != nil {
		return nil, err
	}
	if c.Status != campaign.StatusDrawn {
		return nil, ErrNotReady
	}
	var results []LotteryResult
	err = database.DB.Where("campaign_id = ?", campaignID).
		Order("rank asc, id asc").
		Find(&results).Error
	return results, err
}

// ReplacePrizeTiers 整体替换活动的奖级配置。
// 只允许在开奖前修改。
func ReplacePrizeTiers(campaignID uint, tiers []PrizeTier) error {
	return database.DB.Transaction(func(tx *gorm.DB) error {
		c, err := campaign.GetCampaignForUpdate(tx, campaignID)
		if err != nil {
			return err
		}
		if c.Status == campaign.StatusDrawn {
			return campaign.ErrInvalidTransition
		}
		if err := tx.Delete(&PrizeTier{}, "campaign_id = ?", campaignID).Error; err != nil {
			return fmt.Errorf("无法清除旧奖级配置: %w", err)
		}
		for i := range tiers {
			tiers[i].ID = 0
			tiers[i].CampaignID = campaignID
		}
		if len(tiers) == 0 {
			return nil
		}
		if err := tx.Create(&tiers).Error; err != nil {
			return fmt.Errorf("无法写入奖级配置: %w", err)
		}
		return nil
	})
}
