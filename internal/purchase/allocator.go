package purchase

import (
	"errors"
	"fmt"
	"time"

	"github.com/SlpAus/pyramid-lottery-backend/internal/campaign"
	"github.com/SlpAus/pyramid-lottery-backend/internal/user"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrCampaignNotPublished = errors.New("活动不在售卖状态")
	ErrLimitExceeded        = errors.New("超出单人认购上限")
	ErrInvalidQuantity      = errors.New("认购数量必须为正数")
)

// InsufficientInventoryError 表示可认购的仓位不足，
// Available 是当前事务实际能看到并锁定的可售数量。
type InsufficientInventoryError struct {
	Requested int
	Available int
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("仓位库存不足: 请求 %d 个, 仅剩 %d 个", e.Requested, e.Available)
}

// ReserveParams 描述一次预订请求。
// PositionIDs 非空时只认购指定的仓位（兼容旧调用方）；
// 否则按Quantity随机选取可售仓位。
type ReserveParams struct {
	CampaignID  uint
	UserID      string
	Quantity    int
	PositionIDs []uint
	// BaseKey 是本批次的基础幂等键，每行的键由它加仓位ID派生
	BaseKey string
}

// allocate 是预订分配器的事务体：锁定活动、校验限购、
// 用skip-locked选取可售仓位、落预订与认购行、更新计数。
// 任一步失败则整个事务回滚，外部看不到部分预订。
func allocate(tx *gorm.DB, params ReserveParams) ([]Purchase, error) {
	quantity := params.Quantity
	if len(params.PositionIDs) > 0 {
		quantity = len(params.PositionIDs)
	}
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	// 1. 锁定活动行，确认状态可售
	c, err := campaign.GetCampaignForUpdate(tx, params.CampaignID)
	if err != nil {
		return nil, err
	}
	if c.Status != campaign.StatusPublished {
		return nil, ErrCampaignNotPublished
	}
	if c.EndTime != nil && time.Now().After(*c.EndTime) {
		return nil, ErrCampaignNotPublished
	}

	// 2. 限购校验：已有的有效认购数加本次数量不得超过上限
	if c.PerUserLimit > 0 {
		var existing int64
		if err := tx.Model(&Purchase{}).
			Where("campaign_id = ? AND user_id = ? AND status IN ?",
				params.CampaignID, params.UserID, activeStatuses).
			Count(&existing).Error; err != nil {
			return nil, fmt.Errorf("无法统计买家已有认购: %w", err)
		}
		if int(existing)+quantity > c.PerUserLimit {
			return nil, ErrLimitExceeded
		}
	}

	// 3. 选取并锁定候选仓位。被并发事务锁住的行会被直接跳过，
	//    所以两个同时进行的分配器永远不会选中同一个仓位。
	var candidates []campaign.Position
	if len(params.PositionIDs) > 0 {
		candidates, err = campaign.SelectPositionsByIDs(tx, params.CampaignID, params.PositionIDs)
	} else {
		candidates, err = campaign.SelectAvailablePositions(tx, params.CampaignID, quantity)
	}
	if err != nil {
		return nil, fmt.Errorf("无法选取可售仓位: %w", err)
	}
	if len(candidates) < quantity {
		return nil, &InsufficientInventoryError{Requested: quantity, Available: len(candidates)}
	}

	// 4. 仓位转入reserved并记录归属
	ids := make([]uint, len(candidates))
	var total int64
	for i, p := range candidates {
		ids[i] = p.ID
		total += p.Price
	}
	if err := tx.Model(&campaign.Position{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{
			"status":  campaign.PositionReserved,
			"user_id": params.UserID,
		}).Error; err != nil {
		return nil, fmt.Errorf("无法预订仓位: %w", err)
	}

	// 5. 每个仓位一行认购记录，幂等键 = 基础键 + 仓位ID。
	//    整批重试会命中唯一索引，不会产生第二份记录。
	purchases := make([]Purchase, 0, len(candidates))
	for _, p := range candidates {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("无法生成认购ID: %w", err)
		}
		purchases = append(purchases, Purchase{
			ID:             id.String(),
			CampaignID:     params.CampaignID,
			PositionID:     p.ID,
			UserID:         params.UserID,
			Amount:         p.Price,
			Status:         StatusPending,
			IdempotencyKey: fmt.Sprintf("%s:%d", params.BaseKey, p.ID),
		})
	}
	if err := tx.Create(&purchases).Error; err != nil {
		return nil, fmt.Errorf("无法创建认购记录: %w", err)
	}

	// 6. 同一事务内更新活动计数与买家聚合统计
	if err := campaign.AdjustPositionsSold(tx, params.CampaignID, quantity); err != nil {
		return nil, fmt.Errorf("无法更新活动已售计数: %w", err)
	}
	if err := user.EnsureUser(tx, params.UserID); err != nil {
		return nil, fmt.Errorf("无法确保买家记录存在: %w", err)
	}
	if err := user.AdjustStats(tx, params.UserID, quantity, total); err != nil {
		return nil, err
	}

	return purchases, nil
}
