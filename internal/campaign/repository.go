package campaign

import (
	"errors"

	"github.com/SlpAus/pyramid-lottery-backend/internal/platform/database"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// --- 错误定义 ---

var (
	ErrCampaignNotFound  = errors.New("活动不存在")
	ErrInvalidTransition = errors.New("活动状态不允许此操作")
)

// LockForUpdate 返回一个附加了行级写锁的查询句柄。
// SQLite下退化为普通查询：单写者引擎天然串行化写事务。
func LockForUpdate(tx *gorm.DB) *gorm.DB {
	if database.SupportsRowLocking() {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// LockSkipLocked 返回一个附加了"锁定并跳过已锁行"的查询句柄。
// 这是预订分配器的核心：两个并发事务各自只看到对方没锁住的可售仓位，
// 互不阻塞也不会选中同一行。
func LockSkipLocked(tx *gorm.DB) *gorm.DB {
	if database.SupportsRowLocking() {
		return tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
	}
	return tx
}

// GetCampaignForUpdate 在事务内锁定并返回指定活动。
func GetCampaignForUpdate(tx *gorm.DB, campaignID uint) (*Campaign, error) {
	var c Campaign
	if err := LockForUpdate(tx).First(&c, campaignID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, err
	}
	return &c, nil
}

// GetCampaignByID 返回指定活动（无锁读取）。
func GetCampaignByID(campaignID uint) (*Campaign, error) {
	var c Campaign
	if err := database.DB.First(&c, campaignID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, err
	}
	return &c, nil
}

// SelectAvailablePositions 在事务内选取最多quantity个可售仓位并加锁。
// 为避免对低编号仓位的系统性偏向，候选行按random()乱序选取。
func SelectAvailablePositions(tx *gorm.DB, campaignID uint, quantity int) ([]Position, error) {
	var positions []Position
	err := LockSkipLocked(tx).
		Where("campaign_id = ? AND status = ?", campaignID, PositionAvailable).
		Order("random()").
		Limit(quantity).
		Find(&positions).Error
	return positions, err
}

// SelectPositionsByIDs 在事务内锁定显式指定的仓位集合，只返回仍可售的部分。
func SelectPositionsByIDs(tx *gorm.DB, campaignID uint, ids []uint) ([]Position, error) {
	var positions []Position
	err := LockSkipLocked(tx).
		Where("campaign_id = ? AND id IN ? AND status = ?", campaignID, ids, PositionAvailable).
		Find(&positions).Error
	return positions, err
}

// AdjustPositionsSold 原子地调整活动的已售计数。
// 上调时带守卫条件，确保计数永不超过仓位总数；违背时返回ErrInvalidTransition。
func AdjustPositionsSold(tx *gorm.DB, campaignID uint, delta int) error {
	query := tx.Model(&Campaign{}).Where("id = ?", campaignID)
	if delta > 0 {
		query = query.Where("positions_sold + ? <= positions_total", delta)
	} else {
		query = query.Where("positions_sold + ? >= 0", delta)
	}
	result := query.UpdateColumn("positions_sold", gorm.Expr("positions_sold + ?", delta))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// CountSoldPositions 返回活动中状态为sold的仓位数。
func CountSoldPositions(tx *gorm.DB, campaignID uint) (int64, error) {
	var n int64
	err := tx.Model(&Position{}).
		Where("campaign_id = ? AND status = ?", campaignID, PositionSold).
		Count(&n).Error
	return n, err
}

// GetSoldPositions 返回活动中全部已售出的仓位，按编号排序。
func GetSoldPositions(tx *gorm.DB, campaignID uint) ([]Position, error) {
	var positions []Position
	err := tx.Where("campaign_id = ? AND status = ?", campaignID, PositionSold).
		Order("number asc").
		Find(&positions).Error
	return positions, err
}
