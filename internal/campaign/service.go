package campaign

import (
	"errors"
	"fmt"
	"time"

	"github.com/SlpAus/pyramid-lottery-backend/internal/platform/config"
	"github.com/SlpAus/pyramid-lottery-backend/internal/platform/database"
	"gorm.io/gorm"
)

var (
	ErrInvalidBaseLength = errors.New("三角形底边长度必须在1到100之间")
	ErrLayerPriceTooLow  = errors.New("层定价低于允许的最低价格")
	ErrLayerPriceCount   = errors.New("层定价数量与底边长度不匹配")
)

// CreateParams 是创建活动所需的全部参数。
// LayerPrices 按层号升序给出每层单价（分）；长度必须等于BaseLength。
type CreateParams struct {
	Title        string
	BaseLength   int
	LayerPrices  []int64
	AutoDraw     bool
	PerUserLimit int
	EndTime      *time.Time
}

// CreateCampaign 创建一个草稿状态的活动，并一次性生成全部Layer和Position行。
// 网格是确定性生成的，之后不再重建：层号L（1到N）包含L个仓位。
func CreateCampaign(params CreateParams) (*Campaign, error) {
	if params.BaseLength < 1 || params.BaseLength > 100 {
		return nil, ErrInvalidBaseLength
	}
	if len(params.LayerPrices) != params.BaseLength {
		return nil, ErrLayerPriceCount
	}
	minPrice := config.Cfg.Lottery.MinLayerPrice
	for _, p := range params.LayerPrices {
		if p < minPrice {
			return nil, ErrLayerPriceTooLow
		}
	}

	total := params.BaseLength * (params.BaseLength + 1) / 2

	c := Campaign{
		Title:          params.Title,
		BaseLength:     params.BaseLength,
		PositionsTotal: total,
		Status:         StatusDraft,
		AutoDraw:       params.AutoDraw,
		PerUserLimit:   params.PerUserLimit,
		EndTime:        params.EndTime,
	}

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&c).Error; err != nil {
			return fmt.Errorf("无法创建活动: %w", err)
		}

		layers := make([]Layer, 0, params.BaseLength)
		positions := make([]Position, 0, total)
		number := 0
		for layerNum := 1; layerNum <= params.BaseLength; layerNum++ {
			price := params.LayerPrices[layerNum-1]
			layers = append(layers, Layer{
				CampaignID: c.ID,
				Number:     layerNum,
				Price:      price,
			})
			for offset := 0; offset < layerNum; offset++ {
				number++
				positions = append(positions, Position{
					CampaignID: c.ID,
					Layer:      layerNum,
					Offset:     offset,
					Number:     number,
					Price:      price,
					Status:     PositionAvailable,
				})
			}
		}

		if err := tx.Create(&layers).Error; err != nil {
			return fmt.Errorf("无法创建层定价: %w", err)
		}
		if err := tx.CreateInBatches(&positions, 200).Error; err != nil {
			return fmt.Errorf("无法生成仓位网格: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	fmt.Printf("活动 #%d 创建成功，共生成 %d 个仓位。\n", c.ID, total)
	return &c, nil
}

// advanceStatus 把活动从from状态推进到to状态。
// 条件更新保证状态只会单向前进，并发的重复请求只有一个会生效。
func advanceStatus(campaignID uint, from, to Status) (*Campaign, error) {
	var c Campaign
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		locked, err := GetCampaignForUpdate(tx, campaignID)
		if err != nil {
			return err
		}
		if locked.Status != from {
			return ErrInvalidTransition
		}
		if err := tx.Model(&Campaign{}).
			Where("id = ? AND status = ?", campaignID, from).
			Update("status", to).Error; err != nil {
			return err
		}
		locked.Status = to
		c = *locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// PublishCampaign 把草稿活动发布为可售状态。
func PublishCampaign(campaignID uint) (*Campaign, error) {
	return advanceStatus(campaignID, StatusDraft, StatusPublished)
}

// CloseCampaign 关闭在售活动，停止认购并允许开奖。
func CloseCampaign(campaignID uint) (*Campaign, error) {
	return advanceStatus(campaignID, StatusPublished, StatusClosed)
}

// GetPositions 返回活动的全部仓位，按编号排序。
func GetPositions(campaignID uint) ([]Position, error) {
	if _, err := GetCampaignByID(campaignID); err != nil {
		return nil, err
	}
	var positions []Position
	err := database.DB.Where("campaign_id = ?", campaignID).
		Order("number asc").
		Find(&positions).Error
	return positions, err
}
