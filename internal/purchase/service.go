package purchase

import (
	"errors"
	"fmt"
	"time"

	"github.com/SlpAus/pyramid-lottery-backend/internal/campaign"
	"github.com/SlpAus/pyramid-lottery-backend/internal/notification"
	"github.com/SlpAus/pyramid-lottery-backend/internal/payment"
	"github.com/SlpAus/pyramid-lottery-backend/internal/platform/config"
	"github.com/SlpAus/pyramid-lottery-backend/internal/platform/database"
	"github.com/SlpAus/pyramid-lottery-backend/internal/user"
	"gorm.io/gorm"
)

var (
	ErrPurchaseNotFound   = errors.New("认购记录不存在")
	ErrNotOwner           = errors.New("只能操作自己的认购")
	ErrNotCancellable     = errors.New("该认购已进入支付流程，无法直接取消")
	ErrGatewayUnavailable = errors.New("支付网关暂不可用，请稍后重试")
)

// DrawTrigger 是自动开奖触发器的抽象。
// 购买结算成功提交后通过它通知lottery模块，避免包间循环依赖。
type DrawTrigger interface {
	NotifyPurchaseSettled(campaignID uint)
}

// Service 是购买事务管理器。
// 它编排预订分配、认购记录创建和支付结果的状态机转换。
type Service struct {
	gateway  payment.Gateway
	notifier notification.Notifier
	trigger  DrawTrigger
}

// defaultService 是模块级的单例，由main在启动时装配
var defaultService *Service

// NewService 创建一个购买事务管理器。trigger可以为nil（测试场景）。
func NewService(gateway payment.Gateway, notifier notification.Notifier, trigger DrawTrigger) *Service {
	return &Service{gateway: gateway, notifier: notifier, trigger: trigger}
}

// InitService 装配模块级单例，供HTTP处理器使用。
func InitService(s *Service) {
	defaultService = s
}

// CreateReservation 执行一次完整的认购创建：
// 原子地预订仓位并落认购行，随后向网关申请支付意向。
// 意向创建失败时立刻走失败路径释放仓位，对外不会留下悬挂的预订。
func (s *Service) CreateReservation(params ReserveParams) ([]Purchase, error) {
	var purchases []Purchase
	// SQLite的busy错误和并发死锁值得在放弃前重试
	err := database.RunWithRetry(3, func() error {
		return database.DB.Transaction(func(tx *gorm.DB) error {
			var txErr error
			purchases, txErr = allocate(tx, params)
			return txErr
		})
	})
	if err != nil {
		return nil, err
	}

	var total int64
	for _, p := range purchases {
		total += p.Amount
	}

	intent, err := s.gateway.CreateIntent(database.Ctx, total, config.Cfg.Payment.Currency, map[string]string{
		"base_key":    params.BaseKey,
		"campaign_id": fmt.Sprintf("%d", params.CampaignID),
		"user_id":     params.UserID,
	})
	if err != nil {
		// 预订已提交但无法发起支付：立即释放仓位并回滚计数
		fmt.Printf("警告: 支付意向创建失败，正在释放已预订仓位: %v\n", err)
		ids := make([]string, len(purchases))
		for i, p := range purchases {
			ids[i] = p.ID
		}
		if releaseErr := s.releasePurchasesByIDs(ids, StatusFailed); releaseErr != nil {
			fmt.Printf("严重告警: 释放仓位失败，存在悬挂预订: %v\n", releaseErr)
		}
		return nil, ErrGatewayUnavailable
	}

	// 回填支付关联ID并转入processing
	ids := make([]string, len(purchases))
	for i := range purchases {
		ids[i] = purchases[i].ID
	}
	err = database.DB.Model(&Purchase{}).
		Where("id IN ? AND status = ?", ids, StatusPending).
		Updates(map[string]interface{}{
			"payment_intent_id": intent.ID,
			"status":            StatusProcessing,
		}).Error
	if err != nil {
		return nil, fmt.Errorf("无法回填支付意向: %w", err)
	}

	// 事务提交与回填之间可能有并发取消，条件更新会跳过那些行。
	// 响应以落库状态为准，不把已取消的认购报告成processing。
	var refreshed []Purchase
	if err := database.DB.Where("id IN ?", ids).Order("id").Find(&refreshed).Error; err != nil {
		return nil, fmt.Errorf("无法读取认购最终状态: %w", err)
	}
	return refreshed, nil
}

// HandlePaymentOutcome 消费一条网关支付结果事件并推进状态机。
// 幂等性: 目标状态与当前状态相同的行直接跳过（安全重放）；
// 非法转换的行记录告警后跳过，避免网关无限重投。
func (s *Service) HandlePaymentOutcome(event payment.Event) error {
	targetStatus, ok := eventTarget(event.Type)
	if !ok {
		return fmt.Errorf("未知的支付事件类型: %s", event.Type)
	}

	var affected []Purchase
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var purchases []Purchase
		if err := campaign.LockForUpdate(tx).
			Where("payment_intent_id = ?", event.IntentID).
			Find(&purchases).Error; err != nil {
			return fmt.Errorf("无法查询支付关联的认购: %w", err)
		}
		if len(purchases) == 0 {
			return ErrPurchaseNotFound
		}

		for i := range purchases {
			p := &purchases[i]
			if p.Status == targetStatus {
				continue // 重复投递，无副作用
			}
			if !transitionLegal(p.Status, targetStatus) {
				fmt.Printf("警告: 忽略非法的状态转换 %s -> %s (认购 %s)\n", p.Status, targetStatus, p.ID)
				continue
			}
			if err := s.applyTransition(tx, p, targetStatus); err != nil {
				return err
			}
			affected = append(affected, *p)
		}
		return nil
	})
	if err != nil {
		return err
	}

	// 事务提交后的尽力而为副作用
	for _, p := range affected {
		switch targetStatus {
		case StatusCompleted:
			notification.Dispatch(s.notifier, p.UserID, notification.TypePurchaseSuccess, map[string]interface{}{
				"purchase_id": p.ID, "position_id": p.PositionID,
			})
		case StatusFailed, StatusCancelled:
			notification.Dispatch(s.notifier, p.UserID, notification.TypePurchaseFailed, map[string]interface{}{
				"purchase_id": p.ID,
			})
		}
	}
	if targetStatus == StatusCompleted && len(affected) > 0 && s.trigger != nil {
		s.trigger.NotifyPurchaseSettled(affected[0].CampaignID)
	}

	return nil
}

// CancelOwnPurchase 是唯一允许由客户端直接发起的状态转换：
// 买家取消自己仍处于pending的认购。
func (s *Service) CancelOwnPurchase(purchaseID, userID string) error {
	return database.DB.Transaction(func(tx *gorm.DB) error {
		var p Purchase
		if err := campaign.LockForUpdate(tx).First(&p, "id = ?", purchaseID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPurchaseNotFound
			}
			return err
		}
		if p.UserID != userID {
			return ErrNotOwner
		}
		if p.Status != StatusPending {
			return ErrNotCancellable
		}
		return s.applyTransition(tx, &p, StatusCancelled)
	})
}

// GetUserPurchases 返回买家的全部认购记录。
func GetUserPurchases(userID string) ([]Purchase, error) {
	var purchases []Purchase
	err := database.DB.Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&purchases).Error
	return purchases, err
}

// --- 状态机内部实现 ---

// eventTarget 把网关事件类型映射到认购目标状态。
func eventTarget(t payment.EventType) (Status, bool) {
	switch t {
	case payment.EventSucceeded:
		return StatusCompleted, true
	case payment.EventFailed:
		return StatusFailed, true
	case payment.EventCanceled:
		return StatusCancelled, true
	case payment.EventRefunded:
		return StatusRefunded, true
	}
	return "", false
}

// transitionLegal 校验状态机的合法转换。
func transitionLegal(from, to Status) bool {
	switch to {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return from == StatusPending || from == StatusProcessing
	case StatusRefunded:
		return from == StatusCompleted
	}
	return false
}

// applyTransition 在事务内把一笔认购推进到目标状态，
// 并同步调整仓位状态、活动计数和买家统计。
func (s *Service) applyTransition(tx *gorm.DB, p *Purchase, target Status) error {
	if err := tx.Model(&Purchase{}).
		Where("id = ?", p.ID).
		Update("status", target).Error; err != nil {
		return fmt.Errorf("无法更新认购状态: %w", err)
	}

	switch target {
	case StatusCompleted:
		// 仓位转为已售，归属保留，补记售出时间
		now := time.Now()
		if err := tx.Model(&campaign.Position{}).
			Where("id = ? AND status = ?", p.PositionID, campaign.PositionReserved).
			Updates(map[string]interface{}{
				"status":  campaign.PositionSold,
				"sold_at": now,
			}).Error; err != nil {
			return fmt.Errorf("无法标记仓位售出: %w", err)
		}

	case StatusFailed, StatusCancelled, StatusRefunded:
		// 仓位放回可售池，清空归属与售出时间，对称回滚计数
		if err := tx.Model(&campaign.Position{}).
			Where("id = ?", p.PositionID).
			Updates(map[string]interface{}{
				"status":  campaign.PositionAvailable,
				"user_id": nil,
				"sold_at": nil,
			}).Error; err != nil {
			return fmt.Errorf("无法释放仓位: %w", err)
		}
		if err := campaign.AdjustPositionsSold(tx, p.CampaignID, -1); err != nil {
			return fmt.Errorf("无法回滚活动已售计数: %w", err)
		}
		if err := user.AdjustStats(tx, p.UserID, -1, -p.Amount); err != nil {
			return err
		}
	}

	p.Status = target
	return nil
}

// releasePurchasesByIDs 把一组仍在pending的认购整体转入终态并释放仓位。
// 用于支付意向创建失败后的补偿。
func (s *Service) releasePurchasesByIDs(ids []string, target Status) error {
	return database.DB.Transaction(func(tx *gorm.DB) error {
		var purchases []Purchase
		if err := campaign.LockForUpdate(tx).
			Where("id IN ?", ids).
			Find(&purchases).Error; err != nil {
			return err
		}
		for i := range purchases {
			p := &purchases[i]
			if !transitionLegal(p.Status, target) {
				continue
			}
			if err := s.applyTransition(tx, p, target); err != nil {
				return err
			}
		}
		return nil
	})
}
