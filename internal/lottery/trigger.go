package lottery

import (
	"errors"
	"fmt"
	"time"

	"github.com/SlpAus/pyramid-lottery-backend/internal/campaign"
	"github.com/SlpAus/pyramid-lottery-backend/internal/platform/database"
	"github.com/SlpAus/pyramid-lottery-backend/pkg/lifecycle"
)

// Trigger 是自动开奖触发器，实现purchase.DrawTrigger接口。
// 两条触发路径: 购买结算后的即时通知（售罄触发），
// 以及后台轮询兜底（截止时间到期、错过的通知）。
type Trigger struct {
	engine        *Engine
	sweepInterval time.Duration
	wake          chan uint
}

// NewTrigger 创建一个自动开奖触发器。
func NewTrigger(engine *Engine, sweepInterval time.Duration) *Trigger {
	return &Trigger{
		engine:        engine,
		sweepInterval: sweepInterval,
		wake:          make(chan uint, 16),
	}
}

// NotifyPurchaseSettled 在一笔购买结算成功后被调用。
// 它只做轻量的条件检查和非阻塞投递，绝不反压购买路径；
// 触发失败由后台轮询兜底，所以丢弃通知是安全的。
func (t *Trigger) NotifyPurchaseSettled(campaignID uint) {
	c, err := campaign.GetCampaignByID(campaignID)
	if err != nil {
		fmt.Printf("警告: 自动开奖检查失败 (活动 %d): %v\n", campaignID, err)
		return
	}
	if !c.AutoDraw || c.Status == campaign.StatusDrawn {
		return
	}
	if !drawReady(c) {
		return
	}

	select {
	case t.wake <- campaignID:
	default:
		// 队列已满，留给轮询兜底
	}
}

// Run 是触发器的后台主循环，由lifecycle.Manager托管。
func (t *Trigger) Run(handle *lifecycle.Handle) {
	defer handle.Close()
	fmt.Println("自动开奖触发器已启动。")

	ticker := time.NewTicker(t.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-handle.Done():
			fmt.Println("自动开奖触发器已停止。")
			return
		case campaignID := <-t.wake:
			t.tryDraw(campaignID)
		case <-ticker.C:
			t.sweep()
		}
	}
}

// tryDraw 尝试为单个活动开奖。
// 未就绪和并发冲突是正常情况，只记录不上抛。
func (t *Trigger) tryDraw(campaignID uint) {
	_, err := t.engine.DrawLottery(campaignID)
	if err == nil {
		fmt.Printf("活动 %d 已自动开奖。\n", campaignID)
		return
	}
	if errors.Is(err, ErrNotReady) || errors.Is(err, ErrDrawInProgress) {
		return
	}
	fmt.Printf("警告: 活动 %d 自动开奖失败: %v\n", campaignID, err)
}

// sweep 轮询所有满足开奖条件但还没开奖的自动开奖活动。
// 这是截止时间触发的唯一路径，也是即时通知丢失后的兜底。
func (t *Trigger) sweep() {
	var candidates []campaign.Campaign
	err := database.DB.
		Where("auto_draw = ? AND status IN ?", true,
			[]campaign.Status{campaign.StatusPublished, campaign.StatusClosed}).
		Where("positions_sold = positions_total OR (end_time IS NOT NULL AND end_time < ?)", time.Now()).
		Find(&candidates).Error
	if err != nil {
		fmt.Printf("警告: 自动开奖轮询失败: %v\n", err)
		return
	}
	for _, c := range candidates {
		t.tryDraw(c.ID)
	}
}
