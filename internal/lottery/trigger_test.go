package lottery

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/SlpAus/pyramid-lottery-backend/internal/campaign"
	"github.com/SlpAus/pyramid-lottery-backend/internal/payment"
	"github.com/SlpAus/pyramid-lottery-backend/internal/platform/database"
	"github.com/SlpAus/pyramid-lottery-backend/internal/purchase"
	"github.com/SlpAus/pyramid-lottery-backend/internal/user"
)

// setupTriggerTest 在开奖表之外再迁移购买链路的表。
func setupTriggerTest(t *testing.T) {
	t.Helper()
	setupTestDB(t)
	if err := database.DB.AutoMigrate(&user.User{}, &purchase.Purchase{}); err != nil {
		t.Fatalf("无法迁移购买链路的表: %v", err)
	}
}

// stubGateway 总是成功的支付网关。
type stubGateway struct {
	created int
}

func (g *stubGateway) CreateIntent(_ context.Context, amount int64, currency string, _ map[string]string) (*payment.Intent, error) {
	g.created++
	return &payment.Intent{ID: fmt.Sprintf("pi_trig_%d", g.created), Amount: amount, Currency: currency}, nil
}

// newAutoDrawCampaign 创建并发布一个开启自动开奖的活动。
func newAutoDrawCampaign(t *testing.T, baseLength int, endTime *time.Time) *campaign.Campaign {
	t.Helper()
	prices := make([]int64, baseLength)
	for i := range prices {
		prices[i] = 100
	}
	c, err := campaign.CreateCampaign(campaign.CreateParams{
		Title:       "自动开奖",
		BaseLength:  baseLength,
		LayerPrices: prices,
		AutoDraw:    true,
		EndTime:     endTime,
	})
	if err != nil {
		t.Fatalf("创建活动失败: %v", err)
	}
	published, err := campaign.PublishCampaign(c.ID)
	if err != nil {
		t.Fatalf("发布活动失败: %v", err)
	}
	return published
}

// drainWake 非阻塞地取出一个唤醒信号。
func drainWake(t *testing.T, trig *Trigger) (uint, bool) {
	t.Helper()
	select {
	case id := <-trig.wake:
		return id, true
	default:
		return 0, false
	}
}

func countResults(t *testing.T, campaignID uint) int64 {
	t.Helper()
	var n int64
	database.DB.Model(&LotteryResult{}).Where("campaign_id = ?", campaignID).Count(&n)
	return n
}

func TestSoldOutSettlementTriggersDrawExactlyOnce(t *testing.T) {
	setupTriggerTest(t)
	engine := newTestEngine()
	trig := NewTrigger(engine, time.Hour)
	gateway := &stubGateway{}
	svc := purchase.NewService(gateway, nil, trig)

	c := newAutoDrawCampaign(t, 1, nil) // 1个仓位，付完即售罄

	purchases, err := svc.CreateReservation(purchase.ReserveParams{
		CampaignID: c.ID,
		UserID:     "01890000-0000-7000-8000-000000000001",
		Quantity:   1,
		BaseKey:    "idem:trigger:a",
	})
	if err != nil {
		t.Fatalf("创建预订失败: %v", err)
	}

	// 最后一笔支付结算：service通过DrawTrigger接口通知触发器
	event := payment.Event{EventID: "evt_trig_1", Type: payment.EventSucceeded, IntentID: purchases[0].PaymentIntentID}
	if err := svc.HandlePaymentOutcome(event); err != nil {
		t.Fatalf("处理支付事件失败: %v", err)
	}

	campaignID, woken := drainWake(t, trig)
	if !woken {
		t.Fatal("售罄结算后触发器应收到唤醒信号")
	}
	if campaignID != c.ID {
		t.Fatalf("唤醒信号应携带活动ID %d, 实际 %d", c.ID, campaignID)
	}

	trig.tryDraw(campaignID)

	updated, _ := campaign.GetCampaignByID(c.ID)
	if updated.Status != campaign.StatusDrawn {
		t.Fatalf("自动开奖后活动应为drawn, 实际 %s", updated.Status)
	}
	if n := countResults(t, c.ID); n != 1 {
		t.Fatalf("应恰好产生一份结果集, 实际 %d 行", n)
	}

	// 事件重投再次通知：已开奖的活动不再入队，也不产生第二份结果
	trig.NotifyPurchaseSettled(c.ID)
	if _, woken := drainWake(t, trig); woken {
		t.Fatal("已开奖的活动不应再被唤醒")
	}
	trig.sweep()
	if n := countResults(t, c.ID); n != 1 {
		t.Fatalf("兜底轮询不应产生第二份结果, 实际 %d 行", n)
	}
}

func TestNotifyPurchaseSettledGating(t *testing.T) {
	setupTriggerTest(t)
	engine := newTestEngine()
	trig := NewTrigger(engine, time.Hour)

	// 未售罄：不唤醒
	partial := newAutoDrawCampaign(t, 2, nil)
	sellPositions(t, partial.ID, 1)
	trig.NotifyPurchaseSettled(partial.ID)
	if _, woken := drainWake(t, trig); woken {
		t.Fatal("未售罄的活动不应被唤醒")
	}

	// 售罄但未开启自动开奖：不唤醒
	manual := newPublishedCampaign(t, 1)
	sellPositions(t, manual.ID, 1)
	trig.NotifyPurchaseSettled(manual.ID)
	if _, woken := drainWake(t, trig); woken {
		t.Fatal("未开启自动开奖的活动不应被唤醒")
	}

	// 售罄且开启自动开奖：唤醒
	ready := newAutoDrawCampaign(t, 1, nil)
	sellPositions(t, ready.ID, 1)
	trig.NotifyPurchaseSettled(ready.ID)
	if id, woken := drainWake(t, trig); !woken || id != ready.ID {
		t.Fatalf("售罄的自动开奖活动应被唤醒, woken=%v id=%d", woken, id)
	}
}

func TestSweepDrawsExpiredCampaigns(t *testing.T) {
	setupTriggerTest(t)
	engine := newTestEngine()
	trig := NewTrigger(engine, time.Hour)

	past := time.Now().Add(-time.Hour)

	// 已过截止时间的自动开奖活动：兜底轮询负责开奖
	expired := newAutoDrawCampaign(t, 2, &past)
	sellPositions(t, expired.ID, 1)

	// 同样过期但未开启自动开奖：轮询不碰它
	manual := newPublishedCampaign(t, 2)
	err := database.DB.Model(&campaign.Campaign{}).
		Where("id = ?", manual.ID).
		Update("end_time", past).Error
	if err != nil {
		t.Fatalf("无法设置截止时间: %v", err)
	}
	sellPositions(t, manual.ID, 1)

	// 未到期也未售罄：不满足条件
	pending := newAutoDrawCampaign(t, 2, nil)
	sellPositions(t, pending.ID, 1)

	trig.sweep()

	drawn, _ := campaign.GetCampaignByID(expired.ID)
	if drawn.Status != campaign.StatusDrawn {
		t.Fatalf("过期活动应被轮询开奖, 实际 %s", drawn.Status)
	}
	if n := countResults(t, expired.ID); n != 1 {
		t.Fatalf("过期活动应有一份结果集, 实际 %d 行", n)
	}

	untouched, _ := campaign.GetCampaignByID(manual.ID)
	if untouched.Status != campaign.StatusPublished {
		t.Fatalf("手动开奖活动不应被轮询触发, 实际 %s", untouched.Status)
	}
	notReady, _ := campaign.GetCampaignByID(pending.ID)
	if notReady.Status != campaign.StatusPublished {
		t.Fatalf("未就绪活动不应被轮询触发, 实际 %s", notReady.Status)
	}

	// 再跑一轮：已开奖的活动不再是候选，结果集不变
	trig.sweep()
	if n := countResults(t, expired.ID); n != 1 {
		t.Fatalf("重复轮询不应产生第二份结果, 实际 %d 行", n)
	}
}
