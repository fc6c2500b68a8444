package payment

import (
	"context"
)

// EventType 是支付网关异步推送的结果事件类型。
type EventType string

const (
	EventSucceeded EventType = "succeeded"
	EventFailed    EventType = "failed"
	EventCanceled  EventType = "canceled"
	EventRefunded  EventType = "refunded"
)

// Intent 是网关侧的支付对象。本服务只关心它的关联ID。
type Intent struct {
	ID       string
	Amount   int64
	Currency string
}

// Event 是网关回调携带的支付结果。
// 对本服务而言它是经过签名校验的外部事实，状态机转换完全由它驱动。
type Event struct {
	EventID  string    `json:"event_id" binding:"required"`
	Type     EventType `json:"type" binding:"required"`
	IntentID string    `json:"intent_id" binding:"required"`
	// Amount 仅退款事件携带（退款金额，分）
	Amount int64 `json:"amount"`
}

// Gateway 抽象了外部支付服务商。
// 核心流程只依赖这个接口：创建支付意向，之后等待回调事件。
type Gateway interface {
	CreateIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (*Intent, error)
}
