package payment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// DevGateway 是本地开发模式下的支付网关实现。
// 它只分配一个意向ID，不发起真实扣款；结果事件由调用方
// （或开发者手动调用webhook接口）自行注入。
type DevGateway struct {
	currency string
}

// NewDevGateway 创建一个开发模式网关。
func NewDevGateway(currency string) *DevGateway {
	return &DevGateway{currency: currency}
}

// CreateIntent 生成一个本地支付意向。
func (g *DevGateway) CreateIntent(_ context.Context, amount int64, currency string, metadata map[string]string) (*Intent, error) {
	if currency == "" {
		currency = g.currency
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("无法生成支付意向ID: %w", err)
	}
	intent := &Intent{
		ID:       "pi_dev_" + id.String(),
		Amount:   amount,
		Currency: currency,
	}
	fmt.Printf("开发网关: 已创建支付意向 %s (金额 %d %s, 订单 %s)\n",
		intent.ID, amount, currency, metadata["base_key"])
	return intent, nil
}
