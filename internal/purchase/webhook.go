package purchase

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/SlpAus/pyramid-lottery-backend/internal/payment"
	"github.com/SlpAus/pyramid-lottery-backend/pkg/token"
	"github.com/gin-gonic/gin"
)

// SignatureHeader 是支付网关回调携带HMAC签名的请求头。
const SignatureHeader = "X-Webhook-Signature"

// WebhookHandler 接收支付网关的异步结果事件。
// 三层防重复: HMAC签名确保事件来自网关；幂等锁拦截并发重投；
// 状态机里的当前状态比对让先后到达的重投成为无副作用的空操作。
func WebhookHandler(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无法读取请求体"})
		return
	}

	signature := c.GetHeader(SignatureHeader)
	if signature == "" || !token.ValidateSignature(raw, signature) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "回调签名校验失败"})
		return
	}

	var event payment.Event
	if err := json.Unmarshal(raw, &event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "事件格式错误: " + err.Error()})
		return
	}
	if event.EventID == "" || event.IntentID == "" || event.Type == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "事件缺少必要字段"})
		return
	}

	// 以网关事件ID为幂等键：同一事件的重投共享同一个键
	key := DeriveKey("gateway", "webhook", event.EventID, raw)

	if cached, ok := GetCachedResponse(key); ok {
		c.Data(http.StatusOK, "application/json", cached)
		return
	}

	release, ok, _ := AcquireLock(key)
	if !ok {
		// 同一事件正在处理中，让网关稍后重试
		c.JSON(http.StatusConflict, gin.H{"error": ErrConflict.Error()})
		return
	}
	defer release()

	if err := defaultService.HandlePaymentOutcome(event); err != nil {
		if errors.Is(err, ErrPurchaseNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "事件未关联任何认购"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "事件处理失败: " + err.Error()})
		return
	}

	resp, _ := json.Marshal(gin.H{"message": "事件已处理"})
	StoreCachedResponse(key, resp)
	c.Data(http.StatusOK, "application/json", resp)
}
