package purchase

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/SlpAus/pyramid-lottery-backend/internal/campaign"
	"github.com/SlpAus/pyramid-lottery-backend/internal/user"
	"github.com/gin-gonic/gin"
)

// ReserveRequestBody 定义了预订仓位时请求体的JSON结构。
// Quantity 与 PositionIDs 二选一；IdempotencyKey 可选，
// 缺省时服务端用请求体哈希派生幂等键。
type ReserveRequestBody struct {
	Quantity       int    `json:"quantity"`
	PositionIDs    []uint `json:"position_ids"`
	IdempotencyKey string `json:"idempotency_key"`
}

// ReserveHandler 处理买家的预订请求。
// 完整流程: 幂等缓存短路 -> 幂等互斥锁 -> 预订事务 -> 缓存响应。
func ReserveHandler(c *gin.Context) {
	userID := c.GetString(user.UserIDKey)
	if !user.IsValidUUID(userID) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "缺少有效的买家身份"})
		return
	}

	campaignID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的活动ID"})
		return
	}

	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无法读取请求体"})
		return
	}
	var body ReserveRequestBody
	if err := json.Unmarshal(raw, &body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}
	if body.Quantity <= 0 && len(body.PositionIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "必须指定认购数量或仓位列表"})
		return
	}

	// 幂等键的作用域是(买家, 操作, 令牌/请求体)
	operation := fmt.Sprintf("reserve:%d", campaignID)
	key := DeriveKey(userID, operation, body.IdempotencyKey, raw)

	// 先查响应缓存：先后到达的重复请求直接拿原始结果
	if cached, ok := GetCachedResponse(key); ok {
		c.Data(http.StatusOK, "application/json", cached)
		return
	}

	// 再上互斥锁：并发的重复请求被拒绝
	release, ok, _ := AcquireLock(key)
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"error": ErrConflict.Error()})
		return
	}
	defer release()

	purchases, err := defaultService.CreateReservation(ReserveParams{
		CampaignID:  uint(campaignID),
		UserID:      userID,
		Quantity:    body.Quantity,
		PositionIDs: body.PositionIDs,
		BaseKey:     key,
	})
	if err != nil {
		respondReserveError(c, err)
		return
	}

	resp, _ := json.Marshal(gin.H{"purchases": purchases})
	StoreCachedResponse(key, resp)
	c.Data(http.StatusCreated, "application/json", resp)
}

// CancelHandler 处理买家取消自己pending认购的请求。
func CancelHandler(c *gin.Context) {
	userID := c.GetString(user.UserIDKey)
	if !user.IsValidUUID(userID) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "缺少有效的买家身份"})
		return
	}
	purchaseID := c.Param("id")

	err := defaultService.CancelOwnPurchase(purchaseID, userID)
	if err != nil {
		switch {
		case errors.Is(err, ErrPurchaseNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, ErrNotOwner):
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		case errors.Is(err, ErrNotCancellable):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "取消认购失败: " + err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "认购已取消"})
}

// ListMineHandler 返回当前买家的全部认购记录。
func ListMineHandler(c *gin.Context) {
	userID := c.GetString(user.UserIDKey)
	if !user.IsValidUUID(userID) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "缺少有效的买家身份"})
		return
	}
	purchases, err := GetUserPurchases(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询认购记录失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"purchases": purchases})
}

func respondReserveError(c *gin.Context, err error) {
	var insufficient *InsufficientInventoryError
	switch {
	case errors.As(err, &insufficient):
		c.JSON(http.StatusConflict, gin.H{
			"error":     insufficient.Error(),
			"available": insufficient.Available,
		})
	case errors.Is(err, ErrLimitExceeded):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, ErrCampaignNotPublished), errors.Is(err, campaign.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, campaign.ErrCampaignNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrInvalidQuantity):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ErrGatewayUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "预订失败: " + err.Error()})
	}
}
