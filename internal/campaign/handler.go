package campaign

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// CreateRequestBody 定义了创建活动时请求体的JSON结构
type CreateRequestBody struct {
	Title        string  `json:"title" binding:"required"`
	BaseLength   int     `json:"base_length" binding:"required"`
	LayerPrices  []int64 `json:"layer_prices" binding:"required"`
	AutoDraw     bool    `json:"auto_draw"`
	PerUserLimit int     `json:"per_user_limit"`
	// EndTime 使用RFC3339格式，可省略
	EndTime *time.Time `json:"end_time"`
}

// parseCampaignID 从URL参数中解析活动ID
func parseCampaignID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的活动ID"})
		return 0, false
	}
	return uint(id), true
}

// CreateCampaignHandler 处理创建活动的请求
func CreateCampaignHandler(c *gin.Context) {
	var body CreateRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}

	created, err := CreateCampaign(CreateParams{
		Title:        body.Title,
		BaseLength:   body.BaseLength,
		LayerPrices:  body.LayerPrices,
		AutoDraw:     body.AutoDraw,
		PerUserLimit: body.PerUserLimit,
		EndTime:      body.EndTime,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidBaseLength),
			errors.Is(err, ErrLayerPriceTooLow),
			errors.Is(err, ErrLayerPriceCount):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "创建活动失败: " + err.Error()})
		}
		return
	}

	c.JSON(http.StatusCreated, created)
}

// PublishCampaignHandler 把草稿活动发布为可售状态
func PublishCampaignHandler(c *gin.Context) {
	id, ok := parseCampaignID(c)
	if !ok {
		return
	}
	updated, err := PublishCampaign(id)
	if err != nil {
		respondTransitionError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// CloseCampaignHandler 关闭在售活动
func CloseCampaignHandler(c *gin.Context) {
	id, ok := parseCampaignID(c)
	if !ok {
		return
	}
	updated, err := CloseCampaign(id)
	if err != nil {
		respondTransitionError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// GetCampaignHandler 返回单个活动的详情
func GetCampaignHandler(c *gin.Context) {
	id, ok := parseCampaignID(c)
	if !ok {
		return
	}
	found, err := GetCampaignByID(id)
	if err != nil {
		respondTransitionError(c, err)
		return
	}
	c.JSON(http.StatusOK, found)
}

// GetPositionsHandler 返回活动的全部仓位
func GetPositionsHandler(c *gin.Context) {
	id, ok := parseCampaignID(c)
	if !ok {
		return
	}
	positions, err := GetPositions(id)
	if err != nil {
		respondTransitionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"positions": positions})
}

func respondTransitionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrCampaignNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
