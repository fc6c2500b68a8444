package lottery

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/SlpAus/pyramid-lottery-backend/internal/campaign"
	"github.com/gin-gonic/gin"
)

func parseCampaignID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的活动ID"})
		return 0, false
	}
	return uint(id), true
}

// DrawHandler 处理手动开奖请求。
// 重复调用会拿到同一份结果；并发调用只有一个能执行，其余收到409。
func DrawHandler(c *gin.Context) {
	campaignID, ok := parseCampaignID(c)
	if !ok {
		return
	}

	results, err := defaultEngine.DrawLottery(campaignID)
	if err != nil {
		switch {
		case errors.Is(err, campaign.ErrCampaignNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, ErrNotReady):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, ErrDrawInProgress):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "开奖失败: " + err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}

// ResultsHandler 返回已开奖活动的结果集。
func ResultsHandler(c *gin.Context) {
	campaignID, ok := parseCampaignID(c)
	if !ok {
		return
	}

	results, err := GetResults(campaignID)
	if err != nil {
		switch {
		case errors.Is(err, campaign.ErrCampaignNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, ErrNotReady):
			c.JSON(http.StatusNotFound, gin.H{"error": "活动尚未开奖"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "查询开奖结果失败: " + err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}

// PrizeTierRequestBody 定义了配置奖级时请求体的JSON结构。
type PrizeTierRequestBody struct {
	Tiers []struct {
		Rank     int    `json:"rank" binding:"required"`
		Title    string `json:"title"`
		Quantity int    `json:"quantity" binding:"required"`
	} `json:"tiers"`
}

// SetPrizeTiersHandler 整体替换活动的奖级配置，仅开奖前可用。
func SetPrizeTiersHandler(c *gin.Context) {
	campaignID, ok := parseCampaignID(c)
	if !ok {
		return
	}

	var body PrizeTierRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}

	tiers := make([]PrizeTier, 0, len(body.Tiers))
	seen := make(map[int]bool)
	for _, t := range body.Tiers {
		if t.Rank <= 0 || t.Quantity <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "奖级和名额必须为正数"})
			return
		}
		if seen[t.Rank] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "奖级不能重复"})
			return
		}
		seen[t.Rank] = true
		tiers = append(tiers, PrizeTier{Rank: t.Rank, Title: t.Title, Quantity: t.Quantity})
	}

	if err := ReplacePrizeTiers(campaignID, tiers); err != nil {
		switch {
		case errors.Is(err, campaign.ErrCampaignNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, campaign.ErrInvalidTransition):
			c.JSON(http.StatusConflict, gin.H{"error": "已开奖的活动不能修改奖级"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "配置奖级失败: " + err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "奖级配置已更新"})
}
