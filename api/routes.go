package api

import (
	"github.com/SlpAus/pyramid-lottery-backend/internal/campaign"
	"github.com/SlpAus/pyramid-lottery-backend/internal/lottery"
	"github.com/SlpAus/pyramid-lottery-backend/internal/purchase"
	"github.com/SlpAus/pyramid-lottery-backend/internal/user"
	"github.com/gin-gonic/gin"
)

// SetupRoutes 注册项目的所有API路由
func SetupRoutes(router *gin.Engine) {
	api := router.Group("/api")
	{
		// 活动相关的路由组 /api/campaigns
		campaignRoutes := api.Group("/campaigns")
		{
			campaignRoutes.POST("", campaign.CreateCampaignHandler)
			campaignRoutes.GET("/:id", campaign.GetCampaignHandler)
			campaignRoutes.GET("/:id/positions", campaign.GetPositionsHandler)
			campaignRoutes.POST("/:id/publish", campaign.PublishCampaignHandler)
			campaignRoutes.POST("/:id/close", campaign.CloseCampaignHandler)

			// 预订需要买家身份，没有cookie时现场分发一个
			campaignRoutes.POST("/:id/reserve", user.EnsureUserCookieMiddleware(), purchase.ReserveHandler)

			// 开奖相关
			campaignRoutes.POST("/:id/prizes", lottery.SetPrizeTiersHandler)
			campaignRoutes.POST("/:id/draw", lottery.DrawHandler)
			campaignRoutes.GET("/:id/results", lottery.ResultsHandler)
		}

		// 认购相关的路由组 /api/purchases
		purchaseRoutes := api.Group("/purchases")
		{
			purchaseRoutes.POST("/:id/cancel", user.LoadUserMiddleware(), purchase.CancelHandler)
		}

		// 买家视角的路由组 /api/users
		api.GET("/users/me/purchases", user.LoadUserMiddleware(), purchase.ListMineHandler)

		// 支付网关异步回调，身份由HMAC签名证明，不走cookie
		api.POST("/webhooks/payment", purchase.WebhookHandler)
	}
}
