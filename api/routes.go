package api

import (
	"github.com/SlpAus/warcry-match-backend/internal/match"
	"github.com/SlpAus/warcry-match-backend/internal/rating"
	"github.com/SlpAus/warcry-match-backend/internal/user"
	"github.com/gin-gonic/gin"
)

// SetupRoutes 注册项目的所有API路由
func SetupRoutes(router *gin.Engine) {
	api := router.Group("/api")
	{
		// 池化服务器匹配的路由组 /api/match
		matchRoutes := api.Group("/match")
		{
			matchRoutes.GET("", match.ListMatchesHandler)
			matchRoutes.GET("/:id", match.GetMatchDetailHandler)

			authed := matchRoutes.Group("", user.RequireUser())
			{
				authed.POST("", match.CreateMatchHandler)
				authed.POST("/:id/join", match.JoinMatchHandler)
				authed.POST("/:id/leave", match.LeaveMatchHandler)
				authed.POST("/:id/host-leave", match.HostLeaveMatchHandler)
				authed.POST("/:id/result", match.SaveResultHandler)
			}
		}

		// 玩家自建匹配的路由组 /api/listen/match，语义与上面一致
		listenRoutes := api.Group("/listen/match")
		{
			listenRoutes.GET("", match.ListListenMatchesHandler)
			listenRoutes.GET("/:id", match.GetListenMatchDetailHandler)

			authed := listenRoutes.Group("", user.RequireUser())
			{
				authed.POST("", match.CreateListenMatchHandler)
				authed.POST("/:id/join", match.JoinListenMatchHandler)
				authed.POST("/:id/leave", match.LeaveListenMatchHandler)
				authed.POST("/:id/host-leave", match.HostLeaveListenMatchHandler)
				authed.POST("/:id/result", match.SaveListenResultHandler)
			}
		}

		// 排位查询的路由组 /api/rank，全部为只读接口
		rankRoutes := api.Group("/rank")
		{
			rankRoutes.GET("/player/:userId", rating.GetPlayerRankHandler)
			rankRoutes.GET("/leaderboard", rating.GetLeaderboardHandler)
			rankRoutes.GET("/history/:userId", rating.GetMatchHistoryHandler)
			rankRoutes.GET("/daily/:userId", rating.GetUserDailyStatsHandler)
			rankRoutes.GET("/daily-stats", rating.GetDailyRankStatsHandler)
			rankRoutes.GET("/tiers", rating.GetTierDistributionHandler)
		}
	}
}
