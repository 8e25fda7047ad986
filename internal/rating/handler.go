package rating

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/SlpAus/warcry-match-backend/internal/user"
	"github.com/gin-gonic/gin"
)

// parseUserIDParam 从路径参数中解析用户ID
func parseUserIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("userId"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "用户ID不合法"})
		return 0, false
	}
	return uint(id), true
}

// parsePageQuery 解析分页查询参数，未提供时使用默认值
func parsePageQuery(c *gin.Context) (page, size int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "0"))
	size, _ = strconv.Atoi(c.DefaultQuery("size", "20"))
	return page, size
}

// GetPlayerRankHandler 查询指定玩家的排名信息
func GetPlayerRankHandler(c *gin.Context) {
	userID, ok := parseUserIDParam(c)
	if !ok {
		return
	}

	rank, err := GetPlayerRank(userID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) || errors.Is(err, ErrRatingNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "查询排名信息失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "player": rank})
}

// GetLeaderboardHandler 分页查询排行榜，可选tier过滤
func GetLeaderboardHandler(c *gin.Context) {
	page, size := parsePageQuery(c)

	var tier *int
	if tierStr := c.Query("tier"); tierStr != "" {
		t, err := strconv.Atoi(tierStr)
		if err != nil || t < 1 || t > 4 {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "段位参数必须是1到4之间的整数"})
			return
		}
		tier = &t
	}

	board, err := GetLeaderboard(tier, page, size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "查询排行榜失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "leaderboard": board})
}

// GetMatchHistoryHandler 分页查询指定玩家的积分变动历史
func GetMatchHistoryHandler(c *gin.Context) {
	userID, ok := parseUserIDParam(c)
	if !ok {
		return
	}
	page, size := parsePageQuery(c)

	history, err := GetMatchHistory(userID, page, size)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "查询积分历史失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "history": history})
}

// GetUserDailyStatsHandler 查询指定玩家在日期区间内的每日统计
func GetUserDailyStatsHandler(c *gin.Context) {
	userID, ok := parseUserIDParam(c)
	if !ok {
		return
	}

	startDate := c.Query("startDate")
	endDate := c.Query("endDate")
	if startDate == "" || endDate == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "必须同时提供 startDate 和 endDate"})
		return
	}

	stats, err := GetUserDailyStats(userID, startDate, endDate)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": err.Error()})
		case errors.Is(err, ErrInvalidDateRange):
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "查询每日统计失败"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "dailyStats": stats})
}

// GetDailyRankStatsHandler 查询单日的全服排位概况
func GetDailyRankStatsHandler(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "必须提供 date 参数"})
		return
	}

	stats, err := GetDailyRankStats(date)
	if err != nil {
		if errors.Is(err, ErrInvalidDateRange) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "查询排位概况失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "dailyRankStats": stats})
}

// GetTierDistributionHandler 查询各段位的玩家数量分布
func GetTierDistributionHandler(c *gin.Context) {
	dist, err := GetTierDistribution()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "查询段位分布失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "tiers": dist})
}
