package match

import (
	"net/http"
	"time"

	"github.com/SlpAus/warcry-match-backend/internal/user"
	"github.com/gin-gonic/gin"
)

// 玩家自建（listen）匹配的控制器函数。
// 生命周期语义与池化匹配完全一致，区别只在创建参数和家族校验。

// CreateListenMatchHandler 创建一场玩家自建匹配
func CreateListenMatchHandler(c *gin.Context) {
	var req CreateListenMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "请求体不合法"})
		return
	}

	detail, err := CreateListenMatch(user.CurrentUserID(c), CreateMatchInput{
		Title:     req.Title,
		IsPrivate: req.IsPrivate,
		Password:  req.Password,
	}, req.HostIP, req.HostPort, time.Now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "匹配创建成功", "match": detail})
}

// ListListenMatchesHandler 列出玩家自建匹配
func ListListenMatchesHandler(c *gin.Context) {
	listMatches(c, true)
}

// GetListenMatchDetailHandler 查询单场自建匹配的详情
func GetListenMatchDetailHandler(c *gin.Context) {
	matchID, ok := parseMatchIDParam(c)
	if !ok {
		return
	}
	detail, err := GetMatchDetail(matchID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !detail.IsListenServer {
		respondError(c, ErrNotListenMatch)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "match": detail})
}

// JoinListenMatchHandler 加入一场自建匹配
func JoinListenMatchHandler(c *gin.Context) {
	joinMatch(c, true)
}

// LeaveListenMatchHandler 访客离开自建匹配
func LeaveListenMatchHandler(c *gin.Context) {
	leaveMatch(c, true)
}

// HostLeaveListenMatchHandler 房主退出自建匹配
func HostLeaveListenMatchHandler(c *gin.Context) {
	hostLeaveMatch(c, true)
}

// SaveListenResultHandler 提交自建匹配的结果
func SaveListenResultHandler(c *gin.Context) {
	saveResult(c, true)
}
