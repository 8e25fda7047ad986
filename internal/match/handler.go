package match

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/SlpAus/warcry-match-backend/internal/gameserver"
	"github.com/SlpAus/warcry-match-backend/internal/user"
	"github.com/gin-gonic/gin"
)

// --- API请求模型 ---

type CreateMatchRequest struct {
	Title     string `json:"title" binding:"required"`
	IsPrivate bool   `json:"isPrivate"`
	Password  string `json:"password"`
}

type CreateListenMatchRequest struct {
	Title     string `json:"title" binding:"required"`
	IsPrivate bool   `json:"isPrivate"`
	Password  string `json:"password"`
	HostIP    string `json:"hostIp" binding:"required"`
	HostPort  int    `json:"hostPort" binding:"required"`
}

type JoinMatchRequest struct {
	Password string `json:"password"`
}

type SaveResultRequest struct {
	Scoreboard []ScoreboardEntry `json:"scoreboard" binding:"required"`
}

// respondError 将模块的哨兵错误映射为HTTP状态码
func respondError(c *gin.Context, err error) {
	var status int
	switch {
	case errors.Is(err, ErrMatchNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrMatchFull),
		errors.Is(err, ErrAlreadyJoined),
		errors.Is(err, ErrWrongPassword),
		errors.Is(err, ErrNotParticipant),
		errors.Is(err, ErrMustUseHostLeave),
		errors.Is(err, ErrNotHost),
		errors.Is(err, ErrAlreadyStarted),
		errors.Is(err, ErrAccessDenied):
		status = http.StatusForbidden
	case errors.Is(err, ErrAlreadyFinished),
		errors.Is(err, ErrDuplicateEndpoint):
		status = http.StatusConflict
	case errors.Is(err, ErrInvalidScoreboard),
		errors.Is(err, ErrMissingFields),
		errors.Is(err, ErrNotListenMatch):
		status = http.StatusBadRequest
	case errors.Is(err, gameserver.ErrNoServerAvailable):
		status = http.StatusServiceUnavailable
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "服务器内部错误"})
		return
	}
	c.JSON(status, gin.H{"success": false, "error": err.Error()})
}

// parseMatchIDParam 从路径参数中解析匹配ID
func parseMatchIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "匹配ID不合法"})
		return 0, false
	}
	return uint(id), true
}

// --- 池化服务器匹配的控制器函数 ---

// CreateMatchHandler 创建一场池化服务器匹配
func CreateMatchHandler(c *gin.Context) {
	var req CreateMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "请求体不合法"})
		return
	}

	detail, err := CreateServerMatch(user.CurrentUserID(c), CreateMatchInput{
		Title:     req.Title,
		IsPrivate: req.IsPrivate,
		Password:  req.Password,
	}, time.Now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "匹配创建成功", "match": detail})
}

// ListMatchesHandler 列出池化服务器匹配
func ListMatchesHandler(c *gin.Context) {
	listMatches(c, false)
}

func listMatches(c *gin.Context, listenOnly bool) {
	var isPrivate *bool
	if v := c.Query("isPrivate"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "isPrivate参数不合法"})
			return
		}
		isPrivate = &parsed
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	matches, err := GetMatches(listenOnly, isPrivate, c.Query("status"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "matches": matches})
}

// GetMatchDetailHandler 查询单场匹配的详情
func GetMatchDetailHandler(c *gin.Context) {
	matchID, ok := parseMatchIDParam(c)
	if !ok {
		return
	}
	detail, err := GetMatchDetail(matchID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "match": detail})
}

// JoinMatchHandler 加入一场池化服务器匹配
func JoinMatchHandler(c *gin.Context) {
	joinMatch(c, false)
}

func joinMatch(c *gin.Context, requireListen bool) {
	matchID, ok := parseMatchIDParam(c)
	if !ok {
		return
	}
	var req JoinMatchRequest
	_ = c.ShouldBindJSON(&req) // 请求体可以为空

	detail, err := JoinMatch(matchID, user.CurrentUserID(c), req.Password, requireListen)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "加入匹配成功", "match": detail})
}

// LeaveMatchHandler 访客离开匹配
func LeaveMatchHandler(c *gin.Context) {
	leaveMatch(c, false)
}

func leaveMatch(c *gin.Context, requireListen bool) {
	matchID, ok := parseMatchIDParam(c)
	if !ok {
		return
	}
	if err := LeaveMatch(matchID, user.CurrentUserID(c), requireListen); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "已离开匹配"})
}

// HostLeaveMatchHandler 房主退出匹配
func HostLeaveMatchHandler(c *gin.Context) {
	hostLeaveMatch(c, false)
}

func hostLeaveMatch(c *gin.Context, requireListen bool) {
	matchID, ok := parseMatchIDParam(c)
	if !ok {
		return
	}
	outcome, err := HostLeaveMatch(matchID, user.CurrentUserID(c), requireListen, time.Now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "房主退出处理完成", "outcome": outcome})
}

// SaveResultHandler 提交匹配结果并返回双方的积分变化
func SaveResultHandler(c *gin.Context) {
	saveResult(c, false)
}

func saveResult(c *gin.Context, requireListen bool) {
	matchID, ok := parseMatchIDParam(c)
	if !ok {
		return
	}
	var req SaveResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "请求体不合法"})
		return
	}

	changes, err := SaveResult(matchID, user.CurrentUserID(c), req.Scoreboard, requireListen, time.Now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "结果记录成功", "ratingChanges": changes})
}
