package rating

import (
	"errors"
	"fmt"
	"time"

	"github.com/SlpAus/warcry-match-backend/internal/platform/database"
	"github.com/SlpAus/warcry-match-backend/internal/user"
	"gorm.io/gorm"
)

// ErrRatingNotFound 表示该玩家还没有积分记录
var ErrRatingNotFound = errors.New("该玩家还没有排位数据")

// ErrInvalidDateRange 表示日期参数不是合法的YYYYMMDD格式或区间颠倒
var ErrInvalidDateRange = errors.New("日期参数不合法")

// PlayerRankDTO 是玩家排名查询的响应结构
type PlayerRankDTO struct {
	UserID      uint    `json:"userId"`
	Username    string  `json:"username"`
	Nickname    string  `json:"nickname"`
	Points      int     `json:"points"`
	Tier        int     `json:"tier"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	WinRate     float64 `json:"winRate"`
	GlobalRank  int64   `json:"globalRank"`
	TierRank    int64   `json:"tierRank"`
	IsPlacement bool    `json:"isPlacement"`
	WinStreak   int     `json:"winStreak"`
}

// LeaderboardEntryDTO 是排行榜中的一行
type LeaderboardEntryDTO struct {
	Rank     int64   `json:"rank"`
	UserID   uint    `json:"userId"`
	Nickname string  `json:"nickname"`
	Points   int     `json:"points"`
	Tier     int     `json:"tier"`
	Wins     int     `json:"wins"`
	Losses   int     `json:"losses"`
	WinRate  float64 `json:"winRate"`
}

// LeaderboardPageDTO 是排行榜分页查询的响应结构
type LeaderboardPageDTO struct {
	Entries []LeaderboardEntryDTO `json:"entries"`
	Page    int                   `json:"page"`
	Size    int                   `json:"size"`
	Total   int64                 `json:"total"`
	HasNext bool                  `json:"hasNext"`
}

// MatchHistoryEntryDTO 是积分历史查询中的一行
type MatchHistoryEntryDTO struct {
	MatchID          uint      `json:"matchId"`
	OpponentID       uint      `json:"opponentId"`
	OpponentNickname string    `json:"opponentNickname"`
	Winner           bool      `json:"winner"`
	PointBefore      int       `json:"pointBefore"`
	PointAfter       int       `json:"pointAfter"`
	PointChange      int       `json:"pointChange"`
	TierBefore       int       `json:"tierBefore"`
	TierAfter        int       `json:"tierAfter"`
	ChangeTime       time.Time `json:"changeTime"`
}

// DailyStatsDTO 是玩家每日统计查询中的一行
type DailyStatsDTO struct {
	Date         string `json:"date"`
	HighestPoint int    `json:"highestPoint"`
	MatchCount   int    `json:"matchCount"`
	WinCount     int    `json:"winCount"`
	LoseCount    int    `json:"loseCount"`
}

// DailyRankStatsDTO 是单日全服排位概况的响应结构
type DailyRankStatsDTO struct {
	Date              string  `json:"date"`
	ActivePlayers     int64   `json:"activePlayers"`
	TotalMatches      int64   `json:"totalMatches"`
	AverageMatchCount float64 `json:"averageMatchCount"`
	TopPlayerID       uint    `json:"topPlayerId,omitempty"`
	TopPlayerNickname string  `json:"topPlayerNickname,omitempty"`
	TopPlayerPoint    int     `json:"topPlayerPoint,omitempty"`
}

// TierDistributionDTO 是段位分布查询的响应结构
type TierDistributionDTO struct {
	Total int64            `json:"total"`
	Tiers map[string]int64 `json:"tiers"`
}

// GetPlayerRank 查询一名玩家的完整排名信息。
// 排名计数优先走Redis缓存，缓存不可用时回退到SQLite的等价计数。
func GetPlayerRank(userID uint) (*PlayerRankDTO, error) {
	u, err := user.GetByID(userID)
	if err != nil {
		return nil, err
	}

	var r Rating
	if err := database.DB.Where("user_id = ?", userID).First(&r).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRatingNotFound
		}
		return nil, fmt.Errorf("查询积分记录失败: %w", err)
	}

	globalRank, ok := globalRankFromCache(r.Point)
	if !ok {
		globalRank, err = globalRankFromDB(r.Point)
		if err != nil {
			return nil, err
		}
	}

	tierRank, ok := tierRankFromCache(r.Point, r.Tier)
	if !ok {
		tierRank, err = tierRankFromDB(r.Point, r.Tier)
		if err != nil {
			return nil, err
		}
	}

	return &PlayerRankDTO{
		UserID:      u.ID,
		Username:    u.Username,
		Nickname:    u.Nickname,
		Points:      r.Point,
		Tier:        r.Tier,
		Wins:        r.Wins,
		Losses:      r.Losses,
		WinRate:     r.WinRate(),
		GlobalRank:  globalRank,
		TierRank:    tierRank,
		IsPlacement: !r.PlacementDone,
		WinStreak:   r.WinStreak,
	}, nil
}

// globalRankFromDB 是排名计数的SQLite回退路径：严格高于该积分的玩家数+1
func globalRankFromDB(point int) (int64, error) {
	var higher int64
	if err := database.DB.Model(&Rating{}).Where("point > ?", point).Count(&higher).Error; err != nil {
		return 0, fmt.Errorf("统计全球排名失败: %w", err)
	}
	return higher + 1, nil
}

// tierRankFromDB 是段位内排名计数的SQLite回退路径
func tierRankFromDB(point, tier int) (int64, error) {
	var higher int64
	if err := database.DB.Model(&Rating{}).
		Where("tier = ? AND point > ?", tier, point).
		Count(&higher).Error; err != nil {
		return 0, fmt.Errorf("统计段位排名失败: %w", err)
	}
	return higher + 1, nil
}

// GetLeaderboard 分页查询排行榜，可按段位过滤。
// 排序以SQLite为权威：积分降序，同分按用户ID升序保证分页稳定。
func GetLeaderboard(tier *int, page, size int) (*LeaderboardPageDTO, error) {
	if page < 0 {
		page = 0
	}
	if size <= 0 || size > 100 {
		size = 20
	}

	countQuery := database.DB.Model(&Rating{})
	pageQuery := database.DB.Model(&Rating{})
	if tier != nil {
		countQuery = countQuery.Where("tier = ?", *tier)
		pageQuery = pageQuery.Where("tier = ?", *tier)
	}

	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("统计排行榜总数失败: %w", err)
	}

	var ratings []Rating
	if err := pageQuery.
		Order("point DESC, user_id ASC").
		Offset(page * size).
		Limit(size).
		Find(&ratings).Error; err != nil {
		return nil, fmt.Errorf("查询排行榜失败: %w", err)
	}

	entries := make([]LeaderboardEntryDTO, 0, len(ratings))
	for i, r := range ratings {
		entries = append(entries, LeaderboardEntryDTO{
			Rank:     int64(page*size + i + 1),
			UserID:   r.UserID,
			Nickname: user.NicknameByID(r.UserID),
			Points:   r.Point,
			Tier:     r.Tier,
			Wins:     r.Wins,
			Losses:   r.Losses,
			WinRate:  r.WinRate(),
		})
	}

	return &LeaderboardPageDTO{
		Entries: entries,
		Page:    page,
		Size:    size,
		Total:   total,
		HasNext: int64((page+1)*size) < total,
	}, nil
}

// GetMatchHistory 分页查询一名玩家的积分变动历史，按时间倒序。
// 对手信息从同一场匹配的另一条参与记录中解析。
func GetMatchHistory(userID uint, page, size int) ([]MatchHistoryEntryDTO, error) {
	if _, err := user.GetByID(userID); err != nil {
		return nil, err
	}
	if page < 0 {
		page = 0
	}
	if size <= 0 || size > 100 {
		size = 20
	}

	var histories []RatingHistory
	if err := database.DB.
		Where("user_id = ?", userID).
		Order("change_time DESC, id DESC").
		Offset(page * size).
		Limit(size).
		Find(&histories).Error; err != nil {
		return nil, fmt.Errorf("查询积分历史失败: %w", err)
	}

	entries := make([]MatchHistoryEntryDTO, 0, len(histories))
	for _, h := range histories {
		entry := MatchHistoryEntryDTO{
			MatchID:     h.MatchID,
			Winner:      h.Winner,
			PointBefore: h.PointBefore,
			PointAfter:  h.PointAfter,
			PointChange: h.PointChange,
			TierBefore:  h.TierBefore,
			TierAfter:   h.TierAfter,
			ChangeTime:  h.ChangeTime,
		}
		if opponentID, ok := opponentInMatch(h.MatchID, userID); ok {
			entry.OpponentID = opponentID
			entry.OpponentNickname = user.NicknameByID(opponentID)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// opponentInMatch 查找一场匹配中除本人以外的另一名参与者。
// 直接按表名查询参与记录，避免依赖match包的模型定义。
func opponentInMatch(matchID, userID uint) (uint, bool) {
	var opponentID uint
	err := database.DB.Table("match_users").
		Select("user_id").
		Where("match_id = ? AND user_id <> ?", matchID, userID).
		Limit(1).
		Scan(&opponentID).Error
	if err != nil || opponentID == 0 {
		return 0, false
	}
	return opponentID, true
}

// GetUserDailyStats 查询一名玩家在日期区间内的每日统计。
// 日期为YYYYMMDD格式的闭区间，按日期升序返回。
func GetUserDailyStats(userID uint, startDate, endDate string) ([]DailyStatsDTO, error) {
	if _, err := user.GetByID(userID); err != nil {
		return nil, err
	}
	if err := validateDateRange(startDate, endDate); err != nil {
		return nil, err
	}

	var rows []DailyStats
	if err := database.DB.
		Where("user_id = ? AND date >= ? AND date <= ?", userID, startDate, endDate).
		Order("date ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("查询每日统计失败: %w", err)
	}

	result := make([]DailyStatsDTO, 0, len(rows))
	for _, row := range rows {
		result = append(result, DailyStatsDTO{
			Date:         row.Date,
			HighestPoint: row.HighestPoint,
			MatchCount:   row.MatchCount,
			WinCount:     row.WinCount,
			LoseCount:    row.LoseCount,
		})
	}
	return result, nil
}

// validateDateRange 校验YYYYMMDD日期区间：两端都必须合法且起始不晚于结束
func validateDateRange(startDate, endDate string) error {
	start, err := time.Parse(DateLayout, startDate)
	if err != nil {
		return ErrInvalidDateRange
	}
	end, err := time.Parse(DateLayout, endDate)
	if err != nil {
		return ErrInvalidDateRange
	}
	if start.After(end) {
		return ErrInvalidDateRange
	}
	return nil
}

// GetDailyRankStats 汇总单日的全服排位概况：
// 活跃玩家数、总场次、人均场次，以及当天最高积分的玩家。
func GetDailyRankStats(date string) (*DailyRankStatsDTO, error) {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return nil, ErrInvalidDateRange
	}

	var activePlayers int64
	if err := database.DB.Model(&DailyStats{}).
		Where("date = ?", date).
		Count(&activePlayers).Error; err != nil {
		return nil, fmt.Errorf("统计活跃玩家失败: %w", err)
	}

	stats := &DailyRankStatsDTO{Date: date, ActivePlayers: activePlayers}
	if activePlayers == 0 {
		return stats, nil
	}

	var totalMatches int64
	row := database.DB.Model(&DailyStats{}).
		Where("date = ?", date).
		Select("COALESCE(SUM(match_count), 0)").
		Row()
	if err := row.Scan(&totalMatches); err != nil {
		return nil, fmt.Errorf("统计总场次失败: %w", err)
	}
	stats.TotalMatches = totalMatches
	stats.AverageMatchCount = float64(totalMatches) / float64(activePlayers)

	var top DailyStats
	err := database.DB.
		Where("date = ?", date).
		Order("highest_point DESC, user_id ASC").
		First(&top).Error
	if err == nil {
		stats.TopPlayerID = top.UserID
		stats.TopPlayerNickname = user.NicknameByID(top.UserID)
		stats.TopPlayerPoint = top.HighestPoint
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("查询当日最高积分玩家失败: %w", err)
	}

	return stats, nil
}

// GetTierDistribution 统计各段位的玩家数量，优先走Redis缓存。
func GetTierDistribution() (*TierDistributionDTO, error) {
	counts, ok := tierCountsFromCache()
	if !ok {
		var err error
		counts, err = tierCountsFromDB()
		if err != nil {
			return nil, err
		}
	}

	dist := &TierDistributionDTO{Tiers: make(map[string]int64, 4)}
	for i, count := range counts {
		dist.Tiers[fmt.Sprintf("tier%d", i+1)] = count
		dist.Total += count
	}
	return dist, nil
}

// tierCountsFromDB 是段位分布统计的SQLite回退路径
func tierCountsFromDB() ([4]int64, error) {
	var counts [4]int64
	for tier := 1; tier <= 4; tier++ {
		if err := database.DB.Model(&Rating{}).
			Where("tier = ?", tier).
			Count(&counts[tier-1]).Error; err != nil {
			return counts, fmt.Errorf("统计段位 %d 玩家数失败: %w", tier, err)
		}
	}
	return counts, nil
}
