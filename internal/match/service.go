package match

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/SlpAus/warcry-match-backend/internal/gameserver"
	"github.com/SlpAus/warcry-match-backend/internal/platform/database"
	"github.com/SlpAus/warcry-match-backend/internal/rating"
	"github.com/SlpAus/warcry-match-backend/internal/user"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// maxParticipants 是一场匹配允许的参与者上限
const maxParticipants = 2

// HostLeaveOutcome 描述房主退出的处理结果
type HostLeaveOutcome string

const (
	// OutcomeTransferred 表示房主身份已转移给最早加入的访客
	OutcomeTransferred HostLeaveOutcome = "TRANSFERRED"
	// OutcomeDisbanded 表示匹配已解散，相关资源已释放
	OutcomeDisbanded HostLeaveOutcome = "DISBANDED"
)

// CreateMatchInput 是创建匹配的输入参数
type CreateMatchInput struct {
	Title     string
	IsPrivate bool
	Password  string
}

// ScoreboardEntry 是结果提交中按角色记录的单条比分
type ScoreboardEntry struct {
	Role   Role   `json:"role"`
	Result Result `json:"result"`
}

// ParticipantDTO 是匹配详情中的一名参与者
type ParticipantDTO struct {
	UserID   uint      `json:"userId"`
	Nickname string    `json:"nickname"`
	Role     Role      `json:"role"`
	Result   Result    `json:"result"`
	JoinedAt time.Time `json:"joinedAt"`
}

// MatchSummaryDTO 是匹配列表中的一行
type MatchSummaryDTO struct {
	ID               uint      `json:"id"`
	Title            string    `json:"title"`
	IsPrivate        bool      `json:"isPrivate"`
	IsListenServer   bool      `json:"isListenServer"`
	Status           Status    `json:"status"`
	ParticipantCount int       `json:"participantCount"`
	CreatedAt        time.Time `json:"createdAt"`
}

// MatchDetailDTO 是单场匹配的完整视图。
// 服务器地址按匹配家族取自池化服务器或listen主机。
type MatchDetailDTO struct {
	ID             uint             `json:"id"`
	Title          string           `json:"title"`
	IsPrivate      bool             `json:"isPrivate"`
	IsListenServer bool             `json:"isListenServer"`
	Status         Status           `json:"status"`
	ServerIP       string           `json:"serverIp,omitempty"`
	ServerPort     *int             `json:"serverPort,omitempty"`
	StartTime      *time.Time       `json:"startTime,omitempty"`
	EndTime        *time.Time       `json:"endTime,omitempty"`
	Participants   []ParticipantDTO `json:"participants"`
	CreatedAt      time.Time        `json:"createdAt"`
}

// validateCreateInput 校验创建匹配的公共字段
func validateCreateInput(input CreateMatchInput) error {
	if strings.TrimSpace(input.Title) == "" {
		return ErrMissingFields
	}
	if input.IsPrivate && input.Password == "" {
		return ErrMissingFields
	}
	return nil
}

// CreateServerMatch 创建一场池化服务器匹配。
// 在同一事务中分配编号最小的空闲服务器并登记创建者为房主；
// 没有空闲服务器时整个创建失败。
func CreateServerMatch(userID uint, input CreateMatchInput, now time.Time) (*MatchDetailDTO, error) {
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	var created Match
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		server, err := gameserver.AcquireFirstAvailableTx(tx, now)
		if err != nil {
			return err
		}

		created = Match{
			Title:        input.Title,
			IsPrivate:    input.IsPrivate,
			Password:     input.Password,
			GameServerID: &server.ID,
		}
		if err := tx.Create(&created).Error; err != nil {
			return fmt.Errorf("无法创建匹配: %w", err)
		}

		host := MatchUser{MatchID: created.ID, UserID: userID, Role: RoleHost, Result: ResultNone}
		if err := tx.Create(&host).Error; err != nil {
			return fmt.Errorf("无法登记房主: %w", err)
		}

		return rating.InitializeUserRating(tx, userID)
	})
	if err != nil {
		return nil, err
	}

	return GetMatchDetail(created.ID)
}

// CreateListenMatch 创建一场玩家自建匹配。
// 同一主机地址只允许存在一场未结束的匹配。
func CreateListenMatch(userID uint, input CreateMatchInput, hostIP string, hostPort int, now time.Time) (*MatchDetailDTO, error) {
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}
	if strings.TrimSpace(hostIP) == "" || hostPort <= 0 || hostPort > 65535 {
		return nil, ErrMissingFields
	}

	var created Match
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&Match{}).
			Where("host_ip = ? AND host_port = ? AND end_time IS NULL", hostIP, hostPort).
			Count(&existing).Error; err != nil {
			return fmt.Errorf("检查主机地址失败: %w", err)
		}
		if existing > 0 {
			return ErrDuplicateEndpoint
		}

		created = Match{
			Title:     input.Title,
			IsPrivate: input.IsPrivate,
			Password:  input.Password,
			HostIP:    hostIP,
			HostPort:  &hostPort,
		}
		if err := tx.Create(&created).Error; err != nil {
			return fmt.Errorf("无法创建匹配: %w", err)
		}

		host := MatchUser{MatchID: created.ID, UserID: userID, Role: RoleHost, Result: ResultNone}
		if err := tx.Create(&host).Error; err != nil {
			return fmt.Errorf("无法登记房主: %w", err)
		}

		return rating.InitializeUserRating(tx, userID)
	})
	if err != nil {
		return nil, err
	}

	return GetMatchDetail(created.ID)
}

// GetMatches 按家族列出匹配，可按私密标记和派生状态过滤。
// 状态虽然是派生值，但它的定义可以直接翻译成时间戳条件，
// 过滤和limit都下推到SQL完成。
func GetMatches(listenOnly bool, isPrivate *bool, status string, limit int) ([]MatchSummaryDTO, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := database.DB.Model(&Match{}).Order("id DESC").Limit(limit)
	if listenOnly {
		query = query.Where("host_ip <> ''")
	} else {
		query = query.Where("host_ip = ''")
	}
	if isPrivate != nil {
		query = query.Where("is_private = ?", *isPrivate)
	}
	switch Status(status) {
	case StatusWaiting:
		query = query.Where("start_time IS NULL AND end_time IS NULL")
	case StatusPlaying:
		query = query.Where("start_time IS NOT NULL AND end_time IS NULL")
	case StatusEnded:
		query = query.Where("end_time IS NOT NULL")
	default:
		if status != "" {
			return []MatchSummaryDTO{}, nil
		}
	}

	var matches []Match
	if err := query.Find(&matches).Error; err != nil {
		return nil, fmt.Errorf("查询匹配列表失败: %w", err)
	}
	if len(matches) == 0 {
		return []MatchSummaryDTO{}, nil
	}

	// 一次性统计所有命中匹配的参与者数量
	matchIDs := make([]uint, 0, len(matches))
	for _, m := range matches {
		matchIDs = append(matchIDs, m.ID)
	}
	var rows []struct {
		MatchID uint
		Total   int64
	}
	if err := database.DB.Model(&MatchUser{}).
		Select("match_id, COUNT(*) AS total").
		Where("match_id IN ?", matchIDs).
		Group("match_id").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("统计参与者失败: %w", err)
	}
	counts := make(map[uint]int64, len(rows))
	for _, row := range rows {
		counts[row.MatchID] = row.Total
	}

	summaries := make([]MatchSummaryDTO, 0, len(matches))
	for _, m := range matches {
		summaries = append(summaries, MatchSummaryDTO{
			ID:               m.ID,
			Title:            m.Title,
			IsPrivate:        m.IsPrivate,
			IsListenServer:   m.IsListenServer(),
			Status:           m.Status(),
			ParticipantCount: int(counts[m.ID]),
			CreatedAt:        m.CreatedAt,
		})
	}
	return summaries, nil
}

// GetMatchDetail 查询单场匹配的完整信息，包含参与者名单和服务器地址
func GetMatchDetail(matchID uint) (*MatchDetailDTO, error) {
	var m Match
	if err := database.DB.First(&m, matchID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("查询匹配失败: %w", err)
	}

	var participants []MatchUser
	if err := database.DB.
		Where("match_id = ?", m.ID).
		Order("id ASC").
		Find(&participants).Error; err != nil {
		return nil, fmt.Errorf("查询参与者失败: %w", err)
	}

	detail := &MatchDetailDTO{
		ID:             m.ID,
		Title:          m.Title,
		IsPrivate:      m.IsPrivate,
		IsListenServer: m.IsListenServer(),
		Status:         m.Status(),
		StartTime:      m.StartTime,
		EndTime:        m.EndTime,
		CreatedAt:      m.CreatedAt,
		Participants:   make([]ParticipantDTO, 0, len(participants)),
	}

	if m.IsListenServer() {
		detail.ServerIP = m.HostIP
		detail.ServerPort = m.HostPort
	} else if m.GameServerID != nil {
		if server, err := gameserver.GetByID(database.DB, *m.GameServerID); err == nil {
			detail.ServerIP = server.ServerIP
			port := server.ServerPort
			detail.ServerPort = &port
		}
	}

	for _, p := range participants {
		detail.Participants = append(detail.Participants, ParticipantDTO{
			UserID:   p.UserID,
			Nickname: user.NicknameByID(p.UserID),
			Role:     p.Role,
			Result:   p.Result,
			JoinedAt: p.CreatedAt,
		})
	}
	return detail, nil
}

// lockMatchTx 在事务中按主键锁定匹配行。
// 所有对同一场匹配的变更操作都经过这把行级锁串行化。
func lockMatchTx(tx *gorm.DB, matchID uint, requireListen bool) (*Match, error) {
	var m Match
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&m, matchID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("锁定匹配失败: %w", err)
	}
	if requireListen && !m.IsListenServer() {
		return nil, ErrNotListenMatch
	}
	return &m, nil
}

// JoinMatch 将用户加入一场匹配。
// 常规路径分配GUEST角色；匹配当前没有房主时（listen匹配的房主恢复路径），
// 加入者直接成为新房主。
func JoinMatch(matchID, userID uint, password string, requireListen bool) (*MatchDetailDTO, error) {
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		m, err := lockMatchTx(tx, matchID, requireListen)
		if err != nil {
			return err
		}

		var participants []MatchUser
		if err := tx.Where("match_id = ?", m.ID).Order("id ASC").Find(&participants).Error; err != nil {
			return fmt.Errorf("查询参与者失败: %w", err)
		}

		hasHost := false
		for _, p := range participants {
			if p.UserID == userID {
				return ErrAlreadyJoined
			}
			if p.Role == RoleHost {
				hasHost = true
			}
		}
		if len(participants) >= maxParticipants {
			return ErrMatchFull
		}
		if m.IsPrivate && m.Password != password {
			return ErrWrongPassword
		}

		role := RoleGuest
		if !hasHost {
			role = RoleHost
		}
		joined := MatchUser{MatchID: m.ID, UserID: userID, Role: role, Result: ResultNone}
		if err := tx.Create(&joined).Error; err != nil {
			return fmt.Errorf("无法登记参与者: %w", err)
		}

		return rating.InitializeUserRating(tx, userID)
	})
	if err != nil {
		return nil, err
	}

	return GetMatchDetail(matchID)
}

// LeaveMatch 让访客离开一场尚未开始的匹配。房主必须走房主退出接口。
func LeaveMatch(matchID, userID uint, requireListen bool) error {
	return database.DB.Transaction(func(tx *gorm.DB) error {
		m, err := lockMatchTx(tx, matchID, requireListen)
		if err != nil {
			return err
		}

		var p MatchUser
		err = tx.Where("match_id = ? AND user_id = ?", m.ID, userID).First(&p).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotParticipant
		}
		if err != nil {
			return fmt.Errorf("查询参与记录失败: %w", err)
		}
		if m.Started() {
			return ErrAlreadyStarted
		}
		if p.Role == RoleHost {
			return ErrMustUseHostLeave
		}

		if err := tx.Unscoped().Delete(&p).Error; err != nil {
			return fmt.Errorf("无法删除参与记录: %w", err)
		}
		return nil
	})
}

// HostLeaveMatch 处理房主退出：
// 有访客时把最早加入的访客提升为新房主；没有访客时解散匹配，
// 删除全部参与记录并归还池化服务器。
func HostLeaveMatch(matchID, userID uint, requireListen bool, now time.Time) (HostLeaveOutcome, error) {
	var outcome HostLeaveOutcome
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		m, err := lockMatchTx(tx, matchID, requireListen)
		if err != nil {
			return err
		}

		var caller MatchUser
		err = tx.Where("match_id = ? AND user_id = ?", m.ID, userID).First(&caller).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotParticipant
		}
		if err != nil {
			return fmt.Errorf("查询参与记录失败: %w", err)
		}
		if m.Started() {
			return ErrAlreadyStarted
		}
		if caller.Role != RoleHost {
			return ErrNotHost
		}

		// 最早加入的访客优先继任房主
		var successor MatchUser
		err = tx.Where("match_id = ? AND role = ?", m.ID, RoleGuest).
			Order("id ASC").
			First(&successor).Error
		if err == nil {
			successor.Role = RoleHost
			if err := tx.Save(&successor).Error; err != nil {
				return fmt.Errorf("无法转移房主: %w", err)
			}
			if err := tx.Unscoped().Delete(&caller).Error; err != nil {
				return fmt.Errorf("无法删除原房主记录: %w", err)
			}
			outcome = OutcomeTransferred
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("查询访客失败: %w", err)
		}

		// 没有访客：解散匹配并释放资源
		if err := tx.Unscoped().Where("match_id = ?", m.ID).Delete(&MatchUser{}).Error; err != nil {
			return fmt.Errorf("无法清理参与记录: %w", err)
		}
		if m.GameServerID != nil {
			if err := gameserver.ReleaseTx(tx, *m.GameServerID, now); err != nil {
				return err
			}
		}
		if err := tx.Unscoped().Delete(m).Error; err != nil {
			return fmt.Errorf("无法删除匹配: %w", err)
		}
		outcome = OutcomeDisbanded
		return nil
	})
	if err != nil {
		return "", err
	}
	return outcome, nil
}

// validateScoreboard 校验比分表：恰好两条、角色互不相同且合法、恰好一胜一负
func validateScoreboard(scoreboard []ScoreboardEntry) error {
	if len(scoreboard) != 2 {
		return ErrInvalidScoreboard
	}
	wins, losses := 0, 0
	seenRoles := make(map[Role]bool, 2)
	for _, entry := range scoreboard {
		if entry.Role != RoleHost && entry.Role != RoleGuest {
			return ErrInvalidScoreboard
		}
		if seenRoles[entry.Role] {
			return ErrInvalidScoreboard
		}
		seenRoles[entry.Role] = true
		switch entry.Result {
		case ResultWin:
			wins++
		case ResultLose:
			losses++
		default:
			return ErrInvalidScoreboard
		}
	}
	if wins != 1 || losses != 1 {
		return ErrInvalidScoreboard
	}
	return nil
}

// SaveResult 记录一场匹配的最终结果并结算积分。
// 整个流程在单个事务中完成：写入参与者胜负、盖上结束时间、
// 归还池化服务器、更新双方积分/历史/每日统计。
// 事务提交后增量刷新排名缓存。
func SaveResult(matchID, callerID uint, scoreboard []ScoreboardEntry, requireListen bool, now time.Time) ([]rating.RatingChangeDTO, error) {
	var changes []rating.RatingChangeDTO
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		m, err := lockMatchTx(tx, matchID, requireListen)
		if err != nil {
			return err
		}

		var participants []MatchUser
		if err := tx.Where("match_id = ?", m.ID).Order("id ASC").Find(&participants).Error; err != nil {
			return fmt.Errorf("查询参与者失败: %w", err)
		}

		isParticipant := false
		for _, p := range participants {
			if p.UserID == callerID {
				isParticipant = true
				break
			}
		}
		if !isParticipant {
			return ErrAccessDenied
		}
		if m.EndTime != nil {
			return ErrAlreadyFinished
		}
		// 比分表校验在存在性、参与者和重复提交检查之后
		if err := validateScoreboard(scoreboard); err != nil {
			return err
		}
		if len(participants) != maxParticipants {
			return ErrInvalidScoreboard
		}

		byRole := make(map[Role]*MatchUser, maxParticipants)
		for i := range participants {
			byRole[participants[i].Role] = &participants[i]
		}

		var winnerIDs, loserIDs []uint
		for _, entry := range scoreboard {
			p, ok := byRole[entry.Role]
			if !ok {
				return ErrInvalidScoreboard
			}
			p.Result = entry.Result
			if err := tx.Model(&MatchUser{}).
				Where("id = ?", p.ID).
				Update("result", entry.Result).Error; err != nil {
				return fmt.Errorf("无法写入参与者结果: %w", err)
			}
			if entry.Result == ResultWin {
				winnerIDs = append(winnerIDs, p.UserID)
			} else {
				loserIDs = append(loserIDs, p.UserID)
			}
		}

		if err := tx.Model(&Match{}).
			Where("id = ?", m.ID).
			Update("end_time", now).Error; err != nil {
			return fmt.Errorf("无法标记匹配结束: %w", err)
		}

		if m.GameServerID != nil {
			if err := gameserver.ReleaseTx(tx, *m.GameServerID, now); err != nil {
				return err
			}
		}

		changes, err = rating.ApplyMatchResultTx(tx, m.ID, winnerIDs, loserIDs, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	rating.RefreshRankingCache(changes)
	return changes, nil
}
