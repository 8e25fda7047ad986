package match

import (
	"time"

	"gorm.io/gorm"
)

// --- 匹配状态 ---

// Status 是匹配的派生状态。它从不直接存储，
// 始终由开始时间和结束时间计算得出。
type Status string

const (
	StatusWaiting Status = "WAITING"
	StatusPlaying Status = "PLAYING"
	StatusEnded   Status = "ENDED"
)

// --- 参与者角色与结果 ---

type Role string

const (
	RoleHost  Role = "HOST"
	RoleGuest Role = "GUEST"
)

type Result string

const (
	ResultWin  Result = "WIN"
	ResultLose Result = "LOSE"
	ResultNone Result = "NONE"
)

// Match 定义了一局游戏会话的持久化模型。
// 两种匹配家族共用这张表：池化服务器匹配持有GameServerID，
// 玩家自建（listen）匹配持有HostIP/HostPort，两者互斥。
type Match struct {
	gorm.Model

	Title string `gorm:"not null"`

	IsPrivate bool `gorm:"not null"`
	// Password 只在私密匹配中有意义
	Password string

	// GameServerID 指向分配给本场匹配的池化服务器，listen匹配为空
	GameServerID *uint

	// HostIP/HostPort 是listen匹配的主机地址，池化匹配为空
	HostIP   string
	HostPort *int

	StartTime *time.Time
	// EndTime 在结果提交时设置，设置后匹配不再接受任何变更
	EndTime *time.Time
}

// Status 计算匹配的派生状态
func (m *Match) Status() Status {
	if m.EndTime != nil {
		return StatusEnded
	}
	if m.StartTime != nil {
		return StatusPlaying
	}
	return StatusWaiting
}

// IsListenServer 判断这是否是一场玩家自建匹配
func (m *Match) IsListenServer() bool {
	return m.HostIP != "" && m.HostPort != nil
}

// Started 判断匹配是否已经开始（结束也视为已开始）
func (m *Match) Started() bool {
	return m.StartTime != nil || m.EndTime != nil
}

// MatchUser 定义了用户与匹配的参与关系。
// 每场匹配最多两条记录，其中最多一条HOST；
// Result默认为NONE，在结果提交时一次性写入。
type MatchUser struct {
	gorm.Model

	MatchID uint `gorm:"not null;uniqueIndex:idx_match_user"`
	UserID  uint `gorm:"not null;uniqueIndex:idx_match_user"`

	Role   Role   `gorm:"type:varchar(8);not null"`
	Result Result `gorm:"type:varchar(8);not null;default:NONE"`
}
