package rating

import (
	"time"

	"gorm.io/gorm"
)

// --- 积分与段位常量 ---

const (
	// InitialPoint 是新玩家的初始积分
	InitialPoint = 100
	// WinPointGain 是每次胜利增加的积分
	WinPointGain = 25
	// LossPointPenalty 是每次失败扣除的积分（积分下限为0）
	LossPointPenalty = 20
	// PlacementMatchCount 是定级赛的场次数
	PlacementMatchCount = 3
)

// TierForPoint 根据积分计算段位。
// 段位是积分的纯函数：1为最高段位，4为最低段位。
func TierForPoint(point int) int {
	switch {
	case point >= 401:
		return 1
	case point >= 301:
		return 2
	case point >= 201:
		return 3
	default:
		return 4
	}
}

// Rating 定义了玩家竞技积分的持久化模型，与用户一一对应。
// 它在玩家第一次参与排位相关操作时惰性创建，此后只被积分引擎修改，从不删除。
type Rating struct {
	// UserID 既是主键也是到users表的外键
	UserID uint `gorm:"primarykey"`

	Point int `gorm:"not null"`

	// Tier 始终等于 TierForPoint(Point)，每次更新后重新计算
	Tier int `gorm:"not null"`

	Wins   int `gorm:"not null"`
	Losses int `gorm:"not null"`

	// PlacementMatchesPlayed 记录已完成的定级赛场次，最多累计到3
	PlacementMatchesPlayed int `gorm:"not null"`

	// PlacementDone 在定级赛打满后置为true，此后永不回退
	PlacementDone bool `gorm:"not null"`

	WinStreak  int `gorm:"not null"`
	LoseStreak int `gorm:"not null"`

	LastMatchTime *time.Time

	// Version 是乐观锁版本号，防止并发更新互相覆盖
	Version uint `gorm:"not null;default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewRating 返回一个新玩家的初始积分记录
func NewRating(userID uint) Rating {
	return Rating{
		UserID: userID,
		Point:  InitialPoint,
		Tier:   TierForPoint(InitialPoint),
	}
}

// ApplyWin 在胜利后更新积分、连胜和定级赛进度
func (r *Rating) ApplyWin(now time.Time) {
	r.Point += WinPointGain
	r.Wins++
	r.WinStreak++
	r.LoseStreak = 0
	r.afterMatch(now)
}

// ApplyLoss 在失败后更新积分、连败和定级赛进度
func (r *Rating) ApplyLoss(now time.Time) {
	r.Point -= LossPointPenalty
	if r.Point < 0 {
		r.Point = 0
	}
	r.Losses++
	r.LoseStreak++
	r.WinStreak = 0
	r.afterMatch(now)
}

// afterMatch 处理胜负共同的收尾：定级赛计数、段位重算和时间戳
func (r *Rating) afterMatch(now time.Time) {
	if r.PlacementMatchesPlayed < PlacementMatchCount {
		r.PlacementMatchesPlayed++
		if r.PlacementMatchesPlayed >= PlacementMatchCount {
			r.PlacementDone = true
		}
	}
	r.Tier = TierForPoint(r.Point)
	r.LastMatchTime = &now
}

// WinRate 返回胜率百分比，没有任何对局时为0
func (r *Rating) WinRate() float64 {
	total := r.Wins + r.Losses
	if total == 0 {
		return 0.0
	}
	return float64(r.Wins) / float64(total) * 100
}

// RatingHistory 定义了每次积分变动的审计记录。
// 每个参与者每场匹配只产生一条记录，创建后不再修改或删除。
type RatingHistory struct {
	gorm.Model

	UserID  uint `gorm:"not null;index"`
	MatchID uint `gorm:"not null"`

	PointBefore int `gorm:"not null"`
	PointAfter  int `gorm:"not null"`
	PointChange int `gorm:"not null"`

	TierBefore int `gorm:"not null"`
	TierAfter  int `gorm:"not null"`

	Winner bool `gorm:"not null"`

	ChangeTime time.Time `gorm:"not null;index"`
}

// DateLayout 是每日统计使用的日期格式，与API的YYYYMMDD参数一致
const DateLayout = "20060102"

// DailyStats 定义了每个玩家每个自然日的统计汇总。
// (UserID, Date) 全局唯一；当天首场比赛时创建，之后按最大值合并更新。
type DailyStats struct {
	gorm.Model

	UserID uint `gorm:"not null;uniqueIndex:idx_daily_user_date"`

	// Date 为YYYYMMDD格式的日期字符串
	Date string `gorm:"type:varchar(8);not null;uniqueIndex:idx_daily_user_date"`

	// HighestPoint 记录当天达到过的最高积分，只增不减
	HighestPoint int `gorm:"not null"`

	MatchCount int `gorm:"not null"`
	WinCount   int `gorm:"not null"`
	LoseCount  int `gorm:"not null"`
}
