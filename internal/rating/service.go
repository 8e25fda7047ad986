package rating

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// maxVersionRetries 是单次积分更新允许的乐观锁重试次数
const maxVersionRetries = 3

// ErrVersionConflict 表示积分记录的乐观锁重试次数耗尽。
// 正常情况下同一事务内不会发生；它作为服务器错误向上传播。
var ErrVersionConflict = errors.New("积分记录版本冲突，重试次数已耗尽")

// RatingChangeDTO 描述一名玩家在一场匹配后的积分变化，
// 随结果提交的响应一并返回给客户端。
type RatingChangeDTO struct {
	UserID         uint `json:"userId"`
	PreviousPoints int  `json:"previousPoints"`
	NewPoints      int  `json:"newPoints"`
	Change         int  `json:"change"`
	PreviousTier   int  `json:"previousTier"`
	NewTier        int  `json:"newTier"`
}

// InitializeUserRating 为用户惰性创建初始积分记录。
// 先做显式存在性检查再插入；并发插入输掉竞争时，
// 唯一约束冲突被视为成功而不是错误。
func InitializeUserRating(tx *gorm.DB, userID uint) error {
	var existing Rating
	err := tx.Where("user_id = ?", userID).First(&existing).Error
	if err == nil {
		return nil // 已存在，无需操作
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("查询积分记录失败: %w", err)
	}

	newRating := NewRating(userID)
	if err := tx.Create(&newRating).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil // 并发创建已经完成了这件事
		}
		return fmt.Errorf("无法创建初始积分记录: %w", err)
	}
	return nil
}

// ApplyMatchResultTx 在传入的事务中，为一场匹配的所有参与者结算积分。
// 先处理胜者再处理败者；任何一步失败都会让整个事务回滚，
// 保证匹配结束标记、积分、历史记录和每日统计要么全部生效、要么全部不生效。
func ApplyMatchResultTx(tx *gorm.DB, matchID uint, winnerIDs, loserIDs []uint, now time.Time) ([]RatingChangeDTO, error) {
	changes := make([]RatingChangeDTO, 0, len(winnerIDs)+len(loserIDs))

	for _, userID := range winnerIDs {
		change, err := applyOneTx(tx, matchID, userID, true, now)
		if err != nil {
			return nil, err
		}
		changes = append(changes, change)
	}
	for _, userID := range loserIDs {
		change, err := applyOneTx(tx, matchID, userID, false, now)
		if err != nil {
			return nil, err
		}
		changes = append(changes, change)
	}

	return changes, nil
}

// applyOneTx 结算单个玩家的胜负：更新积分记录、写入历史、更新每日统计。
// 积分行的更新以版本号为前提条件，版本不匹配时重读重算，
// 有界重试后仍失败则放弃整个事务。
func applyOneTx(tx *gorm.DB, matchID uint, userID uint, isWin bool, now time.Time) (RatingChangeDTO, error) {
	for attempt := 0; attempt < maxVersionRetries; attempt++ {
		// 读取当前积分（不存在则初始化后重读）
		var current Rating
		err := tx.Where("user_id = ?", userID).First(&current).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := InitializeUserRating(tx, userID); err != nil {
				return RatingChangeDTO{}, err
			}
			if err := tx.Where("user_id = ?", userID).First(&current).Error; err != nil {
				return RatingChangeDTO{}, fmt.Errorf("读取初始积分记录失败: %w", err)
			}
		} else if err != nil {
			return RatingChangeDTO{}, fmt.Errorf("读取积分记录失败: %w", err)
		}

		pointBefore := current.Point
		tierBefore := current.Tier

		updated := current
		if isWin {
			updated.ApplyWin(now)
		} else {
			updated.ApplyLoss(now)
		}

		// 以读取到的版本号为条件更新；另一个写入者抢先时RowsAffected为0
		result := tx.Model(&Rating{}).
			Where("user_id = ? AND version = ?", userID, current.Version).
			Updates(map[string]interface{}{
				"point":                    updated.Point,
				"tier":                     updated.Tier,
				"wins":                     updated.Wins,
				"losses":                   updated.Losses,
				"placement_matches_played": updated.PlacementMatchesPlayed,
				"placement_done":           updated.PlacementDone,
				"win_streak":               updated.WinStreak,
				"lose_streak":              updated.LoseStreak,
				"last_match_time":          now,
				"version":                  current.Version + 1,
			})
		if result.Error != nil {
			return RatingChangeDTO{}, fmt.Errorf("更新积分记录失败: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			continue // 版本冲突，重读后重试
		}

		// 写入积分变动历史
		history := RatingHistory{
			UserID:      userID,
			MatchID:     matchID,
			PointBefore: pointBefore,
			PointAfter:  updated.Point,
			PointChange: updated.Point - pointBefore,
			TierBefore:  tierBefore,
			TierAfter:   updated.Tier,
			Winner:      isWin,
			ChangeTime:  now,
		}
		if err := tx.Create(&history).Error; err != nil {
			return RatingChangeDTO{}, fmt.Errorf("无法写入积分历史: %w", err)
		}

		// 更新每日统计
		if err := updateDailyStatsTx(tx, userID, updated.Point, isWin, now); err != nil {
			return RatingChangeDTO{}, err
		}

		return RatingChangeDTO{
			UserID:         userID,
			PreviousPoints: pointBefore,
			NewPoints:      updated.Point,
			Change:         updated.Point - pointBefore,
			PreviousTier:   tierBefore,
			NewTier:        updated.Tier,
		}, nil
	}

	return RatingChangeDTO{}, ErrVersionConflict
}

// updateDailyStatsTx 查找或创建当天的统计行并合并本场结果。
// 最高积分按最大值合并，场次和胜负计数递增；
// 并发创建同一天的行时，唯一约束冲突后重读并走更新路径。
func updateDailyStatsTx(tx *gorm.DB, userID uint, pointAfter int, isWin bool, now time.Time) error {
	today := now.Format(DateLayout)

	var stats DailyStats
	err := tx.Where("user_id = ? AND date = ?", userID, today).First(&stats).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		stats = DailyStats{
			UserID:       userID,
			Date:         today,
			HighestPoint: pointAfter,
			MatchCount:   1,
		}
		if isWin {
			stats.WinCount = 1
		} else {
			stats.LoseCount = 1
		}
		createErr := tx.Create(&stats).Error
		if createErr == nil {
			return nil
		}
		if !errors.Is(createErr, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("无法创建每日统计: %w", createErr)
		}
		// 输掉了创建竞争，重读已有的行并更新
		if err := tx.Where("user_id = ? AND date = ?", userID, today).First(&stats).Error; err != nil {
			return fmt.Errorf("重读每日统计失败: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("查询每日统计失败: %w", err)
	}

	if pointAfter > stats.HighestPoint {
		stats.HighestPoint = pointAfter
	}
	stats.MatchCount++
	if isWin {
		stats.WinCount++
	} else {
		stats.LoseCount++
	}

	if err := tx.Save(&stats).Error; err != nil {
		return fmt.Errorf("无法更新每日统计: %w", err)
	}
	return nil
}
