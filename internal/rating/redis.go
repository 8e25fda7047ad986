package rating

import (
	"fmt"
	"strconv"

	"github.com/SlpAus/warcry-match-backend/internal/platform/database"
	"github.com/redis/go-redis/v9"
)

// --- Redis 键名常量 ---

const (
	// RankingKey 是一个 Redis Sorted Set 的键，用于存储全体玩家的积分排名。
	// Score: 玩家当前积分
	// Member: 用户ID的十进制字符串
	// 它是排名查询的读模型：SQLite是唯一的权威数据源，
	// 这个ZSET在启动时预热、在每次积分变动提交后增量更新。
	RankingKey = "rating:ranking"
)

// tierUpperBound 返回指定段位的积分上界（含），1段位没有上界。
// 与 TierForPoint 的阈值保持一致。
func tierUpperBound(tier int) (float64, bool) {
	switch tier {
	case 2:
		return 400, true
	case 3:
		return 300, true
	case 4:
		return 200, true
	default:
		return 0, false
	}
}

// RefreshRankingCache 在积分变动事务提交后，把最新积分写入排名ZSET。
// 缓存不可用时直接跳过：重建由健康检查器在Redis恢复后统一完成。
func RefreshRankingCache(changes []RatingChangeDTO) {
	if !database.IsRedisHealthy() || len(changes) == 0 {
		return
	}

	members := make([]redis.Z, 0, len(changes))
	for _, change := range changes {
		members = append(members, redis.Z{
			Score:  float64(change.NewPoints),
			Member: strconv.FormatUint(uint64(change.UserID), 10),
		})
	}
	if err := database.RDB.ZAdd(database.Ctx, RankingKey, members...).Err(); err != nil {
		fmt.Printf("警告: 更新排名缓存失败: %v\n", err)
	}
}

// globalRankFromCache 通过ZSET计算全球排名：严格高于该积分的玩家数+1。
// ZCount的左开区间保证同分玩家不会互相计入，与SQLite的计数语义完全一致。
func globalRankFromCache(point int) (int64, bool) {
	if !database.IsRedisHealthy() {
		return 0, false
	}
	higher, err := database.RDB.ZCount(database.Ctx, RankingKey,
		"("+strconv.Itoa(point), "+inf").Result()
	if err != nil {
		return 0, false
	}
	return higher + 1, true
}

// tierRankFromCache 通过ZSET计算段位内排名。
// 段位是积分的纯函数，因此"同段位且积分更高"等价于一个积分区间上的计数。
func tierRankFromCache(point, tier int) (int64, bool) {
	if !database.IsRedisHealthy() {
		return 0, false
	}

	max := "+inf"
	if upper, ok := tierUpperBound(tier); ok {
		max = strconv.FormatFloat(upper, 'f', -1, 64)
	}
	higher, err := database.RDB.ZCount(database.Ctx, RankingKey,
		"("+strconv.Itoa(point), max).Result()
	if err != nil {
		return 0, false
	}
	return higher + 1, true
}

// tierCountsFromCache 通过ZSET统计各段位的玩家数量。
// 返回下标0..3对应段位1..4的数量。
func tierCountsFromCache() ([4]int64, bool) {
	var counts [4]int64
	if !database.IsRedisHealthy() {
		return counts, false
	}

	pipe := database.RDB.Pipeline()
	cmds := [4]*redis.IntCmd{
		pipe.ZCount(database.Ctx, RankingKey, "401", "+inf"),
		pipe.ZCount(database.Ctx, RankingKey, "301", "400"),
		pipe.ZCount(database.Ctx, RankingKey, "201", "300"),
		pipe.ZCount(database.Ctx, RankingKey, "-inf", "200"),
	}
	if _, err := pipe.Exec(database.Ctx); err != nil {
		return counts, false
	}
	for i, cmd := range cmds {
		counts[i] = cmd.Val()
	}
	return counts, true
}

// WarmupCache 从SQLite加载全部积分数据到Redis的排名ZSET。
// 注意：此函数不包含锁，调用方需要确保在安全的时机调用。
func WarmupCache() error {
	var ratings []Rating
	if err := database.DB.Find(&ratings).Error; err != nil {
		return fmt.Errorf("无法从SQLite读取积分数据: %w", err)
	}

	pipe := database.RDB.Pipeline()
	pipe.Del(database.Ctx, RankingKey)
	for _, r := range ratings {
		pipe.ZAdd(database.Ctx, RankingKey, redis.Z{
			Score:  float64(r.Point),
			Member: strconv.FormatUint(uint64(r.UserID), 10),
		})
	}
	if _, err := pipe.Exec(database.Ctx); err != nil {
		return fmt.Errorf("预热排名数据到Redis失败: %w", err)
	}

	fmt.Printf("成功预热 %d 条积分数据到Redis排名缓存。\n", len(ratings))
	return nil
}
