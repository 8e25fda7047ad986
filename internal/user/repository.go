package user

// --- Redis 键名常量 ---

const (
	// KnownUsersKey 是一个 Redis Set 的键，缓存了已确认存在的用户ID。
	// Member: 用户ID的十进制字符串
	// 它是身份中间件的快速路径，避免每个请求都查询SQLite。
	KnownUsersKey = "user:known"
)
