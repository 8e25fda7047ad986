package match

import "errors"

// 匹配模块的哨兵错误。
// handler层通过errors.Is将它们映射到HTTP状态码。
var (
	ErrMatchNotFound     = errors.New("找不到该匹配")
	ErrMatchFull         = errors.New("该匹配人数已满")
	ErrAlreadyJoined     = errors.New("已经加入了该匹配")
	ErrWrongPassword     = errors.New("匹配密码错误")
	ErrNotParticipant    = errors.New("不是该匹配的参与者")
	ErrMustUseHostLeave  = errors.New("房主必须使用房主退出接口")
	ErrNotHost           = errors.New("只有房主可以执行此操作")
	ErrAlreadyStarted    = errors.New("匹配已经开始，无法退出")
	ErrAlreadyFinished   = errors.New("该匹配的结果已经记录")
	ErrInvalidScoreboard = errors.New("比分表不合法")
	ErrNotListenMatch    = errors.New("该匹配不是玩家自建匹配")
	ErrDuplicateEndpoint = errors.New("该主机地址已经注册了一场未结束的匹配")
	ErrMissingFields     = errors.New("缺少必填字段")
	ErrAccessDenied      = errors.New("没有权限操作该匹配")
)
