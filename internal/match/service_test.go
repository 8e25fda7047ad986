package match

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/SlpAus/warcry-match-backend/internal/gameserver"
	"github.com/SlpAus/warcry-match-backend/internal/platform/database"
	"github.com/SlpAus/warcry-match-backend/internal/rating"
	"github.com/SlpAus/warcry-match-backend/internal/user"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB 为每个测试创建一个独立的内存数据库。
// Redis健康标记默认为false，所有缓存路径在测试中自动跳过。
func setupTestDB(t *testing.T) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("无法打开内存数据库: %v", err)
	}
	if err := db.AutoMigrate(
		&user.User{},
		&gameserver.GameServer{},
		&Match{}, &MatchUser{},
		&rating.Rating{}, &rating.RatingHistory{}, &rating.DailyStats{},
	); err != nil {
		t.Fatalf("迁移测试表失败: %v", err)
	}
	database.DB = db
}

func seedUser(t *testing.T, id uint, username string) {
	t.Helper()
	u := user.User{ID: id, Username: username, Password: "x", Nickname: username + "_nick"}
	if err := database.DB.Create(&u).Error; err != nil {
		t.Fatalf("创建测试用户失败: %v", err)
	}
}

func seedServer(t *testing.T, ip string) uint {
	t.Helper()
	server := gameserver.GameServer{ServerIP: ip, ServerPort: 27015, Status: gameserver.StatusAvailable, LastUpdated: time.Now()}
	if err := database.DB.Create(&server).Error; err != nil {
		t.Fatalf("创建测试服务器失败: %v", err)
	}
	return server.ID
}

func serverStatus(t *testing.T, id uint) gameserver.ServerStatus {
	t.Helper()
	server, err := gameserver.GetByID(database.DB, id)
	if err != nil {
		t.Fatalf("查询服务器失败: %v", err)
	}
	return server.Status
}

func TestPrivateMatchPasswordFlow(t *testing.T) {
	setupTestDB(t)
	seedUser(t, 1, "alice")
	seedUser(t, 2, "bob")
	seedUser(t, 3, "carol")
	seedServer(t, "10.0.0.1")

	detail, err := CreateServerMatch(1, CreateMatchInput{Title: "私密对局", IsPrivate: true, Password: "p1"}, time.Now())
	if err != nil {
		t.Fatalf("创建匹配失败: %v", err)
	}
	if detail.Status != StatusWaiting {
		t.Fatalf("status = %s, want WAITING", detail.Status)
	}

	if _, err := JoinMatch(detail.ID, 2, "wrong", false); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("错误密码应返回ErrWrongPassword, got %v", err)
	}

	joined, err := JoinMatch(detail.ID, 2, "p1", false)
	if err != nil {
		t.Fatalf("正确密码加入失败: %v", err)
	}
	if len(joined.Participants) != 2 {
		t.Fatalf("participants = %d, want 2", len(joined.Participants))
	}
	for _, p := range joined.Participants {
		if p.UserID == 2 && p.Role != RoleGuest {
			t.Fatalf("加入者角色 = %s, want GUEST", p.Role)
		}
	}

	if _, err := JoinMatch(detail.ID, 3, "p1", false); !errors.Is(err, ErrMatchFull) {
		t.Fatalf("满员匹配应返回ErrMatchFull, got %v", err)
	}
}

func TestJoinTwiceRejected(t *testing.T) {
	setupTestDB(t)
	seedUser(t, 1, "alice")
	seedUser(t, 2, "bob")
	seedServer(t, "10.0.0.1")

	detail, err := CreateServerMatch(1, CreateMatchInput{Title: "对局"}, time.Now())
	if err != nil {
		t.Fatalf("创建匹配失败: %v", err)
	}
	if _, err := JoinMatch(detail.ID, 1, "", false); !errors.Is(err, ErrAlreadyJoined) {
		t.Fatalf("重复加入应返回ErrAlreadyJoined, got %v", err)
	}
	if _, err := JoinMatch(detail.ID, 2, "", false); err != nil {
		t.Fatalf("加入失败: %v", err)
	}
}

func TestCreateWithoutServerFails(t *testing.T) {
	setupTestDB(t)
	seedUser(t, 1, "alice")

	_, err := CreateServerMatch(1, CreateMatchInput{Title: "对局"}, time.Now())
	if !errors.Is(err, gameserver.ErrNoServerAvailable) {
		t.Fatalf("无空闲服务器应返回ErrNoServerAvailable, got %v", err)
	}
}

func TestSaveResultAtMostOnce(t *testing.T) {
	setupTestDB(t)
	seedUser(t, 1, "alice")
	seedUser(t, 2, "bob")
	serverID := seedServer(t, "10.0.0.1")

	detail, err := CreateServerMatch(1, CreateMatchInput{Title: "对局"}, time.Now())
	if err != nil {
		t.Fatalf("创建匹配失败: %v", err)
	}
	if _, err := JoinMatch(detail.ID, 2, "", false); err != nil {
		t.Fatalf("加入失败: %v", err)
	}
	if serverStatus(t, serverID) != gameserver.StatusInUse {
		t.Fatalf("创建后服务器应为IN_USE")
	}

	scoreboard := []ScoreboardEntry{
		{Role: RoleHost, Result: ResultWin},
		{Role: RoleGuest, Result: ResultLose},
	}
	changes, err := SaveResult(detail.ID, 1, scoreboard, false, time.Now())
	if err != nil {
		t.Fatalf("提交结果失败: %v", err)
	}
	if len(changes) != 2 {
		t.Fatalf("changes = %d, want 2", len(changes))
	}
	for _, change := range changes {
		switch change.UserID {
		case 1:
			if change.NewPoints != 125 || change.Change != 25 {
				t.Fatalf("胜者积分 = %+v, want 100->125", change)
			}
		case 2:
			if change.NewPoints != 80 || change.Change != -20 {
				t.Fatalf("败者积分 = %+v, want 100->80", change)
			}
		}
	}

	if serverStatus(t, serverID) != gameserver.StatusAvailable {
		t.Fatalf("结果提交后服务器应归还为AVAILABLE")
	}

	after, err := GetMatchDetail(detail.ID)
	if err != nil {
		t.Fatalf("查询详情失败: %v", err)
	}
	if after.Status != StatusEnded {
		t.Fatalf("status = %s, want ENDED", after.Status)
	}

	// 第二次提交必须失败
	if _, err := SaveResult(detail.ID, 1, scoreboard, false, time.Now()); !errors.Is(err, ErrAlreadyFinished) {
		t.Fatalf("重复提交应返回ErrAlreadyFinished, got %v", err)
	}
}

func TestSaveResultValidation(t *testing.T) {
	setupTestDB(t)
	seedUser(t, 1, "alice")
	seedUser(t, 2, "bob")
	seedUser(t, 3, "carol")
	seedServer(t, "10.0.0.1")

	detail, err := CreateServerMatch(1, CreateMatchInput{Title: "对局"}, time.Now())
	if err != nil {
		t.Fatalf("创建匹配失败: %v", err)
	}
	if _, err := JoinMatch(detail.ID, 2, "", false); err != nil {
		t.Fatalf("加入失败: %v", err)
	}

	// 双方都是WIN的比分表不合法
	bothWin := []ScoreboardEntry{
		{Role: RoleHost, Result: ResultWin},
		{Role: RoleGuest, Result: ResultWin},
	}
	if _, err := SaveResult(detail.ID, 1, bothWin, false, time.Now()); !errors.Is(err, ErrInvalidScoreboard) {
		t.Fatalf("双胜比分应返回ErrInvalidScoreboard, got %v", err)
	}

	// 非参与者提交被拒绝
	valid := []ScoreboardEntry{
		{Role: RoleHost, Result: ResultWin},
		{Role: RoleGuest, Result: ResultLose},
	}
	if _, err := SaveResult(detail.ID, 3, valid, false, time.Now()); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("非参与者应返回ErrAccessDenied, got %v", err)
	}
}

func TestHostLeaveTransfersToEarliestGuest(t *testing.T) {
	setupTestDB(t)
	seedUser(t, 1, "alice")
	seedUser(t, 2, "bob")
	seedServer(t, "10.0.0.1")

	detail, err := CreateServerMatch(1, CreateMatchInput{Title: "对局"}, time.Now())
	if err != nil {
		t.Fatalf("创建匹配失败: %v", err)
	}
	if _, err := JoinMatch(detail.ID, 2, "", false); err != nil {
		t.Fatalf("加入失败: %v", err)
	}

	outcome, err := HostLeaveMatch(detail.ID, 1, false, time.Now())
	if err != nil {
		t.Fatalf("房主退出失败: %v", err)
	}
	if outcome != OutcomeTransferred {
		t.Fatalf("outcome = %s, want TRANSFERRED", outcome)
	}

	after, err := GetMatchDetail(detail.ID)
	if err != nil {
		t.Fatalf("转移后匹配应继续存在: %v", err)
	}
	if after.Status != StatusWaiting {
		t.Fatalf("status = %s, want WAITING", after.Status)
	}
	if len(after.Participants) != 1 {
		t.Fatalf("participants = %d, want 1", len(after.Participants))
	}
	if after.Participants[0].UserID != 2 || after.Participants[0].Role != RoleHost {
		t.Fatalf("访客应被提升为房主: %+v", after.Participants[0])
	}
}

func TestHostLeaveDisbandsEmptyMatch(t *testing.T) {
	setupTestDB(t)
	seedUser(t, 1, "alice")
	serverID := seedServer(t, "10.0.0.1")

	detail, err := CreateServerMatch(1, CreateMatchInput{Title: "对局"}, time.Now())
	if err != nil {
		t.Fatalf("创建匹配失败: %v", err)
	}

	outcome, err := HostLeaveMatch(detail.ID, 1, false, time.Now())
	if err != nil {
		t.Fatalf("房主退出失败: %v", err)
	}
	if outcome != OutcomeDisbanded {
		t.Fatalf("outcome = %s, want DISBANDED", outcome)
	}

	if _, err := GetMatchDetail(detail.ID); !errors.Is(err, ErrMatchNotFound) {
		t.Fatalf("解散后匹配应不存在, got %v", err)
	}
	var count int64
	database.DB.Model(&MatchUser{}).Where("match_id = ?", detail.ID).Count(&count)
	if count != 0 {
		t.Fatalf("解散后参与记录应被清空, got %d", count)
	}
	if serverStatus(t, serverID) != gameserver.StatusAvailable {
		t.Fatalf("解散后服务器应归还为AVAILABLE")
	}
}

func TestGuestLeaveAndHostGuard(t *testing.T) {
	setupTestDB(t)
	seedUser(t, 1, "alice")
	seedUser(t, 2, "bob")
	seedServer(t, "10.0.0.1")

	detail, err := CreateServerMatch(1, CreateMatchInput{Title: "对局"}, time.Now())
	if err != nil {
		t.Fatalf("创建匹配失败: %v", err)
	}
	if _, err := JoinMatch(detail.ID, 2, "", false); err != nil {
		t.Fatalf("加入失败: %v", err)
	}

	// 房主走普通退出接口被拒绝
	if err := LeaveMatch(detail.ID, 1, false); !errors.Is(err, ErrMustUseHostLeave) {
		t.Fatalf("房主普通退出应返回ErrMustUseHostLeave, got %v", err)
	}
	// 访客走房主退出接口被拒绝
	if _, err := HostLeaveMatch(detail.ID, 2, false, time.Now()); !errors.Is(err, ErrNotHost) {
		t.Fatalf("访客房主退出应返回ErrNotHost, got %v", err)
	}

	if err := LeaveMatch(detail.ID, 2, false); err != nil {
		t.Fatalf("访客退出失败: %v", err)
	}
	after, err := GetMatchDetail(detail.ID)
	if err != nil {
		t.Fatalf("查询详情失败: %v", err)
	}
	if len(after.Participants) != 1 {
		t.Fatalf("participants = %d, want 1", len(after.Participants))
	}
}

func TestListenMatchDuplicateEndpoint(t *testing.T) {
	setupTestDB(t)
	seedUser(t, 1, "alice")
	seedUser(t, 2, "bob")

	input := CreateMatchInput{Title: "自建对局"}
	detail, err := CreateListenMatch(1, input, "192.168.1.10", 27015, time.Now())
	if err != nil {
		t.Fatalf("创建自建匹配失败: %v", err)
	}
	if !detail.IsListenServer {
		t.Fatalf("应识别为自建匹配")
	}
	if detail.ServerIP != "192.168.1.10" {
		t.Fatalf("serverIp = %s, want 192.168.1.10", detail.ServerIP)
	}

	// 同一主机地址的第二场未结束匹配被拒绝
	if _, err := CreateListenMatch(2, input, "192.168.1.10", 27015, time.Now()); !errors.Is(err, ErrDuplicateEndpoint) {
		t.Fatalf("重复主机地址应返回ErrDuplicateEndpoint, got %v", err)
	}

	// 结束后同一地址可以再次创建
	if _, err := JoinMatch(detail.ID, 2, "", true); err != nil {
		t.Fatalf("加入失败: %v", err)
	}
	scoreboard := []ScoreboardEntry{
		{Role: RoleHost, Result: ResultWin},
		{Role: RoleGuest, Result: ResultLose},
	}
	if _, err := SaveResult(detail.ID, 1, scoreboard, true, time.Now()); err != nil {
		t.Fatalf("提交结果失败: %v", err)
	}
	if _, err := CreateListenMatch(1, input, "192.168.1.10", 27015, time.Now()); err != nil {
		t.Fatalf("匹配结束后应允许复用主机地址: %v", err)
	}
}

func TestListenEndpointRejectsPooledMatch(t *testing.T) {
	setupTestDB(t)
	seedUser(t, 1, "alice")
	seedUser(t, 2, "bob")
	seedServer(t, "10.0.0.1")

	detail, err := CreateServerMatch(1, CreateMatchInput{Title: "对局"}, time.Now())
	if err != nil {
		t.Fatalf("创建匹配失败: %v", err)
	}
	if _, err := JoinMatch(detail.ID, 2, "", true); !errors.Is(err, ErrNotListenMatch) {
		t.Fatalf("listen接口操作池化匹配应返回ErrNotListenMatch, got %v", err)
	}
}

func TestHostRecoveryOnListenMatch(t *testing.T) {
	setupTestDB(t)
	seedUser(t, 1, "alice")
	seedUser(t, 2, "bob")

	detail, err := CreateListenMatch(1, CreateMatchInput{Title: "自建对局"}, "192.168.1.20", 27015, time.Now())
	if err != nil {
		t.Fatalf("创建自建匹配失败: %v", err)
	}
	if _, err := HostLeaveMatch(detail.ID, 1, true, time.Now()); err != nil {
		t.Fatalf("房主退出失败: %v", err)
	}

	// 匹配已解散，房主恢复路径通过新建匹配后无房主的场景验证：
	// 直接构造一场没有房主的匹配
	m := Match{Title: "残留对局", HostIP: "192.168.1.21", HostPort: intPtr(27015)}
	if err := database.DB.Create(&m).Error; err != nil {
		t.Fatalf("创建匹配失败: %v", err)
	}
	joined, err := JoinMatch(m.ID, 2, "", true)
	if err != nil {
		t.Fatalf("加入失败: %v", err)
	}
	if joined.Participants[0].Role != RoleHost {
		t.Fatalf("无房主匹配的加入者应成为房主, got %s", joined.Participants[0].Role)
	}
}

func TestGetMatchesFilters(t *testing.T) {
	setupTestDB(t)
	seedUser(t, 1, "alice")
	seedUser(t, 2, "bob")
	seedServer(t, "10.0.0.1")

	if _, err := CreateServerMatch(1, CreateMatchInput{Title: "公开对局"}, time.Now()); err != nil {
		t.Fatalf("创建匹配失败: %v", err)
	}
	if _, err := CreateListenMatch(2, CreateMatchInput{Title: "自建私密", IsPrivate: true, Password: "p"}, "192.168.1.30", 27015, time.Now()); err != nil {
		t.Fatalf("创建自建匹配失败: %v", err)
	}

	pooled, err := GetMatches(false, nil, "", 50)
	if err != nil {
		t.Fatalf("查询匹配列表失败: %v", err)
	}
	if len(pooled) != 1 || pooled[0].IsListenServer {
		t.Fatalf("池化列表不应包含自建匹配: %+v", pooled)
	}

	private := true
	listen, err := GetMatches(true, &private, string(StatusWaiting), 50)
	if err != nil {
		t.Fatalf("查询自建列表失败: %v", err)
	}
	if len(listen) != 1 || !listen[0].IsListenServer || !listen[0].IsPrivate {
		t.Fatalf("自建私密过滤结果不正确: %+v", listen)
	}
}

func TestSaveResultErrorPrecedence(t *testing.T) {
	setupTestDB(t)
	seedUser(t, 1, "alice")
	seedUser(t, 2, "bob")
	seedUser(t, 3, "carol")
	seedServer(t, "10.0.0.1")

	bothWin := []ScoreboardEntry{
		{Role: RoleHost, Result: ResultWin},
		{Role: RoleGuest, Result: ResultWin},
	}

	// 匹配不存在优先于比分表校验
	if _, err := SaveResult(999, 1, bothWin, false, time.Now()); !errors.Is(err, ErrMatchNotFound) {
		t.Fatalf("不存在的匹配应返回ErrMatchNotFound, got %v", err)
	}

	detail, err := CreateServerMatch(1, CreateMatchInput{Title: "对局"}, time.Now())
	if err != nil {
		t.Fatalf("创建匹配失败: %v", err)
	}
	if _, err := JoinMatch(detail.ID, 2, "", false); err != nil {
		t.Fatalf("加入失败: %v", err)
	}

	// 非参与者优先于比分表校验
	if _, err := SaveResult(detail.ID, 3, bothWin, false, time.Now()); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("非参与者应返回ErrAccessDenied, got %v", err)
	}

	valid := []ScoreboardEntry{
		{Role: RoleHost, Result: ResultWin},
		{Role: RoleGuest, Result: ResultLose},
	}
	if _, err := SaveResult(detail.ID, 1, valid, false, time.Now()); err != nil {
		t.Fatalf("提交结果失败: %v", err)
	}

	// 已结束优先于比分表校验
	if _, err := SaveResult(detail.ID, 1, bothWin, false, time.Now()); !errors.Is(err, ErrAlreadyFinished) {
		t.Fatalf("已结束的匹配应返回ErrAlreadyFinished, got %v", err)
	}
}

func TestLeaveNonParticipantOnStartedMatch(t *testing.T) {
	setupTestDB(t)
	seedUser(t, 1, "alice")
	seedUser(t, 2, "bob")
	seedUser(t, 3, "carol")
	seedServer(t, "10.0.0.1")

	detail, err := CreateServerMatch(1, CreateMatchInput{Title: "对局"}, time.Now())
	if err != nil {
		t.Fatalf("创建匹配失败: %v", err)
	}
	if _, err := JoinMatch(detail.ID, 2, "", false); err != nil {
		t.Fatalf("加入失败: %v", err)
	}

	// 把匹配标记为已开始
	now := time.Now()
	if err := database.DB.Model(&Match{}).Where("id = ?", detail.ID).Update("start_time", now).Error; err != nil {
		t.Fatalf("设置开始时间失败: %v", err)
	}

	// 非参与者优先于已开始检查
	if err := LeaveMatch(detail.ID, 3, false); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("非参与者应返回ErrNotParticipant, got %v", err)
	}
	if _, err := HostLeaveMatch(detail.ID, 3, false, now); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("非参与者应返回ErrNotParticipant, got %v", err)
	}

	// 参与者在已开始的匹配中仍然不能退出
	if err := LeaveMatch(detail.ID, 2, false); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("已开始的匹配应返回ErrAlreadyStarted, got %v", err)
	}
	if _, err := HostLeaveMatch(detail.ID, 1, false, now); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("已开始的匹配应返回ErrAlreadyStarted, got %v", err)
	}
}

func TestGetMatchesLimitAndCounts(t *testing.T) {
	setupTestDB(t)
	seedUser(t, 1, "alice")
	seedUser(t, 2, "bob")
	for i := 0; i < 3; i++ {
		seedServer(t, fmt.Sprintf("10.0.0.%d", i+1))
	}

	first, err := CreateServerMatch(1, CreateMatchInput{Title: "对局一"}, time.Now())
	if err != nil {
		t.Fatalf("创建匹配失败: %v", err)
	}
	if _, err := JoinMatch(first.ID, 2, "", false); err != nil {
		t.Fatalf("加入失败: %v", err)
	}
	if _, err := CreateServerMatch(2, CreateMatchInput{Title: "对局二"}, time.Now()); err != nil {
		t.Fatalf("创建匹配失败: %v", err)
	}
	if _, err := CreateServerMatch(1, CreateMatchInput{Title: "对局三"}, time.Now()); err != nil {
		t.Fatalf("创建匹配失败: %v", err)
	}

	limited, err := GetMatches(false, nil, "", 2)
	if err != nil {
		t.Fatalf("查询匹配列表失败: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("limit=2应返回2条, got %d", len(limited))
	}
	// 最新创建的排在前面
	if limited[0].Title != "对局三" {
		t.Fatalf("列表应按创建倒序: %+v", limited)
	}

	all, err := GetMatches(false, nil, string(StatusWaiting), 50)
	if err != nil {
		t.Fatalf("查询匹配列表失败: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("WAITING过滤应返回3条, got %d", len(all))
	}
	for _, summary := range all {
		want := 1
		if summary.ID == first.ID {
			want = 2
		}
		if summary.ParticipantCount != want {
			t.Fatalf("匹配 %d 参与者数 = %d, want %d", summary.ID, summary.ParticipantCount, want)
		}
	}

	// 未知状态没有任何匹配命中
	none, err := GetMatches(false, nil, "UNKNOWN", 50)
	if err != nil {
		t.Fatalf("查询匹配列表失败: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("未知状态应返回空列表, got %d", len(none))
	}
}

func TestMatchHistoryResolvesOpponent(t *testing.T) {
	setupTestDB(t)
	seedUser(t, 1, "alice")
	seedUser(t, 2, "bob")
	seedServer(t, "10.0.0.1")

	detail, err := CreateServerMatch(1, CreateMatchInput{Title: "对局"}, time.Now())
	if err != nil {
		t.Fatalf("创建匹配失败: %v", err)
	}
	if _, err := JoinMatch(detail.ID, 2, "", false); err != nil {
		t.Fatalf("加入失败: %v", err)
	}
	scoreboard := []ScoreboardEntry{
		{Role: RoleHost, Result: ResultWin},
		{Role: RoleGuest, Result: ResultLose},
	}
	if _, err := SaveResult(detail.ID, 1, scoreboard, false, time.Now()); err != nil {
		t.Fatalf("提交结果失败: %v", err)
	}

	history, err := rating.GetMatchHistory(1, 0, 10)
	if err != nil {
		t.Fatalf("查询积分历史失败: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("history = %d, want 1", len(history))
	}
	entry := history[0]
	if entry.MatchID != detail.ID || !entry.Winner {
		t.Fatalf("history记录不正确: %+v", entry)
	}
	if entry.OpponentID != 2 || entry.OpponentNickname != "bob_nick" {
		t.Fatalf("对手解析不正确: %+v", entry)
	}
}

func intPtr(v int) *int { return &v }
