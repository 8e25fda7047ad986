package rating

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newRankRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/rank/player/:userId", GetPlayerRankHandler)
	r.GET("/api/rank/leaderboard", GetLeaderboardHandler)
	return r
}

func doRequest(t *testing.T, router *gin.Engine, path string) (int, map[string]interface{}) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("响应不是合法JSON: %v", err)
	}
	return w.Code, body
}

func TestRankResponseEnvelope(t *testing.T) {
	setupQueryTestDB(t)
	seedRatedUser(t, 1, 250, 4, 2)
	router := newRankRouter()

	// 成功响应携带success=true和领域负载
	code, body := doRequest(t, router, "/api/rank/player/1")
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if body["success"] != true {
		t.Fatalf("成功响应应包含success=true: %v", body)
	}
	player, ok := body["player"].(map[string]interface{})
	if !ok {
		t.Fatalf("响应应包含player负载: %v", body)
	}
	if player["points"] != float64(250) {
		t.Fatalf("points = %v, want 250", player["points"])
	}

	code, body = doRequest(t, router, "/api/rank/leaderboard?page=0&size=10")
	if code != http.StatusOK || body["success"] != true {
		t.Fatalf("排行榜响应 = %d/%v, want 200/success=true", code, body)
	}
	if _, ok := body["leaderboard"]; !ok {
		t.Fatalf("响应应包含leaderboard负载: %v", body)
	}
}

func TestRankErrorEnvelope(t *testing.T) {
	setupQueryTestDB(t)
	router := newRankRouter()

	// 错误响应携带success=false和error消息
	code, body := doRequest(t, router, "/api/rank/player/999")
	if code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", code)
	}
	if body["success"] != false {
		t.Fatalf("错误响应应包含success=false: %v", body)
	}
	if body["error"] == nil || body["error"] == "" {
		t.Fatalf("错误响应应包含error消息: %v", body)
	}

	code, body = doRequest(t, router, "/api/rank/player/abc")
	if code != http.StatusBadRequest || body["success"] != false {
		t.Fatalf("非法ID响应 = %d/%v, want 400/success=false", code, body)
	}

	code, body = doRequest(t, router, "/api/rank/leaderboard?tier=9")
	if code != http.StatusBadRequest || body["success"] != false {
		t.Fatalf("非法tier响应 = %d/%v, want 400/success=false", code, body)
	}
}
