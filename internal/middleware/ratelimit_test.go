package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func testRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(2.0),
		GeneralBurst:    3,
		UploadRate:      rate.Limit(1.0),
		UploadBurst:     1,
		CleanupInterval: time.Hour,
	}
}

func rateLimitedRequest(userID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	return req.WithContext(ContextWithUserID(req.Context(), userID))
}

// バースト内のリクエストが通過し、超過分が429になることを検証
func TestRateLimiter_General_BurstThenReject(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// バースト3まで許可
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, rateLimitedRequest("user-id-1"))
		if rec.Code != http.StatusOK {
			t.Fatalf("リクエスト%d: status = %d, want %d", i+1, rec.Code, http.StatusOK)
		}
	}

	// 4回目は拒否
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, rateLimitedRequest("user-id-1"))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-Afterヘッダーが設定されるべき")
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("エラーレスポンスのデコードに失敗: %v", err)
	}
	if body.Code != "RATE_LIMIT_EXCEEDED" {
		t.Errorf("code = %q, want %q", body.Code, "RATE_LIMIT_EXCEEDED")
	}
}

// ユーザーごとに独立してレート制限されることを検証
func TestRateLimiter_PerUserIsolation(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	handler := rl.UploadMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// user-1がバーストを使い切る
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, rateLimitedRequest("user-1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("user-1の1回目: status = %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, rateLimitedRequest("user-1"))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("user-1の2回目は拒否されるべき: status = %d", rec.Code)
	}

	// user-2は影響を受けない
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, rateLimitedRequest("user-2"))
	if rec.Code != http.StatusOK {
		t.Errorf("user-2は独立して許可されるべき: status = %d", rec.Code)
	}
}

// API全般とアップロードのレート制限が独立していることを検証
func TestRateLimiter_GeneralAndUploadIndependent(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	uploadHandler := rl.UploadMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	generalHandler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// アップロードのバースト(1)を使い切る
	rec := httptest.NewRecorder()
	uploadHandler.ServeHTTP(rec, rateLimitedRequest("user-id-1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("アップロード1回目: status = %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	uploadHandler.ServeHTTP(rec, rateLimitedRequest("user-id-1"))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("アップロード2回目は拒否されるべき: status = %d", rec.Code)
	}

	// API全般はまだ許可される
	rec = httptest.NewRecorder()
	generalHandler.ServeHTTP(rec, rateLimitedRequest("user-id-1"))
	if rec.Code != http.StatusOK {
		t.Errorf("API全般のレート制限は独立しているべき: status = %d", rec.Code)
	}
}

// ユーザーIDなしのリクエストが401になることを検証
func TestRateLimiter_NoUserID_Unauthorized(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("未認証のリクエストがハンドラーに到達してはならない")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tasks", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

// 期限切れエントリがクリーンアップされることを検証
func TestRateLimiter_Cleanup(t *testing.T) {
	cfg := testRateLimiterConfig()
	cfg.CleanupInterval = 10 * time.Millisecond
	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, rateLimitedRequest("user-id-1"))

	if rl.GeneralLimiterCount() != 1 {
		t.Fatalf("エントリ数 = %d, want 1", rl.GeneralLimiterCount())
	}

	// TTL（CleanupInterval * 2）経過後にクリーンアップされるまで待つ
	deadline := time.Now().Add(2 * time.Second)
	for rl.GeneralLimiterCount() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if rl.GeneralLimiterCount() != 0 {
		t.Errorf("期限切れエントリがクリーンアップされるべき: count = %d", rl.GeneralLimiterCount())
	}
}
