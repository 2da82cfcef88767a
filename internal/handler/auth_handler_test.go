package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/portal/internal/auth"
)

// --- モック定義 ---

type mockAuthService struct {
	getLoginURLFn    func(state string) string
	handleCallbackFn func(ctx context.Context, code string) (string, error)
	logoutFn         func(ctx context.Context, token string) error
}

func (m *mockAuthService) GetLoginURL(state string) string {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(state)
	}
	return "https://accounts.google.com/o/oauth2/auth?state=" + state
}

func (m *mockAuthService) HandleCallback(ctx context.Context, code string) (string, error) {
	if m.handleCallbackFn != nil {
		return m.handleCallbackFn(ctx, code)
	}
	return "session-token", nil
}

func (m *mockAuthService) Logout(ctx context.Context, token string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, token)
	}
	return nil
}

var _ AuthServiceInterface = (*mockAuthService)(nil)

type mockLoginRecorder struct {
	successes int
	failures  int
}

func (m *mockLoginRecorder) RecordLoginSuccess() { m.successes++ }
func (m *mockLoginRecorder) RecordLoginFailure() { m.failures++ }

var _ LoginRecorder = (*mockLoginRecorder)(nil)

func newTestAuthHandler(service AuthServiceInterface, recorder LoginRecorder) *AuthHandler {
	return NewAuthHandler(service, recorder, AuthHandlerConfig{
		SessionMaxAge: 86400,
	})
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// --- テスト ---

func TestBegin_SetsStateCookieAndRedirectsToProvider(t *testing.T) {
	var capturedState string
	service := &mockAuthService{
		getLoginURLFn: func(state string) string {
			capturedState = state
			return "https://accounts.google.com/o/oauth2/auth?state=" + state
		},
	}
	h := newTestAuthHandler(service, nil)

	rec := httptest.NewRecorder()
	h.Begin(rec, httptest.NewRequest(http.MethodGet, "/auth/google", nil))

	if rec.Code != http.StatusTemporaryRedirect {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTemporaryRedirect)
	}
	if capturedState == "" {
		t.Fatal("expected non-empty state")
	}

	cookie := findCookie(rec, "oauth_state")
	if cookie == nil {
		t.Fatal("expected oauth_state cookie")
	}
	if cookie.Value != capturedState {
		t.Errorf("cookie state = %q, want %q", cookie.Value, capturedState)
	}
	if !cookie.HttpOnly {
		t.Error("state cookie should be HttpOnly")
	}

	if loc := rec.Header().Get("Location"); !strings.Contains(loc, "state="+capturedState) {
		t.Errorf("Location = %q, should carry state", loc)
	}
}

func TestCallback_Success_SetsSessionCookieAndRedirects(t *testing.T) {
	recorder := &mockLoginRecorder{}
	service := &mockAuthService{
		handleCallbackFn: func(ctx context.Context, code string) (string, error) {
			if code != "auth-code" {
				t.Errorf("code = %q, want %q", code, "auth-code")
			}
			return "signed-session-token", nil
		},
	}
	h := newTestAuthHandler(service, recorder)

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=auth-code&state=state-1", nil)
	req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "state-1"})

	rec := httptest.NewRecorder()
	h.Callback(rec, req)

	if rec.Code != http.StatusFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusFound)
	}
	if loc := rec.Header().Get("Location"); loc != "/dashboard" {
		t.Errorf("Location = %q, want /dashboard", loc)
	}

	cookie := findCookie(rec, "session_id")
	if cookie == nil {
		t.Fatal("expected session_id cookie")
	}
	if cookie.Value != "signed-session-token" {
		t.Errorf("session cookie = %q, want signed token", cookie.Value)
	}
	if !cookie.HttpOnly {
		t.Error("session cookie should be HttpOnly")
	}
	if cookie.MaxAge != 86400 {
		t.Errorf("MaxAge = %d, want 86400", cookie.MaxAge)
	}

	if recorder.successes != 1 {
		t.Errorf("login successes = %d, want 1", recorder.successes)
	}
}

func TestCallback_StateMismatch_RedirectsToLogin(t *testing.T) {
	recorder := &mockLoginRecorder{}
	service := &mockAuthService{
		handleCallbackFn: func(ctx context.Context, code string) (string, error) {
			t.Error("HandleCallback should not be called on state mismatch")
			return "", nil
		},
	}
	h := newTestAuthHandler(service, recorder)

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=auth-code&state=forged", nil)
	req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "original"})

	rec := httptest.NewRecorder()
	h.Callback(rec, req)

	if rec.Code != http.StatusFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusFound)
	}
	if loc := rec.Header().Get("Location"); loc != "/login" {
		t.Errorf("Location = %q, want /login", loc)
	}
	if recorder.failures != 1 {
		t.Errorf("login failures = %d, want 1", recorder.failures)
	}
}

func TestCallback_MissingCode_RedirectsToLogin(t *testing.T) {
	h := newTestAuthHandler(&mockAuthService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?state=state-1", nil)
	req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "state-1"})

	rec := httptest.NewRecorder()
	h.Callback(rec, req)

	if rec.Code != http.StatusFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusFound)
	}
	if loc := rec.Header().Get("Location"); loc != "/login" {
		t.Errorf("Location = %q, want /login", loc)
	}
}

func TestCallback_ExchangeFailure_RedirectsToLogin(t *testing.T) {
	service := &mockAuthService{
		handleCallbackFn: func(ctx context.Context, code string) (string, error) {
			return "", fmt.Errorf("provider rejected code: %w", auth.ErrExchangeFailed)
		},
	}
	h := newTestAuthHandler(service, nil)

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=bad&state=state-1", nil)
	req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "state-1"})

	rec := httptest.NewRecorder()
	h.Callback(rec, req)

	if rec.Code != http.StatusFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusFound)
	}
	if loc := rec.Header().Get("Location"); loc != "/login" {
		t.Errorf("Location = %q, want /login", loc)
	}
}

func TestCallback_PersistenceFailure_Returns500(t *testing.T) {
	service := &mockAuthService{
		handleCallbackFn: func(ctx context.Context, code string) (string, error) {
			return "", errors.New("failed to create session: db down")
		},
	}
	h := newTestAuthHandler(service, nil)

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=auth-code&state=state-1", nil)
	req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "state-1"})

	rec := httptest.NewRecorder()
	h.Callback(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

func TestLogout_DeletesSessionClearsCookieAndRedirects(t *testing.T) {
	var loggedOutToken string
	service := &mockAuthService{
		logoutFn: func(ctx context.Context, token string) error {
			loggedOutToken = token
			return nil
		},
	}
	h := newTestAuthHandler(service, nil)

	req := httptest.NewRequest(http.MethodGet, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "current-token"})

	rec := httptest.NewRecorder()
	h.Logout(rec, req)

	if loggedOutToken != "current-token" {
		t.Errorf("logged out token = %q, want %q", loggedOutToken, "current-token")
	}
	if rec.Code != http.StatusFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusFound)
	}
	if loc := rec.Header().Get("Location"); loc != "/login" {
		t.Errorf("Location = %q, want /login", loc)
	}

	cookie := findCookie(rec, "session_id")
	if cookie == nil {
		t.Fatal("expected session_id cookie to be cleared")
	}
	if cookie.Value != "" || cookie.MaxAge >= 0 {
		t.Errorf("cookie = (%q, MaxAge %d), want cleared", cookie.Value, cookie.MaxAge)
	}
}

func TestLogout_NoCookie_StillRedirects(t *testing.T) {
	service := &mockAuthService{
		logoutFn: func(ctx context.Context, token string) error {
			t.Error("Logout should not be called without a cookie")
			return nil
		},
	}
	h := newTestAuthHandler(service, nil)

	rec := httptest.NewRecorder()
	h.Logout(rec, httptest.NewRequest(http.MethodGet, "/logout", nil))

	if rec.Code != http.StatusFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusFound)
	}
	if loc := rec.Header().Get("Location"); loc != "/login" {
		t.Errorf("Location = %q, want /login", loc)
	}
}

func TestLogout_ServiceFailure_StillClearsCookie(t *testing.T) {
	service := &mockAuthService{
		logoutFn: func(ctx context.Context, token string) error {
			return errors.New("db down")
		},
	}
	h := newTestAuthHandler(service, nil)

	req := httptest.NewRequest(http.MethodGet, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "current-token"})

	rec := httptest.NewRecorder()
	h.Logout(rec, req)

	if rec.Code != http.StatusFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusFound)
	}
	if cookie := findCookie(rec, "session_id"); cookie == nil || cookie.MaxAge >= 0 {
		t.Error("expected session cookie to be cleared despite failure")
	}
}
