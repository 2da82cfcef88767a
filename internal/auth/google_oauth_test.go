package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestGetLoginURL_ContainsRequiredParams(t *testing.T) {
	provider := NewGoogleOAuthProvider(GoogleOAuthConfig{
		ClientID:    "client-id",
		RedirectURL: "http://localhost:8080/auth/google/callback",
	})

	loginURL := provider.GetLoginURL("state-123")

	parsed, err := url.Parse(loginURL)
	if err != nil {
		t.Fatalf("failed to parse login URL: %v", err)
	}

	q := parsed.Query()
	if q.Get("client_id") != "client-id" {
		t.Errorf("client_id = %q, want %q", q.Get("client_id"), "client-id")
	}
	if q.Get("state") != "state-123" {
		t.Errorf("state = %q, want %q", q.Get("state"), "state-123")
	}
	if q.Get("response_type") != "code" {
		t.Errorf("response_type = %q, want %q", q.Get("response_type"), "code")
	}
	scope := q.Get("scope")
	if !strings.Contains(scope, "email") || !strings.Contains(scope, "profile") {
		t.Errorf("scope = %q, should contain email and profile", scope)
	}
}

func TestExchangeCode_Success_ReturnsVerifiedProfile(t *testing.T) {
	userInfoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-access-token" {
			t.Errorf("Authorization = %q, want bearer token", got)
		}
		json.NewEncoder(w).Encode(map[string]string{
			"sub":   "google-user-123",
			"email": "test@example.com",
			"name":  "Test User",
		})
	}))
	defer userInfoServer.Close()

	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("failed to parse form: %v", err)
		}
		if got := r.Form.Get("code"); got != "auth-code-123" {
			t.Errorf("code = %q, want %q", got, "auth-code-123")
		}
		if got := r.Form.Get("grant_type"); got != "authorization_code" {
			t.Errorf("grant_type = %q, want %q", got, "authorization_code")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "test-access-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	defer tokenServer.Close()

	provider := NewGoogleOAuthProvider(GoogleOAuthConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost:8080/auth/google/callback",
		TokenURL:     tokenServer.URL,
		UserInfoURL:  userInfoServer.URL,
	})

	profile, err := provider.ExchangeCode(context.Background(), "auth-code-123")
	if err != nil {
		t.Fatalf("ExchangeCode() error = %v", err)
	}

	if profile.ProviderUserID != "google-user-123" {
		t.Errorf("ProviderUserID = %q, want %q", profile.ProviderUserID, "google-user-123")
	}
	if profile.Email != "test@example.com" {
		t.Errorf("Email = %q, want %q", profile.Email, "test@example.com")
	}
	if profile.Name != "Test User" {
		t.Errorf("Name = %q, want %q", profile.Name, "Test User")
	}
}

func TestExchangeCode_TokenEndpointError_Fails(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}))
	defer tokenServer.Close()

	provider := NewGoogleOAuthProvider(GoogleOAuthConfig{
		TokenURL: tokenServer.URL,
	})

	if _, err := provider.ExchangeCode(context.Background(), "bad-code"); err == nil {
		t.Fatal("expected error for rejected code")
	}
}

func TestExchangeCode_EmptyAccessToken_Fails(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"token_type": "Bearer"})
	}))
	defer tokenServer.Close()

	provider := NewGoogleOAuthProvider(GoogleOAuthConfig{
		TokenURL: tokenServer.URL,
	})

	if _, err := provider.ExchangeCode(context.Background(), "auth-code"); err == nil {
		t.Fatal("expected error for empty access token")
	}
}

func TestExchangeCode_UserInfoMissingSub_Fails(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"access_token": "tok"})
	}))
	defer tokenServer.Close()

	userInfoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"email": "test@example.com"})
	}))
	defer userInfoServer.Close()

	provider := NewGoogleOAuthProvider(GoogleOAuthConfig{
		TokenURL:    tokenServer.URL,
		UserInfoURL: userInfoServer.URL,
	})

	if _, err := provider.ExchangeCode(context.Background(), "auth-code"); err == nil {
		t.Fatal("expected error for missing sub")
	}
}
