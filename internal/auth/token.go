package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// TokenCodec はセッションIDとブラウザに渡す署名付きトークンの相互変換を行う。
// トークンの形式は "<sessionID>.<hmac-sha256-hex>"。
// 署名が一致しないトークンは未認証として扱われる。
type TokenCodec struct {
	secret []byte
}

// NewTokenCodec はTokenCodecを生成する。
func NewTokenCodec(secret string) *TokenCodec {
	return &TokenCodec{secret: []byte(secret)}
}

// Encode はセッションIDから署名付きトークンを生成する。
func (c *TokenCodec) Encode(sessionID string) string {
	return sessionID + "." + c.sign(sessionID)
}

// Decode は署名付きトークンを検証してセッションIDを取り出す。
// 形式不正または署名不一致の場合はエラーを返す。
func (c *TokenCodec) Decode(token string) (string, error) {
	sessionID, signature, ok := strings.Cut(token, ".")
	if !ok || sessionID == "" {
		return "", fmt.Errorf("malformed session token")
	}

	expected := c.sign(sessionID)
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return "", fmt.Errorf("session token signature mismatch")
	}

	return sessionID, nil
}

// sign はセッションIDのHMAC-SHA256署名を16進文字列で返す。
func (c *TokenCodec) sign(sessionID string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(sessionID))
	return hex.EncodeToString(mac.Sum(nil))
}
