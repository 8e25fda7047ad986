package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// secretKey 用于签发和验证身份令牌。
// 正常部署时它来自配置文件，与外部认证服务共享。
var secretKey []byte

// IdentityPayload 定义了身份令牌中携带的数据。
// 令牌由认证服务在登录成功后签发，本服务只负责验证。
type IdentityPayload struct {
	UserID    uint   `json:"uid"`
	Username  string `json:"sub"`
	TokenID   string `json:"jti"`
	ExpiresAt int64  `json:"exp"`
}

var (
	// ErrMalformedToken 表示令牌格式不正确
	ErrMalformedToken = errors.New("令牌格式不正确")
	// ErrBadSignature 表示令牌签名验证失败
	ErrBadSignature = errors.New("令牌签名无效")
	// ErrExpiredToken 表示令牌已过期
	ErrExpiredToken = errors.New("令牌已过期")
)

// LoadSecretKey 加载共享密钥。
// secret为空时生成一个密码学安全的随机密钥（仅限开发环境，
// 此时外部签发的令牌将全部无法通过验证）。
func LoadSecretKey(secret string) {
	if secret != "" {
		secretKey = []byte(secret)
		fmt.Println("身份令牌密钥已从配置加载。")
		return
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		panic("无法生成安全的密钥: " + err.Error())
	}
	secretKey = key
	fmt.Println("警告: 未配置tokenSecret，已生成随机密钥（开发模式）。")
}

// sign 使用HMAC-SHA256对payload字节签名，返回Base64编码的签名。
func sign(payloadBytes []byte) string {
	mac := hmac.New(sha256.New, secretKey)
	mac.Write(payloadBytes)
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// GenerateIdentityToken 为指定用户签发一个身份令牌。
// 令牌格式为 base64(payload JSON) + "." + base64(HMAC签名)。
func GenerateIdentityToken(userID uint, username string, ttl time.Duration) (string, error) {
	payload := IdentityPayload{
		UserID:    userID,
		Username:  username,
		TokenID:   uuid.NewString(),
		ExpiresAt: time.Now().Add(ttl).Unix(),
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", errors.New("无法序列化令牌payload")
	}

	encodedPayload := base64.RawURLEncoding.EncodeToString(payloadBytes)
	return encodedPayload + "." + sign(payloadBytes), nil
}

// ValidateIdentityToken 验证一个令牌字符串，返回其中的身份信息。
func ValidateIdentityToken(tokenStr string) (*IdentityPayload, error) {
	parts := strings.Split(tokenStr, ".")
	if len(parts) != 2 {
		return nil, ErrMalformedToken
	}

	payloadBytes, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, ErrMalformedToken
	}

	// 重新计算签名并做常数时间比较
	expectedSig, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, ErrMalformedToken
	}
	mac := hmac.New(sha256.New, secretKey)
	mac.Write(payloadBytes)
	if !hmac.Equal(mac.Sum(nil), expectedSig) {
		return nil, ErrBadSignature
	}

	var payload IdentityPayload
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		return nil, ErrMalformedToken
	}

	if payload.ExpiresAt > 0 && time.Now().Unix() > payload.ExpiresAt {
		return nil, ErrExpiredToken
	}

	return &payload, nil
}
