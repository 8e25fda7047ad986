package token

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestGenerateAndValidateRoundtrip(t *testing.T) {
	LoadSecretKey("test-secret")

	tokenStr, err := GenerateIdentityToken(42, "alice", time.Hour)
	if err != nil {
		t.Fatalf("签发令牌失败: %v", err)
	}

	payload, err := ValidateIdentityToken(tokenStr)
	if err != nil {
		t.Fatalf("验证令牌失败: %v", err)
	}
	if payload.UserID != 42 || payload.Username != "alice" {
		t.Fatalf("payload = %+v, want uid=42 sub=alice", payload)
	}
	if payload.TokenID == "" {
		t.Fatalf("jti不应为空")
	}
}

func TestExpiredToken(t *testing.T) {
	LoadSecretKey("test-secret")

	tokenStr, err := GenerateIdentityToken(1, "bob", -time.Minute)
	if err != nil {
		t.Fatalf("签发令牌失败: %v", err)
	}
	if _, err := ValidateIdentityToken(tokenStr); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("过期令牌应返回ErrExpiredToken, got %v", err)
	}
}

func TestBadSignature(t *testing.T) {
	LoadSecretKey("test-secret")
	tokenStr, err := GenerateIdentityToken(1, "bob", time.Hour)
	if err != nil {
		t.Fatalf("签发令牌失败: %v", err)
	}

	// 换一个密钥后原令牌必须失效
	LoadSecretKey("another-secret")
	if _, err := ValidateIdentityToken(tokenStr); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("密钥不匹配应返回ErrBadSignature, got %v", err)
	}

	// 篡改payload同样失效
	LoadSecretKey("test-secret")
	parts := strings.Split(tokenStr, ".")
	tampered := parts[0] + "x." + parts[1]
	if _, err := ValidateIdentityToken(tampered); err == nil {
		t.Fatalf("篡改的令牌不应通过验证")
	}
}

func TestMalformedToken(t *testing.T) {
	LoadSecretKey("test-secret")

	for _, bad := range []string{"", "abc", "a.b.c", "!!!.???"} {
		if _, err := ValidateIdentityToken(bad); !errors.Is(err, ErrMalformedToken) && !errors.Is(err, ErrBadSignature) {
			t.Fatalf("畸形令牌 %q 应验证失败, got %v", bad, err)
		}
	}
}
