package auth

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// ClaimsExpectation はクレーム検証で期待する発行者・対象者と、リフレッシュ閾値。
type ClaimsExpectation struct {
	Issuer           string
	Audience         string
	RefreshThreshold time.Duration
}

// SessionClaims は検証済みのクレームから取り出した値。
type SessionClaims struct {
	Subject       string
	IssuedAt      time.Time // iatが無い場合はゼロ値
	ExpiresAt     time.Time
	ShouldRefresh bool
}

// ValidateClaims はエッジ層・サーバー層で共通のクレーム形状検証を行う。
// 署名検証は呼び出し側の責務で、ここでは iss / aud / exp / subject だけを見る。
func ValidateClaims(claims map[string]any, expect ClaimsExpectation, now time.Time) (*SessionClaims, error) {
	if iss, _ := claims["iss"].(string); iss != expect.Issuer {
		return nil, fmt.Errorf("%w: %q", ErrClaimsIssuer, iss)
	}

	if !audienceContains(claims["aud"], expect.Audience) {
		return nil, fmt.Errorf("%w: %v", ErrClaimsAudience, claims["aud"])
	}

	exp, ok := numericTime(claims["exp"])
	if !ok {
		return nil, ErrClaimsExpiry
	}
	if !now.Before(exp) {
		return nil, fmt.Errorf("%w at %s", ErrClaimsExpired, exp.UTC().Format(time.RFC3339))
	}

	subject := firstStringClaim(claims, "sub", "user_id", "uid")
	if subject == "" {
		return nil, ErrClaimsSubject
	}

	iat, _ := numericTime(claims["iat"])

	return &SessionClaims{
		Subject:       subject,
		IssuedAt:      iat,
		ExpiresAt:     exp,
		ShouldRefresh: exp.Sub(now) <= expect.RefreshThreshold,
	}, nil
}

func audienceContains(aud any, want string) bool {
	switch v := aud.(type) {
	case string:
		return v == want
	case []string:
		for _, a := range v {
			if a == want {
				return true
			}
		}
	case []any:
		for _, a := range v {
			if s, ok := a.(string); ok && s == want {
				return true
			}
		}
	}
	return false
}

// numericTime はJWTのNumericDate（秒）をtime.Timeに変換する。
func numericTime(v any) (time.Time, bool) {
	var secs float64
	switch n := v.(type) {
	case float64:
		secs = n
	case int64:
		secs = float64(n)
	case int:
		secs = float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return time.Time{}, false
		}
		secs = f
	default:
		return time.Time{}, false
	}
	if math.IsNaN(secs) || math.IsInf(secs, 0) || secs <= 0 {
		return time.Time{}, false
	}
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(frac*1e9)), true
}

func firstStringClaim(claims map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := claims[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
