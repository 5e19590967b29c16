package runtime

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const serviceTokenTTL = 10 * time.Minute

// MintServiceToken creates a short-lived HS256 token a calling service can
// present instead of the static shared secret. The subject names the caller.
func MintServiceToken(secret []byte, subject string, now time.Time) (string, error) {
	if len(secret) == 0 {
		return "", fmt.Errorf("runtime: service token secret is empty")
	}
	claims := jwt.MapClaims{
		"sub": subject,
		"aud": "triageflow-runtime",
		"iat": now.Unix(),
		"exp": now.Add(serviceTokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("runtime: sign service token: %w", err)
	}
	return signed, nil
}

// VerifyServiceToken checks signature, audience and expiry and returns the
// caller subject.
func VerifyServiceToken(secret []byte, tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	}, jwt.WithAudience("triageflow-runtime"), jwt.WithExpirationRequired())
	if err != nil {
		return "", fmt.Errorf("runtime: parse service token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("runtime: invalid service token")
	}
	subject, ok := claims["sub"].(string)
	if !ok || subject == "" {
		return "", fmt.Errorf("runtime: service token is missing subject")
	}
	return subject, nil
}
