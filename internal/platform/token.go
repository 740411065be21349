package platform

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// expiryWarningWindow is how close to expiry a token can get before the tool
// starts nagging about it.
const expiryWarningWindow = 24 * time.Hour

// parserUnverified inspects token contents without checking the signature.
// We never verify here: the platform is the authority, this is purely for
// telling the operator about a stale credential before a long export run.
var parserUnverified = new(jwt.Parser)

// TokenInfo is what can be read off a JWT-shaped access token without keys.
type TokenInfo struct {
	Subject   string
	Scope     string
	ExpiresAt time.Time
}

// InspectToken decodes a JWT-shaped access token without verifying its
// signature. JFrog reference tokens are opaque strings; for those (and
// anything else that does not parse) it returns ok=false.
func InspectToken(raw string) (TokenInfo, bool) {
	token, _, err := parserUnverified.ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return TokenInfo{}, false
	}

	var info TokenInfo
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return TokenInfo{}, false
	}

	if sub, err := claims.GetSubject(); err == nil {
		info.Subject = sub
	}
	if scp, ok := claims["scp"].(string); ok {
		info.Scope = scp
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		info.ExpiresAt = exp.Time
	}
	return info, true
}

// LogTokenHealth warns when the configured access token is expired or about
// to expire. Opaque tokens are skipped silently.
func LogTokenHealth(raw string, logger *zap.Logger) {
	info, ok := InspectToken(raw)
	if !ok || info.ExpiresAt.IsZero() {
		return
	}

	remaining := time.Until(info.ExpiresAt)
	switch {
	case remaining <= 0:
		logger.Warn("Access token is expired; requests will be rejected",
			zap.String("subject", info.Subject),
			zap.Time("expired_at", info.ExpiresAt),
		)
	case remaining < expiryWarningWindow:
		logger.Warn("Access token expires soon",
			zap.String("subject", info.Subject),
			zap.Duration("remaining", remaining.Round(time.Minute)),
		)
	default:
		logger.Debug("Access token inspected",
			zap.String("subject", info.Subject),
			zap.Time("expires_at", info.ExpiresAt),
		)
	}
}
