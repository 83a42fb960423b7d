package handler

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/boddenberg/shoeshop-bot-go/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenType   = "webhook"
	tokenIssuer = "shopbot"
	bcryptCost  = 12
)

// AuthConfig selects how the webhook is protected. With neither a JWT
// secret nor a basic user set, the webhook is open.
type AuthConfig struct {
	JWTSecret         []byte
	BasicUser         string
	BasicPasswordHash string // bcrypt
}

// Enabled reports whether any scheme is configured.
func (c AuthConfig) Enabled() bool {
	return len(c.JWTSecret) > 0 || c.BasicUser != ""
}

// WebhookClaims are the claims of a webhook bearer token.
type WebhookClaims struct {
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// WebhookAuthMiddleware accepts a Bearer JWT signed with the configured
// secret, or Basic credentials matching the configured user and bcrypt
// hash.
func WebhookAuthMiddleware(cfg AuthConfig, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !cfg.Enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("auth: missing credentials",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				unauthorized(w, cfg, "missing credentials")
				return
			}

			scheme, value, _ := strings.Cut(authHeader, " ")
			var err error
			switch {
			case strings.EqualFold(scheme, "Bearer") && len(cfg.JWTSecret) > 0:
				err = ValidateWebhookToken(cfg.JWTSecret, value)
			case strings.EqualFold(scheme, "Basic") && cfg.BasicUser != "":
				err = checkBasic(cfg, r)
			default:
				err = &domain.ErrUnauthorized{Message: "unsupported authorization scheme"}
			}
			if err != nil {
				logger.Warn("auth: rejected",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err),
				)
				unauthorized(w, cfg, err.Error())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func checkBasic(cfg AuthConfig, r *http.Request) error {
	user, password, ok := r.BasicAuth()
	if !ok {
		return &domain.ErrUnauthorized{Message: "malformed basic credentials"}
	}
	if subtle.ConstantTimeCompare([]byte(user), []byte(cfg.BasicUser)) != 1 {
		return &domain.ErrUnauthorized{Message: "invalid credentials"}
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cfg.BasicPasswordHash), []byte(password)); err != nil {
		return &domain.ErrUnauthorized{Message: "invalid credentials"}
	}
	return nil
}

func unauthorized(w http.ResponseWriter, cfg AuthConfig, msg string) {
	if cfg.BasicUser != "" {
		w.Header().Set("WWW-Authenticate", `Basic realm="shopbot"`)
	}
	writeError(w, http.StatusUnauthorized, msg)
}

// ============================================================
// Tokens and password hashes
// ============================================================

// SignWebhookToken issues an HS256 token accepted by the webhook for ttl.
func SignWebhookToken(secret []byte, ttl time.Duration, now time.Time) (string, error) {
	claims := WebhookClaims{
		Type: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    tokenIssuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ValidateWebhookToken checks signature, expiry and token type.
func ValidateWebhookToken(secret []byte, tokenString string) error {
	token, err := jwt.ParseWithClaims(tokenString, &WebhookClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return &domain.ErrUnauthorized{Message: "invalid or expired token"}
	}

	claims, ok := token.Claims.(*WebhookClaims)
	if !ok || !token.Valid || claims.Type != tokenType {
		return &domain.ErrUnauthorized{Message: "invalid token"}
	}
	return nil
}

// HashPassword returns the bcrypt hash expected in WEBHOOK_BASIC_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
