package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// RoleAdmin - значение claim role у администратора
const RoleAdmin = "admin"

var (
	ErrNoToken   = errors.New("no authorization header")
	ErrBadToken  = errors.New("invalid token")
	ErrNotAdmin  = errors.New("administrator role required")
	errBadScheme = errors.New("authorization header must be Bearer token")
)

type contextKey string

const subjectKey contextKey = "subject"

// Claims - содержимое токена администратора
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier проверяет HS256 токены, выпущенные сервисом учетных записей
type Verifier struct {
	secret []byte
	logger *zap.Logger
}

func NewVerifier(secret string, logger *zap.Logger) *Verifier {
	return &Verifier{secret: []byte(secret), logger: logger}
}

// VerifyToken проверяет токен из заголовка Authorization и возвращает его claims
func (v *Verifier) VerifyToken(r *http.Request) (*Claims, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, ErrNoToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
		return nil, errBadScheme
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(strings.TrimSpace(token), claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadToken, err)
	}
	return claims, nil
}

// RequireAdmin пропускает только запросы с действующим токеном администратора
func (v *Verifier) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := v.VerifyToken(r)
		if err != nil {
			v.logger.Debug("admin auth rejected", zap.Error(err))
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if claims.Role != RoleAdmin {
			v.logger.Warn("non-admin token used on admin route",
				zap.String("subject", claims.Subject),
				zap.String("path", r.URL.Path))
			http.Error(w, ErrNotAdmin.Error(), http.StatusForbidden)
			return
		}

		ctx := context.WithValue(r.Context(), subjectKey, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SubjectFromContext возвращает subject токена администратора
func SubjectFromContext(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(subjectKey).(string)
	return subject, ok
}
