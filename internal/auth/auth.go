// Package auth issues and checks admin JWTs.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const RoleAdmin = "admin"

const (
	accessTTL  = 15 * time.Minute
	refreshTTL = 7 * 24 * time.Hour
)

var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrInvalidToken       = errors.New("auth: invalid token")
)

type Claims struct {
	UserID string
	Role   string
}

type jwtClaims struct {
	UserID string `json:"uid"`
	Role   string `json:"role"`
	Kind   string `json:"typ"`
	jwt.RegisteredClaims
}

type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int    `json:"expiresIn"`
}

type Service struct {
	secret []byte
	user   string
	hash   []byte
	now    func() time.Time
}

// NewService signs tokens with secret and checks logins against a single
// admin account. passwordHash wins over password when both are set.
func NewService(secret, user, password, passwordHash string) (*Service, error) {
	s := &Service{secret: []byte(secret), user: user, now: time.Now}
	switch {
	case passwordHash != "":
		if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
			return nil, err
		}
		s.hash = []byte(passwordHash)
	case password != "":
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		s.hash = hash
	}
	return s, nil
}

// Login checks the admin credentials. With no admin password configured
// every login fails.
func (s *Service) Login(user, password string) (Tokens, error) {
	if len(s.hash) == 0 || user != s.user {
		return Tokens{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(s.hash, []byte(password)); err != nil {
		return Tokens{}, ErrInvalidCredentials
	}
	return s.GenerateTokens(user, RoleAdmin)
}

func (s *Service) GenerateTokens(userID, role string) (Tokens, error) {
	now := s.now()
	access, err := s.sign(jwtClaims{
		UserID: userID,
		Role:   role,
		Kind:   "access",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})
	if err != nil {
		return Tokens{}, err
	}
	refresh, err := s.sign(jwtClaims{
		UserID: userID,
		Role:   role,
		Kind:   "refresh",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(refreshTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})
	if err != nil {
		return Tokens{}, err
	}
	return Tokens{AccessToken: access, RefreshToken: refresh, ExpiresIn: int(accessTTL.Seconds())}, nil
}

func (s *Service) sign(c jwtClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
}

func (s *Service) parseToken(tokenStr, kind string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &jwtClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	c, ok := token.Claims.(*jwtClaims)
	if !ok || c.Kind != kind {
		return nil, ErrInvalidToken
	}
	return &Claims{UserID: c.UserID, Role: c.Role}, nil
}

func (s *Service) ParseToken(tokenStr string) (*Claims, error) {
	return s.parseToken(tokenStr, "access")
}

// Refresh trades a refresh token for a new pair.
func (s *Service) Refresh(refreshToken string) (Tokens, error) {
	claims, err := s.parseToken(refreshToken, "refresh")
	if err != nil {
		return Tokens{}, err
	}
	return s.GenerateTokens(claims.UserID, claims.Role)
}

type ctxKey string

const claimsKey ctxKey = "claims"

func ClaimsFromContext(ctx context.Context) *Claims {
	val, ok := ctx.Value(claimsKey).(*Claims)
	if !ok {
		return nil
	}
	return val
}

func (s *Service) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authz := r.Header.Get("Authorization")
		if authz == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}
		parts := strings.SplitN(authz, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			http.Error(w, "invalid auth header", http.StatusUnauthorized)
			return
		}
		claims, err := s.ParseToken(parts[1])
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Service) RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return s.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil || claims.Role != role {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}
