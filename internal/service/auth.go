package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/dhruvpathak9305/OctopusFinanceAiAdvisor-sub000/internal/domain"
	"github.com/dhruvpathak9305/OctopusFinanceAiAdvisor-sub000/internal/port"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 12

// AuthService issues and validates tokens. Access tokens are short-lived
// HS256 JWTs; refresh tokens are opaque, stored hashed, and rotated on
// every refresh.
type AuthService struct {
	store      port.AuthStore
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	logger     *zap.Logger

	now func() time.Time
}

func NewAuthService(store port.AuthStore, secret string, accessTTL, refreshTTL time.Duration, logger *zap.Logger) *AuthService {
	return &AuthService{
		store:      store,
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		logger:     logger,
		now:        time.Now,
	}
}

// Register creates a user and logs them in.
func (s *AuthService) Register(ctx context.Context, req *domain.RegisterRequest) (*domain.AuthResponse, error) {
	ctx, span := tracer.Start(ctx, "AuthService.Register")
	defer span.End()

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if !strings.Contains(email, "@") {
		return nil, &domain.ErrValidation{Field: "email", Message: "not a valid email address"}
	}
	if len(req.Password) < 8 {
		return nil, &domain.ErrValidation{Field: "password", Message: "password must be at least 8 characters"}
	}

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return nil, &domain.ErrConflict{Message: "email already registered"}
	} else {
		var nf *domain.ErrNotFound
		if !errors.As(err, &nf) {
			return nil, err
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return nil, err
	}
	user, err := s.store.CreateUser(ctx, &domain.RegisterRequest{Email: email, Name: req.Name}, string(hash))
	if err != nil {
		return nil, err
	}
	s.logger.Info("user registered", zap.String("user_id", user.ID))

	tokens, err := s.issueTokens(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &domain.AuthResponse{User: user, Tokens: tokens}, nil
}

// Login verifies credentials and issues a token pair. Unknown emails and
// wrong passwords report the same error.
func (s *AuthService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.AuthResponse, error) {
	ctx, span := tracer.Start(ctx, "AuthService.Login")
	defer span.End()

	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		var nf *domain.ErrNotFound
		if errors.As(err, &nf) {
			return nil, &domain.ErrUnauthorized{Message: "invalid credentials"}
		}
		return nil, err
	}

	cred, err := s.store.GetCredentials(ctx, user.ID)
	if err != nil {
		var nf *domain.ErrNotFound
		if errors.As(err, &nf) {
			return nil, &domain.ErrUnauthorized{Message: "invalid credentials"}
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(req.Password)); err != nil {
		return nil, &domain.ErrUnauthorized{Message: "invalid credentials"}
	}

	tokens, err := s.issueTokens(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user logged in", zap.String("user_id", user.ID))
	return &domain.AuthResponse{User: user, Tokens: tokens}, nil
}

// Refresh rotates a refresh token: the presented token is revoked and a
// fresh pair is issued. Revoked or expired tokens are rejected.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	ctx, span := tracer.Start(ctx, "AuthService.Refresh")
	defer span.End()

	stored, err := s.store.GetRefreshToken(ctx, hashToken(refreshToken))
	if err != nil {
		var nf *domain.ErrNotFound
		if errors.As(err, &nf) {
			return nil, &domain.ErrUnauthorized{Message: "invalid refresh token"}
		}
		return nil, err
	}
	if stored.Revoked || s.now().After(stored.ExpiresAt) {
		return nil, &domain.ErrUnauthorized{Message: "refresh token expired or revoked"}
	}

	if err := s.store.RevokeRefreshToken(ctx, stored.TokenHash); err != nil {
		return nil, err
	}
	return s.issueTokens(ctx, stored.UserID)
}

// Logout revokes the presented refresh token. Unknown tokens are not an
// error; logout is idempotent.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	ctx, span := tracer.Start(ctx, "AuthService.Logout")
	defer span.End()

	if err := s.store.RevokeRefreshToken(ctx, hashToken(refreshToken)); err != nil {
		var nf *domain.ErrNotFound
		if errors.As(err, &nf) {
			return nil
		}
		return err
	}
	return nil
}

// ValidateAccessToken parses and verifies an access JWT and returns the
// user ID it was issued for.
func (s *AuthService) ValidateAccessToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return "", &domain.ErrUnauthorized{Message: "invalid access token"}
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", &domain.ErrUnauthorized{Message: "invalid access token"}
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", &domain.ErrUnauthorized{Message: "invalid access token"}
	}
	return sub, nil
}

func (s *AuthService) issueTokens(ctx context.Context, userID string) (*domain.TokenPair, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(s.accessTTL).Unix(),
		"jti": uuid.NewString(),
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, err
	}

	refresh, err := randomToken()
	if err != nil {
		return nil, err
	}
	if err := s.store.StoreRefreshToken(ctx, userID, hashToken(refresh), now.Add(s.refreshTTL)); err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// hashToken stores only a digest of refresh tokens; a leaked table does
// not leak usable tokens.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
