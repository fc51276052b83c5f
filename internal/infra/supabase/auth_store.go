package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dhruvpathak9305/OctopusFinanceAiAdvisor-sub000/internal/domain"

	"github.com/google/uuid"
)

// AuthStore implements port.AuthStore. Auth tables are shared between
// demo and live mode; demo only affects the finance tables.
type AuthStore struct {
	client *Client
}

func NewAuthStore(client *Client) *AuthStore {
	return &AuthStore{client: client}
}

func (s *AuthStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "AuthStore.GetUserByEmail")
	defer span.End()

	path := fmt.Sprintf("%s?email=eq.%s&limit=1", tableUsers, email)
	body, err := s.client.readWithRetry(ctx, path)
	if err != nil {
		return nil, mapErr("get user", err)
	}

	var users []domain.User
	if err := json.Unmarshal(body, &users); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	if len(users) == 0 {
		return nil, notFound("user", email)
	}
	return &users[0], nil
}

func (s *AuthStore) GetUserByID(ctx context.Context, userID string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "AuthStore.GetUserByID")
	defer span.End()

	path := fmt.Sprintf("%s?id=eq.%s&limit=1", tableUsers, userID)
	body, err := s.client.readWithRetry(ctx, path)
	if err != nil {
		return nil, mapErr("get user", err)
	}

	var users []domain.User
	if err := json.Unmarshal(body, &users); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	if len(users) == 0 {
		return nil, notFound("user", userID)
	}
	return &users[0], nil
}

// CreateUser inserts the user row and its credential row. PostgREST has
// no cross-table transaction here; a failed credential insert leaves an
// orphaned user that a later registration with the same email surfaces
// as a conflict.
func (s *AuthStore) CreateUser(ctx context.Context, req *domain.RegisterRequest, passwordHash string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "AuthStore.CreateUser")
	defer span.End()

	userRow := map[string]any{
		"id":    uuid.NewString(),
		"email": req.Email,
		"name":  req.Name,
	}
	body, err := s.client.doPost(ctx, tableUsers, userRow)
	if err != nil {
		return nil, mapErr("create user", err)
	}

	var users []domain.User
	if err := json.Unmarshal(body, &users); err != nil {
		return nil, fmt.Errorf("unmarshal created user: %w", err)
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("create user: empty representation")
	}
	user := users[0]

	credRow := map[string]any{
		"user_id":       user.ID,
		"password_hash": passwordHash,
	}
	if _, err := s.client.doPost(ctx, tableCredentials, credRow); err != nil {
		return nil, mapErr("create credentials", err)
	}
	return &user, nil
}

func (s *AuthStore) GetCredentials(ctx context.Context, userID string) (*domain.AuthCredential, error) {
	ctx, span := tracer.Start(ctx, "AuthStore.GetCredentials")
	defer span.End()

	path := fmt.Sprintf("%s?user_id=eq.%s&limit=1", tableCredentials, userID)
	body, err := s.client.readWithRetry(ctx, path)
	if err != nil {
		return nil, mapErr("get credentials", err)
	}

	var creds []domain.AuthCredential
	if err := json.Unmarshal(body, &creds); err != nil {
		return nil, fmt.Errorf("unmarshal credentials: %w", err)
	}
	if len(creds) == 0 {
		return nil, notFound("credentials", userID)
	}
	return &creds[0], nil
}

func (s *AuthStore) StoreRefreshToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	ctx, span := tracer.Start(ctx, "AuthStore.StoreRefreshToken")
	defer span.End()

	row := map[string]any{
		"id":         uuid.NewString(),
		"user_id":    userID,
		"token_hash": tokenHash,
		"expires_at": expiresAt.UTC().Format(time.RFC3339),
		"revoked":    false,
	}
	if _, err := s.client.doPost(ctx, tableRefreshTokens, row); err != nil {
		return mapErr("store refresh token", err)
	}
	return nil
}

func (s *AuthStore) GetRefreshToken(ctx context.Context, tokenHash string) (*domain.AuthRefreshToken, error) {
	ctx, span := tracer.Start(ctx, "AuthStore.GetRefreshToken")
	defer span.End()

	path := fmt.Sprintf("%s?token_hash=eq.%s&limit=1", tableRefreshTokens, tokenHash)
	body, err := s.client.readWithRetry(ctx, path)
	if err != nil {
		return nil, mapErr("get refresh token", err)
	}

	var tokens []domain.AuthRefreshToken
	if err := json.Unmarshal(body, &tokens); err != nil {
		return nil, fmt.Errorf("unmarshal refresh token: %w", err)
	}
	if len(tokens) == 0 {
		return nil, notFound("refresh token", "")
	}
	return &tokens[0], nil
}

func (s *AuthStore) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	ctx, span := tracer.Start(ctx, "AuthStore.RevokeRefreshToken")
	defer span.End()

	path := fmt.Sprintf("%s?token_hash=eq.%s", tableRefreshTokens, tokenHash)
	if _, err := s.client.doPatch(ctx, path, map[string]any{"revoked": true}); err != nil {
		return mapErr("revoke refresh token", err)
	}
	return nil
}

func (s *AuthStore) RevokeAllRefreshTokens(ctx context.Context, userID string) error {
	ctx, span := tracer.Start(ctx, "AuthStore.RevokeAllRefreshTokens")
	defer span.End()

	path := fmt.Sprintf("%s?user_id=eq.%s&revoked=eq.false", tableRefreshTokens, userID)
	if _, err := s.client.doPatch(ctx, path, map[string]any{"revoked": true}); err != nil {
		return mapErr("revoke refresh tokens", err)
	}
	return nil
}
