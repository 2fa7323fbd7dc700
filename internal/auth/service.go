package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"github.com/yeezy-com/stride-track-explore/internal/db"
)

const (
	accessTokenTTL  = 15 * time.Minute
	refreshTokenTTL = 7 * 24 * time.Hour
)

var (
	ErrMissingFields      = errors.New("email, display_name, password required")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenInvalid       = errors.New("token invalid")
	ErrRefreshInvalid     = errors.New("refresh token invalid")
	ErrEmailTaken         = errors.New("email already registered")
	ErrRunnerNotFound     = errors.New("runner not found")
	ErrUnavailable        = errors.New("auth: runner accounts unavailable")
)

const uniqueViolation = "23505"

type Service struct {
	secret []byte
	db     db.Querier
}

type Claims struct {
	RunnerID string `json:"runner_id"`
	jwt.RegisteredClaims
}

var (
	signTokenFn       = (*Service).signToken
	hashPasswordFn    = bcrypt.GenerateFromPassword
	parseWithClaimsFn = jwt.ParseWithClaims
)

func NewService(secret string, q db.Querier) *Service {
	return &Service{
		secret: []byte(secret),
		db:     q,
	}
}

// Register creates a runner account. Emails are compared case-insensitively.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (Runner, TokenResponse, error) {
	req.Email = normalizeEmail(req.Email)
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if req.Email == "" || req.DisplayName == "" || req.Password == "" {
		return Runner{}, TokenResponse{}, ErrMissingFields
	}
	if s.db == nil {
		return Runner{}, TokenResponse{}, ErrUnavailable
	}
	hash, err := hashPasswordFn([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return Runner{}, TokenResponse{}, err
	}

	runner := Runner{
		ID:           uuid.NewString(),
		Email:        req.Email,
		DisplayName:  req.DisplayName,
		PasswordHash: string(hash),
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO runners (id, email, display_name, password_hash)
		VALUES ($1,$2,$3,$4)
		RETURNING created_at
	`, runner.ID, runner.Email, runner.DisplayName, runner.PasswordHash)
	if err := row.Scan(&runner.CreatedAt); err != nil {
		var pgError *pgconn.PgError
		if errors.As(err, &pgError) && pgError.Code == uniqueViolation {
			return Runner{}, TokenResponse{}, ErrEmailTaken
		}
		return Runner{}, TokenResponse{}, fmt.Errorf("auth: register: %w", err)
	}

	tokens, err := s.GenerateTokens(ctx, runner.ID)
	if err != nil {
		return Runner{}, TokenResponse{}, err
	}
	return runner, tokens, nil
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (Runner, TokenResponse, error) {
	if s.db == nil {
		return Runner{}, TokenResponse{}, ErrUnavailable
	}
	runner, err := s.findRunner(ctx, "email", normalizeEmail(req.Email))
	if errors.Is(err, ErrRunnerNotFound) {
		return Runner{}, TokenResponse{}, ErrInvalidCredentials
	}
	if err != nil {
		return Runner{}, TokenResponse{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(runner.PasswordHash), []byte(req.Password)); err != nil {
		return Runner{}, TokenResponse{}, ErrInvalidCredentials
	}

	tokens, err := s.GenerateTokens(ctx, runner.ID)
	if err != nil {
		return Runner{}, TokenResponse{}, err
	}
	return runner, tokens, nil
}

func (s *Service) GenerateTokens(ctx context.Context, runnerID string) (TokenResponse, error) {
	access, err := signTokenFn(s, runnerID, accessTokenTTL)
	if err != nil {
		return TokenResponse{}, err
	}

	refresh, err := signTokenFn(s, runnerID, refreshTokenTTL)
	if err != nil {
		return TokenResponse{}, err
	}

	if err := s.saveRefreshToken(ctx, refresh, runnerID, refreshTokenTTL); err != nil {
		return TokenResponse{}, err
	}

	return TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(accessTokenTTL.Seconds()),
	}, nil
}

// Profile returns the runner behind an access token.
func (s *Service) Profile(ctx context.Context, runnerID string) (Runner, error) {
	if s.db == nil {
		return Runner{}, ErrUnavailable
	}
	return s.findRunner(ctx, "id", runnerID)
}

// Logout revokes a refresh token so it can no longer mint access tokens.
// Access tokens already issued stay valid until they expire.
func (s *Service) Logout(ctx context.Context, token string) error {
	if _, err := s.parseToken(token); err != nil {
		return err
	}
	if s.db == nil {
		return ErrUnavailable
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE refresh_tokens SET revoked_at = now()
		WHERE token = $1 AND revoked_at IS NULL
	`, token)
	if err != nil {
		return fmt.Errorf("auth: revoke refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRefreshInvalid
	}
	return nil
}

func (s *Service) ValidateRefreshToken(ctx context.Context, token string) (string, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return "", err
	}
	if s.db == nil {
		return "", ErrUnavailable
	}

	runnerID, expiresAt, err := s.lookupRefreshToken(ctx, token)
	if err != nil || runnerID != claims.RunnerID || time.Now().After(expiresAt) {
		return "", ErrRefreshInvalid
	}
	return claims.RunnerID, nil
}

func (s *Service) ValidateAccessToken(token string) (string, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return "", err
	}
	return claims.RunnerID, nil
}

func (s *Service) signToken(runnerID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RunnerID: runnerID,
		RegisteredClaims: jwt.RegisteredClaims{
			// Two tokens signed in the same second would otherwise be identical.
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Service) parseToken(token string) (*Claims, error) {
	parsed, err := parseWithClaimsFn(token, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// findRunner looks a runner up by a unique column: "id" or "email".
func (s *Service) findRunner(ctx context.Context, column, value string) (Runner, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, email, display_name, password_hash, created_at
		FROM runners WHERE `+column+` = $1
	`, value)

	var runner Runner
	err := row.Scan(&runner.ID, &runner.Email, &runner.DisplayName, &runner.PasswordHash, &runner.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Runner{}, ErrRunnerNotFound
	}
	if err != nil {
		return Runner{}, fmt.Errorf("auth: find runner: %w", err)
	}
	return runner, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) saveRefreshToken(ctx context.Context, token, runnerID string, ttl time.Duration) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO refresh_tokens (id, runner_id, token, expires_at)
		VALUES ($1,$2,$3,$4)
	`, uuid.NewString(), runnerID, token, time.Now().Add(ttl))
	return err
}

func (s *Service) lookupRefreshToken(ctx context.Context, token string) (string, time.Time, error) {
	row := s.db.QueryRow(ctx, `
		SELECT runner_id, expires_at
		FROM refresh_tokens
		WHERE token = $1 AND revoked_at IS NULL
	`, token)
	var runnerID string
	var expiresAt time.Time
	if err := row.Scan(&runnerID, &expiresAt); err != nil {
		return "", time.Time{}, err
	}
	return runnerID, expiresAt, nil
}
