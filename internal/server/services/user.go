// Package services contains server-side business logic. This file implements
// UserService, which handles registration, login, token refresh, session
// resolution and profile management.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dmitrijs2005/blogify/internal/common"
	"github.com/dmitrijs2005/blogify/internal/logging"
	"github.com/dmitrijs2005/blogify/internal/server/auth"
	"github.com/dmitrijs2005/blogify/internal/server/models"
	"github.com/dmitrijs2005/blogify/internal/server/ratelimit"
	"github.com/dmitrijs2005/blogify/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// Session is the outcome of a successful register, login or refresh.
// RefreshToken is empty after registration.
type Session struct {
	User         *models.User
	AccessToken  string
	RefreshToken string
}

// ProfileUpdate carries the optional fields of PATCH /users/me. Nil means
// unchanged.
type ProfileUpdate struct {
	Name            *string
	ProfileImageURL *string
}

// UserService provides authentication-related operations:
// - Register: create Reader accounts and mint an access token
// - Login: verify credentials and mint an access/refresh pair
// - Refresh: exchange a refresh token for a new pair
// - Authenticate: resolve an access token to the current user
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      auth.PasswordHasher
	tokens      *auth.TokenIssuer
	limiter     ratelimit.Limiter
	log         logging.Logger

	dummyOnce sync.Once
	dummyHash string
}

// NewUserService constructs a UserService. A nil limiter disables login
// throttling.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, hasher auth.PasswordHasher,
	tokens *auth.TokenIssuer, limiter ratelimit.Limiter, log logging.Logger) *UserService {
	if limiter == nil {
		limiter = ratelimit.Nop{}
	}
	return &UserService{
		db:          db,
		repomanager: m,
		hasher:      hasher,
		tokens:      tokens,
		limiter:     limiter,
		log:         log.With("module", "services.user"),
	}
}

// Register creates a Reader account and returns it with a fresh access token.
// An email that is already taken yields common.ErrorAlreadyExists, whether it
// is caught by the lookup or by the unique index during insert.
func (s *UserService) Register(ctx context.Context, email, password, name string) (*Session, error) {
	user, err := s.CreateUser(ctx, email, password, name, models.RoleReader)
	if err != nil {
		return nil, err
	}

	access, err := s.tokens.IssueAccessToken(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	s.log.Info(ctx, "user registered", "user_id", user.ID)
	return &Session{User: user, AccessToken: access}, nil
}

// CreateUser stores a new account with the given role. Registration always
// passes RoleReader; the admin CLI uses it to bootstrap privileged users.
func (s *UserService) CreateUser(ctx context.Context, email, password, name string, role models.Role) (*models.User, error) {
	repo := s.repomanager.Users(s.db)

	_, err := repo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, common.ErrorAlreadyExists
	case !errors.Is(err, common.ErrorNotFound):
		return nil, fmt.Errorf("error looking up user: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	user, err := repo.Create(ctx, &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Name:         name,
	})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	return user, nil
}

// Login verifies credentials and returns an access/refresh pair. Unknown
// email and wrong password both yield common.ErrorUnauthorized. clientKey
// identifies the caller for throttling (usually the client IP).
func (s *UserService) Login(ctx context.Context, email, password, clientKey string) (*Session, error) {
	if err := s.limiter.Check(ctx, clientKey); err != nil {
		if errors.Is(err, common.ErrTooManyAttempts) {
			return nil, err
		}
		s.log.Warn(ctx, "login throttle unavailable", "error", err)
	}

	user, err := s.checkCredentials(ctx, email, password)
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			if ferr := s.limiter.Fail(ctx, clientKey); ferr != nil {
				s.log.Warn(ctx, "login throttle unavailable", "error", ferr)
			}
		}
		return nil, err
	}

	if err := s.limiter.Reset(ctx, clientKey); err != nil {
		s.log.Warn(ctx, "login throttle unavailable", "error", err)
	}

	return s.newSession(user)
}

func (s *UserService) checkCredentials(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// Spend the same hashing time as a real mismatch.
			s.hasher.Verify(password, s.dummyDigest())
			return nil, common.ErrorUnauthorized
		}
		return nil, fmt.Errorf("error looking up user: %w", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, common.ErrorUnauthorized
	}
	return user, nil
}

func (s *UserService) dummyDigest() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash(uuid.NewString())
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}

// Refresh validates a refresh token and mints a new pair. The role is read
// from the store, so a role change takes effect on the next refresh.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	claims, err := s.tokens.Verify(refreshToken, auth.RefreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.lookupTokenUser(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	return s.newSession(user)
}

// Authenticate resolves an access token to the user it belongs to. The user
// is loaded fresh on every call.
func (s *UserService) Authenticate(ctx context.Context, accessToken string) (*models.User, error) {
	claims, err := s.tokens.Verify(accessToken, auth.AccessToken)
	if err != nil {
		return nil, err
	}
	return s.lookupTokenUser(ctx, claims.UserID)
}

func (s *UserService) lookupTokenUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}
	return user, nil
}

func (s *UserService) newSession(user *models.User) (*Session, error) {
	access, err := s.tokens.IssueAccessToken(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.tokens.IssueRefreshToken(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	return &Session{User: user, AccessToken: access, RefreshToken: refresh}, nil
}

// Profile returns the stored user.
func (s *UserService) Profile(ctx context.Context, userID string) (*models.User, error) {
	return s.repomanager.Users(s.db).GetByID(ctx, userID)
}

// UpdateProfile applies the non-nil fields of upd.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (*models.User, error) {
	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	name, image := user.Name, user.ProfileImageURL
	if upd.Name != nil {
		name = strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, common.NewValidationError("name", "Name is required")
		}
	}
	if upd.ProfileImageURL != nil {
		image = *upd.ProfileImageURL
	}

	return repo.UpdateProfile(ctx, userID, name, image)
}

// SetRole changes a user's role. Outstanding tokens keep the old role claim
// until they are refreshed; authorization always uses the stored role.
func (s *UserService) SetRole(ctx context.Context, userID string, role models.Role) (*models.User, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, common.ErrorNotFound
	}
	user, err := s.repomanager.Users(s.db).UpdateRole(ctx, userID, role)
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "user role changed", "user_id", userID, "role", role.String())
	return user, nil
}

// SetRoleByEmail is SetRole keyed by email.
func (s *UserService) SetRoleByEmail(ctx context.Context, email string, role models.Role) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return s.SetRole(ctx, user.ID, role)
}
