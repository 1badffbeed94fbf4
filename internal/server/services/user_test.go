package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/blogify/internal/common"
	"github.com/dmitrijs2005/blogify/internal/dbx"
	"github.com/dmitrijs2005/blogify/internal/logging"
	"github.com/dmitrijs2005/blogify/internal/server/auth"
	"github.com/dmitrijs2005/blogify/internal/server/models"
	"github.com/dmitrijs2005/blogify/internal/server/ratelimit"
	"github.com/dmitrijs2005/blogify/internal/server/repositories/inmemory"
	"github.com/dmitrijs2005/blogify/internal/server/repositories/repomanager"
	usersrepo "github.com/dmitrijs2005/blogify/internal/server/repositories/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- helpers ---

func newIssuer() *auth.TokenIssuer {
	return auth.NewTokenIssuer("access", "refresh", 24*time.Hour, 7*24*time.Hour)
}

func newUserService(t *testing.T, rm repomanager.RepositoryManager, limiter ratelimit.Limiter) *UserService {
	t.Helper()
	return NewUserService(nil, rm, auth.NewBcryptHasher(bcrypt.MinCost), newIssuer(), limiter, logging.Nop())
}

// fakeUsersRepo wraps the in-memory repo and lets tests inject failures.
type fakeUsersRepo struct {
	usersrepo.Repository
	getByEmailErr error
	getByIDErr    error
	createErr     error
}

func (f *fakeUsersRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if f.getByEmailErr != nil {
		return nil, f.getByEmailErr
	}
	return f.Repository.GetByEmail(ctx, email)
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if f.getByIDErr != nil {
		return nil, f.getByIDErr
	}
	return f.Repository.GetByID(ctx, id)
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.Repository.Create(ctx, u)
}

type fakeRepoManager struct {
	*inmemory.InMemoryRepositoryManager
	users *fakeUsersRepo
}

func newFakeRepoManager() *fakeRepoManager {
	m := inmemory.NewInMemoryRepositoryManager()
	return &fakeRepoManager{InMemoryRepositoryManager: m, users: &fakeUsersRepo{Repository: m.Users(nil)}}
}

func (m *fakeRepoManager) Users(dbx.DBTX) usersrepo.Repository { return m.users }

// countingLimiter is an in-process Limiter for throttle flows.
type countingLimiter struct {
	max      int
	failures map[string]int
	checkErr error
}

func (l *countingLimiter) Check(_ context.Context, key string) error {
	if l.checkErr != nil {
		return l.checkErr
	}
	if l.failures[key] >= l.max {
		return &ratelimit.LimitedError{RetryAfter: time.Minute}
	}
	return nil
}

func (l *countingLimiter) Fail(_ context.Context, key string) error {
	l.failures[key]++
	return nil
}

func (l *countingLimiter) Reset(_ context.Context, key string) error {
	delete(l.failures, key)
	return nil
}

// --- register ---

func TestRegister_CreatesReaderAndIssuesAccessToken(t *testing.T) {
	s := newUserService(t, inmemory.NewInMemoryRepositoryManager(), nil)

	sess, err := s.Register(context.Background(), "a@b.com", "secret1", "A")
	require.NoError(t, err)

	assert.NotEmpty(t, sess.User.ID)
	assert.Equal(t, models.RoleReader, sess.User.Role)
	assert.NotEqual(t, "secret1", sess.User.PasswordHash)
	assert.Empty(t, sess.RefreshToken)

	claims, err := newIssuer().Verify(sess.AccessToken, auth.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, claims.UserID)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	s := newUserService(t, inmemory.NewInMemoryRepositoryManager(), nil)

	_, err := s.Register(context.Background(), "a@b.com", "secret1", "A")
	require.NoError(t, err)

	_, err = s.Register(context.Background(), "a@b.com", "other12", "B")
	require.ErrorIs(t, err, common.ErrorAlreadyExists)
}

func TestRegister_UniqueIndexRaceMapsToAlreadyExists(t *testing.T) {
	rm := newFakeRepoManager()
	rm.users.createErr = common.ErrorAlreadyExists
	s := newUserService(t, rm, nil)

	_, err := s.Register(context.Background(), "a@b.com", "secret1", "A")
	require.ErrorIs(t, err, common.ErrorAlreadyExists)
}

func TestRegister_StoreFailure(t *testing.T) {
	rm := newFakeRepoManager()
	rm.users.getByEmailErr = sql.ErrConnDone
	s := newUserService(t, rm, nil)

	_, err := s.Register(context.Background(), "a@b.com", "secret1", "A")
	require.ErrorIs(t, err, sql.ErrConnDone)
	assert.False(t, errors.Is(err, common.ErrorAlreadyExists))
}

// --- login ---

func TestLogin_Success(t *testing.T) {
	s := newUserService(t, inmemory.NewInMemoryRepositoryManager(), nil)
	reg, err := s.Register(context.Background(), "a@b.com", "secret1", "A")
	require.NoError(t, err)

	sess, err := s.Login(context.Background(), "a@b.com", "secret1", "ip")
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, sess.User.ID)

	_, err = newIssuer().Verify(sess.AccessToken, auth.AccessToken)
	require.NoError(t, err)
	_, err = newIssuer().Verify(sess.RefreshToken, auth.RefreshToken)
	require.NoError(t, err)
}

func TestLogin_WrongPasswordAndUnknownEmailLookAlike(t *testing.T) {
	s := newUserService(t, inmemory.NewInMemoryRepositoryManager(), nil)
	_, err := s.Register(context.Background(), "a@b.com", "secret1", "A")
	require.NoError(t, err)

	_, errWrong := s.Login(context.Background(), "a@b.com", "wrong12", "ip")
	_, errUnknown := s.Login(context.Background(), "nobody@b.com", "secret1", "ip")

	require.ErrorIs(t, errWrong, common.ErrorUnauthorized)
	require.ErrorIs(t, errUnknown, common.ErrorUnauthorized)
	assert.Equal(t, errWrong, errUnknown)
}

func TestLogin_StoreFailureIsNotUnauthorized(t *testing.T) {
	rm := newFakeRepoManager()
	rm.users.getByEmailErr = sql.ErrConnDone
	s := newUserService(t, rm, nil)

	_, err := s.Login(context.Background(), "a@b.com", "secret1", "ip")
	require.Error(t, err)
	assert.False(t, errors.Is(err, common.ErrorUnauthorized))
}

func TestLogin_ThrottlesAfterFailuresAndResetsOnSuccess(t *testing.T) {
	lim := &countingLimiter{max: 2, failures: map[string]int{}}
	s := newUserService(t, inmemory.NewInMemoryRepositoryManager(), lim)
	_, err := s.Register(context.Background(), "a@b.com", "secret1", "A")
	require.NoError(t, err)

	_, err = s.Login(context.Background(), "a@b.com", "secret1", "ip")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = s.Login(context.Background(), "a@b.com", "bad", "ip")
		require.ErrorIs(t, err, common.ErrorUnauthorized)
	}

	_, err = s.Login(context.Background(), "a@b.com", "secret1", "ip")
	require.ErrorIs(t, err, common.ErrTooManyAttempts)

	// a different client is unaffected and a success clears its counter
	_, err = s.Login(context.Background(), "a@b.com", "secret1", "other")
	require.NoError(t, err)
	assert.Zero(t, lim.failures["other"])
}

func TestLogin_ThrottleOutageFailsOpen(t *testing.T) {
	lim := &countingLimiter{max: 1, failures: map[string]int{}, checkErr: errors.New("redis down")}
	s := newUserService(t, inmemory.NewInMemoryRepositoryManager(), lim)
	_, err := s.Register(context.Background(), "a@b.com", "secret1", "A")
	require.NoError(t, err)

	_, err = s.Login(context.Background(), "a@b.com", "secret1", "ip")
	require.NoError(t, err)
}

// --- refresh / authenticate ---

func TestRefresh_MintsNewPairWithStoredRole(t *testing.T) {
	rm := inmemory.NewInMemoryRepositoryManager()
	s := newUserService(t, rm, nil)

	sess, err := s.Register(context.Background(), "a@b.com", "secret1", "A")
	require.NoError(t, err)
	login, err := s.Login(context.Background(), "a@b.com", "secret1", "ip")
	require.NoError(t, err)

	_, err = s.SetRole(context.Background(), sess.User.ID, models.RoleEditor)
	require.NoError(t, err)

	refreshed, err := s.Refresh(context.Background(), login.RefreshToken)
	require.NoError(t, err)

	claims, err := newIssuer().Verify(refreshed.AccessToken, auth.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, models.RoleEditor, claims.Role)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)
}

func TestRefresh_RejectsAccessToken(t *testing.T) {
	s := newUserService(t, inmemory.NewInMemoryRepositoryManager(), nil)
	sess, err := s.Register(context.Background(), "a@b.com", "secret1", "A")
	require.NoError(t, err)

	_, err = s.Refresh(context.Background(), sess.AccessToken)
	require.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestAuthenticate(t *testing.T) {
	rm := inmemory.NewInMemoryRepositoryManager()
	s := newUserService(t, rm, nil)
	sess, err := s.Register(context.Background(), "a@b.com", "secret1", "A")
	require.NoError(t, err)

	u, err := s.Authenticate(context.Background(), sess.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", u.Email)

	_, err = s.Authenticate(context.Background(), "garbage")
	require.ErrorIs(t, err, common.ErrInvalidToken)

	rm.DeleteUser(sess.User.ID)
	_, err = s.Authenticate(context.Background(), sess.AccessToken)
	require.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestAuthenticate_StoreFailure(t *testing.T) {
	rm := newFakeRepoManager()
	s := newUserService(t, rm, nil)
	sess, err := s.Register(context.Background(), "a@b.com", "secret1", "A")
	require.NoError(t, err)

	rm.users.getByIDErr = sql.ErrConnDone
	_, err = s.Authenticate(context.Background(), sess.AccessToken)
	require.ErrorIs(t, err, sql.ErrConnDone)
}

// --- profile ---

func TestUpdateProfile(t *testing.T) {
	s := newUserService(t, inmemory.NewInMemoryRepositoryManager(), nil)
	sess, err := s.Register(context.Background(), "a@b.com", "secret1", "A")
	require.NoError(t, err)

	img := "https://cdn.test/a.png"
	u, err := s.UpdateProfile(context.Background(), sess.User.ID, ProfileUpdate{ProfileImageURL: &img})
	require.NoError(t, err)
	assert.Equal(t, "A", u.Name)
	assert.Equal(t, img, u.ProfileImageURL)

	blank := "  "
	_, err = s.UpdateProfile(context.Background(), sess.User.ID, ProfileUpdate{Name: &blank})
	var ve *common.ValidationError
	require.ErrorAs(t, err, &ve)

	_, err = s.UpdateProfile(context.Background(), "ghost", ProfileUpdate{})
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestSetRoleByEmail(t *testing.T) {
	s := newUserService(t, inmemory.NewInMemoryRepositoryManager(), nil)
	_, err := s.Register(context.Background(), "a@b.com", "secret1", "A")
	require.NoError(t, err)

	u, err := s.SetRoleByEmail(context.Background(), "a@b.com", models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, u.Role)

	_, err = s.SetRoleByEmail(context.Background(), "nobody@b.com", models.RoleAdmin)
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestCreateUser_WithRole(t *testing.T) {
	s := newUserService(t, inmemory.NewInMemoryRepositoryManager(), nil)

	u, err := s.CreateUser(context.Background(), "root@b.com", "secret1", "Root", models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, u.Role)

	p, err := s.Profile(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, p.Role)
}

func TestSetRole_MalformedIDIsNotFound(t *testing.T) {
	s := newUserService(t, inmemory.NewInMemoryRepositoryManager(), nil)

	_, err := s.SetRole(context.Background(), "not-a-uuid", models.RoleEditor)
	require.ErrorIs(t, err, common.ErrorNotFound)
}
