package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/blogify/internal/common"
	"github.com/dmitrijs2005/blogify/internal/server/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	pgmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB starts a PostgreSQL container with the schema migrated.
// Tests are skipped when no container runtime is available.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	if testing.Short() || os.Getenv("SKIP_INTEGRATION") == "true" {
		t.Skip("skipping PostgreSQL integration tests")
	}

	ctx := context.Background()

	container, err := pgmodule.Run(ctx,
		"postgres:16-alpine",
		pgmodule.WithDatabase("blogify_test"),
		pgmodule.WithUsername("test"),
		pgmodule.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Skipf("skipping: could not start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := OpenDB(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, NewPostgresRepositoryManager().RunMigrations(ctx, db))
	return db
}

func TestIntegration_ConcurrentRegistrationSameEmail(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostgresRepositoryManager().Users(db)

	const n = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.Create(context.Background(), &models.User{
				ID:           uuid.NewString(),
				Email:        "race@b.com",
				PasswordHash: "hash",
				Name:         fmt.Sprintf("user %d", i),
			})
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		assert.True(t, errors.Is(err, common.ErrorAlreadyExists), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, created)
}

func TestIntegration_RoleRoundTripAndContent(t *testing.T) {
	db := setupTestDB(t)
	m := NewPostgresRepositoryManager()
	ctx := context.Background()

	u, err := m.Users(db).Create(ctx, &models.User{ID: uuid.NewString(), Email: "ed@b.com", PasswordHash: "h", Name: "Ed"})
	require.NoError(t, err)

	got, err := m.Users(db).UpdateRole(ctx, u.ID, models.RoleEditor)
	require.NoError(t, err)
	assert.Equal(t, models.RoleEditor, got.Role)

	p, err := m.Posts(db).Create(ctx, &models.Post{
		ID: uuid.NewString(), UserID: u.ID, Title: "100% real", Content: "body", Status: models.PostStatusPublished,
	})
	require.NoError(t, err)
	require.NoError(t, m.Posts(db).AttachTags(ctx, p.ID, []string{"go", "sql"}))
	require.NoError(t, m.Posts(db).AttachTags(ctx, p.ID, []string{"go"}))

	found, err := m.Posts(db).Search(ctx, "100%", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, []string{"go", "sql"}, found[0].Tags)
	assert.Equal(t, "Ed", found[0].AuthorName)

	none, err := m.Posts(db).Search(ctx, "1_0", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}
