package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/blogify/internal/dbx"
	"github.com/dmitrijs2005/blogify/internal/server/repositories/comments"
	"github.com/dmitrijs2005/blogify/internal/server/repositories/posts"
	"github.com/dmitrijs2005/blogify/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to either the pool or a
// transaction, so services decide the transactional scope.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Posts(db dbx.DBTX) posts.Repository
	Comments(db dbx.DBTX) comments.Repository
}
