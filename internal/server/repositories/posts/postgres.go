package posts

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/blogify/internal/common"
	"github.com/dmitrijs2005/blogify/internal/dbx"
	"github.com/dmitrijs2005/blogify/internal/server/models"
)

// NameSeparator joins aggregated category and tag names, so names must not
// contain it.
const NameSeparator = ","

const selectPosts = `
SELECT p.id, p.user_id, u.name, p.title, p.content, p.status, p.created_at, p.updated_at,
       COALESCE((SELECT string_agg(c.name, ',' ORDER BY c.name)
                   FROM post_categories pc JOIN categories c ON c.id = pc.category_id
                  WHERE pc.post_id = p.id), ''),
       COALESCE((SELECT string_agg(t.name, ',' ORDER BY t.name)
                   FROM post_tags pt JOIN tags t ON t.id = pt.tag_id
                  WHERE pt.post_id = p.id), '')
  FROM posts p
  JOIN users u ON u.id = p.user_id`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, post *models.Post) (*models.Post, error) {
	query :=
		`INSERT INTO posts (id, user_id, title, content, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query, post.ID, post.UserID, post.Title, post.Content, string(post.Status)).
		Scan(&post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		if dbx.IsForeignKeyViolation(err) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return post, nil
}

func (r *PostgresRepository) AttachCategories(ctx context.Context, postID string, names []string) error {
	query :=
		`WITH c AS (
		     INSERT INTO categories (name) VALUES ($2)
		     ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		     RETURNING id
		 )
		 INSERT INTO post_categories (post_id, category_id)
		 SELECT $1, id FROM c
		 ON CONFLICT DO NOTHING`

	return r.attach(ctx, query, postID, names)
}

func (r *PostgresRepository) AttachTags(ctx context.Context, postID string, names []string) error {
	query :=
		`WITH t AS (
		     INSERT INTO tags (name) VALUES ($2)
		     ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		     RETURNING id
		 )
		 INSERT INTO post_tags (post_id, tag_id)
		 SELECT $1, id FROM t
		 ON CONFLICT DO NOTHING`

	return r.attach(ctx, query, postID, names)
}

func (r *PostgresRepository) attach(ctx context.Context, query, postID string, names []string) error {
	for _, name := range names {
		if _, err := r.db.ExecContext(ctx, query, postID, name); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	rows, err := r.db.QueryContext(ctx, selectPosts+`
 WHERE p.id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	list, err := scanPosts(rows)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, common.ErrorNotFound
	}
	return list[0], nil
}

func (r *PostgresRepository) ListPublished(ctx context.Context, limit, offset int) ([]*models.Post, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM posts WHERE status = 'published'`).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, selectPosts+`
 WHERE p.status = 'published'
 ORDER BY p.created_at DESC, p.id
 LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	list, err := scanPosts(rows)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *PostgresRepository) Search(ctx context.Context, q string, limit int) ([]*models.Post, error) {
	pattern := "%" + EscapeLike(q) + "%"

	rows, err := r.db.QueryContext(ctx, selectPosts+`
 WHERE p.status = 'published'
   AND (p.title LIKE $1 ESCAPE '\' OR p.content LIKE $1 ESCAPE '\')
 ORDER BY p.created_at DESC, p.id
 LIMIT $2`, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return scanPosts(rows)
}

// EscapeLike makes s match literally inside a LIKE pattern that uses
// backslash as the escape character.
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func scanPosts(rows *sql.Rows) ([]*models.Post, error) {
	defer rows.Close()

	var out []*models.Post
	for rows.Next() {
		var (
			p                models.Post
			status           string
			categories, tags string
		)
		if err := rows.Scan(&p.ID, &p.UserID, &p.AuthorName, &p.Title, &p.Content, &status,
			&p.CreatedAt, &p.UpdatedAt, &categories, &tags); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		p.Status = models.PostStatus(status)
		p.Categories = splitNames(categories)
		p.Tags = splitNames(tags)
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func splitNames(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, NameSeparator)
}
