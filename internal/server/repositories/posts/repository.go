// Package posts stores blog posts together with their category and tag
// links.
package posts

import (
	"context"

	"github.com/dmitrijs2005/blogify/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, post *models.Post) (*models.Post, error)
	AttachCategories(ctx context.Context, postID string, names []string) error
	AttachTags(ctx context.Context, postID string, names []string) error
	GetByID(ctx context.Context, id string) (*models.Post, error)
	// ListPublished returns one page of published posts, newest first, and
	// the total number of published posts.
	ListPublished(ctx context.Context, limit, offset int) ([]*models.Post, int, error)
	// Search matches q as a literal substring of title or content.
	Search(ctx context.Context, q string, limit int) ([]*models.Post, error)
}
