// Package comments stores comments attached to posts.
package comments

import (
	"context"

	"github.com/dmitrijs2005/blogify/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, comment *models.Comment) (*models.Comment, error)
	ListByPost(ctx context.Context, postID string) ([]*models.Comment, error)
}
