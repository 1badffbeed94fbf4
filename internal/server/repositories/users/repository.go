package users

import (
	"context"

	"github.com/dmitrijs2005/blogify/internal/server/models"
)

// Repository is the credential store. Email is unique; Create returns
// common.ErrorAlreadyExists when it is taken and lookups return
// common.ErrorNotFound for missing rows.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	UpdateProfile(ctx context.Context, id, name, profileImageURL string) (*models.User, error)
	UpdateRole(ctx context.Context, id string, role models.Role) (*models.User, error)
}
