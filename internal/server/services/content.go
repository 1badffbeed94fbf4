package services

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"

	"github.com/dmitrijs2005/blogify/internal/common"
	"github.com/dmitrijs2005/blogify/internal/dbx"
	"github.com/dmitrijs2005/blogify/internal/logging"
	"github.com/dmitrijs2005/blogify/internal/server/models"
	"github.com/dmitrijs2005/blogify/internal/server/repositories/posts"
	"github.com/dmitrijs2005/blogify/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
	searchLimit     = 50
)

// NewPost is the input of CreatePost. The author always comes from the
// authenticated session.
type NewPost struct {
	Title      string
	Content    string
	Status     models.PostStatus
	Categories []string
	Tags       []string
}

// Page is one page of a listing.
type Page struct {
	Page     int
	PageSize int
	Total    int
}

type ContentService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	log         logging.Logger
}

func NewContentService(db *sql.DB, m repomanager.RepositoryManager, log logging.Logger) *ContentService {
	return &ContentService{db: db, repomanager: m, log: log.With("module", "services.content")}
}

// CreatePost writes the post row and its category and tag links in one
// transaction.
func (s *ContentService) CreatePost(ctx context.Context, author *models.User, in NewPost) (*models.Post, error) {
	categories, err := normalizeNames("categories", in.Categories)
	if err != nil {
		return nil, err
	}
	tags, err := normalizeNames("tags", in.Tags)
	if err != nil {
		return nil, err
	}

	post := &models.Post{
		ID:      uuid.NewString(),
		UserID:  author.ID,
		Title:   in.Title,
		Content: in.Content,
		Status:  in.Status,
	}
	if post.Status == "" {
		post.Status = models.PostStatusDraft
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Posts(tx)
		if _, err := repo.Create(ctx, post); err != nil {
			return err
		}
		if err := repo.AttachCategories(ctx, post.ID, categories); err != nil {
			return err
		}
		return repo.AttachTags(ctx, post.ID, tags)
	})
	if err != nil {
		return nil, fmt.Errorf("error creating post: %w", err)
	}

	post.AuthorName = author.Name
	post.Categories = categories
	post.Tags = tags
	s.log.Info(ctx, "post created", "post_id", post.ID, "user_id", author.ID)
	return post, nil
}

// GetPost returns the post with id. Drafts are only visible to their author
// and to Editors and Admins; everyone else, including anonymous viewers,
// gets ErrorNotFound.
func (s *ContentService) GetPost(ctx context.Context, viewer *models.User, id string) (*models.Post, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrorNotFound
	}
	post, err := s.repomanager.Posts(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(viewer, post) {
		return nil, common.ErrorNotFound
	}
	return post, nil
}

func canView(viewer *models.User, post *models.Post) bool {
	if post.Status == models.PostStatusPublished {
		return true
	}
	if viewer == nil {
		return false
	}
	return viewer.ID == post.UserID || viewer.Role == models.RoleAdmin || viewer.Role == models.RoleEditor
}

// ListPosts returns published posts newest first. page starts at 1; zero
// values fall back to the defaults.
func (s *ContentService) ListPosts(ctx context.Context, page, pageSize int) ([]*models.Post, Page, error) {
	if page == 0 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	if page < 1 {
		return nil, Page{}, common.NewValidationError("page", "Page must be a positive integer")
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		return nil, Page{}, common.NewValidationError("pageSize", fmt.Sprintf("Page size must be between 1 and %d", MaxPageSize))
	}
	if page > math.MaxInt/pageSize {
		return nil, Page{}, common.NewValidationError("page", "Page must be a positive integer")
	}

	list, total, err := s.repomanager.Posts(s.db).ListPublished(ctx, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, Page{}, err
	}
	return list, Page{Page: page, PageSize: pageSize, Total: total}, nil
}

// Search does a literal substring match over published posts.
func (s *ContentService) Search(ctx context.Context, q string) ([]*models.Post, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, common.NewValidationError("q", "Search query is required")
	}
	return s.repomanager.Posts(s.db).Search(ctx, q, searchLimit)
}

func (s *ContentService) AddComment(ctx context.Context, author *models.User, postID, content string) (*models.Comment, error) {
	if _, err := s.GetPost(ctx, author, postID); err != nil {
		return nil, err
	}

	c, err := s.repomanager.Comments(s.db).Create(ctx, &models.Comment{
		ID:      uuid.NewString(),
		PostID:  postID,
		UserID:  author.ID,
		Content: content,
	})
	if err != nil {
		return nil, err
	}
	c.AuthorName = author.Name
	return c, nil
}

func (s *ContentService) ListComments(ctx context.Context, viewer *models.User, postID string) ([]*models.Comment, error) {
	if _, err := s.GetPost(ctx, viewer, postID); err != nil {
		return nil, err
	}
	return s.repomanager.Comments(s.db).ListByPost(ctx, postID)
}

// normalizeNames trims, drops empties and de-duplicates while keeping order.
func normalizeNames(field string, names []string) ([]string, error) {
	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if strings.Contains(n, posts.NameSeparator) || len(n) > 100 {
			return nil, common.NewValidationError(field, "Names must be at most 100 characters and contain no commas")
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out, nil
}
