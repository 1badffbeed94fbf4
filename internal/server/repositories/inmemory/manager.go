// Package inmemory implements the repository contracts on top of maps. It
// backs service and handler tests and ignores the DBTX it is handed.
package inmemory

import (
	"context"
	"database/sql"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/blogify/internal/common"
	"github.com/dmitrijs2005/blogify/internal/dbx"
	"github.com/dmitrijs2005/blogify/internal/server/models"
	"github.com/dmitrijs2005/blogify/internal/server/repositories/comments"
	"github.com/dmitrijs2005/blogify/internal/server/repositories/posts"
	"github.com/dmitrijs2005/blogify/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/blogify/internal/server/repositories/users"
)

type store struct {
	mu       sync.Mutex
	users    map[string]*models.User
	byEmail  map[string]string
	posts    map[string]*models.Post
	comments map[string][]*models.Comment
	now      func() time.Time
}

type InMemoryRepositoryManager struct {
	s *store
}

var _ repomanager.RepositoryManager = (*InMemoryRepositoryManager)(nil)

func NewInMemoryRepositoryManager() *InMemoryRepositoryManager {
	return &InMemoryRepositoryManager{s: &store{
		users:    map[string]*models.User{},
		byEmail:  map[string]string{},
		posts:    map[string]*models.Post{},
		comments: map[string][]*models.Comment{},
		now:      time.Now,
	}}
}

func (m *InMemoryRepositoryManager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *InMemoryRepositoryManager) Users(dbx.DBTX) users.Repository {
	return (*userRepo)(m.s)
}

func (m *InMemoryRepositoryManager) Posts(dbx.DBTX) posts.Repository {
	return (*postRepo)(m.s)
}

func (m *InMemoryRepositoryManager) Comments(dbx.DBTX) comments.Repository {
	return (*commentRepo)(m.s)
}

// DeleteUser removes a user and everything they own.
func (m *InMemoryRepositoryManager) DeleteUser(id string) {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		delete(s.byEmail, u.Email)
		delete(s.users, id)
	}
	for pid, p := range s.posts {
		if p.UserID == id {
			delete(s.posts, pid)
			delete(s.comments, pid)
		}
	}
}

// --- users ---

type userRepo store

func (r *userRepo) Create(_ context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[user.Email]; ok {
		return nil, common.ErrorAlreadyExists
	}
	now := r.now()
	user.CreatedAt, user.UpdatedAt = now, now
	cp := *user
	r.users[user.ID] = &cp
	r.byEmail[user.Email] = user.ID
	return user, nil
}

func (r *userRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byEmail[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *r.users[id]
	return &cp, nil
}

func (r *userRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *userRepo) UpdateProfile(_ context.Context, id, name, profileImageURL string) (*models.User, error) {
	return r.update(id, func(u *models.User) {
		u.Name = name
		u.ProfileImageURL = profileImageURL
	})
}

func (r *userRepo) UpdateRole(_ context.Context, id string, role models.Role) (*models.User, error) {
	return r.update(id, func(u *models.User) { u.Role = role })
}

func (r *userRepo) update(id string, fn func(u *models.User)) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	fn(u)
	u.UpdatedAt = r.now()
	cp := *u
	return &cp, nil
}

// --- posts ---

type postRepo store

func (r *postRepo) Create(_ context.Context, post *models.Post) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[post.UserID]; !ok {
		return nil, common.ErrorNotFound
	}
	now := r.now()
	post.CreatedAt, post.UpdatedAt = now, now
	cp := *post
	cp.Categories, cp.Tags = []string{}, []string{}
	r.posts[post.ID] = &cp
	return post, nil
}

func (r *postRepo) AttachCategories(_ context.Context, postID string, names []string) error {
	return r.attach(postID, names, func(p *models.Post) *[]string { return &p.Categories })
}

func (r *postRepo) AttachTags(_ context.Context, postID string, names []string) error {
	return r.attach(postID, names, func(p *models.Post) *[]string { return &p.Tags })
}

func (r *postRepo) attach(postID string, names []string, field func(p *models.Post) *[]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[postID]
	if !ok {
		return common.ErrorNotFound
	}
	dst := field(p)
	for _, n := range names {
		if !slices.Contains(*dst, n) {
			*dst = append(*dst, n)
		}
	}
	sort.Strings(*dst)
	return nil
}

func (r *postRepo) GetByID(_ context.Context, id string) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return r.view(p), nil
}

func (r *postRepo) ListPublished(_ context.Context, limit, offset int) ([]*models.Post, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.published(func(*models.Post) bool { return true })
	total := len(all)
	if offset < 0 || offset >= total {
		return []*models.Post{}, total, nil
	}
	end := min(offset+limit, total)
	return all[offset:end], total, nil
}

func (r *postRepo) Search(_ context.Context, q string, limit int) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.published(func(p *models.Post) bool {
		return strings.Contains(p.Title, q) || strings.Contains(p.Content, q)
	})
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r *postRepo) published(match func(*models.Post) bool) []*models.Post {
	out := []*models.Post{}
	for _, p := range r.posts {
		if p.Status == models.PostStatusPublished && match(p) {
			out = append(out, r.view(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *postRepo) view(p *models.Post) *models.Post {
	cp := *p
	cp.Categories = append([]string{}, p.Categories...)
	cp.Tags = append([]string{}, p.Tags...)
	if u, ok := r.users[p.UserID]; ok {
		cp.AuthorName = u.Name
	}
	return &cp
}

// --- comments ---

type commentRepo store

func (r *commentRepo) Create(_ context.Context, c *models.Comment) (*models.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.posts[c.PostID]; !ok {
		return nil, common.ErrorNotFound
	}
	if _, ok := r.users[c.UserID]; !ok {
		return nil, common.ErrorNotFound
	}
	c.CreatedAt = r.now()
	cp := *c
	r.comments[c.PostID] = append(r.comments[c.PostID], &cp)
	return c, nil
}

func (r *commentRepo) ListByPost(_ context.Context, postID string) ([]*models.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*models.Comment{}
	for _, c := range r.comments[postID] {
		cp := *c
		if u, ok := r.users[c.UserID]; ok {
			cp.AuthorName = u.Name
		}
		out = append(out, &cp)
	}
	return out, nil
}
