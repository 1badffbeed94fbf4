package rest

import (
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/blogify/internal/common"
	"github.com/dmitrijs2005/blogify/internal/server/models"
	"github.com/dmitrijs2005/blogify/internal/server/services"
	"github.com/gin-gonic/gin"
)

type createPostRequest struct {
	Title      string   `json:"title" binding:"required,notblank,max=255"`
	Content    string   `json:"content" binding:"required,notblank"`
	Status     string   `json:"status" binding:"omitempty,oneof=draft published"`
	Categories []string `json:"categories"`
	Tags       []string `json:"tags"`
}

func (createPostRequest) validationMessages() map[string]string {
	return map[string]string{
		"title":     "Title is required",
		"title.max": "Title must be at most 255 characters",
		"content":   "Content is required",
		"status":    "Status must be draft or published",
	}
}

type createCommentRequest struct {
	Content string `json:"content" binding:"required,notblank"`
}

func (createCommentRequest) validationMessages() map[string]string {
	return map[string]string{"content": "Content is required"}
}

type pageMeta struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

func (s *HTTPServer) listPosts(c *gin.Context) {
	page, err := intQuery(c, "page", "Page must be a positive integer")
	if err != nil {
		abort(c, err)
		return
	}
	pageSize, err := intQuery(c, "pageSize", "Page size must be a positive integer")
	if err != nil {
		abort(c, err)
		return
	}

	list, p, err := s.content.ListPosts(c.Request.Context(), page, pageSize)
	if err != nil {
		abort(c, err)
		return
	}
	if list == nil {
		list = []*models.Post{}
	}

	c.JSON(http.StatusOK, gin.H{
		"data": list,
		"meta": pageMeta{
			Page:       p.Page,
			PageSize:   p.PageSize,
			Total:      p.Total,
			TotalPages: (p.Total + p.PageSize - 1) / p.PageSize,
		},
	})
}

// intQuery reads an optional integer query parameter; absent means 0.
func intQuery(c *gin.Context, name, msg string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, common.NewValidationError(name, msg)
	}
	return n, nil
}

func (s *HTTPServer) getPost(c *gin.Context) {
	post, err := s.content.GetPost(c.Request.Context(), CurrentUser(c), c.Param("id"))
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (s *HTTPServer) createPost(c *gin.Context) {
	var req createPostRequest
	if err := bindJSON(c, &req); err != nil {
		abort(c, err)
		return
	}

	status, err := models.ParsePostStatus(req.Status)
	if err != nil {
		abort(c, common.NewValidationError("status", "Status must be draft or published"))
		return
	}

	post, err := s.content.CreatePost(c.Request.Context(), CurrentUser(c), services.NewPost{
		Title:      req.Title,
		Content:    req.Content,
		Status:     status,
		Categories: req.Categories,
		Tags:       req.Tags,
	})
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

func (s *HTTPServer) listComments(c *gin.Context) {
	list, err := s.content.ListComments(c.Request.Context(), CurrentUser(c), c.Param("id"))
	if err != nil {
		abort(c, err)
		return
	}
	if list == nil {
		list = []*models.Comment{}
	}
	c.JSON(http.StatusOK, list)
}

func (s *HTTPServer) addComment(c *gin.Context) {
	var req createCommentRequest
	if err := bindJSON(c, &req); err != nil {
		abort(c, err)
		return
	}

	comment, err := s.content.AddComment(c.Request.Context(), CurrentUser(c), c.Param("id"), req.Content)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// search accepts the term as q, or as query for older clients.
func (s *HTTPServer) search(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		q = c.Query("query")
	}

	list, err := s.content.Search(c.Request.Context(), q)
	if err != nil {
		abort(c, err)
		return
	}
	if list == nil {
		list = []*models.Post{}
	}
	c.JSON(http.StatusOK, list)
}
