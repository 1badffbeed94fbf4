package models

import (
	"fmt"
	"time"
)

type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusPublished PostStatus = "published"
)

func ParsePostStatus(s string) (PostStatus, error) {
	switch PostStatus(s) {
	case "":
		return PostStatusDraft, nil
	case PostStatusDraft, PostStatusPublished:
		return PostStatus(s), nil
	}
	return "", fmt.Errorf("unknown post status %q", s)
}

type Post struct {
	ID         string     `json:"id"`
	UserID     string     `json:"userId"`
	AuthorName string     `json:"authorName,omitempty"`
	Title      string     `json:"title"`
	Content    string     `json:"content"`
	Status     PostStatus `json:"status"`
	Categories []string   `json:"categories"`
	Tags       []string   `json:"tags"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

type Comment struct {
	ID         string    `json:"id"`
	PostID     string    `json:"postId"`
	UserID     string    `json:"userId"`
	AuthorName string    `json:"authorName,omitempty"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
}
