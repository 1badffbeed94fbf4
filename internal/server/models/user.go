// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is an account row. PasswordHash never leaves the server.
type User struct {
	ID              string
	Email           string
	PasswordHash    string
	Role            Role
	Name            string
	ProfileImageURL string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// PublicUser is the view returned by the auth endpoints.
type PublicUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Profile is the view returned by the profile endpoints.
type Profile struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Role            Role      `json:"role"`
	ProfileImageURL string    `json:"profileImageUrl,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID, Name: u.Name, Email: u.Email}
}

func (u *User) Profile() Profile {
	return Profile{
		ID:              u.ID,
		Name:            u.Name,
		Email:           u.Email,
		Role:            u.Role,
		ProfileImageURL: u.ProfileImageURL,
		CreatedAt:       u.CreatedAt,
	}
}
