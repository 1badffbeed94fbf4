package rest

import (
	"net/http"

	"github.com/dmitrijs2005/blogify/internal/common"
	"github.com/dmitrijs2005/blogify/internal/server/models"
	"github.com/dmitrijs2005/blogify/internal/server/services"
	"github.com/gin-gonic/gin"
)

type updateProfileRequest struct {
	Name            *string `json:"name" binding:"omitempty,max=100"`
	ProfileImageURL *string `json:"profileImageUrl" binding:"omitempty,url,max=2048"`
}

func (updateProfileRequest) validationMessages() map[string]string {
	return map[string]string{
		"name":                "Name must be at most 100 characters",
		"profileImageUrl":     "Profile image URL must be at most 2048 characters",
		"profileImageUrl.url": "Profile image URL must be a valid URL",
	}
}

type setRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

func (setRoleRequest) validationMessages() map[string]string {
	return map[string]string{"role": "Role is required"}
}

func (s *HTTPServer) getProfile(c *gin.Context) {
	c.JSON(http.StatusOK, CurrentUser(c).Profile())
}

func (s *HTTPServer) updateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := bindJSON(c, &req); err != nil {
		abort(c, err)
		return
	}

	user, err := s.users.UpdateProfile(c.Request.Context(), CurrentUser(c).ID, services.ProfileUpdate{
		Name:            req.Name,
		ProfileImageURL: req.ProfileImageURL,
	})
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, user.Profile())
}

func (s *HTTPServer) presignAvatar(c *gin.Context) {
	upload, err := s.avatars.PresignUpload(c.Request.Context(), CurrentUser(c).ID)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, upload)
}

func (s *HTTPServer) setRole(c *gin.Context) {
	var req setRoleRequest
	if err := bindJSON(c, &req); err != nil {
		abort(c, err)
		return
	}

	role, err := models.ParseRole(req.Role)
	if err != nil {
		abort(c, common.NewValidationError("role", "Role must be one of Reader, Editor, Admin"))
		return
	}

	user, err := s.users.SetRole(c.Request.Context(), c.Param("id"), role)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, user.Profile())
}
