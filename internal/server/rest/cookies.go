package rest

import (
	"net/http"

	"github.com/dmitrijs2005/blogify/internal/common"
	"github.com/gin-gonic/gin"
)

// Cookies are HttpOnly and SameSite=Strict. Secure is set in production only
// so the API also works over plain HTTP during development.

func (s *HTTPServer) setAccessCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(common.AccessTokenCookieName, token,
		int(s.config.AccessTokenValidityDuration.Seconds()), "/", "", s.config.Production, true)
}

func (s *HTTPServer) setRefreshCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(common.RefreshTokenCookieName, token,
		int(s.config.RefreshTokenValidityDuration.Seconds()), common.RefreshTokenCookiePath, "", s.config.Production, true)
}

func (s *HTTPServer) clearSessionCookies(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(common.AccessTokenCookieName, "", -1, "/", "", s.config.Production, true)
	c.SetCookie(common.RefreshTokenCookieName, "", -1, common.RefreshTokenCookiePath, "", s.config.Production, true)
}
