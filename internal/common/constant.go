package common

// Cookie names used to carry session tokens between the browser and the API.
const (
	AccessTokenCookieName  = "token"
	RefreshTokenCookieName = "refreshToken"
)

// RefreshTokenCookiePath restricts the refresh cookie to the refresh endpoint.
const RefreshTokenCookiePath = "/api/auth/refresh"
