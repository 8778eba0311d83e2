package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chillcar/service-booking/internal/application"
	"github.com/chillcar/service-booking/internal/platform/middleware"
	"github.com/chillcar/service-booking/internal/platform/response"
)

// AuthHandler handles registration and session endpoints. Sessions travel in an HttpOnly cookie.
type AuthHandler struct {
	service      *application.AuthService
	cookieSecure bool
}

// NewAuthHandler creates a new AuthHandler. cookieSecure marks the session cookie HTTPS-only.
func NewAuthHandler(service *application.AuthService, cookieSecure bool) *AuthHandler {
	return &AuthHandler{service: service, cookieSecure: cookieSecure}
}

// RegisterRoutes registers auth routes.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, authMW gin.HandlerFunc) {
	a := r.Group("/auth")
	a.POST("/register", h.Register)
	a.POST("/login", h.Login)
	a.GET("/logout", authMW, h.Logout)
	a.GET("/current-user", authMW, h.CurrentUser)
	a.GET("/get-token", authMW, h.GetToken)
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req application.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	session, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.setCookie(c, session.Token, time.Until(session.ExpiresAt))
	response.Created(c, session)
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req application.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	session, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.setCookie(c, session.Token, time.Until(session.ExpiresAt))
	response.Success(c, session)
}

// Logout handles GET /auth/logout: the token is revoked and the cookie cleared.
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, _ := middleware.GetClaims(c)
	if err := h.service.Logout(c.Request.Context(), claims); err != nil {
		response.Error(c, err)
		return
	}

	h.setCookie(c, "", -time.Second)
	response.Success(c, gin.H{"loggedOut": true})
}

// CurrentUser handles GET /auth/current-user.
func (h *AuthHandler) CurrentUser(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	user, err := h.service.CurrentUser(c.Request.Context(), actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, user)
}

// GetToken handles GET /auth/get-token, handing the cookie's token to clients that need a header.
func (h *AuthHandler) GetToken(c *gin.Context) {
	response.Success(c, gin.H{"token": middleware.ExtractToken(c)})
}

func (h *AuthHandler) setCookie(c *gin.Context, token string, ttl time.Duration) {
	maxAge := int(ttl.Seconds())
	if ttl < 0 {
		maxAge = -1
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.TokenCookie, token, maxAge, "/", "", h.cookieSecure, true)
}
