package controllers

import (
	"github.com/shashiranjanraj/catalog/app/services"
	"github.com/shashiranjanraj/catalog/pkg/auth"
	"github.com/shashiranjanraj/catalog/pkg/ctx"
)

type AuthController struct {
	service      *services.AuthService
	secureCookie bool
}

func NewAuthController(service *services.AuthService, secureCookie bool) *AuthController {
	return &AuthController{service: service, secureCookie: secureCookie}
}

// Register handles POST /api/auth/register.
func (c *AuthController) Register(x *ctx.Context) {
	var in services.RegisterInput
	if !x.BindJSON(&in) {
		return
	}

	user, err := c.service.Register(x.Context(), in)
	if err != nil {
		x.Fail(err)
		return
	}
	x.Created(user)
}

// Login handles POST /api/auth/login. The token is returned in the body and
// set as an httpOnly cookie.
func (c *AuthController) Login(x *ctx.Context) {
	var in services.LoginInput
	if !x.BindJSON(&in) {
		return
	}

	session, err := c.service.Login(x.Context(), in)
	if err != nil {
		x.Fail(err)
		return
	}

	auth.SetCookie(x.W, session.Token, session.ExpiresAt, c.secureCookie)
	x.Message("Login successful", session)
}

// Logout handles POST /api/auth/logout.
func (c *AuthController) Logout(x *ctx.Context) {
	auth.ClearCookie(x.W, c.secureCookie)
	x.Message("Logged out", nil)
}

// Me handles GET /api/users/me.
func (c *AuthController) Me(x *ctx.Context) {
	user, err := c.service.Me(x.Context(), x.Principal().UserID)
	if err != nil {
		x.Fail(err)
		return
	}
	x.Success(user)
}
