package controllers

import (
	"github.com/shashiranjanraj/ferremas/app/services"
	"github.com/shashiranjanraj/ferremas/pkg/ctx"
)

type AuthController struct {
	service *services.AuthService
}

func NewAuthController(s *services.AuthService) *AuthController {
	return &AuthController{service: s}
}

func (ac *AuthController) Register(c *ctx.Context) {
	var in services.RegisterInput
	if !c.BindJSON(&in) {
		return
	}
	user, err := ac.service.Register(c.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.Created(user)
}

func (ac *AuthController) Login(c *ctx.Context) {
	var in services.LoginInput
	if !c.BindJSON(&in) {
		return
	}
	session, err := ac.service.Login(c.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(session)
}

type refreshBody struct {
	Refresh string `json:"refresh" validate:"required"`
}

func (ac *AuthController) Refresh(c *ctx.Context) {
	var in refreshBody
	if !c.BindJSON(&in) {
		return
	}
	session, err := ac.service.Refresh(c.Context(), in.Refresh)
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(session)
}

func (ac *AuthController) Logout(c *ctx.Context) {
	var in refreshBody
	if !c.BindJSON(&in) {
		return
	}
	if err := ac.service.Logout(c.Context(), in.Refresh); err != nil {
		fail(c, err)
		return
	}
	c.Success(map[string]bool{"logged_out": true})
}

func (ac *AuthController) Me(c *ctx.Context) {
	user, err := ac.service.Me(c.Context(), c.UserID())
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(user)
}

func (ac *AuthController) CreateStaff(c *ctx.Context) {
	var in services.CreateStaffInput
	if !c.BindJSON(&in) {
		return
	}
	user, err := ac.service.CreateStaff(c.Context(), actor(c), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.Created(user)
}

func (ac *AuthController) Users(c *ctx.Context) {
	page, limit := c.PageParams()
	users, p, err := ac.service.ListUsers(c.Context(), c.Query("role"), page, limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.Paginated(users, p)
}

func (ac *AuthController) SetActive(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		return
	}
	var in struct {
		Active bool `json:"active"`
	}
	if !c.BindJSON(&in) {
		return
	}
	if err := ac.service.SetActive(c.Context(), actor(c), id, in.Active); err != nil {
		fail(c, err)
		return
	}
	c.Success(map[string]any{"id": id, "active": in.Active})
}

func (ac *AuthController) Activity(c *ctx.Context) {
	page, limit := c.PageParams()
	rows, p, err := ac.service.Activity(c.Context(), c.QueryUint("user_id"), page, limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.Paginated(rows, p)
}

func (ac *AuthController) ForgotPassword(c *ctx.Context) {
	var in struct {
		Email string `json:"email" validate:"required,email"`
	}
	if !c.BindJSON(&in) {
		return
	}
	if err := ac.service.RequestPasswordReset(c.Context(), in.Email); err != nil {
		fail(c, err)
		return
	}
	c.Success(map[string]bool{"sent": true})
}

func (ac *AuthController) ResetPassword(c *ctx.Context) {
	var in services.PasswordResetInput
	if !c.BindJSON(&in) {
		return
	}
	if err := ac.service.ConfirmPasswordReset(c.Context(), in); err != nil {
		fail(c, err)
		return
	}
	c.Success(map[string]bool{"reset": true})
}

func (ac *AuthController) ChangePassword(c *ctx.Context) {
	var in services.ChangePasswordInput
	if !c.BindJSON(&in) {
		return
	}
	if err := ac.service.ChangePassword(c.Context(), actor(c), in); err != nil {
		fail(c, err)
		return
	}
	c.Success(map[string]bool{"changed": true})
}

func (ac *AuthController) UpdateProfile(c *ctx.Context) {
	var in services.ProfileInput
	if !c.BindJSON(&in) {
		return
	}
	user, err := ac.service.UpdateProfile(c.Context(), actor(c), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(user)
}

func (ac *AuthController) UpdateUser(c *ctx.Context) {
	id, ok := c.ParamUint("id")
	if !ok {
		return
	}
	var in services.UpdateUserInput
	if !c.BindJSON(&in) {
		return
	}
	user, err := ac.service.UpdateUser(c.Context(), actor(c), id, in)
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(user)
}
