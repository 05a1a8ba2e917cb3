package controllers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/home-services-api/middleware"
	"github.com/kendall-kelly/home-services-api/services"
)

// CreateUserRequest is the optional body of a registration
type CreateUserRequest struct {
	Role         string `json:"role"`
	ReferralCode string `json:"referral_code"`
	Phone        string `json:"phone"`
}

// UpdateUserRequest represents the request body for updating a user profile
type UpdateUserRequest struct {
	Name string `json:"name" binding:"required,max=100"`
}

// UserController serves registration and profiles
type UserController struct {
	users *services.UserService
}

// NewUserController creates a user controller
func NewUserController(users *services.UserService) *UserController {
	return &UserController{users: users}
}

// CreateUser handles POST /api/v1/users - creates a new user from Auth0 userinfo
// The role comes from the token's custom claim when present, otherwise from the body.
func (ctl *UserController) CreateUser(c *gin.Context) {
	auth0ID, err := middleware.GetUserID(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user ID from token", nil)
		return
	}

	accessToken, err := middleware.GetAccessToken(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "MISSING_TOKEN", "Access token not found", nil)
		return
	}

	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		bindError(c, err)
		return
	}

	role := req.Role
	if claims := middleware.GetCustomClaims(c); claims.Role != "" {
		role = claims.Role
	}

	result, err := ctl.users.Register(c.Request.Context(), services.RegisterInput{
		Auth0ID:      auth0ID,
		AccessToken:  accessToken,
		Role:         role,
		ReferralCode: req.ReferralCode,
		Phone:        req.Phone,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}

	respondOK(c, http.StatusCreated, result)
}

// GetMyProfile handles GET /api/v1/users/me - gets current user's profile
func (ctl *UserController) GetMyProfile(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}

	user, err := ctl.users.GetProfile(c.Request.Context(), principal)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, user)
}

// UpdateMyProfile handles PUT /api/v1/users/me - updates current user's profile
func (ctl *UserController) UpdateMyProfile(c *gin.Context) {
	principal, ok := principalOrAbort(c)
	if !ok {
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, err := ctl.users.UpdateProfile(c.Request.Context(), principal, req.Name)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, user)
}
