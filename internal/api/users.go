package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/safar/storefront/internal/auth"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
)

type signUpRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type signInRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type sessionResponse struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
	Token   string `json:"token"`
}

func (h *Handler) session(c *gin.Context, status int, user *models.User) {
	token, err := h.issuer.Issue(user)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(status, sessionResponse{
		ID:      user.ID,
		Name:    user.Name,
		Email:   user.Email,
		IsAdmin: user.IsAdmin,
		Token:   token,
	})
}

func (h *Handler) signUp(c *gin.Context) {
	var req signUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "name, a valid email and a password of at least 6 characters are required")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	user, err := h.users.CreateUser(c.Request.Context(), req.Email, req.Name, hash, false)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.session(c, http.StatusCreated, user)
}

func (h *Handler) signIn(c *gin.Context) {
	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email and password are required")
		return
	}

	user, err := h.users.GetUserByEmail(c.Request.Context(), req.Email)
	if errors.Is(err, database.ErrNotFound) {
		h.respondError(c, auth.ErrBadCredentials)
		return
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		h.respondError(c, auth.ErrBadCredentials)
		return
	}
	h.session(c, http.StatusOK, user)
}

// updateProfileRequest leaves a field unchanged when it is empty.
type updateProfileRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email" binding:"omitempty,email"`
	Password string `json:"password" binding:"omitempty,min=6"`
}

func (h *Handler) updateProfile(c *gin.Context) {
	claims, ok := auth.CurrentUser(c)
	if !ok {
		h.respondError(c, database.ErrUnauthorized)
		return
	}
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "a valid email and a password of at least 6 characters are required")
		return
	}

	var patch models.UserPatch
	if req.Name != "" {
		patch.Name = &req.Name
	}
	if req.Email != "" {
		patch.Email = &req.Email
	}
	if req.Password != "" {
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			h.respondError(c, err)
			return
		}
		patch.PasswordHash = &hash
	}

	user, err := h.users.UpdateUser(c.Request.Context(), claims.UserID, patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.session(c, http.StatusOK, user)
}
