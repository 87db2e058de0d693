package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docflow/api/internal/apperr"
	"docflow/api/internal/middleware"
	"docflow/api/internal/models"
)

func (h HandlerSet) Me(c *gin.Context) {
	user, ok := middleware.UserFrom(c)
	if !ok {
		h.respondError(c, apperr.Unauthenticated("unauthorized"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(user)})
}

func (h HandlerSet) ListUsers(c *gin.Context) {
	users, err := h.userService.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := make([]userResponse, 0, len(users))
	for _, user := range users {
		resp = append(resp, toUserResponse(user))
	}
	c.JSON(http.StatusOK, gin.H{"users": resp})
}

func (h HandlerSet) GetUser(c *gin.Context) {
	user, err := h.userService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(user)})
}

type updateUserRequest struct {
	Role     string `json:"role"`
	Password string `json:"password"`
}

// UpdateUser lets an admin change a user's role and/or password. The
// self-demotion guard lives in the service, ahead of any mutation.
func (h HandlerSet) UpdateUser(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		h.respondError(c, apperr.Unauthenticated("unauthorized"))
		return
	}

	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperr.Validation(err.Error()))
		return
	}

	targetID := c.Param("id")
	user, err := h.userService.Get(c.Request.Context(), targetID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if req.Role != "" {
		user, err = h.userService.UpdateRole(c.Request.Context(), principal, targetID, models.Role(req.Role))
		if err != nil {
			h.respondError(c, err)
			return
		}
	}
	if req.Password != "" {
		if err := h.userService.UpdatePassword(c.Request.Context(), principal, targetID, req.Password); err != nil {
			h.respondError(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(user)})
}

func (h HandlerSet) DeleteUser(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		h.respondError(c, apperr.Unauthenticated("unauthorized"))
		return
	}

	if err := h.userService.Delete(c.Request.Context(), principal, c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type updatePasswordRequest struct {
	Password string `json:"password" binding:"required,min=8"`
}

// UpdatePassword is the self-or-admin password change endpoint.
func (h HandlerSet) UpdatePassword(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		h.respondError(c, apperr.Unauthenticated("unauthorized"))
		return
	}

	var req updatePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperr.Validation(err.Error()))
		return
	}

	if err := h.userService.UpdatePassword(c.Request.Context(), principal, c.Param("id"), req.Password); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password updated"})
}
