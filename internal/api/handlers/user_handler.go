package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"krishilink/api/internal/services"
)

// UserHandler handles REST requests for user accounts.
type UserHandler struct {
	userService services.IUserService
	logger      *zap.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(userService services.IUserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{userService: userService, logger: logger}
}

// List handles GET /users?currentEmail=&limit=
func (h *UserHandler) List(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil || limit < 0 {
		limit = 0
	}
	users, err := h.userService.List(c.Request.Context(), c.Query("currentEmail"), limit)
	if err != nil {
		respondError(c, h.logger, err, "Failed to fetch users")
		return
	}
	c.JSON(http.StatusOK, users)
}

// GetByEmail handles GET /users/:email
func (h *UserHandler) GetByEmail(c *gin.Context) {
	user, err := h.userService.GetByEmail(c.Request.Context(), c.Param("email"))
	if err != nil {
		respondError(c, h.logger, err, "Failed to fetch user")
		return
	}
	c.JSON(http.StatusOK, user)
}

// Login handles POST /users: records a sign-in, creating the account on first
// sight.
func (h *UserHandler) Login(c *gin.Context) {
	var in services.LoginInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	id, created, err := h.userService.Login(c.Request.Context(), in)
	if err != nil {
		respondError(c, h.logger, err, "Failed to save user")
		return
	}
	if !created {
		c.JSON(http.StatusOK, gin.H{"message": "User already exists. Login time updated."})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "User created", "insertedId": id})
}

type updateRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// UpdateRole handles PATCH /users/:id/role
func (h *UserHandler) UpdateRole(c *gin.Context) {
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	var req updateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": services.ErrInvalidRole.Error()})
		return
	}
	if err := h.userService.UpdateRole(c.Request.Context(), id, req.Role); err != nil {
		respondError(c, h.logger, err, "Failed to update role")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Role updated to " + req.Role})
}

// Delete handles DELETE /users/:id
func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.userService.Delete(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, err, "Failed to delete user")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "User deleted"})
}
