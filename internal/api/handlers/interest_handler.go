package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"krishilink/api/internal/api/middleware"
	"krishilink/api/internal/services"
)

// InterestHandler handles the buyer interest workflow.
type InterestHandler struct {
	interestService services.IInterestService
	logger          *zap.Logger
}

func NewInterestHandler(interestService services.IInterestService, logger *zap.Logger) *InterestHandler {
	return &InterestHandler{interestService: interestService, logger: logger}
}

// createInterestRequest is the body of POST /products/:id/interests. The buyer
// email is never read from it.
type createInterestRequest struct {
	UserName   string `json:"userName"`
	Quantity   int    `json:"quantity"`
	Message    string `json:"message"`
	OwnerName  string `json:"ownerName"`
	OwnerEmail string `json:"ownerEmail"`
}

// Create handles POST /products/:id/interests
func (h *InterestHandler) Create(c *gin.Context) {
	cropID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	var req createInterestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	userName := req.UserName
	if userName == "" {
		userName = middleware.CurrentName(c)
	}

	interest, err := h.interestService.CreateInterest(c.Request.Context(), cropID, services.InterestInput{
		UserEmail:  middleware.CurrentEmail(c),
		UserName:   userName,
		Quantity:   req.Quantity,
		Message:    req.Message,
		OwnerName:  req.OwnerName,
		OwnerEmail: req.OwnerEmail,
	})
	if err != nil {
		respondError(c, h.logger, err, "Failed to submit interest")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "interest": interest})
}

type transitionRequest struct {
	Status string `json:"status" binding:"required"`
}

// Transition handles PATCH /products/:id/interests/:interestId
func (h *InterestHandler) Transition(c *gin.Context) {
	cropID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	interestID, ok := objectIDParam(c, "interestId")
	if !ok {
		return
	}
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": services.ErrInvalidStatus.Error()})
		return
	}

	interest, err := h.interestService.TransitionInterest(c.Request.Context(), cropID, interestID, req.Status, middleware.CurrentEmail(c))
	if err != nil {
		respondError(c, h.logger, err, "Failed to update interest")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "interest": interest})
}

// MyInterests handles GET /my-interests?sort=low-high|high-low
func (h *InterestHandler) MyInterests(c *gin.Context) {
	list, err := h.interestService.ListInterestsForUser(c.Request.Context(), middleware.CurrentEmail(c), c.Query("sort"))
	if err != nil {
		respondError(c, h.logger, err, "Failed to fetch interests")
		return
	}
	c.JSON(http.StatusOK, list)
}
