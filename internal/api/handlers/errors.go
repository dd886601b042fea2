package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"krishilink/api/internal/services"
)

// ApiError is a status code and the message shown to the client.
type ApiError struct {
	Code    int
	Message string
}

func (e *ApiError) Error() string { return e.Message }

// classify maps service errors to HTTP statuses. Unknown errors are 500 and
// their details stay in the log.
func classify(err error) *ApiError {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return &ApiError{http.StatusNotFound, err.Error()}
	case errors.Is(err, services.ErrSelfInterestForbidden),
		errors.Is(err, services.ErrNotOwner):
		return &ApiError{http.StatusForbidden, err.Error()}
	case errors.Is(err, services.ErrAlreadyFinalized):
		return &ApiError{http.StatusConflict, err.Error()}
	case errors.Is(err, services.ErrInvalidQuantity),
		errors.Is(err, services.ErrDuplicateInterest),
		errors.Is(err, services.ErrInsufficientQuantity),
		errors.Is(err, services.ErrInvalidStatus),
		errors.Is(err, services.ErrInvalidRole),
		errors.Is(err, services.ErrInvalidInput):
		return &ApiError{http.StatusBadRequest, err.Error()}
	}
	return nil
}

// respondError writes err as {"error": ...}. fallback is the message used for
// unexpected errors.
func respondError(c *gin.Context, logger *zap.Logger, err error, fallback string) {
	if apiErr := classify(err); apiErr != nil {
		c.JSON(apiErr.Code, gin.H{"error": apiErr.Message})
		return
	}
	_ = c.Error(err)
	logger.Error(fallback,
		zap.String("path", c.FullPath()),
		zap.String("request_id", c.GetString("requestID")),
		zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
}

// objectIDParam parses a path parameter as an ObjectID, answering 400 when it
// is malformed.
func objectIDParam(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return primitive.NilObjectID, false
	}
	return id, true
}
