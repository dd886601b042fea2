package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"krishilink/api/internal/email"
)

// JsonApiRequest is the body of a service API call.
type JsonApiRequest struct {
	Method    string          `json:"method"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// JsonApiResponse is the reply to a service API call.
type JsonApiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type apiMethodFunc func(c *gin.Context, args json.RawMessage) (interface{}, *ApiError)

// MockEmailStore is the part of *redis.Client that reads captured emails.
type MockEmailStore interface {
	GetDel(ctx context.Context, key string) *redis.StringCmd
}

// ServiceApiHandler serves the operator API: process shutdown and, for
// end-to-end tests, reading captured emails.
type ServiceApiHandler struct {
	emails       MockEmailStore
	shutdownChan chan<- struct{}
	logger       *zap.Logger
	pollInterval time.Duration
	pollAttempts int
	methods      map[string]apiMethodFunc
}

// NewServiceApiHandler creates the handler. emails may be nil when Redis is
// unavailable; getTestEmail then fails.
func NewServiceApiHandler(emails MockEmailStore, shutdownChan chan<- struct{}, logger *zap.Logger) *ServiceApiHandler {
	h := &ServiceApiHandler{
		emails:       emails,
		shutdownChan: shutdownChan,
		logger:       logger,
		pollInterval: 200 * time.Millisecond,
		pollAttempts: 10,
	}
	h.methods = map[string]apiMethodFunc{
		"ping":         h.ping,
		"shutdown":     h.shutdown,
		"getTestEmail": h.getTestEmail,
	}
	return h
}

// HandleRequest handles POST /api
func (h *ServiceApiHandler) HandleRequest(c *gin.Context) {
	var req JsonApiRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, JsonApiResponse{Error: "Invalid request format"})
		return
	}

	handlerFunc, ok := h.methods[req.Method]
	if !ok {
		c.JSON(http.StatusNotFound, JsonApiResponse{Error: fmt.Sprintf("Unknown service method: %s", req.Method)})
		return
	}

	result, apiErr := handlerFunc(c, req.Arguments)
	if apiErr != nil {
		c.JSON(apiErr.Code, JsonApiResponse{Error: apiErr.Message})
		return
	}
	c.JSON(http.StatusOK, JsonApiResponse{Success: true, Data: result})
}

func (h *ServiceApiHandler) ping(c *gin.Context, _ json.RawMessage) (interface{}, *ApiError) {
	return "pong", nil
}

func (h *ServiceApiHandler) shutdown(c *gin.Context, _ json.RawMessage) (interface{}, *ApiError) {
	h.logger.Info("Received shutdown command via service API")
	select {
	case h.shutdownChan <- struct{}{}:
	default:
		h.logger.Info("Shutdown already signaled")
	}
	return "Shutdown initiated", nil
}

// getTestEmail takes [kind, email] and returns the captured message,
// consuming it.
func (h *ServiceApiHandler) getTestEmail(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	var params []string
	if err := json.Unmarshal(args, &params); err != nil || len(params) != 2 {
		return nil, &ApiError{http.StatusBadRequest, "Invalid arguments: expected JSON array [kind, email]"}
	}
	if h.emails == nil {
		return nil, &ApiError{http.StatusServiceUnavailable, "Mock email store is not configured"}
	}
	key := email.MockEmailKey(params[1], params[0])

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	var raw string
	for i := 0; ; i++ {
		val, err := h.emails.GetDel(ctx, key).Result()
		if err == nil {
			raw = val
			break
		}
		if !errors.Is(err, redis.Nil) {
			h.logger.Error("Failed to read test email", zap.String("key", key), zap.Error(err))
			return nil, &ApiError{http.StatusInternalServerError, "Redis error"}
		}
		if i+1 >= h.pollAttempts {
			return nil, &ApiError{http.StatusNotFound, fmt.Sprintf("Test email not found for key %s", key)}
		}
		select {
		case <-ctx.Done():
			return nil, &ApiError{http.StatusNotFound, fmt.Sprintf("Test email not found for key %s", key)}
		case <-time.After(h.pollInterval):
		}
	}

	var data map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		h.logger.Error("Stored test email is not JSON", zap.String("key", key), zap.Error(err))
		return nil, &ApiError{http.StatusInternalServerError, "Failed to parse stored email data"}
	}
	return data, nil
}
