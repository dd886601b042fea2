package handlers_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"krishilink/api/internal/api/handlers"
)

func setupServiceRouter(store handlers.MockEmailStore, shutdown chan struct{}) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := handlers.NewServiceApiHandler(store, shutdown, zap.NewNop())
	r := gin.New()
	r.POST("/api", h.HandleRequest)
	return r
}

func TestServiceApi_Shutdown(t *testing.T) {
	shutdown := make(chan struct{}, 1)
	r := setupServiceRouter(nil, shutdown)

	w := perform(r, http.MethodPost, "/api", map[string]string{"method": "shutdown"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, shutdown, 1)

	// A second request does not block when the signal is already pending.
	w = perform(r, http.MethodPost, "/api", map[string]string{"method": "shutdown"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServiceApi_UnknownMethod(t *testing.T) {
	r := setupServiceRouter(nil, make(chan struct{}, 1))
	w := perform(r, http.MethodPost, "/api", map[string]string{"method": "dropDatabase"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = perform(r, http.MethodPost, "/api", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServiceApi_GetTestEmail(t *testing.T) {
	store := new(MockEmailStore)
	r := setupServiceRouter(store, make(chan struct{}, 1))
	stored := `{"to":"a@x","subject":"New interest in Rice","kind":"interest_created"}`
	store.On("GetDel", mock.Anything, "mockemail:a@x:interest_created").Return(stored, nil).Once()

	w := perform(r, http.MethodPost, "/api", map[string]interface{}{
		"method":    "getTestEmail",
		"arguments": []string{"interest_created", "a@x"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	var resp handlers.JsonApiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "New interest in Rice", data["subject"])
	store.AssertExpectations(t)
}

func TestServiceApi_GetTestEmail_Errors(t *testing.T) {
	store := new(MockEmailStore)
	r := setupServiceRouter(store, make(chan struct{}, 1))
	store.On("GetDel", mock.Anything, "mockemail:b@x:interest_status").Return("", errors.New("conn refused")).Once()

	w := perform(r, http.MethodPost, "/api", map[string]interface{}{
		"method":    "getTestEmail",
		"arguments": []string{"interest_status", "b@x"},
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = perform(r, http.MethodPost, "/api", map[string]interface{}{
		"method":    "getTestEmail",
		"arguments": []string{"only-one"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	unconfigured := setupServiceRouter(nil, make(chan struct{}, 1))
	w = perform(unconfigured, http.MethodPost, "/api", map[string]interface{}{
		"method":    "getTestEmail",
		"arguments": []string{"interest_status", "b@x"},
	})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	store.AssertExpectations(t)
}

func TestServiceApi_GetTestEmail_NotFound(t *testing.T) {
	store := new(MockEmailStore)
	r := setupServiceRouter(store, make(chan struct{}, 1))
	store.On("GetDel", mock.Anything, "mockemail:c@x:interest_status").Return("", redis.Nil)

	w := perform(r, http.MethodPost, "/api", map[string]interface{}{
		"method":    "getTestEmail",
		"arguments": []string{"interest_status", "c@x"},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}
