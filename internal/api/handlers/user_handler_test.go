package handlers_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"krishilink/api/internal/api/handlers"
	"krishilink/api/internal/models"
	"krishilink/api/internal/services"
)

func setupUserRouter(svc services.IUserService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := handlers.NewUserHandler(svc, zap.NewNop())
	r := gin.New()
	r.GET("/users", h.List)
	r.GET("/users/:email", h.GetByEmail)
	r.POST("/users", h.Login)
	r.PATCH("/users/:id/role", h.UpdateRole)
	r.DELETE("/users/:id", h.Delete)
	return r
}

func TestUserHandler_List(t *testing.T) {
	svc := new(MockUserService)
	r := setupUserRouter(svc)
	svc.On("List", mock.Anything, "a@x", 10).Return([]models.User{{Email: "b@x", Password: "hash"}}, nil).Once()
	svc.On("List", mock.Anything, "", 0).Return([]models.User{}, nil).Once()

	w := perform(r, http.MethodGet, "/users?currentEmail=a@x&limit=10", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "hash")

	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/users?limit=abc", nil).Code)
	svc.AssertExpectations(t)
}

func TestUserHandler_GetByEmail(t *testing.T) {
	svc := new(MockUserService)
	r := setupUserRouter(svc)
	svc.On("GetByEmail", mock.Anything, "a@x").Return(&models.User{Email: "a@x", Role: models.RoleAdmin}, nil).Once()
	svc.On("GetByEmail", mock.Anything, "ghost@x").Return(nil, services.ErrNotFound).Once()

	w := perform(r, http.MethodGet, "/users/a@x", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var user models.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &user))
	assert.Equal(t, models.RoleAdmin, user.Role)

	assert.Equal(t, http.StatusNotFound, perform(r, http.MethodGet, "/users/ghost@x", nil).Code)
}

func TestUserHandler_Login(t *testing.T) {
	svc := new(MockUserService)
	r := setupUserRouter(svc)
	newID := primitive.NewObjectID()
	svc.On("Login", mock.Anything, services.LoginInput{Email: "new@x", Name: "New"}).Return(newID, true, nil).Once()
	svc.On("Login", mock.Anything, services.LoginInput{Email: "a@x"}).Return(primitive.NilObjectID, false, nil).Once()
	svc.On("Login", mock.Anything, services.LoginInput{}).Return(primitive.NilObjectID, false, services.ErrInvalidInput).Once()

	w := perform(r, http.MethodPost, "/users", map[string]string{"email": "new@x", "name": "New"})
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), newID.Hex())

	assert.Equal(t, http.StatusOK, perform(r, http.MethodPost, "/users", map[string]string{"email": "a@x"}).Code)
	assert.Equal(t, http.StatusBadRequest, perform(r, http.MethodPost, "/users", map[string]string{}).Code)
	svc.AssertExpectations(t)
}

func TestUserHandler_RoleAndDelete(t *testing.T) {
	svc := new(MockUserService)
	r := setupUserRouter(svc)
	id := primitive.NewObjectID()

	svc.On("UpdateRole", mock.Anything, id, "admin").Return(nil).Once()
	svc.On("UpdateRole", mock.Anything, id, "root").Return(services.ErrInvalidRole).Once()
	svc.On("Delete", mock.Anything, id).Return(services.ErrNotFound).Once()

	assert.Equal(t, http.StatusOK, perform(r, http.MethodPatch, "/users/"+id.Hex()+"/role", map[string]string{"role": "admin"}).Code)
	assert.Equal(t, http.StatusBadRequest, perform(r, http.MethodPatch, "/users/"+id.Hex()+"/role", map[string]string{"role": "root"}).Code)
	assert.Equal(t, http.StatusBadRequest, perform(r, http.MethodPatch, "/users/"+id.Hex()+"/role", map[string]string{}).Code)
	assert.Equal(t, http.StatusNotFound, perform(r, http.MethodDelete, "/users/"+id.Hex(), nil).Code)
	assert.Equal(t, http.StatusBadRequest, perform(r, http.MethodDelete, "/users/nope", nil).Code)
	svc.AssertExpectations(t)
}
