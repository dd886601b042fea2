package handlers_test

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"krishilink/api/internal/api/middleware"
	"krishilink/api/internal/models"
	"krishilink/api/internal/services"
)

// --- Mocks ---

// MockCropService
type MockCropService struct {
	mock.Mock
}

func (m *MockCropService) crops(args mock.Arguments) ([]models.Crop, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Crop), args.Error(1)
}

func (m *MockCropService) crop(args mock.Arguments) (*models.Crop, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Crop), args.Error(1)
}

func (m *MockCropService) ListByUnitPriority(ctx context.Context, unit string) ([]models.Crop, error) {
	return m.crops(m.Called(ctx, unit))
}
func (m *MockCropService) ListAll(ctx context.Context) ([]models.Crop, error) {
	return m.crops(m.Called(ctx))
}
func (m *MockCropService) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Crop, error) {
	return m.crop(m.Called(ctx, id))
}
func (m *MockCropService) Search(ctx context.Context, term string) ([]models.Crop, error) {
	return m.crops(m.Called(ctx, term))
}
func (m *MockCropService) Latest(ctx context.Context) ([]models.Crop, error) {
	return m.crops(m.Called(ctx))
}
func (m *MockCropService) ListByOwner(ctx context.Context, ownerEmail string) ([]models.Crop, error) {
	return m.crops(m.Called(ctx, ownerEmail))
}
func (m *MockCropService) Create(ctx context.Context, in services.CropInput, owner models.Owner) (*models.Crop, error) {
	return m.crop(m.Called(ctx, in, owner))
}
func (m *MockCropService) Update(ctx context.Context, id primitive.ObjectID, ownerEmail string, fields map[string]interface{}) (*models.Crop, error) {
	return m.crop(m.Called(ctx, id, ownerEmail, fields))
}
func (m *MockCropService) Delete(ctx context.Context, id primitive.ObjectID, ownerEmail string) error {
	return m.Called(ctx, id, ownerEmail).Error(0)
}
func (m *MockCropService) ImageUploadURL(ctx context.Context, id primitive.ObjectID, ownerEmail, filename, contentType string) (string, string, error) {
	args := m.Called(ctx, id, ownerEmail, filename, contentType)
	return args.String(0), args.String(1), args.Error(2)
}

// MockInterestService
type MockInterestService struct {
	mock.Mock
}

func (m *MockInterestService) CreateInterest(ctx context.Context, cropID primitive.ObjectID, in services.InterestInput) (*models.Interest, error) {
	args := m.Called(ctx, cropID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Interest), args.Error(1)
}
func (m *MockInterestService) TransitionInterest(ctx context.Context, cropID, interestID primitive.ObjectID, status, actorEmail string) (*models.Interest, error) {
	args := m.Called(ctx, cropID, interestID, status, actorEmail)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Interest), args.Error(1)
}
func (m *MockInterestService) ListInterestsForUser(ctx context.Context, email, sortKey string) ([]models.UserInterest, error) {
	args := m.Called(ctx, email, sortKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.UserInterest), args.Error(1)
}

// MockUserService
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) List(ctx context.Context, currentEmail string, limit int) ([]models.User, error) {
	args := m.Called(ctx, currentEmail, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}
func (m *MockUserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
func (m *MockUserService) Login(ctx context.Context, in services.LoginInput) (primitive.ObjectID, bool, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(primitive.ObjectID), args.Bool(1), args.Error(2)
}
func (m *MockUserService) UpdateRole(ctx context.Context, id primitive.ObjectID, role string) error {
	return m.Called(ctx, id, role).Error(0)
}
func (m *MockUserService) Delete(ctx context.Context, id primitive.ObjectID) error {
	return m.Called(ctx, id).Error(0)
}
func (m *MockUserService) IsAdmin(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

// MockEmailStore
type MockEmailStore struct {
	mock.Mock
}

func (m *MockEmailStore) GetDel(ctx context.Context, key string) *redis.StringCmd {
	args := m.Called(ctx, key)
	return redis.NewStringResult(args.String(0), args.Error(1))
}

// --- Helpers ---

// withCaller stands in for AuthMiddleware.
func withCaller(email, name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextKeyEmail, email)
		c.Set(middleware.ContextKeyName, name)
		c.Next()
	}
}
