package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"krishilink/api/internal/models"
	"krishilink/api/internal/repository"
)

const maxUserListLimit = 200

// LoginInput is the profile sent by the client after it signs in with the
// identity provider.
type LoginInput struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	PhotoURL string `json:"photoURL"`
}

// IUserService defines account operations.
type IUserService interface {
	List(ctx context.Context, currentEmail string, limit int) ([]models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Login(ctx context.Context, in LoginInput) (primitive.ObjectID, bool, error)
	UpdateRole(ctx context.Context, id primitive.ObjectID, role string) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	IsAdmin(ctx context.Context, email string) (bool, error)
}

type userService struct {
	users        repository.IUserRepository
	defaultLimit int
}

// NewUserService creates a user service. defaultLimit applies when List is
// called with a non-positive limit.
func NewUserService(users repository.IUserRepository, defaultLimit int) IUserService {
	if defaultLimit <= 0 {
		defaultLimit = 50
	}
	return &userService{users: users, defaultLimit: defaultLimit}
}

// List returns users other than currentEmail.
func (s *userService) List(ctx context.Context, currentEmail string, limit int) ([]models.User, error) {
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if limit > maxUserListLimit {
		limit = maxUserListLimit
	}
	return s.users.List(ctx, currentEmail, int64(limit))
}

func (s *userService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

// Login records a sign-in. Known users get their lastLoginAt bumped; new
// users are created with the user role. It returns the new id and true only
// when a user was created.
func (s *userService) Login(ctx context.Context, in LoginInput) (primitive.ObjectID, bool, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" {
		return primitive.NilObjectID, false, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}

	now := time.Now().UTC()
	existed, err := s.users.TouchLogin(ctx, email, now)
	if err != nil {
		return primitive.NilObjectID, false, err
	}
	if existed {
		return primitive.NilObjectID, false, nil
	}

	user := &models.User{
		Name:        in.Name,
		Email:       email,
		PhotoURL:    in.PhotoURL,
		Role:        models.RoleUser,
		CreatedAt:   now,
		LastLoginAt: &now,
	}
	if err := s.users.Insert(ctx, user); err != nil {
		return primitive.NilObjectID, false, err
	}
	return user.ID, true, nil
}

// UpdateRole returns ErrNotFound when the user is missing or already has role.
func (s *userService) UpdateRole(ctx context.Context, id primitive.ObjectID, role string) error {
	r := models.Role(role)
	if !r.IsValid() {
		return ErrInvalidRole
	}
	modified, err := s.users.UpdateRole(ctx, id, r)
	if err != nil {
		return err
	}
	if modified == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *userService) Delete(ctx context.Context, id primitive.ObjectID) error {
	deleted, err := s.users.Delete(ctx, id)
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrNotFound
	}
	return nil
}

// IsAdmin reports whether the account with email holds the admin role.
// Unknown accounts are not admins.
func (s *userService) IsAdmin(ctx context.Context, email string) (bool, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, err
	}
	return user.IsAdmin(), nil
}
