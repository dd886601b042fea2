package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"krishilink/api/internal/db"
	"krishilink/api/internal/models"
)

// IUserRepository stores marketplace accounts.
type IUserRepository interface {
	List(ctx context.Context, excludeEmail string, limit int64) ([]models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Insert(ctx context.Context, user *models.User) error
	TouchLogin(ctx context.Context, email string, at time.Time) (bool, error)
	UpdateRole(ctx context.Context, id primitive.ObjectID, role models.Role) (int64, error)
	Delete(ctx context.Context, id primitive.ObjectID) (int64, error)
}

const UsersCollection = "users"

type userRepository struct {
	coll *mongo.Collection
}

// NewUserRepository creates a user repository on the users collection.
func NewUserRepository(database *mongo.Database) IUserRepository {
	return &userRepository{coll: database.Collection(UsersCollection)}
}

// List returns up to limit users, skipping excludeEmail when it is set.
func (r *userRepository) List(ctx context.Context, excludeEmail string, limit int64) ([]models.User, error) {
	filter := bson.M{}
	if excludeEmail != "" {
		filter["email"] = bson.M{"$ne": excludeEmail}
	}
	opts := options.Find().SetProjection(bson.M{"password": 0}).SetLimit(limit)

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find users: %w", err)
	}
	users := []models.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	return users, nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	opts := options.FindOne().SetProjection(bson.M{"password": 0})
	err := r.coll.FindOne(ctx, bson.M{"email": email}, opts).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding user by email %s: %w", email, err)
	}
	return &user, nil
}

func (r *userRepository) Insert(ctx context.Context, user *models.User) error {
	err := db.Try(func() error {
		user.ID = primitive.NewObjectID()
		_, err := r.coll.InsertOne(ctx, user)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to insert user %s: %w", user.Email, err)
	}
	return nil
}

// TouchLogin records a login time and reports whether the user exists.
func (r *userRepository) TouchLogin(ctx context.Context, email string, at time.Time) (bool, error) {
	res, err := r.coll.UpdateOne(ctx, bson.M{"email": email}, bson.M{"$set": bson.M{"lastLoginAt": at}})
	if err != nil {
		return false, fmt.Errorf("failed to update last login for %s: %w", email, err)
	}
	return res.MatchedCount > 0, nil
}

// UpdateRole returns the number of modified documents; zero means the user is
// missing or already has the role.
func (r *userRepository) UpdateRole(ctx context.Context, id primitive.ObjectID, role models.Role) (int64, error) {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"role": role}})
	if err != nil {
		return 0, fmt.Errorf("failed to update role of user %s: %w", id.Hex(), err)
	}
	return res.ModifiedCount, nil
}

func (r *userRepository) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, fmt.Errorf("failed to delete user %s: %w", id.Hex(), err)
	}
	return res.DeletedCount, nil
}
