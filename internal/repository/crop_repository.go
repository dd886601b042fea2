package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"krishilink/api/internal/db"
	"krishilink/api/internal/models"
)

// ICropRepository is the listing store. Every mutating method is a single
// atomic update against one crop document.
type ICropRepository interface {
	Insert(ctx context.Context, crop *models.Crop) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Crop, error)
	FindAll(ctx context.Context) ([]models.Crop, error)
	FindSortedByUnit(ctx context.Context, order []models.Unit) ([]models.Crop, error)
	FindByName(ctx context.Context, term string) ([]models.Crop, error)
	FindLatest(ctx context.Context, limit int64) ([]models.Crop, error)
	FindByOwner(ctx context.Context, ownerEmail string) ([]models.Crop, error)
	FindByInterestUser(ctx context.Context, userEmail string) ([]models.Crop, error)
	Update(ctx context.Context, id primitive.ObjectID, ownerEmail string, set bson.M) (*models.Crop, error)
	Delete(ctx context.Context, id primitive.ObjectID, ownerEmail string) (bool, error)
	PushInterest(ctx context.Context, cropID primitive.ObjectID, interest models.Interest) (bool, error)
	SetInterestStatus(ctx context.Context, cropID, interestID primitive.ObjectID, status models.InterestStatus, decrement int) (bool, error)
}

const CropsCollection = "products"

type cropRepository struct {
	coll *mongo.Collection
}

// NewCropRepository creates a crop repository on the products collection.
func NewCropRepository(database *mongo.Database) ICropRepository {
	return &cropRepository{coll: database.Collection(CropsCollection)}
}

// Insert stores a new crop, assigning a fresh id on each attempt.
func (r *cropRepository) Insert(ctx context.Context, crop *models.Crop) error {
	if crop.Interests == nil {
		crop.Interests = []models.Interest{}
	}
	err := db.Try(func() error {
		crop.ID = primitive.NewObjectID()
		_, err := r.coll.InsertOne(ctx, crop)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to insert crop %q: %w", crop.Name, err)
	}
	return nil
}

// FindByID returns mongo.ErrNoDocuments when the crop does not exist.
func (r *cropRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Crop, error) {
	var crop models.Crop
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&crop)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding crop by ID %s: %w", id.Hex(), err)
	}
	return &crop, nil
}

func (r *cropRepository) FindAll(ctx context.Context) ([]models.Crop, error) {
	return r.find(ctx, bson.M{})
}

// FindSortedByUnit orders crops by the position of their unit in order.
// Units missing from order sort first, as $indexOfArray yields -1 for them.
func (r *cropRepository) FindSortedByUnit(ctx context.Context, order []models.Unit) ([]models.Crop, error) {
	if len(order) == 0 {
		return r.FindAll(ctx)
	}
	pipeline := mongo.Pipeline{
		{{Key: "$addFields", Value: bson.M{
			"unitOrderIndex": bson.M{"$indexOfArray": bson.A{order, "$unit"}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "unitOrderIndex", Value: 1}}}},
		{{Key: "$unset", Value: "unitOrderIndex"}},
	}
	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate crops by unit: %w", err)
	}
	crops := []models.Crop{}
	if err := cursor.All(ctx, &crops); err != nil {
		return nil, fmt.Errorf("failed to decode crops: %w", err)
	}
	return crops, nil
}

// FindByName matches term as a case-insensitive literal substring of the name.
func (r *cropRepository) FindByName(ctx context.Context, term string) ([]models.Crop, error) {
	if term == "" {
		return r.FindAll(ctx)
	}
	return r.find(ctx, bson.M{"name": primitive.Regex{Pattern: regexp.QuoteMeta(term), Options: "i"}})
}

func (r *cropRepository) FindLatest(ctx context.Context, limit int64) ([]models.Crop, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)
	return r.find(ctx, bson.M{}, opts)
}

func (r *cropRepository) FindByOwner(ctx context.Context, ownerEmail string) ([]models.Crop, error) {
	return r.find(ctx, bson.M{"owner.ownerEmail": ownerEmail})
}

func (r *cropRepository) FindByInterestUser(ctx context.Context, userEmail string) ([]models.Crop, error) {
	return r.find(ctx, bson.M{"interests.userEmail": userEmail})
}

func (r *cropRepository) find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.Crop, error) {
	cursor, err := r.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to find crops: %w", err)
	}
	crops := []models.Crop{}
	if err := cursor.All(ctx, &crops); err != nil {
		return nil, fmt.Errorf("failed to decode crops: %w", err)
	}
	return crops, nil
}

// Update applies set to the crop if ownerEmail owns it and returns the
// updated document. mongo.ErrNoDocuments covers both missing and not owned.
func (r *cropRepository) Update(ctx context.Context, id primitive.ObjectID, ownerEmail string, set bson.M) (*models.Crop, error) {
	set["updated_at"] = time.Now().UTC()
	filter := bson.M{"_id": id, "owner.ownerEmail": ownerEmail}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.Crop
	err := r.coll.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("failed to update crop %s: %w", id.Hex(), err)
	}
	return &updated, nil
}

func (r *cropRepository) Delete(ctx context.Context, id primitive.ObjectID, ownerEmail string) (bool, error) {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id, "owner.ownerEmail": ownerEmail})
	if err != nil {
		return false, fmt.Errorf("failed to delete crop %s: %w", id.Hex(), err)
	}
	return res.DeletedCount > 0, nil
}

// PushInterest appends interest only while the submission rules still hold on
// the stored document: the buyer is not the owner, has no interest yet, and
// the requested quantity is available. It reports whether the push applied.
func (r *cropRepository) PushInterest(ctx context.Context, cropID primitive.ObjectID, interest models.Interest) (bool, error) {
	filter := bson.M{
		"_id":                 cropID,
		"owner.ownerEmail":    bson.M{"$ne": interest.UserEmail},
		"interests.userEmail": bson.M{"$ne": interest.UserEmail},
		"quantity":            bson.M{"$gte": interest.Quantity},
	}
	update := bson.M{"$push": bson.M{"interests": interest}}

	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to push interest onto crop %s: %w", cropID.Hex(), err)
	}
	return res.MatchedCount > 0, nil
}

// SetInterestStatus moves one pending interest to status. With decrement > 0
// the crop quantity is reduced by that amount in the same update, and only if
// at least that much is left. Other interests in the array are not touched.
func (r *cropRepository) SetInterestStatus(ctx context.Context, cropID, interestID primitive.ObjectID, status models.InterestStatus, decrement int) (bool, error) {
	filter := bson.M{
		"_id": cropID,
		"interests": bson.M{"$elemMatch": bson.M{
			"_id":    interestID,
			"status": models.InterestPending,
		}},
	}
	update := bson.M{"$set": bson.M{
		"interests.$.status": status,
		"updated_at":         time.Now().UTC(),
	}}
	if decrement > 0 {
		filter["quantity"] = bson.M{"$gte": decrement}
		update["$inc"] = bson.M{"quantity": -decrement}
	}

	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to set status of interest %s on crop %s: %w", interestID.Hex(), cropID.Hex(), err)
	}
	return res.MatchedCount > 0, nil
}
