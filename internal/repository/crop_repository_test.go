package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"krishilink/api/internal/models"
	"krishilink/api/internal/utils"
)

func setupCropRepo(t *testing.T, dbName string) ICropRepository {
	database := utils.SetupTestDB(t, dbName, CropsCollection)
	return NewCropRepository(database)
}

func insertCrop(t *testing.T, repo ICropRepository, name string, unit models.Unit, qty int, ownerEmail string) *models.Crop {
	crop := &models.Crop{
		Name:      name,
		Unit:      unit,
		Quantity:  qty,
		Owner:     models.Owner{OwnerName: "Owner", OwnerEmail: ownerEmail},
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.Insert(context.Background(), crop))
	return crop
}

func newInterest(cropID primitive.ObjectID, email string, qty int) models.Interest {
	return models.Interest{
		ID:        primitive.NewObjectID(),
		CropID:    cropID.Hex(),
		UserEmail: email,
		Quantity:  qty,
		Status:    models.InterestPending,
		CreatedAt: time.Now().UTC(),
	}
}

func TestCropRepository_InsertAndFind(t *testing.T) {
	repo := setupCropRepo(t, "testdb_crop_repo_find")
	ctx := context.Background()

	crop := insertCrop(t, repo, "Golden Rice", models.UnitKg, 100, "a@x")
	assert.False(t, crop.ID.IsZero())

	found, err := repo.FindByID(ctx, crop.ID)
	require.NoError(t, err)
	assert.Equal(t, "Golden Rice", found.Name)
	assert.Empty(t, found.Interests)

	_, err = repo.FindByID(ctx, primitive.NewObjectID())
	assert.ErrorIs(t, err, mongo.ErrNoDocuments)

	byName, err := repo.FindByName(ctx, "rice")
	require.NoError(t, err)
	assert.Len(t, byName, 1)

	// Regex metacharacters are matched literally.
	none, err := repo.FindByName(ctx, "r.ce")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCropRepository_FindSortedByUnit(t *testing.T) {
	repo := setupCropRepo(t, "testdb_crop_repo_unit")
	ctx := context.Background()

	insertCrop(t, repo, "Potato", models.UnitTon, 5, "a@x")
	insertCrop(t, repo, "Wheat", models.UnitBag, 20, "a@x")
	insertCrop(t, repo, "Onion", models.UnitKg, 70, "a@x")

	crops, err := repo.FindSortedByUnit(ctx, models.UnitOrder(models.UnitKg))
	require.NoError(t, err)
	require.Len(t, crops, 3)
	assert.Equal(t, models.UnitKg, crops[0].Unit)
	assert.Equal(t, models.UnitBag, crops[1].Unit)
	assert.Equal(t, models.UnitTon, crops[2].Unit)
}

func TestCropRepository_PushInterestGuards(t *testing.T) {
	repo := setupCropRepo(t, "testdb_crop_repo_push")
	ctx := context.Background()
	crop := insertCrop(t, repo, "Maize", models.UnitKg, 100, "a@x")

	ok, err := repo.PushInterest(ctx, crop.ID, newInterest(crop.ID, "b@x", 30))
	require.NoError(t, err)
	assert.True(t, ok)

	// Same buyer again.
	ok, err = repo.PushInterest(ctx, crop.ID, newInterest(crop.ID, "b@x", 10))
	require.NoError(t, err)
	assert.False(t, ok)

	// Owner on own crop.
	ok, err = repo.PushInterest(ctx, crop.ID, newInterest(crop.ID, "a@x", 10))
	require.NoError(t, err)
	assert.False(t, ok)

	// More than available.
	ok, err = repo.PushInterest(ctx, crop.ID, newInterest(crop.ID, "c@x", 101))
	require.NoError(t, err)
	assert.False(t, ok)

	found, err := repo.FindByID(ctx, crop.ID)
	require.NoError(t, err)
	assert.Len(t, found.Interests, 1)
	assert.Equal(t, 100, found.Quantity)
}

func TestCropRepository_SetInterestStatus(t *testing.T) {
	repo := setupCropRepo(t, "testdb_crop_repo_status")
	ctx := context.Background()
	crop := insertCrop(t, repo, "Barley", models.UnitBag, 100, "a@x")

	first := newInterest(crop.ID, "b@x", 30)
	second := newInterest(crop.ID, "c@x", 20)
	for _, in := range []models.Interest{first, second} {
		ok, err := repo.PushInterest(ctx, crop.ID, in)
		require.NoError(t, err)
		require.True(t, ok)
	}

	ok, err := repo.SetInterestStatus(ctx, crop.ID, first.ID, models.InterestAccepted, first.Quantity)
	require.NoError(t, err)
	assert.True(t, ok)

	// Already final: the pending guard rejects a second accept.
	ok, err = repo.SetInterestStatus(ctx, crop.ID, first.ID, models.InterestAccepted, first.Quantity)
	require.NoError(t, err)
	assert.False(t, ok)

	found, err := repo.FindByID(ctx, crop.ID)
	require.NoError(t, err)
	assert.Equal(t, 70, found.Quantity)
	assert.Equal(t, models.InterestAccepted, found.FindInterest(first.ID).Status)
	assert.Equal(t, models.InterestPending, found.FindInterest(second.ID).Status)
}

func TestCropRepository_UpdateAndDeleteRequireOwner(t *testing.T) {
	repo := setupCropRepo(t, "testdb_crop_repo_owner")
	ctx := context.Background()
	crop := insertCrop(t, repo, "Lentil", models.UnitKg, 10, "a@x")

	_, err := repo.Update(ctx, crop.ID, "b@x", bson.M{"name": "Stolen"})
	assert.ErrorIs(t, err, mongo.ErrNoDocuments)

	updated, err := repo.Update(ctx, crop.ID, "a@x", bson.M{"name": "Red Lentil"})
	require.NoError(t, err)
	assert.Equal(t, "Red Lentil", updated.Name)

	deleted, err := repo.Delete(ctx, crop.ID, "b@x")
	require.NoError(t, err)
	assert.False(t, deleted)

	deleted, err = repo.Delete(ctx, crop.ID, "a@x")
	require.NoError(t, err)
	assert.True(t, deleted)
}
