package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"krishilink/api/internal/models"
)

// memCropRepo is an in-memory ICropRepository. Each method holds the lock for
// its whole body, mirroring MongoDB's single-document atomicity.
type memCropRepo struct {
	mu    sync.Mutex
	order []primitive.ObjectID
	crops map[primitive.ObjectID]*models.Crop

	// beforeWrite, when set, runs under the lock right before a guarded write
	// is evaluated. Tests use it to simulate a concurrent change.
	beforeWrite func(crop *models.Crop)
}

func newMemCropRepo() *memCropRepo {
	return &memCropRepo{crops: map[primitive.ObjectID]*models.Crop{}}
}

func cloneCrop(c *models.Crop) *models.Crop {
	cp := *c
	cp.Interests = append([]models.Interest{}, c.Interests...)
	return &cp
}

func (r *memCropRepo) Insert(_ context.Context, crop *models.Crop) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	crop.ID = primitive.NewObjectID()
	if crop.Interests == nil {
		crop.Interests = []models.Interest{}
	}
	r.crops[crop.ID] = cloneCrop(crop)
	r.order = append(r.order, crop.ID)
	return nil
}

func (r *memCropRepo) FindByID(_ context.Context, id primitive.ObjectID) (*models.Crop, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.crops[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	return cloneCrop(c), nil
}

func (r *memCropRepo) filter(keep func(*models.Crop) bool) []models.Crop {
	out := []models.Crop{}
	for _, id := range r.order {
		if c, ok := r.crops[id]; ok && keep(c) {
			out = append(out, *cloneCrop(c))
		}
	}
	return out
}

func (r *memCropRepo) FindAll(_ context.Context) ([]models.Crop, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filter(func(*models.Crop) bool { return true }), nil
}

func (r *memCropRepo) FindSortedByUnit(_ context.Context, order []models.Unit) ([]models.Crop, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.filter(func(*models.Crop) bool { return true })
	index := func(u models.Unit) int {
		for i, o := range order {
			if o == u {
				return i
			}
		}
		return -1
	}
	sort.SliceStable(all, func(i, j int) bool { return index(all[i].Unit) < index(all[j].Unit) })
	return all, nil
}

func (r *memCropRepo) FindByName(_ context.Context, term string) ([]models.Crop, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	term = strings.ToLower(term)
	return r.filter(func(c *models.Crop) bool { return strings.Contains(strings.ToLower(c.Name), term) }), nil
}

func (r *memCropRepo) FindLatest(_ context.Context, limit int64) ([]models.Crop, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.filter(func(*models.Crop) bool { return true })
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if int64(len(all)) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r *memCropRepo) FindByOwner(_ context.Context, ownerEmail string) ([]models.Crop, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filter(func(c *models.Crop) bool { return c.Owner.OwnerEmail == ownerEmail }), nil
}

func (r *memCropRepo) FindByInterestUser(_ context.Context, userEmail string) ([]models.Crop, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filter(func(c *models.Crop) bool { return c.InterestFrom(userEmail) != nil }), nil
}

func (r *memCropRepo) Update(_ context.Context, id primitive.ObjectID, ownerEmail string, set bson.M) (*models.Crop, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.crops[id]
	if !ok || c.Owner.OwnerEmail != ownerEmail {
		return nil, mongo.ErrNoDocuments
	}
	for k, v := range set {
		switch k {
		case "name":
			c.Name = v.(string)
		case "type":
			c.Type = v.(string)
		case "description":
			c.Description = v.(string)
		case "location":
			c.Location = v.(string)
		case "image":
			c.Image = v.(string)
		case "unit":
			c.Unit = v.(models.Unit)
		case "quantity":
			c.Quantity = v.(int)
		case "pricePerUnit":
			c.PricePerUnit = v.(float64)
		}
	}
	c.UpdatedAt = time.Now().UTC()
	return cloneCrop(c), nil
}

func (r *memCropRepo) Delete(_ context.Context, id primitive.ObjectID, ownerEmail string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.crops[id]
	if !ok || c.Owner.OwnerEmail != ownerEmail {
		return false, nil
	}
	delete(r.crops, id)
	return true, nil
}

func (r *memCropRepo) PushInterest(_ context.Context, cropID primitive.ObjectID, interest models.Interest) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.crops[cropID]
	if !ok {
		return false, nil
	}
	if r.beforeWrite != nil {
		r.beforeWrite(c)
	}
	if c.Owner.OwnerEmail == interest.UserEmail || c.InterestFrom(interest.UserEmail) != nil || c.Quantity < interest.Quantity {
		return false, nil
	}
	c.Interests = append(c.Interests, interest)
	return true, nil
}

func (r *memCropRepo) SetInterestStatus(_ context.Context, cropID, interestID primitive.ObjectID, status models.InterestStatus, decrement int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.crops[cropID]
	if !ok {
		return false, nil
	}
	if r.beforeWrite != nil {
		r.beforeWrite(c)
	}
	in := c.FindInterest(interestID)
	if in == nil || in.Status != models.InterestPending {
		return false, nil
	}
	if decrement > 0 && c.Quantity < decrement {
		return false, nil
	}
	in.Status = status
	c.Quantity -= decrement
	return true, nil
}

// seed stores a crop directly and returns its id.
func (r *memCropRepo) seed(crop models.Crop) primitive.ObjectID {
	if crop.CreatedAt.IsZero() {
		crop.CreatedAt = time.Now().UTC()
	}
	_ = r.Insert(context.Background(), &crop)
	return crop.ID
}

// MockNotifier records queued notifications.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) InterestCreated(ctx context.Context, crop *models.Crop, interest *models.Interest) error {
	return m.Called(ctx, crop, interest).Error(0)
}

func (m *MockNotifier) InterestStatusChanged(ctx context.Context, crop *models.Crop, interest *models.Interest) error {
	return m.Called(ctx, crop, interest).Error(0)
}

// MockPublisher records published events.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, subject string, data interface{}) error {
	return m.Called(ctx, subject, data).Error(0)
}

func (m *MockPublisher) Close() {}

// MockCropCache is a testify mock of cache.ICropCache.
type MockCropCache struct {
	mock.Mock
}

func (m *MockCropCache) Get(ctx context.Context, id primitive.ObjectID) (*models.Crop, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Crop), args.Error(1)
}

func (m *MockCropCache) Set(ctx context.Context, crop *models.Crop) error {
	return m.Called(ctx, crop).Error(0)
}

func (m *MockCropCache) Invalidate(ctx context.Context, id primitive.ObjectID) error {
	return m.Called(ctx, id).Error(0)
}
