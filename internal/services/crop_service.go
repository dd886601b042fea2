package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"krishilink/api/internal/cache"
	"krishilink/api/internal/models"
	"krishilink/api/internal/repository"
	"krishilink/api/internal/storage"
)

// LatestCropsLimit caps the newest-first listing.
const LatestCropsLimit = 8

// CropInput carries the fields a seller provides when posting a crop.
type CropInput struct {
	Name         string      `json:"name"`
	Type         string      `json:"type"`
	Description  string      `json:"description"`
	Location     string      `json:"location"`
	Image        string      `json:"image"`
	Unit         models.Unit `json:"unit"`
	Quantity     int         `json:"quantity"`
	PricePerUnit float64     `json:"pricePerUnit"`
}

// ICropService defines crop listing queries and owner CRUD.
type ICropService interface {
	ListByUnitPriority(ctx context.Context, unit string) ([]models.Crop, error)
	ListAll(ctx context.Context) ([]models.Crop, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Crop, error)
	Search(ctx context.Context, term string) ([]models.Crop, error)
	Latest(ctx context.Context) ([]models.Crop, error)
	ListByOwner(ctx context.Context, ownerEmail string) ([]models.Crop, error)
	Create(ctx context.Context, in CropInput, owner models.Owner) (*models.Crop, error)
	Update(ctx context.Context, id primitive.ObjectID, ownerEmail string, fields map[string]interface{}) (*models.Crop, error)
	Delete(ctx context.Context, id primitive.ObjectID, ownerEmail string) error
	ImageUploadURL(ctx context.Context, id primitive.ObjectID, ownerEmail, filename, contentType string) (string, string, error)
}

type cropService struct {
	crops   repository.ICropRepository
	cache   cache.ICropCache
	storage storage.IS3Storage
	logger  *zap.Logger
}

// NewCropService creates a crop service. cropCache and imageStorage may be nil.
func NewCropService(crops repository.ICropRepository, cropCache cache.ICropCache, imageStorage storage.IS3Storage, logger *zap.Logger) ICropService {
	return &cropService{crops: crops, cache: cropCache, storage: imageStorage, logger: logger}
}

// ListByUnitPriority puts crops measured in unit first, then the other units
// in that unit's fallback order. An empty or unknown unit keeps store order.
func (s *cropService) ListByUnitPriority(ctx context.Context, unit string) ([]models.Crop, error) {
	return s.crops.FindSortedByUnit(ctx, models.UnitOrder(models.Unit(strings.ToLower(unit))))
}

func (s *cropService) ListAll(ctx context.Context) ([]models.Crop, error) {
	return s.crops.FindAll(ctx)
}

// GetByID reads through the crop cache.
func (s *cropService) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Crop, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, id)
		if err != nil {
			s.logger.Warn("Crop cache read failed", zap.String("crop_id", id.Hex()), zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	crop, err := s.crops.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, crop); err != nil {
			s.logger.Warn("Crop cache write failed", zap.String("crop_id", id.Hex()), zap.Error(err))
		}
	}
	return crop, nil
}

func (s *cropService) Search(ctx context.Context, term string) ([]models.Crop, error) {
	return s.crops.FindByName(ctx, strings.TrimSpace(term))
}

func (s *cropService) Latest(ctx context.Context) ([]models.Crop, error) {
	return s.crops.FindLatest(ctx, LatestCropsLimit)
}

func (s *cropService) ListByOwner(ctx context.Context, ownerEmail string) ([]models.Crop, error) {
	if ownerEmail == "" {
		return nil, fmt.Errorf("%w: owner email is required", ErrInvalidInput)
	}
	return s.crops.FindByOwner(ctx, ownerEmail)
}

// validCropName rejects blank names and names spanning more than one line.
// Crop names end up in email subjects.
func validCropName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if strings.ContainsAny(name, "\r\n") {
		return fmt.Errorf("%w: name cannot contain line breaks", ErrInvalidInput)
	}
	return nil
}

func validateCropInput(in CropInput) error {
	if err := validCropName(in.Name); err != nil {
		return err
	}
	if !in.Unit.IsValid() {
		return fmt.Errorf("%w: unit must be one of bag, kg, ton", ErrInvalidInput)
	}
	if in.Quantity < 0 {
		return fmt.Errorf("%w: quantity cannot be negative", ErrInvalidInput)
	}
	if in.PricePerUnit < 0 {
		return fmt.Errorf("%w: pricePerUnit cannot be negative", ErrInvalidInput)
	}
	return nil
}

// Create posts a new crop owned by owner, with no interests.
func (s *cropService) Create(ctx context.Context, in CropInput, owner models.Owner) (*models.Crop, error) {
	in.Unit = models.Unit(strings.ToLower(string(in.Unit)))
	if err := validateCropInput(in); err != nil {
		return nil, err
	}
	if owner.OwnerEmail == "" {
		return nil, fmt.Errorf("%w: owner email is required", ErrInvalidInput)
	}

	now := time.Now().UTC()
	crop := &models.Crop{
		Name:         strings.TrimSpace(in.Name),
		Type:         in.Type,
		Description:  in.Description,
		Location:     in.Location,
		Image:        in.Image,
		Unit:         in.Unit,
		Quantity:     in.Quantity,
		PricePerUnit: in.PricePerUnit,
		Owner:        owner,
		Interests:    []models.Interest{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.crops.Insert(ctx, crop); err != nil {
		return nil, err
	}
	return crop, nil
}

// allowedCropUpdates builds the $set document from a decoded JSON body.
// Owner, interests and timestamps cannot be changed this way.
func allowedCropUpdates(fields map[string]interface{}) (bson.M, error) {
	set := bson.M{}
	for key, value := range fields {
		switch key {
		case "name", "type", "description", "location", "image":
			str, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s must be a string", ErrInvalidInput, key)
			}
			if key == "name" {
				if err := validCropName(str); err != nil {
					return nil, err
				}
			}
			set[key] = str
		case "unit":
			str, _ := value.(string)
			unit := models.Unit(strings.ToLower(str))
			if !unit.IsValid() {
				return nil, fmt.Errorf("%w: unit must be one of bag, kg, ton", ErrInvalidInput)
			}
			set[key] = unit
		case "quantity":
			num, ok := value.(float64)
			if !ok || num < 0 || num > math.MaxInt32 || num != math.Trunc(num) {
				return nil, fmt.Errorf("%w: quantity must be a non-negative integer", ErrInvalidInput)
			}
			set[key] = int(num)
		case "pricePerUnit":
			num, ok := value.(float64)
			if !ok || num < 0 {
				return nil, fmt.Errorf("%w: pricePerUnit must be a non-negative number", ErrInvalidInput)
			}
			set[key] = num
		default:
			return nil, fmt.Errorf("%w: field '%s' cannot be updated", ErrInvalidInput, key)
		}
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("%w: no valid fields provided for update", ErrInvalidInput)
	}
	return set, nil
}

// Update changes whitelisted fields of a crop owned by ownerEmail.
func (s *cropService) Update(ctx context.Context, id primitive.ObjectID, ownerEmail string, fields map[string]interface{}) (*models.Crop, error) {
	set, err := allowedCropUpdates(fields)
	if err != nil {
		return nil, err
	}

	updated, err := s.crops.Update(ctx, id, ownerEmail, set)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, s.explainOwnerMiss(ctx, id)
		}
		return nil, err
	}
	s.invalidate(ctx, id)
	return updated, nil
}

// Delete removes a crop, and with it every embedded interest.
func (s *cropService) Delete(ctx context.Context, id primitive.ObjectID, ownerEmail string) error {
	deleted, err := s.crops.Delete(ctx, id, ownerEmail)
	if err != nil {
		return err
	}
	if !deleted {
		return s.explainOwnerMiss(ctx, id)
	}
	s.invalidate(ctx, id)
	return nil
}

// ImageUploadURL lets the owner upload an image straight to object storage.
func (s *cropService) ImageUploadURL(ctx context.Context, id primitive.ObjectID, ownerEmail, filename, contentType string) (string, string, error) {
	if s.storage == nil {
		return "", "", errors.New("image storage is not configured")
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", "", fmt.Errorf("%w: contentType must be an image type", ErrInvalidInput)
	}
	crop, err := s.crops.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", "", ErrNotFound
		}
		return "", "", err
	}
	if !crop.IsOwnedBy(ownerEmail) {
		return "", "", ErrNotOwner
	}
	return s.storage.GeneratePresignedPutURL(ctx, id.Hex(), filename, contentType)
}

// explainOwnerMiss tells a missing crop apart from one owned by someone else
// after an owner-filtered write matched nothing.
func (s *cropService) explainOwnerMiss(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.crops.FindByID(ctx, id)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrNotOwner
}

func (s *cropService) invalidate(ctx context.Context, id primitive.ObjectID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logger.Warn("Failed to invalidate cached crop", zap.String("crop_id", id.Hex()), zap.Error(err))
	}
}
