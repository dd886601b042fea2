package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"krishilink/api/internal/cache"
	"krishilink/api/internal/events"
	"krishilink/api/internal/models"
	"krishilink/api/internal/repository"
)

// Sort keys accepted by ListInterestsForUser.
const (
	SortLowHigh = "low-high"
	SortHighLow = "high-low"
)

// InterestInput is what a buyer submits. OwnerName and OwnerEmail are stored
// as given; they are a snapshot for the buyer's records, not a lookup.
type InterestInput struct {
	UserEmail  string
	UserName   string
	Quantity   int
	Message    string
	OwnerName  string
	OwnerEmail string
}

// InterestNotifier is told about interest changes after they are stored.
type InterestNotifier interface {
	InterestCreated(ctx context.Context, crop *models.Crop, interest *models.Interest) error
	InterestStatusChanged(ctx context.Context, crop *models.Crop, interest *models.Interest) error
}

// IInterestService defines the buyer interest workflow.
type IInterestService interface {
	CreateInterest(ctx context.Context, cropID primitive.ObjectID, in InterestInput) (*models.Interest, error)
	TransitionInterest(ctx context.Context, cropID, interestID primitive.ObjectID, status, actorEmail string) (*models.Interest, error)
	ListInterestsForUser(ctx context.Context, email, sortKey string) ([]models.UserInterest, error)
}

type interestService struct {
	crops     repository.ICropRepository
	cache     cache.ICropCache
	notifier  InterestNotifier
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewInterestService wires the workflow. cache, notifier and publisher may be
// nil.
func NewInterestService(crops repository.ICropRepository, cropCache cache.ICropCache, notifier InterestNotifier, publisher events.Publisher, logger *zap.Logger) IInterestService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &interestService{
		crops:     crops,
		cache:     cropCache,
		notifier:  notifier,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// checkSubmission applies the submission rules in order: self interest,
// duplicate interest, then available quantity.
func checkSubmission(crop *models.Crop, userEmail string, quantity int) error {
	if crop.Owner.OwnerEmail == userEmail {
		return ErrSelfInterestForbidden
	}
	if crop.InterestFrom(userEmail) != nil {
		return ErrDuplicateInterest
	}
	if quantity > crop.Quantity {
		return ErrInsufficientQuantity
	}
	return nil
}

func (s *interestService) loadCrop(ctx context.Context, cropID primitive.ObjectID) (*models.Crop, error) {
	crop, err := s.crops.FindByID(ctx, cropID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return crop, nil
}

// CreateInterest appends a pending interest to the crop. The crop quantity is
// not changed until the owner accepts.
func (s *interestService) CreateInterest(ctx context.Context, cropID primitive.ObjectID, in InterestInput) (*models.Interest, error) {
	if in.Quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	in.UserEmail = strings.TrimSpace(in.UserEmail)
	if in.UserEmail == "" {
		return nil, fmt.Errorf("%w: user email is required", ErrInvalidInput)
	}

	crop, err := s.loadCrop(ctx, cropID)
	if err != nil {
		return nil, err
	}
	if err := checkSubmission(crop, in.UserEmail, in.Quantity); err != nil {
		return nil, err
	}

	interest := models.Interest{
		ID:         primitive.NewObjectID(),
		CropID:     crop.ID.Hex(),
		UserEmail:  in.UserEmail,
		UserName:   in.UserName,
		OwnerName:  in.OwnerName,
		OwnerEmail: in.OwnerEmail,
		Quantity:   in.Quantity,
		Message:    in.Message,
		Status:     models.InterestPending,
		CreatedAt:  s.now(),
	}

	applied, err := s.crops.PushInterest(ctx, cropID, interest)
	if err != nil {
		return nil, err
	}
	if !applied {
		// The crop changed between the read and the guarded push.
		current, err := s.loadCrop(ctx, cropID)
		if err != nil {
			return nil, err
		}
		if err := checkSubmission(current, in.UserEmail, in.Quantity); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("interest on crop %s was not applied", cropID.Hex())
	}

	s.invalidate(ctx, cropID)
	crop.Interests = append(crop.Interests, interest)
	s.announce(ctx, events.SubjectInterestCreated, crop, &interest)
	return &interest, nil
}

// TransitionInterest accepts or rejects a pending interest. Accepting takes
// the interest quantity off the crop in the same update.
func (s *interestService) TransitionInterest(ctx context.Context, cropID, interestID primitive.ObjectID, rawStatus, actorEmail string) (*models.Interest, error) {
	status, ok := models.ParseInterestStatus(rawStatus)
	if !ok || !status.IsFinal() {
		return nil, ErrInvalidStatus
	}

	crop, err := s.loadCrop(ctx, cropID)
	if err != nil {
		return nil, err
	}
	interest := crop.FindInterest(interestID)
	if interest == nil {
		return nil, ErrNotFound
	}
	if !crop.IsOwnedBy(actorEmail) {
		return nil, ErrNotOwner
	}
	if interest.Status.IsFinal() {
		return nil, ErrAlreadyFinalized
	}

	decrement := 0
	if status == models.InterestAccepted {
		if crop.Quantity < interest.Quantity {
			return nil, ErrInsufficientQuantity
		}
		decrement = interest.Quantity
	}

	applied, err := s.crops.SetInterestStatus(ctx, cropID, interestID, status, decrement)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, s.explainTransitionMiss(ctx, cropID, interestID, decrement)
	}

	updated := *interest
	updated.Status = status
	crop.Quantity -= decrement
	s.invalidate(ctx, cropID)
	s.announce(ctx, events.SubjectInterestStatusChanged, crop, &updated)
	return &updated, nil
}

// explainTransitionMiss reports why a guarded status update matched nothing
// after the pre-checks passed, i.e. which concurrent change won.
func (s *interestService) explainTransitionMiss(ctx context.Context, cropID, interestID primitive.ObjectID, decrement int) error {
	current, err := s.loadCrop(ctx, cropID)
	if err != nil {
		return err
	}
	interest := current.FindInterest(interestID)
	switch {
	case interest == nil:
		return ErrNotFound
	case interest.Status.IsFinal():
		return ErrAlreadyFinalized
	case current.Quantity < decrement:
		return ErrInsufficientQuantity
	}
	return ErrAlreadyFinalized
}

// ListInterestsForUser returns one entry per crop the buyer has an interest
// in, optionally ordered by the buyer's requested quantity.
func (s *interestService) ListInterestsForUser(ctx context.Context, email, sortKey string) ([]models.UserInterest, error) {
	if email == "" {
		return nil, fmt.Errorf("%w: user email is required", ErrInvalidInput)
	}
	crops, err := s.crops.FindByInterestUser(ctx, email)
	if err != nil {
		return nil, err
	}

	result := make([]models.UserInterest, 0, len(crops))
	for i := range crops {
		interest := crops[i].InterestFrom(email)
		if interest == nil {
			continue
		}
		result = append(result, models.UserInterest{
			CropID:   crops[i].ID,
			CropName: crops[i].Name,
			Interest: *interest,
		})
	}

	switch sortKey {
	case SortLowHigh:
		sort.SliceStable(result, func(i, j int) bool {
			return result[i].Interest.Quantity < result[j].Interest.Quantity
		})
	case SortHighLow:
		sort.SliceStable(result, func(i, j int) bool {
			return result[i].Interest.Quantity > result[j].Interest.Quantity
		})
	}
	return result, nil
}

func (s *interestService) invalidate(ctx context.Context, cropID primitive.ObjectID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, cropID); err != nil {
		s.logger.Warn("Failed to invalidate cached crop", zap.String("crop_id", cropID.Hex()), zap.Error(err))
	}
}

// announce publishes the event and queues the notification email. Both are
// best effort: the interest is already stored.
func (s *interestService) announce(ctx context.Context, subject string, crop *models.Crop, interest *models.Interest) {
	event := events.InterestEvent{
		CropID:     crop.ID.Hex(),
		CropName:   crop.Name,
		InterestID: interest.ID.Hex(),
		UserEmail:  interest.UserEmail,
		OwnerEmail: crop.Owner.OwnerEmail,
		Quantity:   interest.Quantity,
		Status:     string(interest.Status),
		OccurredAt: s.now(),
	}
	if err := s.publisher.Publish(ctx, subject, event); err != nil {
		s.logger.Warn("Failed to publish interest event", zap.String("subject", subject), zap.Error(err))
	}

	if s.notifier == nil {
		return
	}
	var err error
	if subject == events.SubjectInterestCreated {
		err = s.notifier.InterestCreated(ctx, crop, interest)
	} else {
		err = s.notifier.InterestStatusChanged(ctx, crop, interest)
	}
	if err != nil {
		s.logger.Warn("Failed to queue interest notification",
			zap.String("crop_id", crop.ID.Hex()),
			zap.String("interest_id", interest.ID.Hex()),
			zap.Error(err))
	}
}
