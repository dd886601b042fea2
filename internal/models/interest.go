package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// InterestStatus is the lifecycle state of an interest.
type InterestStatus string

const (
	InterestPending  InterestStatus = "pending"
	InterestAccepted InterestStatus = "accepted"
	InterestRejected InterestStatus = "rejected"
)

// ParseInterestStatus lower-cases s and maps it onto a known status.
func ParseInterestStatus(s string) (InterestStatus, bool) {
	switch st := InterestStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case InterestPending, InterestAccepted, InterestRejected:
		return st, true
	}
	return "", false
}

// IsFinal reports whether no further transition is allowed.
func (s InterestStatus) IsFinal() bool {
	return s == InterestAccepted || s == InterestRejected
}

// Interest is a buyer's request to purchase part of a crop. The owner fields
// are a snapshot taken when the interest was submitted.
type Interest struct {
	ID         primitive.ObjectID `bson:"_id" json:"_id"`
	CropID     string             `bson:"cropId" json:"cropId"`
	UserEmail  string             `bson:"userEmail" json:"userEmail"`
	UserName   string             `bson:"userName" json:"userName"`
	OwnerName  string             `bson:"ownerName" json:"ownerName"`
	OwnerEmail string             `bson:"ownerEmail" json:"ownerEmail"`
	Quantity   int                `bson:"quantity" json:"quantity"`
	Message    string             `bson:"message" json:"message"`
	Status     InterestStatus     `bson:"status" json:"status"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
}

// UserInterest is the per-buyer projection of one crop and the buyer's
// interest in it.
type UserInterest struct {
	CropID   primitive.ObjectID `json:"cropId"`
	CropName string             `json:"cropName"`
	Interest Interest           `json:"interest"`
}
