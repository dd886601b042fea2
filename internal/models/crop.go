package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Unit is the measure a crop quantity is expressed in.
type Unit string

const (
	UnitBag Unit = "bag"
	UnitKg  Unit = "kg"
	UnitTon Unit = "ton"
)

// Units lists every accepted unit.
var Units = []Unit{UnitBag, UnitKg, UnitTon}

// IsValid reports whether u is one of the known units.
func (u Unit) IsValid() bool {
	switch u {
	case UnitBag, UnitKg, UnitTon:
		return true
	}
	return false
}

// UnitOrder returns the presentation order used when a caller asks for crops
// of a given unit first. Unknown units yield nil, meaning natural order.
func UnitOrder(primary Unit) []Unit {
	switch primary {
	case UnitBag:
		return []Unit{UnitBag, UnitKg, UnitTon}
	case UnitKg:
		return []Unit{UnitKg, UnitBag, UnitTon}
	case UnitTon:
		return []Unit{UnitTon, UnitKg, UnitBag}
	}
	return nil
}

// Owner identifies the seller of a crop. It is fixed at creation.
type Owner struct {
	OwnerName  string `bson:"ownerName" json:"ownerName"`
	OwnerEmail string `bson:"ownerEmail" json:"ownerEmail"`
}

// Crop is a product listing. Interests are embedded so that every change to
// a listing and its interests is a single-document update.
type Crop struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Name         string             `bson:"name" json:"name"`
	Type         string             `bson:"type,omitempty" json:"type,omitempty"`
	Description  string             `bson:"description,omitempty" json:"description,omitempty"`
	Location     string             `bson:"location,omitempty" json:"location,omitempty"`
	Image        string             `bson:"image,omitempty" json:"image,omitempty"`
	Unit         Unit               `bson:"unit" json:"unit"`
	Quantity     int                `bson:"quantity" json:"quantity"`
	PricePerUnit float64            `bson:"pricePerUnit" json:"pricePerUnit"`
	Owner        Owner              `bson:"owner" json:"owner"`
	Interests    []Interest         `bson:"interests" json:"interests"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updated_at"`
}

// IsOwnedBy reports whether email is the crop owner's email.
func (c *Crop) IsOwnedBy(email string) bool {
	return email != "" && c.Owner.OwnerEmail == email
}

// InterestFrom returns the interest submitted by the buyer with the given
// email, or nil if there is none.
func (c *Crop) InterestFrom(email string) *Interest {
	for i := range c.Interests {
		if c.Interests[i].UserEmail == email {
			return &c.Interests[i]
		}
	}
	return nil
}

// FindInterest returns the embedded interest with the given id, or nil.
func (c *Crop) FindInterest(id primitive.ObjectID) *Interest {
	for i := range c.Interests {
		if c.Interests[i].ID == id {
			return &c.Interests[i]
		}
	}
	return nil
}
