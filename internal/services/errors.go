package services

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrSelfInterestForbidden = errors.New("owner cannot submit interest on own crop")
	ErrDuplicateInterest     = errors.New("interest already submitted for this crop")
	ErrInsufficientQuantity  = errors.New("not enough quantity available")
	ErrInvalidQuantity       = errors.New("quantity must be at least 1")
	ErrInvalidStatus         = errors.New("status must be accepted or rejected")
	ErrAlreadyFinalized      = errors.New("interest has already been accepted or rejected")
	ErrNotOwner              = errors.New("only the crop owner can do this")
	ErrInvalidRole           = errors.New("invalid role")
	ErrInvalidInput          = errors.New("invalid input")
)
