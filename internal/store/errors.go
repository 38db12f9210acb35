package store

import "errors"

var (
	ErrVisitorNotFound    = errors.New("visitor not found")
	ErrStaffNotFound      = errors.New("staff not found")
	ErrSlotNotFound       = errors.New("slot not found")
	ErrDuplicateRank      = errors.New("sequence rank already in use")
	ErrDuplicateStaff     = errors.New("staff already has an active slot")
	ErrCapacityExceeded   = errors.New("slot at capacity")
	ErrSlotInactive       = errors.New("slot is inactive")
	ErrForbidden          = errors.New("caller not allowed")
	ErrInvalidState       = errors.New("invalid visitor state")
	ErrSessionNotFound    = errors.New("session not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameTaken      = errors.New("username already taken")
)
