package domain

import (
	"errors" // Sentinel errors
	"fmt"    // Wrapped sentinels
)

var (
	ErrNotFound               = errors.New("not found")
	ErrAccountNotFound        = fmt.Errorf("account %w", ErrNotFound)
	ErrNotificationNotFound   = fmt.Errorf("notification %w", ErrNotFound)
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrAlreadyClaimed         = errors.New("reward already claimed")
	ErrNotARewardNotification = errors.New("notification is not a coin reward")
	ErrRecipientNotFound      = errors.New("recipient not found")
	ErrSelfTransfer           = errors.New("cannot transfer to yourself")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrInvalidAmount          = errors.New("amount must be positive")
	ErrInvalidStatus          = errors.New("invalid account status")
	ErrInvalidType            = errors.New("invalid type")
	ErrEmailTaken             = errors.New("email already registered")
	ErrInvalidReferral        = errors.New("invalid referral code")
	ErrInvalidEmail           = errors.New("invalid email")
	ErrInvalidNotification    = errors.New("notification title is required")
)
