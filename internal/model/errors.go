package model

import "errors"

var (
	// ErrFundNotFound indicates the requested fund does not exist.
	ErrFundNotFound = errors.New("fund not found")
	// ErrUserNotFound indicates the account does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrSubscriptionNotFound indicates there is no active subscription to cancel.
	ErrSubscriptionNotFound = errors.New("active subscription not found")

	// ErrMinAmount indicates the amount is below the fund's minimum.
	ErrMinAmount = errors.New("amount below fund minimum")
	// ErrInsufficientBalance indicates the account cannot cover the amount.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrInvalidAmount indicates a non-positive subscription amount.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrInvalidChannel indicates an unknown notification channel.
	ErrInvalidChannel = errors.New("invalid notification channel")

	// ErrConflict indicates a conditional write lost a race and may be retried.
	ErrConflict = errors.New("concurrent update conflict")

	// ErrDuplicateSubscription indicates an active subscription already
	// exists for the (user, fund) pair.
	ErrDuplicateSubscription = errors.New("subscription already active")
	// ErrAlreadyCancelled indicates the subscription was cancelled before.
	ErrAlreadyCancelled = errors.New("subscription already cancelled")
	// ErrDuplicateUser indicates the user id is already taken.
	ErrDuplicateUser = errors.New("user already exists")
)

// IsNotFound reports whether err is one of the not-found errors.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrFundNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrSubscriptionNotFound)
}

// IsValidation reports whether err is a terminal validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrMinAmount) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidChannel)
}

// IsDuplicate reports whether err is a duplicate-operation error.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicateSubscription) ||
		errors.Is(err, ErrAlreadyCancelled) ||
		errors.Is(err, ErrDuplicateUser)
}
