package apperrors

import "errors"

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrDuplicateAccount = errors.New("an account with this email already exists")
)
