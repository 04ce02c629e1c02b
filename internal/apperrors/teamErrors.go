package apperrors

import "errors"

var (
	ErrTeamNotFound  = errors.New("team not found")
	ErrTeamFull      = errors.New("team has reached the maximum number of members")
	ErrSlugTaken     = errors.New("team slug already taken")
	ErrAlreadyMember = errors.New("user already belongs to a team")
	ErrNotTeamMember = errors.New("user is not a member of any team")
	ErrInvalidRole   = errors.New("invalid team role")
)
