package models

import "time"

// MaxTeamMembers is the hard seat limit of a team.
const MaxTeamMembers = 10

type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember:
		return true
	}
	return false
}

// CanInvite reports whether the role may issue invitations.
func (r Role) CanInvite() bool {
	return r == RoleOwner || r == RoleAdmin
}

type Team struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"createdAt"`
	Members   []Member  `json:"members"`
}

// SpotsLeft returns how many seats remain on the team.
func (t Team) SpotsLeft() int {
	left := MaxTeamMembers - len(t.Members)
	if left < 0 {
		return 0
	}
	return left
}

// Member is a membership joined with the user it belongs to.
type Member struct {
	UserID   string    `json:"userId"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

type Membership struct {
	TeamID   string    `json:"teamId"`
	UserID   string    `json:"userId"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

// TeamOverview is the dashboard view of the caller's team.
type TeamOverview struct {
	Team      Team `json:"team"`
	Role      Role `json:"role"`
	SpotsLeft int  `json:"spotsLeft"`
	CanInvite bool `json:"canInvite"`
}
