package domain

import "time"

type Club struct {
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ClubRole is a named rung in the club hierarchy. Lower level means more
// privileged; level 0 is the owner tier.
type ClubRole struct {
	ID          int64
	ClubID      string
	Name        string
	Description string
	Level       int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Permission is one entry in the fixed club permission catalog.
type Permission struct {
	ID   int64
	Name string
}

// UserClubRole binds a user to a role within one club.
type UserClubRole struct {
	UserID     string
	ClubID     string
	RoleID     int64
	AssignedAt time.Time
}
