package model

import (
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

type roleCapabilities struct {
	user    bool
	control bool
}

// Capability lookup table. Roles missing here have no capabilities at all.
var capabilities = map[Role]roleCapabilities{
	RoleUser:      {user: true},
	RoleModerator: {control: true},
	RoleAdmin:     {control: true},
}

// IsUser reports whether the role is an ordinary marketplace participant.
func (r Role) IsUser() bool {
	return capabilities[r].user
}

// HasControlPrivileges reports whether the role may moderate tasks and see all of them.
func (r Role) HasControlPrivileges() bool {
	return capabilities[r].control
}

func (r Role) Valid() bool {
	_, ok := capabilities[r]
	return ok
}

type User struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	HashedPassword string    `json:"-"` // Not exposed
	Role           Role      `json:"role"`
	Rating         int       `json:"rating"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Principal is the authenticated caller as seen by the services.
type Principal struct {
	Name string
	Role Role
}
