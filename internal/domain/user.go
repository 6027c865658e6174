package domain

import (
	"time"
)

type Role string

const (
	RolePlanner    Role = "planner"
	RoleSupervisor Role = "supervisor"
	RoleAdmin      Role = "admin"
)

// User is a planner account, not a shop-floor employee; employees are
// scheduling data, users hold sessions and commit plans.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"fullName"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	Version      int32     `json:"-"`
}
