package domain

import "time"

// UserRole distinguishes customers from support agents.
type UserRole string

const (
	UserRoleCustomer UserRole = "CUSTOMER"
	UserRoleAgent    UserRole = "AGENT"
)

// UserStatus represents lifecycle states for an account.
type UserStatus string

const (
	UserStatusActive    UserStatus = "ACTIVE"
	UserStatusSuspended UserStatus = "SUSPENDED"
)

// User is the domain model for accounts that open and work tickets.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         UserRole
	Status       UserStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
