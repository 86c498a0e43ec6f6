package model

import "time"

// Roles recognised by the permission middleware.  REQUESTER creates
// reservations and uploads payment proofs, APPROVER reviews requests,
// ACCOUNTANT verifies payments.
const (
    RoleRequester  = "REQUESTER"
    RoleApprover   = "APPROVER"
    RoleAccountant = "ACCOUNTANT"
)

// User mirrors the users table.
type User struct {
    ID           uint64
    Email        string
    FullName     string
    PasswordHash string
    Role         string
    IsActive     bool
    CreatedAt    time.Time
    UpdatedAt    time.Time
}
