package domain

import "time"

// Role represents user role in the system
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Principal is the authenticated caller of a core operation.
// Every service method that touches member-owned state takes one explicitly;
// nothing in the core reads ambient session state.
type Principal struct {
	UserID uint
	Role   Role
}

// IsAdmin reports whether the principal holds the admin role
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// MembershipStatus is the lifecycle state of a membership
type MembershipStatus string

const (
	MembershipPending   MembershipStatus = "PENDING"
	MembershipActive    MembershipStatus = "ACTIVE"
	MembershipCancelled MembershipStatus = "CANCELLED"
)

// TransactionStatus is the outcome recorded on a ledger entry
type TransactionStatus string

const (
	TransactionSuccess TransactionStatus = "SUCCESS"
	TransactionFailed  TransactionStatus = "FAILED"
)

// User represents a member account in the domain layer
type User struct {
	ID        uint
	Name      string
	Email     string
	Phone     string
	Password  string // Hashed
	Role      Role
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Membership represents one subscription record for a user.
// A user has at most one membership in a non-terminal state at any time.
type Membership struct {
	ID              uint
	UserID          uint
	PlanName        string
	PlanAmount      int64 // whole rupees
	Status          MembershipStatus
	GatewayOrderRef *string
	PaymentRef      *string
	StartDate       *time.Time
	EndDate         *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Transaction represents an append-only ledger entry
type Transaction struct {
	ID           uint
	UserID       uint
	MembershipID uint
	Amount       int64
	Status       TransactionStatus
	PaymentRef   *string
	CreatedAt    time.Time
}
