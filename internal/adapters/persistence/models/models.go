package models

import (
	"time"

	"gorm.io/gorm"

	"sangam-memberhub/internal/core/domain"
)

// ============================================================
// Auth & User Tables
// ============================================================

// User represents users table
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Name      string         `gorm:"size:100;not null" json:"name"`
	Email     string         `gorm:"uniqueIndex;size:100;not null" json:"email"`
	Phone     string         `gorm:"size:20" json:"phone"`
	Password  string         `gorm:"size:255;not null" json:"-"`
	Role      string         `gorm:"size:20;default:'USER'" json:"role"`
	IsActive  bool           `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}

// UserResponse DTO
type UserResponse struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func (u *User) ToResponse() *UserResponse {
	return &UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Phone:     u.Phone,
		Role:      u.Role,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}

// RefreshToken represents refresh_tokens table
type RefreshToken struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"index;not null" json:"user_id"`
	TokenHash string     `gorm:"size:255;not null;index" json:"-"`
	ExpiresAt time.Time  `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	RevokedAt *time.Time `gorm:"index" json:"revoked_at"`
	User      User       `gorm:"foreignKey:UserID" json:"-"`
}

func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

func (rt *RefreshToken) IsRevoked() bool {
	return rt.RevokedAt != nil
}

func (rt *RefreshToken) IsExpired() bool {
	return time.Now().After(rt.ExpiresAt)
}

// ============================================================
// Membership & Ledger Tables
// ============================================================

// Membership represents memberships table.
// A user has at most one row in a non-terminal status (PENDING/ACTIVE);
// terminal rows stay behind as history.
type Membership struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	UserID          uint       `gorm:"index;not null" json:"user_id"`
	PlanName        string     `gorm:"size:100;not null" json:"plan_name"`
	PlanAmount      int64      `gorm:"not null" json:"plan_amount"`
	Status          string     `gorm:"size:20;not null;default:'PENDING';index" json:"status"`
	GatewayOrderRef *string    `gorm:"size:100;index" json:"gateway_order_ref"`
	PaymentRef      *string    `gorm:"size:100" json:"payment_ref"`
	StartDate       *time.Time `json:"start_date"`
	EndDate         *time.Time `json:"end_date"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (Membership) TableName() string {
	return "memberships"
}

func (m *Membership) IsTerminal() bool {
	return m.Status == string(domain.MembershipCancelled)
}

// Transaction is the append-only payment ledger. Rows are never updated or
// deleted; the unique payment_ref index is the idempotency backstop for
// duplicate gateway deliveries.
type Transaction struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"index;not null" json:"user_id"`
	MembershipID  uint      `gorm:"index;not null" json:"membership_id"`
	Amount        int64     `gorm:"not null" json:"amount"`
	Status        string    `gorm:"size:20;not null;index" json:"status"`
	PaymentRef    *string   `gorm:"size:100;uniqueIndex" json:"payment_ref"`
	FailureReason string    `gorm:"size:255" json:"failure_reason,omitempty"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`

	User       *User       `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Membership *Membership `gorm:"foreignKey:MembershipID" json:"membership,omitempty"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// TransactionResponse DTO enriched with user contact fields for admin listings
type TransactionResponse struct {
	ID           uint      `json:"id"`
	UserID       uint      `json:"user_id"`
	MembershipID uint      `json:"membership_id"`
	Amount       int64     `json:"amount"`
	Status       string    `json:"status"`
	PaymentRef   *string   `json:"payment_ref"`
	CreatedAt    time.Time `json:"created_at"`
	UserName     string    `json:"user_name,omitempty"`
	UserEmail    string    `json:"user_email,omitempty"`
	UserPhone    string    `json:"user_phone,omitempty"`
}

func (t *Transaction) ToResponse() *TransactionResponse {
	resp := &TransactionResponse{
		ID:           t.ID,
		UserID:       t.UserID,
		MembershipID: t.MembershipID,
		Amount:       t.Amount,
		Status:       t.Status,
		PaymentRef:   t.PaymentRef,
		CreatedAt:    t.CreatedAt,
	}
	if t.User != nil {
		resp.UserName = t.User.Name
		resp.UserEmail = t.User.Email
		resp.UserPhone = t.User.Phone
	}
	return resp
}

// ReconciliationException records a confirmation that did not match local
// state. These rows exist for manual follow-up: real money moved at the
// gateway without a clean local counterpart.
type ReconciliationException struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	MembershipID uint      `gorm:"index" json:"membership_id"`
	PaymentRef   string    `gorm:"size:100;index" json:"payment_ref"`
	Detail       string    `gorm:"size:255;not null" json:"detail"`
	Reviewed     bool      `gorm:"default:false;index" json:"reviewed"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (ReconciliationException) TableName() string {
	return "reconciliation_exceptions"
}

// ============================================================
// Auto Migration
// ============================================================

// AutoMigrate runs auto migration for all tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&RefreshToken{},
		&Membership{},
		&Transaction{},
		&ReconciliationException{},
	)
}
