// Package estate holds the community domain: users, parcels, contracts,
// common expenses, payments and notifications, and the business rules that
// connect them.
package estate

import (
	"time"

	"sigepa.cl/internal/auth"
)

// PaymentStatus is the lifecycle state of a Payment.
type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pendiente"
	PaymentProcessing PaymentStatus = "en_proceso"
	PaymentPaid       PaymentStatus = "pagado"
	PaymentRejected   PaymentStatus = "rechazado"
)

// Valid reports whether s is a known status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentProcessing, PaymentPaid, PaymentRejected:
		return true
	}
	return false
}

// Payable reports whether a checkout may start from s.
func (s PaymentStatus) Payable() bool {
	return s == PaymentPending || s == PaymentRejected
}

// Community is the tenant boundary.
type Community struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Region    string    `json:"region,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (c Community) TenantID() int64 { return c.ID }

// User is an account within a community.
type User struct {
	ID           int64     `json:"id"`
	CommunityID  int64     `json:"communityId"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone,omitempty"`
	Role         auth.Role `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (u User) TenantID() int64 { return u.CommunityID }
func (u User) OwnerID() int64  { return u.ID }

// Identity returns the claims a session token for u carries.
func (u User) Identity() auth.Identity {
	return auth.Identity{UserID: u.ID, Email: u.Email, Role: u.Role, CommunityID: u.CommunityID}
}

// Parcel is a lot inside a community. UserID is zero while unassigned.
type Parcel struct {
	ID          int64     `json:"id"`
	CommunityID int64     `json:"communityId"`
	UserID      int64     `json:"userId,omitempty"`
	Number      string    `json:"number"`
	AreaM2      float64   `json:"areaM2"`
	Lat         float64   `json:"lat"`
	Lng         float64   `json:"lng"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (p Parcel) TenantID() int64 { return p.CommunityID }
func (p Parcel) OwnerID() int64  { return p.UserID }

// ParcelPin is the public view of a parcel on the community map.
type ParcelPin struct {
	ID     int64   `json:"id"`
	Number string  `json:"number"`
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Status string  `json:"status"`
}

// Contract binds a parcel and its owner to terms for a period.
type Contract struct {
	ID          int64     `json:"id"`
	CommunityID int64     `json:"communityId"`
	ParcelID    int64     `json:"parcelId"`
	UserID      int64     `json:"userId"`
	Title       string    `json:"title"`
	StartsOn    time.Time `json:"startsOn"`
	EndsOn      time.Time `json:"endsOn"`
	Amount      int64     `json:"amount"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (c Contract) TenantID() int64 { return c.CommunityID }
func (c Contract) OwnerID() int64  { return c.UserID }

// Expense is a common charge. Amount is the charge per parcel in CLP.
type Expense struct {
	ID          int64     `json:"id"`
	CommunityID int64     `json:"communityId"`
	Description string    `json:"description"`
	Category    string    `json:"category,omitempty"`
	Amount      int64     `json:"amount"`
	DueOn       time.Time `json:"dueOn"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (e Expense) TenantID() int64 { return e.CommunityID }

// Payment is one parcel's share of an expense.
type Payment struct {
	ID           int64         `json:"id"`
	CommunityID  int64         `json:"communityId"`
	ExpenseID    int64         `json:"expenseId"`
	ParcelID     int64         `json:"parcelId"`
	UserID       int64         `json:"userId"`
	Amount       int64         `json:"amount"`
	Status       PaymentStatus `json:"status"`
	Reference    string        `json:"reference,omitempty"`
	GatewayToken string        `json:"-"`
	CreatedAt    time.Time     `json:"createdAt"`
	PaidAt       *time.Time    `json:"paidAt,omitempty"`
}

func (p Payment) TenantID() int64 { return p.CommunityID }
func (p Payment) OwnerID() int64  { return p.UserID }

// Notification is an announcement to every member of a community.
type Notification struct {
	ID          int64     `json:"id"`
	CommunityID int64     `json:"communityId"`
	AuthorID    int64     `json:"authorId"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Priority    string    `json:"priority"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (n Notification) TenantID() int64 { return n.CommunityID }

// Summary aggregates a community for the administrator dashboard.
type Summary struct {
	CommunityID     int64                 `json:"communityId"`
	Parcels         int                   `json:"parcels"`
	AssignedParcels int                   `json:"assignedParcels"`
	Users           int                   `json:"users"`
	Expenses        int                   `json:"expenses"`
	Payments        map[PaymentStatus]int `json:"payments"`
	AmountPending   int64                 `json:"amountPending"`
	AmountCollected int64                 `json:"amountCollected"`
}
