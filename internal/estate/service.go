package estate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/mail"
	"strconv"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"sigepa.cl/internal/auth"
	"sigepa.cl/internal/ids"
	"sigepa.cl/internal/payment"
)

const (
	defaultSummaryTTL        = 30 * time.Second
	defaultNotificationLimit = 50
	maxNotificationLimit     = 200
)

// Publisher receives notifications after they are stored.
type Publisher interface {
	Publish(n Notification)
}

// Service applies the community business rules on top of a Store. Callers
// are expected to have passed the authorization gate; list methods take the
// caller's community id and never return rows of another community.
type Service struct {
	store     Store
	gateway   payment.Gateway
	publisher Publisher
	returnURL string
	summaries *gocache.Cache
	now       func() time.Time
	log       *zap.Logger
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithGateway sets the payment gateway used by Checkout and Confirm.
func WithGateway(gw payment.Gateway, returnURL string) ServiceOption {
	return func(s *Service) error {
		if gw == nil {
			return errors.New("estate: gateway is nil")
		}
		s.gateway = gw
		s.returnURL = strings.TrimSpace(returnURL)
		return nil
	}
}

// WithPublisher fans out created notifications.
func WithPublisher(p Publisher) ServiceOption {
	return func(s *Service) error {
		s.publisher = p
		return nil
	}
}

// WithSummaryTTL configures how long community summaries are cached.
func WithSummaryTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.summaries = gocache.New(ttl, 2*ttl)
		}
		return nil
	}
}

// WithServiceLogger sets the service logger.
func WithServiceLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) error {
		if l != nil {
			s.log = l
		}
		return nil
	}
}

// WithClock overrides time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewService constructs Service with optional configuration.
func NewService(store Store, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("estate: store is nil")
	}
	s := &Service{
		store:     store,
		gateway:   payment.NewSimulated(0),
		summaries: gocache.New(defaultSummaryTTL, time.Minute),
		now:       func() time.Time { return time.Now().UTC() },
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Store exposes the underlying store for readiness checks and seeding.
func (s *Service) Store() Store { return s.store }

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Login ---------------------------------------------------------------------

// Login checks credentials and returns the user. Unknown e-mails and wrong
// passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return User{}, ErrInvalidCredentials
	}
	u, err := s.store.UserByEmail(ctx, email)
	switch {
	case errors.Is(err, ErrNotFound):
		_ = auth.VerifyPassword("", password)
		return User{}, ErrInvalidCredentials
	case err != nil:
		return User{}, err
	}
	if err := auth.VerifyPassword(u.PasswordHash, password); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

// Users ---------------------------------------------------------------------

// NewUser is the input for CreateUser.
type NewUser struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Role     string `json:"role"`
	Password string `json:"password"`
	// CommunityID optionally names the target community. Handlers reject a
	// value other than the caller's own before calling the service.
	CommunityID int64 `json:"communityId,omitempty"`
}

// CreateUser registers a user in communityID.
func (s *Service) CreateUser(ctx context.Context, communityID int64, in NewUser) (User, error) {
	email := normalizeEmail(in.Email)
	if err := validateEmail(email); err != nil {
		return User{}, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return User{}, invalid("name is required")
	}
	role, err := auth.ParseRole(in.Role)
	if err != nil {
		return User{}, invalid("unknown role %q", in.Role)
	}
	if len(in.Password) < 8 {
		return User{}, invalid("password must be at least 8 characters")
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	u, err := s.store.CreateUser(ctx, User{
		CommunityID:  communityID,
		Email:        email,
		Name:         name,
		Phone:        strings.TrimSpace(in.Phone),
		Role:         role,
		PasswordHash: hash,
	})
	if err != nil {
		return User{}, err
	}
	s.invalidate(communityID)
	return u, nil
}

// User loads a user by id. Callers check tenancy on the result.
func (s *Service) User(ctx context.Context, id int64) (User, error) {
	return s.store.User(ctx, id)
}

// ListUsers returns the users of communityID.
func (s *Service) ListUsers(ctx context.Context, communityID int64) ([]User, error) {
	return s.store.ListUsers(ctx, communityID)
}

// DeleteUser removes a user of communityID. Administrators cannot delete
// their own account.
func (s *Service) DeleteUser(ctx context.Context, communityID, actorID, id int64) error {
	if actorID == id {
		return invalid("cannot delete your own account")
	}
	if err := s.store.DeleteUser(ctx, communityID, id); err != nil {
		return err
	}
	s.invalidate(communityID)
	return nil
}

// ProfileUpdate is the input for UpdateProfile. An empty Password keeps the
// current one.
type ProfileUpdate struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password,omitempty"`
}

// UpdateProfile saves the caller's own profile and returns the stored row.
func (s *Service) UpdateProfile(ctx context.Context, userID int64, in ProfileUpdate) (User, error) {
	u, err := s.store.User(ctx, userID)
	if err != nil {
		return User{}, err
	}
	email := normalizeEmail(in.Email)
	if err := validateEmail(email); err != nil {
		return User{}, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return User{}, invalid("name is required")
	}
	u.Email = email
	u.Name = name
	u.Phone = strings.TrimSpace(in.Phone)
	u.PasswordHash = ""
	if in.Password != "" {
		if len(in.Password) < 8 {
			return User{}, invalid("password must be at least 8 characters")
		}
		hash, err := auth.HashPassword(in.Password)
		if err != nil {
			return User{}, fmt.Errorf("hash password: %w", err)
		}
		u.PasswordHash = hash
	}
	return s.store.UpdateUser(ctx, u)
}

// Parcels -------------------------------------------------------------------

// NewParcel is the input for CreateParcel.
type NewParcel struct {
	Number string  `json:"number"`
	UserID int64   `json:"userId"`
	AreaM2 float64 `json:"areaM2"`
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Status string  `json:"status"`

	CommunityID int64 `json:"communityId,omitempty"`
}

// CreateParcel adds a parcel to communityID. An owner, when given, must be a
// user of the same community.
func (s *Service) CreateParcel(ctx context.Context, communityID int64, in NewParcel) (Parcel, error) {
	number := strings.TrimSpace(in.Number)
	if number == "" {
		return Parcel{}, invalid("number is required")
	}
	if in.AreaM2 < 0 || math.IsNaN(in.AreaM2) {
		return Parcel{}, invalid("area must not be negative")
	}
	if in.Lat < -90 || in.Lat > 90 || in.Lng < -180 || in.Lng > 180 {
		return Parcel{}, invalid("coordinates out of range")
	}
	if in.UserID != 0 {
		if err := s.requireMember(ctx, communityID, in.UserID); err != nil {
			return Parcel{}, err
		}
	}
	status := strings.TrimSpace(in.Status)
	if status == "" {
		status = "activa"
	}
	p, err := s.store.CreateParcel(ctx, Parcel{
		CommunityID: communityID,
		UserID:      in.UserID,
		Number:      number,
		AreaM2:      in.AreaM2,
		Lat:         in.Lat,
		Lng:         in.Lng,
		Status:      status,
	})
	if err != nil {
		return Parcel{}, err
	}
	s.invalidate(communityID)
	return p, nil
}

// Parcel loads a parcel by id. Callers check tenancy on the result.
func (s *Service) Parcel(ctx context.Context, id int64) (Parcel, error) {
	return s.store.Parcel(ctx, id)
}

// ListParcels returns every parcel of communityID.
func (s *Service) ListParcels(ctx context.Context, communityID int64) ([]Parcel, error) {
	return s.store.ListParcels(ctx, communityID)
}

// ParcelsOf returns the parcels owned by userID.
func (s *Service) ParcelsOf(ctx context.Context, userID int64) ([]Parcel, error) {
	return s.store.ListParcelsByUser(ctx, userID)
}

// ParcelMap returns the community map without owner details.
func (s *Service) ParcelMap(ctx context.Context, communityID int64) ([]ParcelPin, error) {
	parcels, err := s.store.ListParcels(ctx, communityID)
	if err != nil {
		return nil, err
	}
	pins := make([]ParcelPin, 0, len(parcels))
	for _, p := range parcels {
		pins = append(pins, ParcelPin{ID: p.ID, Number: p.Number, Lat: p.Lat, Lng: p.Lng, Status: p.Status})
	}
	return pins, nil
}

// DeleteParcel removes a parcel of communityID.
func (s *Service) DeleteParcel(ctx context.Context, communityID, id int64) error {
	if err := s.store.DeleteParcel(ctx, communityID, id); err != nil {
		return err
	}
	s.invalidate(communityID)
	return nil
}

// Contracts -----------------------------------------------------------------

// NewContract is the input for CreateContract.
type NewContract struct {
	ParcelID int64     `json:"parcelId"`
	Title    string    `json:"title"`
	StartsOn time.Time `json:"startsOn"`
	EndsOn   time.Time `json:"endsOn"`
	Amount   int64     `json:"amount"`

	CommunityID int64 `json:"communityId,omitempty"`
}

// CreateContract records a contract for an assigned parcel of communityID.
// The contract's owner is the parcel's owner.
func (s *Service) CreateContract(ctx context.Context, communityID int64, in NewContract) (Contract, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return Contract{}, invalid("title is required")
	}
	if in.StartsOn.IsZero() || in.EndsOn.IsZero() || !in.EndsOn.After(in.StartsOn) {
		return Contract{}, invalid("contract must end after it starts")
	}
	if in.Amount < 0 {
		return Contract{}, invalid("amount must not be negative")
	}
	parcel, err := s.store.Parcel(ctx, in.ParcelID)
	if errors.Is(err, ErrNotFound) || (err == nil && parcel.CommunityID != communityID) {
		return Contract{}, invalid("unknown parcel")
	}
	if err != nil {
		return Contract{}, err
	}
	if parcel.UserID == 0 {
		return Contract{}, fmt.Errorf("%w: parcel has no owner", ErrInvalidState)
	}
	return s.store.CreateContract(ctx, Contract{
		CommunityID: communityID,
		ParcelID:    parcel.ID,
		UserID:      parcel.UserID,
		Title:       title,
		StartsOn:    in.StartsOn.UTC(),
		EndsOn:      in.EndsOn.UTC(),
		Amount:      in.Amount,
	})
}

// Contract loads a contract by id. Callers check tenancy on the result.
func (s *Service) Contract(ctx context.Context, id int64) (Contract, error) {
	return s.store.Contract(ctx, id)
}

// ListContracts returns the contracts of communityID.
func (s *Service) ListContracts(ctx context.Context, communityID int64) ([]Contract, error) {
	return s.store.ListContracts(ctx, communityID)
}

// DeleteContract removes a contract of communityID.
func (s *Service) DeleteContract(ctx context.Context, communityID, id int64) error {
	return s.store.DeleteContract(ctx, communityID, id)
}

// Expenses ------------------------------------------------------------------

// NewExpense is the input for CreateExpense. Amount is charged to each
// assigned parcel.
type NewExpense struct {
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Amount      int64     `json:"amount"`
	DueOn       time.Time `json:"dueOn"`

	CommunityID int64 `json:"communityId,omitempty"`
}

// CreateExpense records a common expense and one pending payment for every
// parcel of communityID that has an owner.
func (s *Service) CreateExpense(ctx context.Context, communityID int64, in NewExpense) (Expense, []Payment, error) {
	desc := strings.TrimSpace(in.Description)
	if desc == "" {
		return Expense{}, nil, invalid("description is required")
	}
	if in.Amount <= 0 {
		return Expense{}, nil, invalid("amount must be positive")
	}
	if in.DueOn.IsZero() {
		return Expense{}, nil, invalid("due date is required")
	}
	parcels, err := s.store.ListParcels(ctx, communityID)
	if err != nil {
		return Expense{}, nil, err
	}
	payments := make([]Payment, 0, len(parcels))
	for _, p := range parcels {
		if p.UserID == 0 {
			continue
		}
		payments = append(payments, Payment{
			CommunityID: communityID,
			ParcelID:    p.ID,
			UserID:      p.UserID,
			Amount:      in.Amount,
			Status:      PaymentPending,
		})
	}
	e, created, err := s.store.CreateExpense(ctx, Expense{
		CommunityID: communityID,
		Description: desc,
		Category:    strings.TrimSpace(in.Category),
		Amount:      in.Amount,
		DueOn:       in.DueOn.UTC(),
	}, payments)
	if err != nil {
		return Expense{}, nil, err
	}
	s.invalidate(communityID)
	return e, created, nil
}

// ListExpenses returns the expenses of communityID.
func (s *Service) ListExpenses(ctx context.Context, communityID int64) ([]Expense, error) {
	return s.store.ListExpenses(ctx, communityID)
}

// Payments ------------------------------------------------------------------

// Payment loads a payment by id. Callers check tenancy and ownership.
func (s *Service) Payment(ctx context.Context, id int64) (Payment, error) {
	return s.store.Payment(ctx, id)
}

// PaymentByToken loads the payment a gateway token was issued for.
func (s *Service) PaymentByToken(ctx context.Context, token string) (Payment, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Payment{}, ErrNotFound
	}
	return s.store.PaymentByToken(ctx, token)
}

// ListPayments returns the payments of communityID.
func (s *Service) ListPayments(ctx context.Context, communityID int64) ([]Payment, error) {
	return s.store.ListPayments(ctx, communityID)
}

// PaymentsOf returns the payments owed by userID.
func (s *Service) PaymentsOf(ctx context.Context, userID int64) ([]Payment, error) {
	return s.store.ListPaymentsByUser(ctx, userID)
}

// Checkout opens a gateway transaction for p and moves it to en_proceso.
func (s *Service) Checkout(ctx context.Context, p Payment) (Payment, payment.Checkout, error) {
	if !p.Status.Payable() {
		return Payment{}, payment.Checkout{}, fmt.Errorf("%w: payment is %s", ErrInvalidState, p.Status)
	}
	order := payment.Order{
		BuyOrder:  ids.BuyOrder(),
		SessionID: strconv.FormatInt(p.UserID, 10),
		Amount:    p.Amount,
		ReturnURL: s.returnURL,
	}
	co, err := s.gateway.Create(ctx, order)
	if err != nil {
		return Payment{}, payment.Checkout{}, err
	}
	// A concurrent checkout of the same snapshot loses here and its gateway
	// transaction is never handed to the payer.
	expected := p.Status
	p.Status = PaymentProcessing
	p.Reference = order.BuyOrder
	p.GatewayToken = co.Token
	p.PaidAt = nil
	updated, err := s.store.UpdatePayment(ctx, p, expected)
	if err != nil {
		return Payment{}, payment.Checkout{}, err
	}
	s.log.Info("payment checkout started",
		zap.Int64("payment_id", p.ID),
		zap.String("gateway", s.gateway.Name()),
		zap.String("buy_order", order.BuyOrder),
	)
	s.invalidate(p.CommunityID)
	return updated, co, nil
}

// Confirm commits the gateway transaction of p and records the verdict.
func (s *Service) Confirm(ctx context.Context, p Payment) (Payment, payment.Confirmation, error) {
	if p.Status != PaymentProcessing || p.GatewayToken == "" {
		return Payment{}, payment.Confirmation{}, fmt.Errorf("%w: payment is %s", ErrInvalidState, p.Status)
	}
	conf, err := s.gateway.Commit(ctx, p.GatewayToken)
	if errors.Is(err, payment.ErrUnknownToken) {
		return Payment{}, payment.Confirmation{}, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if err != nil {
		return Payment{}, payment.Confirmation{}, err
	}
	if conf.Approved {
		paidAt := s.now()
		p.Status = PaymentPaid
		p.PaidAt = &paidAt
	} else {
		p.Status = PaymentRejected
	}
	updated, err := s.store.UpdatePayment(ctx, p, PaymentProcessing)
	if err != nil {
		return Payment{}, payment.Confirmation{}, err
	}
	s.log.Info("payment confirmed",
		zap.Int64("payment_id", p.ID),
		zap.String("gateway", s.gateway.Name()),
		zap.String("status", string(p.Status)),
	)
	s.invalidate(p.CommunityID)
	return updated, conf, nil
}

// ResetCheckout returns a payment stuck in en_proceso to pendiente so it can
// be checked out again. The abandoned gateway token is forgotten, so a late
// confirm for it finds nothing.
func (s *Service) ResetCheckout(ctx context.Context, p Payment) (Payment, error) {
	if p.Status != PaymentProcessing {
		return Payment{}, fmt.Errorf("%w: payment is %s", ErrInvalidState, p.Status)
	}
	p.Status = PaymentPending
	p.Reference = ""
	p.GatewayToken = ""
	p.PaidAt = nil
	updated, err := s.store.UpdatePayment(ctx, p, PaymentProcessing)
	if err != nil {
		return Payment{}, err
	}
	s.log.Info("payment checkout reset", zap.Int64("payment_id", p.ID))
	s.invalidate(p.CommunityID)
	return updated, nil
}

// GatewayName reports which gateway the service talks to.
func (s *Service) GatewayName() string { return s.gateway.Name() }

// Notifications -------------------------------------------------------------

// NewNotification is the input for CreateNotification.
type NewNotification struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	Priority string `json:"priority"`

	CommunityID int64 `json:"communityId,omitempty"`
}

var priorities = map[string]bool{"baja": true, "normal": true, "alta": true}

// CreateNotification stores an announcement for communityID and publishes it
// to live subscribers.
func (s *Service) CreateNotification(ctx context.Context, communityID, authorID int64, in NewNotification) (Notification, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return Notification{}, invalid("title is required")
	}
	body := strings.TrimSpace(in.Body)
	if body == "" {
		return Notification{}, invalid("body is required")
	}
	priority := strings.ToLower(strings.TrimSpace(in.Priority))
	if priority == "" {
		priority = "normal"
	}
	if !priorities[priority] {
		return Notification{}, invalid("unknown priority %q", in.Priority)
	}
	n, err := s.store.CreateNotification(ctx, Notification{
		CommunityID: communityID,
		AuthorID:    authorID,
		Title:       title,
		Body:        body,
		Priority:    priority,
	})
	if err != nil {
		return Notification{}, err
	}
	if s.publisher != nil {
		s.publisher.Publish(n)
	}
	return n, nil
}

// Notification loads a notification by id. Callers check tenancy.
func (s *Service) Notification(ctx context.Context, id int64) (Notification, error) {
	return s.store.Notification(ctx, id)
}

// ListNotifications returns the newest notifications of communityID.
func (s *Service) ListNotifications(ctx context.Context, communityID int64, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	if limit > maxNotificationLimit {
		limit = maxNotificationLimit
	}
	return s.store.ListNotifications(ctx, communityID, limit)
}

// DeleteNotification removes a notification of communityID.
func (s *Service) DeleteNotification(ctx context.Context, communityID, id int64) error {
	return s.store.DeleteNotification(ctx, communityID, id)
}

// Statistics ----------------------------------------------------------------

// Summary returns the dashboard aggregate of communityID, cached briefly.
func (s *Service) Summary(ctx context.Context, communityID int64) (Summary, error) {
	key := summaryKey(communityID)
	if v, ok := s.summaries.Get(key); ok {
		if sum, ok := v.(Summary); ok {
			return sum, nil
		}
	}
	sum, err := s.store.Summary(ctx, communityID)
	if err != nil {
		return Summary{}, err
	}
	s.summaries.SetDefault(key, sum)
	return sum, nil
}

func (s *Service) invalidate(communityID int64) {
	s.summaries.Delete(summaryKey(communityID))
}

func summaryKey(communityID int64) string {
	return "summary:" + strconv.FormatInt(communityID, 10)
}

func (s *Service) requireMember(ctx context.Context, communityID, userID int64) error {
	u, err := s.store.User(ctx, userID)
	if errors.Is(err, ErrNotFound) || (err == nil && u.CommunityID != communityID) {
		return invalid("unknown user")
	}
	return err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if email == "" {
		return invalid("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return invalid("email is not valid")
	}
	return nil
}
