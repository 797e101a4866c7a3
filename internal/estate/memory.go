package estate

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// InMemory implements Store with in-process concurrency safety. It backs
// tests and local development without PostgreSQL.
type InMemory struct {
	mu            sync.RWMutex
	seq           int64
	communities   map[int64]Community
	users         map[int64]User
	parcels       map[int64]Parcel
	contracts     map[int64]Contract
	expenses      map[int64]Expense
	payments      map[int64]Payment
	notifications map[int64]Notification
	now           func() time.Time
}

// NewInMemory creates an empty store.
func NewInMemory() *InMemory {
	return &InMemory{
		communities:   make(map[int64]Community),
		users:         make(map[int64]User),
		parcels:       make(map[int64]Parcel),
		contracts:     make(map[int64]Contract),
		expenses:      make(map[int64]Expense),
		payments:      make(map[int64]Payment),
		notifications: make(map[int64]Notification),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *InMemory) nextID() int64 {
	s.seq++
	return s.seq
}

// CreateCommunity registers a community. It is not part of Store: communities
// are provisioned by seeds.
func (s *InMemory) CreateCommunity(ctx context.Context, c Community) (Community, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.nextID()
	c.CreatedAt = s.now()
	s.communities[c.ID] = c
	return c, nil
}

func (s *InMemory) Community(ctx context.Context, id int64) (Community, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.communities[id]
	if !ok {
		return Community{}, ErrNotFound
	}
	return c, nil
}

func (s *InMemory) CreateUser(ctx context.Context, u User) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.communities[u.CommunityID]; !ok {
		return User{}, ErrNotFound
	}
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return User{}, ErrConflict
		}
	}
	u.ID = s.nextID()
	u.CreatedAt = s.now()
	u.UpdatedAt = u.CreatedAt
	s.users[u.ID] = u
	return u, nil
}

func (s *InMemory) User(ctx context.Context, id int64) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (s *InMemory) UserByEmail(ctx context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (s *InMemory) ListUsers(ctx context.Context, communityID int64) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return collect(s.users, func(u User) bool { return u.CommunityID == communityID }, func(u User) int64 { return u.ID }), nil
}

func (s *InMemory) UpdateUser(ctx context.Context, u User) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.users[u.ID]
	if !ok {
		return User{}, ErrNotFound
	}
	for _, existing := range s.users {
		if existing.ID != u.ID && strings.EqualFold(existing.Email, u.Email) {
			return User{}, ErrConflict
		}
	}
	cur.Email = u.Email
	cur.Name = u.Name
	cur.Phone = u.Phone
	if u.PasswordHash != "" {
		cur.PasswordHash = u.PasswordHash
	}
	cur.UpdatedAt = s.now()
	s.users[cur.ID] = cur
	return cur, nil
}

func (s *InMemory) DeleteUser(ctx context.Context, communityID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || u.CommunityID != communityID {
		return ErrNotFound
	}
	// Same references the foreign keys on users guard in PostgreSQL.
	for _, p := range s.parcels {
		if p.UserID == id {
			return ErrConflict
		}
	}
	for _, c := range s.contracts {
		if c.UserID == id {
			return ErrConflict
		}
	}
	for _, pay := range s.payments {
		if pay.UserID == id {
			return ErrConflict
		}
	}
	for _, n := range s.notifications {
		if n.AuthorID == id {
			return ErrConflict
		}
	}
	delete(s.users, id)
	return nil
}

func (s *InMemory) CreateParcel(ctx context.Context, p Parcel) (Parcel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.parcels {
		if existing.CommunityID == p.CommunityID && strings.EqualFold(existing.Number, p.Number) {
			return Parcel{}, ErrConflict
		}
	}
	p.ID = s.nextID()
	p.CreatedAt = s.now()
	s.parcels[p.ID] = p
	return p, nil
}

func (s *InMemory) Parcel(ctx context.Context, id int64) (Parcel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.parcels[id]
	if !ok {
		return Parcel{}, ErrNotFound
	}
	return p, nil
}

func (s *InMemory) ListParcels(ctx context.Context, communityID int64) ([]Parcel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return collect(s.parcels, func(p Parcel) bool { return p.CommunityID == communityID }, func(p Parcel) int64 { return p.ID }), nil
}

func (s *InMemory) ListParcelsByUser(ctx context.Context, userID int64) ([]Parcel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return collect(s.parcels, func(p Parcel) bool { return p.UserID == userID }, func(p Parcel) int64 { return p.ID }), nil
}

func (s *InMemory) DeleteParcel(ctx context.Context, communityID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.parcels[id]
	if !ok || p.CommunityID != communityID {
		return ErrNotFound
	}
	for _, pay := range s.payments {
		if pay.ParcelID == id {
			return ErrConflict
		}
	}
	for _, c := range s.contracts {
		if c.ParcelID == id {
			return ErrConflict
		}
	}
	delete(s.parcels, id)
	return nil
}

func (s *InMemory) CreateContract(ctx context.Context, c Contract) (Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.nextID()
	c.CreatedAt = s.now()
	s.contracts[c.ID] = c
	return c, nil
}

func (s *InMemory) Contract(ctx context.Context, id int64) (Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contracts[id]
	if !ok {
		return Contract{}, ErrNotFound
	}
	return c, nil
}

func (s *InMemory) ListContracts(ctx context.Context, communityID int64) ([]Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return collect(s.contracts, func(c Contract) bool { return c.CommunityID == communityID }, func(c Contract) int64 { return c.ID }), nil
}

func (s *InMemory) DeleteContract(ctx context.Context, communityID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contracts[id]
	if !ok || c.CommunityID != communityID {
		return ErrNotFound
	}
	delete(s.contracts, id)
	return nil
}

func (s *InMemory) CreateExpense(ctx context.Context, e Expense, payments []Payment) (Expense, []Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.nextID()
	e.CreatedAt = s.now()
	s.expenses[e.ID] = e
	out := make([]Payment, 0, len(payments))
	for _, p := range payments {
		p.ID = s.nextID()
		p.ExpenseID = e.ID
		p.CreatedAt = e.CreatedAt
		s.payments[p.ID] = p
		out = append(out, p)
	}
	return e, out, nil
}

func (s *InMemory) ListExpenses(ctx context.Context, communityID int64) ([]Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return collect(s.expenses, func(e Expense) bool { return e.CommunityID == communityID }, func(e Expense) int64 { return e.ID }), nil
}

func (s *InMemory) Payment(ctx context.Context, id int64) (Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payments[id]
	if !ok {
		return Payment{}, ErrNotFound
	}
	return p, nil
}

func (s *InMemory) PaymentByToken(ctx context.Context, token string) (Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if token == "" {
		return Payment{}, ErrNotFound
	}
	for _, p := range s.payments {
		if p.GatewayToken == token {
			return p, nil
		}
	}
	return Payment{}, ErrNotFound
}

func (s *InMemory) ListPayments(ctx context.Context, communityID int64) ([]Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return collect(s.payments, func(p Payment) bool { return p.CommunityID == communityID }, func(p Payment) int64 { return p.ID }), nil
}

func (s *InMemory) ListPaymentsByUser(ctx context.Context, userID int64) ([]Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return collect(s.payments, func(p Payment) bool { return p.UserID == userID }, func(p Payment) int64 { return p.ID }), nil
}

func (s *InMemory) UpdatePayment(ctx context.Context, p Payment, expected PaymentStatus) (Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.payments[p.ID]
	if !ok {
		return Payment{}, ErrNotFound
	}
	if cur.Status != expected {
		return Payment{}, fmt.Errorf("%w: payment %d is %s, not %s", ErrInvalidState, p.ID, cur.Status, expected)
	}
	cur.Status = p.Status
	cur.Reference = p.Reference
	cur.GatewayToken = p.GatewayToken
	cur.PaidAt = p.PaidAt
	s.payments[cur.ID] = cur
	return cur, nil
}

func (s *InMemory) CreateNotification(ctx context.Context, n Notification) (Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n.ID = s.nextID()
	n.CreatedAt = s.now()
	s.notifications[n.ID] = n
	return n, nil
}

func (s *InMemory) Notification(ctx context.Context, id int64) (Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notifications[id]
	if !ok {
		return Notification{}, ErrNotFound
	}
	return n, nil
}

func (s *InMemory) ListNotifications(ctx context.Context, communityID int64, limit int) ([]Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := collect(s.notifications, func(n Notification) bool { return n.CommunityID == communityID }, func(n Notification) int64 { return n.ID })
	// newest first
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemory) DeleteNotification(ctx context.Context, communityID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok || n.CommunityID != communityID {
		return ErrNotFound
	}
	delete(s.notifications, id)
	return nil
}

func (s *InMemory) Summary(ctx context.Context, communityID int64) (Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sum := Summary{CommunityID: communityID, Payments: map[PaymentStatus]int{}}
	for _, p := range s.parcels {
		if p.CommunityID != communityID {
			continue
		}
		sum.Parcels++
		if p.UserID > 0 {
			sum.AssignedParcels++
		}
	}
	for _, u := range s.users {
		if u.CommunityID == communityID {
			sum.Users++
		}
	}
	for _, e := range s.expenses {
		if e.CommunityID == communityID {
			sum.Expenses++
		}
	}
	for _, p := range s.payments {
		if p.CommunityID != communityID {
			continue
		}
		sum.Payments[p.Status]++
		switch p.Status {
		case PaymentPaid:
			sum.AmountCollected += p.Amount
		default:
			sum.AmountPending += p.Amount
		}
	}
	return sum, nil
}

func collect[T any](m map[int64]T, keep func(T) bool, id func(T) int64) []T {
	out := make([]T, 0)
	for _, v := range m {
		if keep(v) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return id(out[i]) < id(out[j]) })
	return out
}
