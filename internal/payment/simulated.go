package payment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sigepa.cl/internal/ids"
)

// Simulated approves every order at or below rejectAbove (or every order when
// rejectAbove is zero) without leaving the process.
type Simulated struct {
	rejectAbove int64
	now         func() time.Time

	mu     sync.Mutex
	orders map[string]Order
}

// NewSimulated returns a deterministic in-process gateway.
func NewSimulated(rejectAbove int64) *Simulated {
	return &Simulated{
		rejectAbove: rejectAbove,
		now:         func() time.Time { return time.Now().UTC() },
		orders:      make(map[string]Order),
	}
}

func (s *Simulated) Name() string { return "simulated" }

func (s *Simulated) Create(ctx context.Context, order Order) (Checkout, error) {
	if err := order.Validate(); err != nil {
		return Checkout{}, err
	}
	token := "sim-" + ids.New()
	s.mu.Lock()
	s.orders[token] = order
	s.mu.Unlock()
	return Checkout{
		Token: token,
		URL:   fmt.Sprintf("%s?token_ws=%s", order.ReturnURL, token),
	}, nil
}

// Commit is single use per token, like the real gateway.
func (s *Simulated) Commit(ctx context.Context, token string) (Confirmation, error) {
	s.mu.Lock()
	order, ok := s.orders[token]
	delete(s.orders, token)
	s.mu.Unlock()
	if !ok {
		return Confirmation{}, ErrUnknownToken
	}
	conf := Confirmation{
		BuyOrder:        order.BuyOrder,
		Amount:          order.Amount,
		TransactionDate: s.now(),
	}
	if s.rejectAbove > 0 && order.Amount > s.rejectAbove {
		conf.Status = "FAILED"
		conf.ResponseCode = -1
		return conf, nil
	}
	conf.Status = statusAuthorized
	conf.Approved = true
	conf.AuthorizationCode = "1213"
	return conf, nil
}
