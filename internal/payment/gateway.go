// Package payment abstracts the card gateway used to collect common expense
// payments. The live Webpay Plus client and an in-process double share the
// Gateway interface and are chosen by configuration.
package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sigepa.cl/internal/config"
)

var (
	// ErrGateway wraps transport and protocol failures talking to the vendor.
	ErrGateway = errors.New("payment: gateway error")
	// ErrUnknownToken is returned by Commit for tokens the gateway never issued.
	ErrUnknownToken = errors.New("payment: unknown token")
	// ErrInvalidOrder is returned by Create for orders the gateway would refuse.
	ErrInvalidOrder = errors.New("payment: invalid order")
)

// Order is a checkout request for one payment.
type Order struct {
	BuyOrder  string
	SessionID string
	Amount    int64
	ReturnURL string
}

// Validate checks the limits Webpay enforces on a transaction.
func (o Order) Validate() error {
	switch {
	case o.BuyOrder == "" || len(o.BuyOrder) > 26:
		return fmt.Errorf("%w: buy order must be 1-26 characters", ErrInvalidOrder)
	case o.SessionID == "" || len(o.SessionID) > 61:
		return fmt.Errorf("%w: session id must be 1-61 characters", ErrInvalidOrder)
	case o.Amount <= 0:
		return fmt.Errorf("%w: amount must be positive", ErrInvalidOrder)
	case o.ReturnURL == "":
		return fmt.Errorf("%w: return url is required", ErrInvalidOrder)
	}
	return nil
}

// Checkout is where the payer must be redirected to complete an order.
type Checkout struct {
	Token string `json:"token"`
	URL   string `json:"url"`
}

// Confirmation is the gateway's verdict on a committed transaction.
type Confirmation struct {
	Approved          bool      `json:"approved"`
	Status            string    `json:"status"`
	ResponseCode      int       `json:"responseCode"`
	BuyOrder          string    `json:"buyOrder"`
	Amount            int64     `json:"amount"`
	AuthorizationCode string    `json:"authorizationCode,omitempty"`
	TransactionDate   time.Time `json:"transactionDate"`
}

// Gateway creates and commits card transactions.
type Gateway interface {
	Name() string
	Create(ctx context.Context, order Order) (Checkout, error)
	Commit(ctx context.Context, token string) (Confirmation, error)
}

// New returns the gateway selected by cfg.Payment.Mode.
func New(cfg config.Config) (Gateway, error) {
	switch cfg.Payment.Mode {
	case config.PaymentModeSimulated:
		return NewSimulated(cfg.Payment.Simulated.RejectAbove), nil
	case config.PaymentModeTransbank:
		tb := cfg.Payment.Transbank
		return NewTransbank(tb.BaseURL, tb.CommerceCode, tb.APIKey, tb.Timeout)
	default:
		return nil, fmt.Errorf("payment: unknown mode %q", cfg.Payment.Mode)
	}
}
