package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	transactionsPath = "/rswebpaytransaction/api/webpay/v1.2/transactions"
	statusAuthorized = "AUTHORIZED"
	defaultTimeout   = 15 * time.Second
	maxResponseBytes = 1 << 20
)

// HTTPError is a non-2xx answer from the vendor API.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http error: status=%d", e.StatusCode)
	}
	return fmt.Sprintf("http error: status=%d body=%s", e.StatusCode, e.Body)
}

// Transbank is a Webpay Plus REST client.
type Transbank struct {
	http         *http.Client
	baseURL      string
	commerceCode string
	apiKey       string
}

// NewTransbank builds a client for the Webpay Plus API at baseURL.
func NewTransbank(baseURL, commerceCode, apiKey string, timeout time.Duration) (*Transbank, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("payment: invalid base url: %w", err)
	}
	if commerceCode == "" || apiKey == "" {
		return nil, errors.New("payment: commerce code and api key are required")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Transbank{
		http:         &http.Client{Timeout: timeout},
		baseURL:      baseURL,
		commerceCode: commerceCode,
		apiKey:       apiKey,
	}, nil
}

func (t *Transbank) Name() string { return "transbank" }

type createRequest struct {
	BuyOrder  string `json:"buy_order"`
	SessionID string `json:"session_id"`
	Amount    int64  `json:"amount"`
	ReturnURL string `json:"return_url"`
}

type createResponse struct {
	Token string `json:"token"`
	URL   string `json:"url"`
}

type commitResponse struct {
	Status            string `json:"status"`
	ResponseCode      *int   `json:"response_code"`
	BuyOrder          string `json:"buy_order"`
	SessionID         string `json:"session_id"`
	Amount            int64  `json:"amount"`
	AuthorizationCode string `json:"authorization_code"`
	TransactionDate   string `json:"transaction_date"`
}

// Create opens a Webpay transaction and returns the redirect target.
func (t *Transbank) Create(ctx context.Context, order Order) (Checkout, error) {
	if err := order.Validate(); err != nil {
		return Checkout{}, err
	}
	var out createResponse
	err := t.doJSON(ctx, http.MethodPost, transactionsPath, createRequest{
		BuyOrder:  order.BuyOrder,
		SessionID: order.SessionID,
		Amount:    order.Amount,
		ReturnURL: order.ReturnURL,
	}, &out)
	if err != nil {
		return Checkout{}, mapTransbankError(err)
	}
	if out.Token == "" || out.URL == "" {
		return Checkout{}, fmt.Errorf("%w: create response missing token or url", ErrGateway)
	}
	return Checkout{Token: out.Token, URL: out.URL}, nil
}

// Commit confirms the transaction identified by token. A declined card is a
// successful call with Approved false.
func (t *Transbank) Commit(ctx context.Context, token string) (Confirmation, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Confirmation{}, ErrUnknownToken
	}
	var out commitResponse
	if err := t.doJSON(ctx, http.MethodPut, transactionsPath+"/"+url.PathEscape(token), nil, &out); err != nil {
		return Confirmation{}, mapTransbankError(err)
	}
	conf := Confirmation{
		Status:            out.Status,
		ResponseCode:      -1,
		BuyOrder:          out.BuyOrder,
		Amount:            out.Amount,
		AuthorizationCode: out.AuthorizationCode,
	}
	if out.ResponseCode != nil {
		conf.ResponseCode = *out.ResponseCode
	}
	if ts, err := time.Parse(time.RFC3339, out.TransactionDate); err == nil {
		conf.TransactionDate = ts.UTC()
	}
	conf.Approved = conf.Status == statusAuthorized && conf.ResponseCode == 0
	return conf, nil
}

func (t *Transbank) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal json: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Tbk-Api-Key-Id", t.commerceCode)
	req.Header.Set("Tbk-Api-Key-Secret", t.apiKey)

	resp, err := t.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("unmarshal json: %w", err)
	}
	return nil
}

func mapTransbankError(err error) error {
	var he *HTTPError
	if errors.As(err, &he) {
		switch he.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %v", ErrUnknownToken, err)
		case http.StatusBadRequest, http.StatusUnprocessableEntity:
			return fmt.Errorf("%w: %v", ErrInvalidOrder, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrGateway, err)
}
