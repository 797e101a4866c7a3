package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"sigepa.cl/internal/auth"
	"sigepa.cl/internal/estate"
	"sigepa.cl/internal/payment"
	"sigepa.cl/internal/stream"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testEnv struct {
	t      *testing.T
	srv    *httptest.Server
	svc    *estate.Service
	store  *estate.InMemory
	stream *stream.Stream
	tokens *auth.Tokens

	c1, c2         estate.Community
	admin1, owner1 estate.User
	admin2, owner2 estate.User
	parcel1        estate.Parcel
	parcel2        estate.Parcel
}

type envelope struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message"`
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data"`
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	store := estate.NewInMemory()
	st := stream.New()
	svc, err := estate.NewService(store,
		estate.WithPublisher(st),
		estate.WithGateway(payment.NewSimulated(0), "http://localhost:5173/pagos/retorno"),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	tokens, err := auth.NewTokens(testSecret)
	if err != nil {
		t.Fatalf("new tokens: %v", err)
	}

	e := &testEnv{t: t, svc: svc, store: store, stream: st, tokens: tokens}
	e.c1 = e.community(ctx, "Parcelación Los Aromos")
	e.c2 = e.community(ctx, "Valle Nevado")
	e.admin1 = e.user(ctx, e.c1.ID, "admin@aromos.cl", "administrador")
	e.owner1 = e.user(ctx, e.c1.ID, "pedro@aromos.cl", "copropietario")
	e.admin2 = e.user(ctx, e.c2.ID, "admin@nevado.cl", "admin")
	e.owner2 = e.user(ctx, e.c2.ID, "lucia@nevado.cl", "propietario")
	e.parcel1 = e.parcel(ctx, e.c1.ID, "A-1", e.owner1.ID)
	e.parcel2 = e.parcel(ctx, e.c2.ID, "B-1", e.owner2.ID)

	api := New(svc, tokens,
		WithStream(st),
		WithRateLimit(1000, 1000),
		WithLogger(zap.NewNop()),
		WithVersion("test"),
	)
	api.heartbeat = 50 * time.Millisecond
	e.srv = httptest.NewServer(api.Handler())
	t.Cleanup(e.srv.Close)
	return e
}

func (e *testEnv) community(ctx context.Context, name string) estate.Community {
	e.t.Helper()
	c, err := e.store.CreateCommunity(ctx, estate.Community{Name: name})
	if err != nil {
		e.t.Fatalf("create community: %v", err)
	}
	return c
}

func (e *testEnv) user(ctx context.Context, communityID int64, email, role string) estate.User {
	e.t.Helper()
	u, err := e.svc.CreateUser(ctx, communityID, estate.NewUser{
		Email: email, Name: email, Role: role, Password: "password-" + email,
	})
	if err != nil {
		e.t.Fatalf("create user %s: %v", email, err)
	}
	return u
}

func (e *testEnv) parcel(ctx context.Context, communityID int64, number string, ownerID int64) estate.Parcel {
	e.t.Helper()
	p, err := e.svc.CreateParcel(ctx, communityID, estate.NewParcel{Number: number, UserID: ownerID, AreaM2: 5000})
	if err != nil {
		e.t.Fatalf("create parcel %s: %v", number, err)
	}
	return p
}

func (e *testEnv) token(u estate.User) string {
	e.t.Helper()
	tok, _, err := e.tokens.Issue(u.Identity())
	if err != nil {
		e.t.Fatalf("issue token: %v", err)
	}
	return tok
}

func (e *testEnv) do(method, path, token string, body any) *http.Response {
	e.t.Helper()
	var payload io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		payload = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			e.t.Fatalf("marshal body: %v", err)
		}
		payload = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, payload)
	if err != nil {
		e.t.Fatalf("new request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.srv.Client().Do(req)
	if err != nil {
		e.t.Fatalf("do request: %v", err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, wantStatus int) envelope {
	t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if resp.StatusCode != wantStatus {
		t.Fatalf("expected status %d, got %d: %s", wantStatus, resp.StatusCode, raw)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("decode body %q: %v", raw, err)
	}
	return env
}

func data[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(env.Data, &v); err != nil {
		t.Fatalf("decode data %s: %v", env.Data, err)
	}
	return v
}

func TestAdminCreatesNotification(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(http.MethodPost, "/api/notifications", e.token(e.admin1), map[string]any{
		"title":    "Corte de agua",
		"body":     "El martes se corta el agua de 9 a 13.",
		"priority": "alta",
	})
	env := decode(t, resp, http.StatusOK)
	if !env.Success {
		t.Fatalf("expected success, got %+v", env)
	}
	n := data[estate.Notification](t, env)
	if n.ID == 0 || n.CommunityID != e.c1.ID || n.AuthorID != e.admin1.ID {
		t.Fatalf("unexpected notification %+v", n)
	}
}

func TestCrossTenantResourcesAreForbidden(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	foreign, err := e.svc.CreateNotification(ctx, e.c2.ID, e.admin2.ID, estate.NewNotification{Title: "Asamblea", Body: "Sábado 10:00"})
	if err != nil {
		t.Fatalf("seed notification: %v", err)
	}
	admin := e.token(e.admin1)

	env := decode(t, e.do(http.MethodDelete, fmt.Sprintf("/api/notifications/%d", foreign.ID), admin, nil), http.StatusForbidden)
	if env.Success || env.Message != auth.MessageInsufficientPermissions {
		t.Fatalf("unexpected body %+v", env)
	}
	if _, err := e.svc.Notification(ctx, foreign.ID); err != nil {
		t.Fatalf("foreign notification must survive: %v", err)
	}

	// a foreign resource and a missing one are indistinguishable
	foreignParcel := decode(t, e.do(http.MethodGet, fmt.Sprintf("/api/parcels/%d", e.parcel2.ID), admin, nil), http.StatusForbidden)
	missingParcel := decode(t, e.do(http.MethodGet, "/api/parcels/999999", admin, nil), http.StatusForbidden)
	if foreignParcel.Message != missingParcel.Message {
		t.Fatalf("responses differ: %q vs %q", foreignParcel.Message, missingParcel.Message)
	}

	// collections only ever show the caller's community
	parcels := data[[]estate.Parcel](t, decode(t, e.do(http.MethodGet, "/api/parcels", admin, nil), http.StatusOK))
	for _, p := range parcels {
		if p.CommunityID != e.c1.ID {
			t.Fatalf("foreign parcel listed: %+v", p)
		}
	}
}

func TestCreateForOtherCommunityIsForbidden(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	admin := e.token(e.admin1)

	creates := []struct {
		path string
		body map[string]any
	}{
		{"/api/notifications", map[string]any{"title": "Asamblea", "body": "Sábado 10:00"}},
		{"/api/parcels", map[string]any{"number": "B-9", "areaM2": 5000}},
		{"/api/users", map[string]any{"email": "intruso@nevado.cl", "name": "Intruso", "role": "admin", "password": "password-9"}},
		{"/api/expenses", map[string]any{"description": "Cuota", "amount": 1000, "dueOn": "2024-04-30T00:00:00Z"}},
	}
	for _, c := range creates {
		c.body["communityId"] = e.c2.ID
		env := decode(t, e.do(http.MethodPost, c.path, admin, c.body), http.StatusForbidden)
		if env.Success || env.Message != auth.MessageInsufficientPermissions {
			t.Fatalf("%s: unexpected body %+v", c.path, env)
		}
	}

	notes, err := e.svc.ListNotifications(ctx, e.c2.ID, 0)
	if err != nil || len(notes) != 0 {
		t.Fatalf("foreign community was written to: %v %v", notes, err)
	}
	parcels, err := e.svc.ListParcels(ctx, e.c2.ID)
	if err != nil || len(parcels) != 1 {
		t.Fatalf("foreign community was written to: %v %v", parcels, err)
	}

	// naming the caller's own community is accepted
	n := data[estate.Notification](t, decode(t, e.do(http.MethodPost, "/api/notifications", admin, map[string]any{
		"title": "Asamblea", "body": "Sábado 10:00", "communityId": e.c1.ID,
	}), http.StatusOK))
	if n.CommunityID != e.c1.ID {
		t.Fatalf("unexpected notification %+v", n)
	}
}

func TestAdminResetsStuckCheckout(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	_, payments, err := e.svc.CreateExpense(ctx, e.c1.ID, estate.NewExpense{Description: "Cuota", Amount: 20000, DueOn: time.Now()})
	if err != nil || len(payments) != 1 {
		t.Fatalf("seed expense: %v %v", payments, err)
	}
	path := fmt.Sprintf("/api/payments/%d/reset", payments[0].ID)

	// nothing to reset while pending
	decode(t, e.do(http.MethodPost, path, e.token(e.admin1), nil), http.StatusConflict)

	owner := e.token(e.owner1)
	decode(t, e.do(http.MethodPost, fmt.Sprintf("/api/payments/%d/checkout", payments[0].ID), owner, nil), http.StatusOK)

	decode(t, e.do(http.MethodPost, path, owner, nil), http.StatusForbidden)
	decode(t, e.do(http.MethodPost, path, e.token(e.admin2), nil), http.StatusForbidden)

	reset := data[estate.Payment](t, decode(t, e.do(http.MethodPost, path, e.token(e.admin1), nil), http.StatusOK))
	if reset.Status != estate.PaymentPending || reset.Reference != "" {
		t.Fatalf("unexpected payment after reset %+v", reset)
	}

	// the owner can pay again
	co := data[checkoutResponse](t, decode(t, e.do(http.MethodPost, fmt.Sprintf("/api/payments/%d/checkout", payments[0].ID), owner, nil), http.StatusOK))
	if co.Payment.Status != estate.PaymentProcessing {
		t.Fatalf("unexpected checkout %+v", co)
	}
}

func TestMissingTokenIsUnauthenticated(t *testing.T) {
	e := newTestEnv(t)
	endpoints := []struct{ method, path string }{
		{http.MethodGet, "/api/auth/me"},
		{http.MethodGet, "/api/profile"},
		{http.MethodGet, "/api/parcels/mine"},
		{http.MethodGet, "/api/parcels/map"},
		{http.MethodGet, "/api/parcels"},
		{http.MethodGet, "/api/parcels/1"},
		{http.MethodPost, "/api/notifications"},
		{http.MethodDelete, "/api/notifications/1"},
		{http.MethodGet, "/api/contracts"},
		{http.MethodPost, "/api/expenses"},
		{http.MethodGet, "/api/users"},
		{http.MethodGet, "/api/payments/mine"},
		{http.MethodPost, "/api/payments/1/checkout"},
		{http.MethodPost, "/api/payments/confirm"},
		{http.MethodGet, "/api/stats/summary"},
	}
	for _, ep := range endpoints {
		t.Run(ep.method+" "+ep.path, func(t *testing.T) {
			env := decode(t, e.do(ep.method, ep.path, "", nil), http.StatusUnauthorized)
			if env.Success || env.Message != auth.MessageInvalidSession {
				t.Fatalf("unexpected body %+v", env)
			}
		})
	}

	// a malformed scheme is treated like no token at all
	req, _ := http.NewRequest(http.MethodGet, e.srv.URL+"/api/auth/me", nil)
	req.Header.Set("Authorization", "bearer "+e.token(e.admin1))
	resp, err := e.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	decode(t, resp, http.StatusUnauthorized)
}

func TestOwnerCannotUseAdminEndpoints(t *testing.T) {
	e := newTestEnv(t)
	n, err := e.svc.CreateNotification(context.Background(), e.c1.ID, e.admin1.ID, estate.NewNotification{Title: "Aviso", Body: "Portón en mantención"})
	if err != nil {
		t.Fatalf("seed notification: %v", err)
	}
	owner := e.token(e.owner1)

	env := decode(t, e.do(http.MethodDelete, fmt.Sprintf("/api/notifications/%d", n.ID), owner, nil), http.StatusForbidden)
	if env.Message != auth.MessageInsufficientPermissions {
		t.Fatalf("unexpected message %q", env.Message)
	}
	// the role check runs before the lookup, so a missing id answers the same
	decode(t, e.do(http.MethodDelete, "/api/notifications/999999", owner, nil), http.StatusForbidden)
	decode(t, e.do(http.MethodGet, "/api/stats/summary", owner, nil), http.StatusForbidden)
	decode(t, e.do(http.MethodPost, "/api/users", owner, map[string]any{"email": "x@aromos.cl"}), http.StatusForbidden)
}

func TestExpiredTokenIsUnauthenticated(t *testing.T) {
	e := newTestEnv(t)
	past, err := auth.NewTokens(testSecret,
		auth.WithAccessTTL(time.Hour),
		auth.WithClock(func() time.Time { return time.Now().Add(-2 * time.Hour) }),
	)
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}
	expired, _, err := past.Issue(e.admin1.Identity())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	env := decode(t, e.do(http.MethodGet, "/api/stats/summary", expired, nil), http.StatusUnauthorized)
	if env.Message != auth.MessageInvalidSession {
		t.Fatalf("unexpected message %q", env.Message)
	}

	other, err := auth.NewTokens("ffffffffffffffffffffffffffffffff")
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}
	forged, _, err := other.Issue(e.admin1.Identity())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	decode(t, e.do(http.MethodGet, "/api/stats/summary", forged, nil), http.StatusUnauthorized)
}

func TestOwnerSeesOnlyOwnParcels(t *testing.T) {
	e := newTestEnv(t)
	neighbour := e.user(context.Background(), e.c1.ID, "rosa@aromos.cl", "copropietario")
	theirs := e.parcel(context.Background(), e.c1.ID, "A-2", neighbour.ID)
	owner := e.token(e.owner1)

	p := data[estate.Parcel](t, decode(t, e.do(http.MethodGet, fmt.Sprintf("/api/parcels/%d", e.parcel1.ID), owner, nil), http.StatusOK))
	if p.ID != e.parcel1.ID {
		t.Fatalf("unexpected parcel %+v", p)
	}
	decode(t, e.do(http.MethodGet, fmt.Sprintf("/api/parcels/%d", theirs.ID), owner, nil), http.StatusForbidden)
	decode(t, e.do(http.MethodGet, fmt.Sprintf("/api/parcels/%d", theirs.ID), e.token(e.admin1), nil), http.StatusOK)

	mine := data[[]estate.Parcel](t, decode(t, e.do(http.MethodGet, "/api/parcels/mine", owner, nil), http.StatusOK))
	if len(mine) != 1 || mine[0].ID != e.parcel1.ID {
		t.Fatalf("unexpected own parcels %+v", mine)
	}
	pins := data[[]estate.ParcelPin](t, decode(t, e.do(http.MethodGet, "/api/parcels/map", owner, nil), http.StatusOK))
	if len(pins) != 2 {
		t.Fatalf("expected the whole community map, got %d pins", len(pins))
	}
}

func TestLoginAndProfile(t *testing.T) {
	e := newTestEnv(t)

	env := decode(t, e.do(http.MethodPost, "/api/auth/login", "", map[string]any{
		"email":    "PEDRO@aromos.cl",
		"password": "password-pedro@aromos.cl",
	}), http.StatusOK)
	login := data[loginResponse](t, env)
	if login.Token == "" || login.User.ID != e.owner1.ID || !login.ExpiresAt.After(time.Now()) {
		t.Fatalf("unexpected login %+v", login)
	}

	me := data[estate.User](t, decode(t, e.do(http.MethodGet, "/api/auth/me", login.Token, nil), http.StatusOK))
	if me.Email != "pedro@aromos.cl" || me.Role != auth.RoleCopropietario {
		t.Fatalf("unexpected me %+v", me)
	}

	updated := data[estate.User](t, decode(t, e.do(http.MethodPut, "/api/profile", login.Token, map[string]any{
		"name":  "Pedro Soto",
		"email": "pedro@aromos.cl",
		"phone": "+56 9 1234 5678",
	}), http.StatusOK))
	if updated.Name != "Pedro Soto" || updated.Phone != "+56 9 1234 5678" {
		t.Fatalf("profile not updated: %+v", updated)
	}

	bad := decode(t, e.do(http.MethodPost, "/api/auth/login", "", map[string]any{
		"email":    "pedro@aromos.cl",
		"password": "wrong",
	}), http.StatusUnauthorized)
	unknown := decode(t, e.do(http.MethodPost, "/api/auth/login", "", map[string]any{
		"email":    "nadie@aromos.cl",
		"password": "wrong",
	}), http.StatusUnauthorized)
	if bad.Message != unknown.Message {
		t.Fatalf("login failures must look the same: %q vs %q", bad.Message, unknown.Message)
	}
}

func TestMalformedBodies(t *testing.T) {
	e := newTestEnv(t)
	admin := e.token(e.admin1)

	cases := map[string]string{
		"unknown field": `{"title":"x","priority":"normal","urgent":true}`,
		"not json":      `title=x`,
		"trailing data": `{"title":"x"} {"title":"y"}`,
		"empty":         ``,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			env := decode(t, e.do(http.MethodPost, "/api/notifications", admin, body), http.StatusBadRequest)
			if env.Success || env.Message == "" {
				t.Fatalf("unexpected body %+v", env)
			}
		})
	}

	decode(t, e.do(http.MethodGet, "/api/parcels/abc", admin, nil), http.StatusBadRequest)
	env := decode(t, e.do(http.MethodPost, "/api/notifications", admin, map[string]any{"title": "x", "body": "y", "priority": "urgente"}), http.StatusBadRequest)
	if !strings.Contains(env.Message, "priority") {
		t.Fatalf("expected validation message, got %q", env.Message)
	}
}

func TestExpensePaymentFlow(t *testing.T) {
	e := newTestEnv(t)
	admin := e.token(e.admin1)
	owner := e.token(e.owner1)

	created := data[createExpenseResponse](t, decode(t, e.do(http.MethodPost, "/api/expenses", admin, map[string]any{
		"description": "Mantención camino",
		"category":    "mantencion",
		"amount":      25000,
		"dueOn":       "2024-04-30T00:00:00Z",
	}), http.StatusOK))
	if len(created.Payments) != 1 {
		t.Fatalf("expected one payment for the one assigned parcel, got %d", len(created.Payments))
	}

	mine := data[[]estate.Payment](t, decode(t, e.do(http.MethodGet, "/api/payments/mine", owner, nil), http.StatusOK))
	if len(mine) != 1 || mine[0].Status != estate.PaymentPending {
		t.Fatalf("unexpected own payments %+v", mine)
	}
	pay := mine[0]

	co := data[checkoutResponse](t, decode(t, e.do(http.MethodPost, fmt.Sprintf("/api/payments/%d/checkout", pay.ID), owner, nil), http.StatusOK))
	if co.Checkout.Token == "" || co.Payment.Status != estate.PaymentProcessing {
		t.Fatalf("unexpected checkout %+v", co)
	}

	decode(t, e.do(http.MethodPost, "/api/payments/confirm", owner, map[string]any{"token": "tampered"}), http.StatusForbidden)
	decode(t, e.do(http.MethodPost, "/api/payments/confirm", e.token(e.owner2), map[string]any{"token": co.Checkout.Token}), http.StatusForbidden)

	conf := data[confirmResponse](t, decode(t, e.do(http.MethodPost, "/api/payments/confirm", owner, map[string]any{"token": co.Checkout.Token}), http.StatusOK))
	if !conf.Confirmation.Approved || conf.Payment.Status != estate.PaymentPaid || conf.Payment.PaidAt == nil {
		t.Fatalf("unexpected confirmation %+v", conf)
	}

	// a paid payment cannot be checked out again
	decode(t, e.do(http.MethodPost, fmt.Sprintf("/api/payments/%d/checkout", pay.ID), owner, nil), http.StatusConflict)

	sum := data[estate.Summary](t, decode(t, e.do(http.MethodGet, "/api/stats/summary", admin, nil), http.StatusOK))
	if sum.AmountCollected != 25000 {
		t.Fatalf("unexpected summary %+v", sum)
	}
	paid := data[[]estate.Payment](t, decode(t, e.do(http.MethodGet, "/api/payments?status=pagado", admin, nil), http.StatusOK))
	if len(paid) != 1 {
		t.Fatalf("expected one paid payment, got %d", len(paid))
	}
}

func TestNotificationStreamIsCommunityScoped(t *testing.T) {
	e := newTestEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.srv.URL+"/api/notifications/stream", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+e.token(e.owner1))
	resp, err := e.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		t.Fatalf("unexpected stream response %d %q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}

	for e.stream.Subscribers(e.c1.ID) == 0 {
		select {
		case <-ctx.Done():
			t.Fatal("subscriber never registered")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if _, err := e.svc.CreateNotification(ctx, e.c2.ID, e.admin2.ID, estate.NewNotification{Title: "Ajeno", Body: "otra comunidad"}); err != nil {
		t.Fatalf("foreign notification: %v", err)
	}
	decode(t, e.do(http.MethodPost, "/api/notifications", e.token(e.admin1), map[string]any{"title": "Propio", "body": "solo Los Aromos"}), http.StatusOK)

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var n estate.Notification
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &n); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		if n.Title != "Propio" || n.CommunityID != e.c1.ID {
			t.Fatalf("received notification of another community: %+v", n)
		}
		return
	}
	t.Fatalf("stream ended without event: %v", scanner.Err())
}

func TestHealthAndInfo(t *testing.T) {
	e := newTestEnv(t)

	resp, err := e.srv.Client().Get(e.srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status %d", resp.StatusCode)
	}
	if resp.Header.Get(requestIDHeader) == "" {
		t.Fatal("expected request id header")
	}
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("expected security headers")
	}

	resp, err = e.srv.Client().Get(e.srv.URL + "/v1/info")
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	defer resp.Body.Close()
	var info map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatalf("decode info: %v", err)
	}
	if info["version"] != "test" || info["payment"] != "simulated" {
		t.Fatalf("unexpected info %v", info)
	}
}
