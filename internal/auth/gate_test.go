package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type resource struct {
	tenant int64
	owner  int64
}

func (r resource) TenantID() int64 { return r.tenant }
func (r resource) OwnerID() int64  { return r.owner }

type scopedOnly struct{ tenant int64 }

func (s scopedOnly) TenantID() int64 { return s.tenant }

type decisionLog map[string]int

func (d decisionLog) observe(outcome, requirement string) { d[outcome+"/"+requirement]++ }

func newTestGate(t *testing.T) (*Gate, *Tokens, decisionLog) {
	t.Helper()
	tokens := newTestTokens(t)
	seen := decisionLog{}
	return NewGate(tokens, WithObserver(seen.observe)), tokens, seen
}

func requestWith(t *testing.T, tokens *Tokens, id Identity) *http.Request {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, "/api/anything", nil)
	if tokens != nil {
		token, _, err := tokens.Issue(id)
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return r
}

var (
	admin1 = Identity{UserID: 1, Email: "admin@uno.cl", Role: RoleAdministrador, CommunityID: 1}
	owner1 = Identity{UserID: 10, Email: "owner@uno.cl", Role: RoleCopropietario, CommunityID: 1}
	owner2 = Identity{UserID: 20, Email: "owner@dos.cl", Role: RoleCopropietario, CommunityID: 2}
)

func TestGateAuthenticate(t *testing.T) {
	gate, tokens, _ := newTestGate(t)

	id, err := gate.Authenticate(requestWith(t, tokens, owner1))
	if err != nil || id != owner1 {
		t.Fatalf("Authenticate = %+v, %v", id, err)
	}

	_, err = gate.Authenticate(httptest.NewRequest(http.MethodGet, "/", nil))
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}

	other, err := NewTokens("a-completely-different-secret-value!!")
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	_, err = gate.Authenticate(requestWith(t, other, owner1))
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected foreign token to be unauthenticated, got %v", err)
	}
}

func TestGateExpiredTokenIsUnauthenticated(t *testing.T) {
	past := time.Now().Add(-3 * time.Hour)
	issuer, err := NewTokens(testSecret, WithClock(fixedClock(past)), WithAccessTTL(time.Hour))
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	gate, _, _ := newTestGate(t)
	_, err = gate.AuthenticateAndAuthorizeRole(requestWith(t, issuer, admin1), AdminOnly)
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
	if DecisionOf(err).Status != http.StatusUnauthorized {
		t.Fatalf("unexpected decision %+v", DecisionOf(err))
	}
}

func TestGateRoleAuthorization(t *testing.T) {
	gate, tokens, seen := newTestGate(t)

	if _, err := gate.AuthenticateAndAuthorizeRole(requestWith(t, tokens, admin1), AdminOnly); err != nil {
		t.Fatalf("admin on admin-only: %v", err)
	}
	_, err := gate.AuthenticateAndAuthorizeRole(requestWith(t, tokens, owner1), AdminOnly)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("copropietario on admin-only: expected forbidden, got %v", err)
	}
	if seen["allowed/admin-only"] != 1 || seen["forbidden/admin-only"] != 1 {
		t.Fatalf("unexpected observations %v", seen)
	}

	noCommunity := Identity{UserID: 3, Role: RoleAdministrador}
	_, err = gate.AuthenticateAndAuthorizeRole(requestWith(t, tokens, noCommunity), CommunityMember)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("tenant-scoped requirement without community: expected forbidden, got %v", err)
	}
	if _, err := gate.AuthenticateAndAuthorizeRole(requestWith(t, tokens, noCommunity), Self); err != nil {
		t.Fatalf("self requirement without community: %v", err)
	}
}

func TestGateDecisionIsIdempotent(t *testing.T) {
	gate, tokens, _ := newTestGate(t)
	r := requestWith(t, tokens, owner1)
	for _, req := range []Requirement{AdminOnly, OwnerOrAdmin, CommunityMember, Self} {
		_, err1 := gate.AuthenticateAndAuthorizeRole(r, req)
		_, err2 := gate.AuthenticateAndAuthorizeRole(r, req)
		if DecisionOf(err1) != DecisionOf(err2) {
			t.Fatalf("%s: decisions differ: %+v vs %+v", req.Name, DecisionOf(err1), DecisionOf(err2))
		}
	}
}

func TestGateTenantAndOwnerChecks(t *testing.T) {
	gate, _, _ := newTestGate(t)

	cases := []struct {
		name  string
		id    Identity
		req   Requirement
		res   Scoped
		allow bool
	}{
		{"admin same community", admin1, OwnerOrAdmin, resource{tenant: 1, owner: 99}, true},
		{"admin other community", admin1, OwnerOrAdmin, resource{tenant: 2, owner: 99}, false},
		{"owner own resource", owner1, OwnerOrAdmin, resource{tenant: 1, owner: 10}, true},
		{"owner neighbour resource", owner1, OwnerOrAdmin, resource{tenant: 1, owner: 11}, false},
		{"owner other community", owner2, OwnerOrAdmin, resource{tenant: 1, owner: 20}, false},
		{"not found", owner1, OwnerOrAdmin, nil, false},
		{"owner-scoped without owner", owner1, OwnerOrAdmin, scopedOnly{tenant: 1}, false},
		{"member reads community resource", owner1, CommunityMember, scopedOnly{tenant: 1}, true},
		{"member reads other community", owner1, CommunityMember, scopedOnly{tenant: 2}, false},
		{"copropietario on admin-only", owner1, AdminOnly, scopedOnly{tenant: 1}, false},
		{"self own record", owner2, Self, resource{tenant: 2, owner: 20}, true},
		{"admin self on other user", admin1, Self, resource{tenant: 1, owner: 10}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := gate.AssertAccess(tc.id, tc.req, tc.res)
			if tc.allow && err != nil {
				t.Fatalf("expected access, got %v", err)
			}
			if !tc.allow {
				if !errors.Is(err, ErrForbidden) {
					t.Fatalf("expected forbidden, got %v", err)
				}
				if d := DecisionOf(err); d.Status != http.StatusForbidden || d.Message != MessageInsufficientPermissions {
					t.Fatalf("non-uniform denial %+v", d)
				}
			}
		})
	}
}

func TestAssertSameTenant(t *testing.T) {
	gate, _, _ := newTestGate(t)
	if err := gate.AssertSameTenant(admin1, scopedOnly{tenant: 1}); err != nil {
		t.Fatalf("same tenant: %v", err)
	}
	if err := gate.AssertSameTenant(admin1, scopedOnly{tenant: 2}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("cross tenant: expected forbidden, got %v", err)
	}
	if err := gate.AssertSameTenant(Identity{UserID: 1, Role: RoleAdministrador}, scopedOnly{tenant: 0}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("identity without community: expected forbidden, got %v", err)
	}
}

func TestRequireMiddleware(t *testing.T) {
	gate, tokens, _ := newTestGate(t)
	called := 0
	h := gate.Require(AdminOnly)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called++
		id, ok := IdentityFromContext(r.Context())
		if !ok || id != admin1 {
			t.Errorf("identity not propagated: %+v", id)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		name    string
		req     *http.Request
		status  int
		message string
	}{
		{"no header", httptest.NewRequest(http.MethodDelete, "/api/notifications/1", nil), http.StatusUnauthorized, MessageInvalidSession},
		{"copropietario", requestWith(t, tokens, owner1), http.StatusForbidden, MessageInsufficientPermissions},
		{"admin", requestWith(t, tokens, admin1), http.StatusNoContent, ""},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, tc.req)
		if rec.Code != tc.status {
			t.Fatalf("%s: status %d, want %d", tc.name, rec.Code, tc.status)
		}
		if tc.message == "" {
			continue
		}
		var body struct {
			Success bool   `json:"success"`
			Message string `json:"message"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("%s: decode: %v", tc.name, err)
		}
		if body.Success || body.Message != tc.message {
			t.Fatalf("%s: unexpected body %+v", tc.name, body)
		}
	}
	if called != 1 {
		t.Fatalf("handler called %d times, want 1", called)
	}
}

func TestWriteErrorHidesInternalErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, errors.New("pq: connection refused"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status %d", rec.Code)
	}
	var body map[string]any
	_ = json.NewDecoder(rec.Body).Decode(&body)
	if body["message"] != "internal error" || body["success"] != false {
		t.Fatalf("unexpected body %v", body)
	}

	rec = httptest.NewRecorder()
	WriteError(rec, Malformed("amount must be positive"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
}
