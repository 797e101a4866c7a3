package auth

import (
	"errors"
	"net/http"

	"go.uber.org/zap"
)

// Verifier turns a raw bearer token into an Identity. *Tokens implements it.
type Verifier interface {
	Verify(raw string) (Identity, error)
}

// Scoped is a resource that belongs to one community.
type Scoped interface {
	TenantID() int64
}

// Owned is a scoped resource that also belongs to one user.
type Owned interface {
	Scoped
	OwnerID() int64
}

// Observer receives one call per gate decision with outcome "allowed",
// "unauthenticated", "forbidden" or "malformed".
type Observer func(outcome, requirement string)

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithLogger sets the logger used for decision diagnostics.
func WithLogger(l *zap.Logger) GateOption {
	return func(g *Gate) {
		if l != nil {
			g.log = l
		}
	}
}

// WithObserver registers a decision observer, typically a metrics counter.
func WithObserver(o Observer) GateOption {
	return func(g *Gate) {
		if o != nil {
			g.observe = o
		}
	}
}

// Gate runs the authentication and authorization checks every protected
// endpoint performs before touching data. It holds no per-request state.
type Gate struct {
	verifier Verifier
	log      *zap.Logger
	observe  Observer
}

// NewGate builds a Gate around verifier.
func NewGate(verifier Verifier, opts ...GateOption) *Gate {
	g := &Gate{
		verifier: verifier,
		log:      zap.NewNop(),
		observe:  func(string, string) {},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Authenticate extracts and verifies the bearer token of r.
func (g *Gate) Authenticate(r *http.Request) (Identity, error) {
	id, err := g.authenticate(r)
	if err != nil {
		g.record("", id, err)
		return Identity{}, err
	}
	g.record("", id, nil)
	return id, nil
}

// AuthenticateAndAuthorizeRole authenticates r and checks the identity's role
// against req. It must run before the endpoint issues any query.
func (g *Gate) AuthenticateAndAuthorizeRole(r *http.Request, req Requirement) (Identity, error) {
	id, err := g.authenticate(r)
	if err == nil {
		err = authorizeRole(id, req)
	}
	g.record(req.Name, id, err)
	if err != nil {
		return Identity{}, err
	}
	return id, nil
}

// AssertSameTenant fails with FORBIDDEN unless resource belongs to the
// identity's community. A nil resource (lookup found nothing) is denied the
// same way.
func (g *Gate) AssertSameTenant(id Identity, resource Scoped) error {
	err := sameTenant(id, resource)
	if err != nil {
		g.record("tenant", id, err)
	}
	return err
}

// AssertAccess applies the resource checks of req to a loaded resource: the
// role, the tenant when req is tenant scoped, and the owner when req is owner
// scoped.
func (g *Gate) AssertAccess(id Identity, req Requirement, resource Scoped) error {
	err := assertAccess(id, req, resource)
	if err != nil {
		g.record(req.Name, id, err)
	}
	return err
}

// Require is middleware that rejects requests failing req and stores the
// identity of the rest in the request context.
func (g *Gate) Require(req Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := g.AuthenticateAndAuthorizeRole(r, req)
			if err != nil {
				WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), id)))
		})
	}
}

func (g *Gate) authenticate(r *http.Request) (Identity, error) {
	if r == nil {
		return Identity{}, unauthenticated("no request", nil)
	}
	token, err := BearerToken(r.Header)
	if err != nil {
		return Identity{}, err
	}
	if g.verifier == nil {
		return Identity{}, unauthenticated("no verifier configured", nil)
	}
	id, err := g.verifier.Verify(token)
	if err != nil {
		return Identity{}, unauthenticated("token rejected", err)
	}
	return id, nil
}

func authorizeRole(id Identity, req Requirement) error {
	if !req.Allows(id.Role) {
		return forbidden("role " + id.Role.String() + " not permitted")
	}
	if req.TenantScoped && !id.HasCommunity() {
		return forbidden("identity has no community")
	}
	return nil
}

func sameTenant(id Identity, resource Scoped) error {
	if resource == nil {
		return forbidden("resource not found")
	}
	if !id.HasCommunity() {
		return forbidden("identity has no community")
	}
	if resource.TenantID() != id.CommunityID {
		return forbidden("resource belongs to another community")
	}
	return nil
}

func assertAccess(id Identity, req Requirement, resource Scoped) error {
	if err := authorizeRole(id, req); err != nil {
		return err
	}
	if resource == nil {
		return forbidden("resource not found")
	}
	if req.TenantScoped {
		if err := sameTenant(id, resource); err != nil {
			return err
		}
	}
	if req.OwnerScoped && !(req.TenantScoped && id.IsAdmin()) {
		owned, ok := resource.(Owned)
		if !ok {
			return forbidden("resource has no owner")
		}
		if owned.OwnerID() != id.UserID {
			return forbidden("resource owned by another user")
		}
	}
	return nil
}

func (g *Gate) record(requirement string, id Identity, err error) {
	if err == nil {
		g.observe("allowed", requirement)
		g.log.Debug("auth allowed",
			zap.String("requirement", requirement),
			zap.Int64("user_id", id.UserID),
			zap.Int64("community_id", id.CommunityID),
		)
		return
	}
	outcome := "error"
	fields := []zap.Field{zap.String("requirement", requirement)}
	var ae *Error
	if errors.As(err, &ae) {
		switch ae.Kind {
		case KindUnauthenticated:
			outcome = "unauthenticated"
		case KindForbidden:
			outcome = "forbidden"
		case KindMalformedRequest:
			outcome = "malformed"
		}
		fields = append(fields, zap.String("reason", ae.Reason()))
		if ae.cause != nil {
			fields = append(fields, zap.String("cause", ae.cause.Error()))
		}
	}
	if id.UserID > 0 {
		fields = append(fields, zap.Int64("user_id", id.UserID), zap.String("role", id.Role.String()))
	}
	g.observe(outcome, requirement)
	g.log.Warn("auth denied", fields...)
}
