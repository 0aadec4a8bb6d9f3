package auth

import (
	"context"

	"github.com/dukerupert/invitely/internal/model"
)

type contextKey struct{}

type traceKey struct{}

// Trace receives the identity resolved further down a handler chain so
// outer middleware can report it after the request completes.
type Trace struct {
	AuthContext
	Set bool
}

// AuthContext is the identity derived from the session store for one request.
type AuthContext struct {
	UserID    int64
	Role      string
	SessionID int64
	EventID   *int64
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	if tr, ok := ctx.Value(traceKey{}).(*Trace); ok {
		tr.AuthContext = ac
		tr.Set = true
	}
	return context.WithValue(ctx, contextKey{}, ac)
}

// WithTrace attaches an empty Trace that WithAuth fills in.
func WithTrace(ctx context.Context) (context.Context, *Trace) {
	tr := &Trace{}
	return context.WithValue(ctx, traceKey{}, tr), tr
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

func UserID(ctx context.Context) int64 {
	ac, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return ac.UserID
}

func IsAdmin(ctx context.Context) bool {
	ac, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return ac.Role == model.RoleAdmin
}
