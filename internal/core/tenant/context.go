package tenant

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const localsKey = "tenant"

type ctxKey struct{}

var ErrNoTenant = errors.New("no tenant in context")

// Context identifies who is acting: every dashboard query is scoped to
// TenantID.
type Context struct {
	TenantID uuid.UUID
	UserID   string
	Role     string
}

// SetFiber stores the tenant context on the request
func SetFiber(c *fiber.Ctx, tc *Context) {
	c.Locals(localsKey, tc)
	c.SetUserContext(WithContext(c.UserContext(), tc))
}

// FromFiber returns the tenant context set by the auth middleware
func FromFiber(c *fiber.Ctx) (*Context, error) {
	tc, ok := c.Locals(localsKey).(*Context)
	if !ok || tc == nil || tc.TenantID == uuid.Nil {
		return nil, ErrNoTenant
	}
	return tc, nil
}

func WithContext(ctx context.Context, tc *Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, tc)
}

func FromContext(ctx context.Context) (*Context, error) {
	tc, ok := ctx.Value(ctxKey{}).(*Context)
	if !ok || tc == nil {
		return nil, ErrNoTenant
	}
	return tc, nil
}
