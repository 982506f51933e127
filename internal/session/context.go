package session

import "context"

type ctxKey string

const controllerKey ctxKey = "portal.session"

// WithController stores the client's controller in context.
func WithController(ctx context.Context, c *Controller) context.Context {
	return context.WithValue(ctx, controllerKey, c)
}

// FromContext fetches the controller from context. Without one, the inert
// nil controller is returned, which is still safe to query.
func FromContext(ctx context.Context) *Controller {
	c, _ := ctx.Value(controllerKey).(*Controller)
	return c
}
