package context

import "context"

type requestIDKey struct{}
type actorKey struct{}

type actorValue struct {
	role string
	id   string
}

// WithRequestID stores the request identifier for log and trace correlation.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey{}).(string)
	return value
}

// WithActor stores the authenticated caller's role and id.
func WithActor(ctx context.Context, role, id string) context.Context {
	if role == "" && id == "" {
		return ctx
	}
	return context.WithValue(ctx, actorKey{}, actorValue{role: role, id: id})
}

func ActorFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	value, ok := ctx.Value(actorKey{}).(actorValue)
	if !ok {
		return "", ""
	}
	return value.role, value.id
}
