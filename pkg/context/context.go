// Package context carries request-scoped identifiers through a sync
// invocation so logs, run records and audit events can be correlated.
package context

import (
	"context"

	"github.com/Gobusters/ectologger"
)

type key int

const (
	requestIDKey key = iota
	correlationIDKey
	userIDKey
	rolesKey
)

func with(ctx context.Context, k key, value any) context.Context {
	return context.WithValue(ctx, k, value)
}

func lookup[T any](ctx context.Context, k key) T {
	value, _ := ctx.Value(k).(T)
	return value
}

func SetRequestID(ctx context.Context, requestID string) context.Context {
	return with(ctx, requestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	return lookup[string](ctx, requestIDKey)
}

// SetCorrelationID tags the context with the id of the sync invocation it belongs to.
func SetCorrelationID(ctx context.Context, correlationID string) context.Context {
	return with(ctx, correlationIDKey, correlationID)
}

func GetCorrelationID(ctx context.Context) string {
	return lookup[string](ctx, correlationIDKey)
}

// SetUserID records the authenticated caller, the actor of a manual sync.
func SetUserID(ctx context.Context, userID string) context.Context {
	return with(ctx, userIDKey, userID)
}

func GetUserID(ctx context.Context) string {
	return lookup[string](ctx, userIDKey)
}

func SetRoles(ctx context.Context, roles []string) context.Context {
	return with(ctx, rolesKey, roles)
}

func GetRoles(ctx context.Context) []string {
	return lookup[[]string](ctx, rolesKey)
}

// LogFields returns the identifiers present on ctx, keyed for structured logs.
func LogFields(ctx context.Context) map[string]any {
	fields := map[string]any{}
	if id := GetRequestID(ctx); id != "" {
		fields["request_id"] = id
	}
	if id := GetCorrelationID(ctx); id != "" {
		fields["correlation_id"] = id
	}
	if id := GetUserID(ctx); id != "" {
		fields["user_id"] = id
	}
	return fields
}

// EnrichLogMessage copies the identifiers on the message's context into its
// fields. Explicit fields win. It is installed as the zap adapter's before hook
// so every log line written with WithContext carries the correlation id.
func EnrichLogMessage(msg ectologger.EctoLogMessage) ectologger.EctoLogMessage {
	if msg.Ctx == nil {
		return msg
	}
	fields := LogFields(msg.Ctx)
	if len(fields) == 0 {
		return msg
	}
	for k, v := range msg.Fields {
		fields[k] = v
	}
	msg.Fields = fields
	return msg
}
