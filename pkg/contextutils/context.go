package contextutils

import "context"

type contextKey string

const attributesKey contextKey = "flexscale-attributes"

// WithAttribute returns a context carrying the given key/value pair in the
// shared attribute map. Attributes are picked up by logging and telemetry.
func WithAttribute(ctx context.Context, key, value string) context.Context {
	attrs := make(map[string]string)
	for k, v := range GetAttributes(ctx) {
		attrs[k] = v
	}
	attrs[key] = value
	return context.WithValue(ctx, attributesKey, attrs)
}

func WithTask(ctx context.Context, taskName string) context.Context {
	return WithAttribute(ctx, "task", taskName)
}

func WithFunction(ctx context.Context, functionID string) context.Context {
	return WithAttribute(ctx, "function", functionID)
}

func WithAPI(ctx context.Context, api string) context.Context {
	return WithAttribute(ctx, "api", api)
}

func WithQueryID(ctx context.Context, queryID string) context.Context {
	return WithAttribute(ctx, "queryID", queryID)
}

func GetAttributes(ctx context.Context) map[string]string {
	attrs, ok := ctx.Value(attributesKey).(map[string]string)
	if !ok {
		return nil
	}
	return attrs
}
