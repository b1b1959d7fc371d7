package context

import "context"

type ContextKey string

var (
	RunIDKey     = ContextKey("X-Run-Id")
	TableKey     = ContextKey("X-Table")
	RequestIDKey = ContextKey("X-Request-Id")
)

func SetRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

func GetRunID(ctx context.Context) string {
	value, ok := ctx.Value(RunIDKey).(string)
	if !ok {
		return ""
	}
	return value
}

func SetTable(ctx context.Context, table string) context.Context {
	return context.WithValue(ctx, TableKey, table)
}

func GetTable(ctx context.Context) string {
	value, ok := ctx.Value(TableKey).(string)
	if !ok {
		return ""
	}
	return value
}

func SetRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	value, ok := ctx.Value(RequestIDKey).(string)
	if !ok {
		return ""
	}
	return value
}

// LogFields returns the run scoped values carried by ctx, for use with WithFields
func LogFields(ctx context.Context) map[string]any {
	fields := map[string]any{}
	if runID := GetRunID(ctx); runID != "" {
		fields["run_id"] = runID
	}
	if table := GetTable(ctx); table != "" {
		fields["table"] = table
	}
	if requestID := GetRequestID(ctx); requestID != "" {
		fields["request_id"] = requestID
	}
	return fields
}
