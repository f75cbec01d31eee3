package assist

import "context"

type contextKey string

const callSiteKey contextKey = "assist_call_site"

// WithCallSite labels the context with the feature that issued the request.
func WithCallSite(ctx context.Context, site string) context.Context {
	return context.WithValue(ctx, callSiteKey, site)
}

// CallSiteFrom extracts the call-site label from the context.
func CallSiteFrom(ctx context.Context) string {
	if v, ok := ctx.Value(callSiteKey).(string); ok {
		return v
	}
	return "unknown"
}
