package httpx

import "context"

type ctxKey string

const (
	// CtxKeyUserID carries the authenticated user's id.
	CtxKeyUserID ctxKey = "user_id"
	// CtxKeyClaims carries the full verified token claims.
	CtxKeyClaims ctxKey = "claims"
	// CtxKeyApplicationID carries the calling application's id.
	CtxKeyApplicationID ctxKey = "application_id"
)

// UserIDFromContext returns the authenticated user id, if any.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CtxKeyUserID).(string); ok {
		return v
	}
	return ""
}

// ApplicationIDFromContext returns the calling application id, if any.
func ApplicationIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CtxKeyApplicationID).(string); ok {
		return v
	}
	return ""
}
