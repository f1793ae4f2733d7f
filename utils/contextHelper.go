package utils

import (
	"context"

	"github.com/google/uuid"
	"github.com/kamnsolar/field_capture/appctx"
)

var (
	ContextKeyCorrelationId   = appctx.ContextKeyCorrelationId
	ContextKeyTechnician      = appctx.ContextKeyTechnician
	ContextKeySkipGeolocation = appctx.ContextKeySkipGeolocation
)

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

// EnsureCorrelationId returns ctx unchanged when it already carries a
// correlation id, otherwise it attaches a fresh one.
func EnsureCorrelationId(ctx context.Context) (context.Context, string) {
	if cid, ok := GetCorrelationIdFromContext(ctx); ok && cid != "" {
		return ctx, cid
	}
	cid := uuid.NewString()
	return SetCorrelationIdInContext(ctx, cid), cid
}

func GetTechnicianFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyTechnician)
}

func SetTechnicianInContext(ctx context.Context, technician string) context.Context {
	return appctx.Set(ctx, ContextKeyTechnician, technician)
}

func GetSkipGeolocationFromContext(ctx context.Context) (bool, bool) {
	return appctx.GetBool(ctx, ContextKeySkipGeolocation)
}

func SetSkipGeolocationInContext(ctx context.Context, skip bool) context.Context {
	return appctx.Set(ctx, ContextKeySkipGeolocation, skip)
}
