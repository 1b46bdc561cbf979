package ctxutil

import (
	"context"

	"github.com/google/uuid"
)

type requestDataKey struct{}

// RequestData identifies the authenticated caller for the lifetime of one
// request. ProjectID is always set once auth succeeds; TokenID is zero for
// ingest-key auth (the key authenticates the project, not a token).
type RequestData struct {
	ProjectID uuid.UUID
	TokenID   uuid.UUID
}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	if rd, ok := ctx.Value(requestDataKey{}).(*RequestData); ok {
		return rd
	}
	return nil
}
