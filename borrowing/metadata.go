package borrowing

import (
	"context"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/borrowing-ledger-go/ledger"
)

type correlationKey struct{}

// WithCorrelationID returns a context whose borrow and return audit entries carry correlationID.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationKey{}, correlationID)
}

// CorrelationIDFrom returns the correlation id stored in ctx, or "" if there is none.
func CorrelationIDFrom(ctx context.Context) string {
	if correlationID, ok := ctx.Value(correlationKey{}).(string); ok {
		return correlationID
	}

	return ""
}

// buildEntryMetadata creates the metadata for one audit entry. Without a correlation id in ctx
// the entry starts its own correlation chain.
func buildEntryMetadata(ctx context.Context) ledger.EntryMetadata {
	messageID := uuid.NewString()

	correlationID := CorrelationIDFrom(ctx)
	if correlationID == "" {
		correlationID = messageID
	}

	return ledger.EntryMetadata{
		MessageID:     messageID,
		CausationID:   correlationID,
		CorrelationID: correlationID,
	}
}
