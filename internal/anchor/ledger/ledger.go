// Package ledger defines the outbound port for anchoring merkle roots and
// its JSON-RPC implementation.
package ledger

//go:generate mockgen -source=ledger.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"veritas/internal/anchor/models"
)

// Ledger submits merkle roots for immutable anchoring. Implementations must
// classify failures as transient (retryable) or permanent via domain error
// codes so the caller's retry policy can tell them apart.
type Ledger interface {
	SubmitRoot(ctx context.Context, root string) (models.Receipt, error)
}
