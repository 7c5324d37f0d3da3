package purchases

import (
	"context"
	"regexp"
	"strings"

	pkgerrors "github.com/soundcrate/backend/pkg/errors"
)

// SettlementVerifier validates a claimed on-chain settlement reference
// before a purchase may complete. The default implementation is an offline
// shape check; a chain-backed verifier can replace it without touching the
// confirm flow.
type SettlementVerifier interface {
	Verify(ctx context.Context, txHash string) error
}

var txHashPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

type offlineVerifier struct{}

// NewOfflineVerifier returns a verifier that checks settlement hash shape only.
func NewOfflineVerifier() SettlementVerifier {
	return offlineVerifier{}
}

func (offlineVerifier) Verify(_ context.Context, txHash string) error {
	txHash = strings.TrimSpace(txHash)
	if txHash == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "transaction hash required")
	}
	if !txHashPattern.MatchString(txHash) {
		return pkgerrors.New(pkgerrors.CodeValidation, "transaction hash must be 0x-prefixed 64-hex")
	}
	return nil
}
