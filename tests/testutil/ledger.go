package testutil

import (
	"testing"

	"github.com/nhle/mailbot/internal/ledger"
)

// NewTestLedger creates an in-memory SQLite ledger with all migrations
// applied. It automatically closes the ledger when the test completes.
func NewTestLedger(t *testing.T) *ledger.SQLiteLedger {
	t.Helper()

	l, err := ledger.NewSQLiteLedger(":memory:")
	if err != nil {
		t.Fatalf("creating test ledger: %v", err)
	}

	t.Cleanup(func() {
		if err := l.Close(); err != nil {
			t.Errorf("closing test ledger: %v", err)
		}
	})

	return l
}
