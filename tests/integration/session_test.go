package integration

import (
	"context"
	"errors"
	"testing"

	"github.com/iho/bankito/internal/domain"
	"github.com/iho/bankito/tests/testutil"
)

func TestSessionHandles(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()

	testDB := testutil.NewTestDB(t)

	testDB.TruncateAll(ctx)

	alice := testDB.CreateUser(ctx, "alice")
	checking := testDB.CreateAccount(ctx, alice, "checking", 10000)

	conn := testDB.OpenBank(ctx).Conn

	t.Run("one live handle per session", func(t *testing.T) {
		h, err := conn.Begin(ctx)
		if err != nil {
			t.Fatalf("begin failed: %v", err)
		}

		if _, err := conn.Begin(ctx); !errors.Is(err, domain.ErrTransactionInProgress) {
			t.Fatalf("expected ErrTransactionInProgress, got %v", err)
		}

		if _, err := conn.Exec(ctx, `SELECT 1`); !errors.Is(err, domain.ErrTransactionInProgress) {
			t.Fatalf("expected statements outside the handle to be refused, got %v", err)
		}

		if _, err := conn.ExecTx(ctx, h, `UPDATE accounts SET balance = 0 WHERE id = $1`, checking.ID); err != nil {
			t.Fatalf("update failed: %v", err)
		}

		if err := conn.Cancel(ctx, h); err != nil {
			t.Fatalf("cancel failed: %v", err)
		}

		if got := testDB.Balance(ctx, checking.ID); got != 10000 {
			t.Errorf("expected cancel to discard the update, got %d", got)
		}

		if err := conn.Commit(ctx, h); !errors.Is(err, domain.ErrNoSuchTransaction) {
			t.Fatalf("expected ErrNoSuchTransaction after cancel, got %v", err)
		}
		if err := conn.Cancel(ctx, h); err != nil {
			t.Fatalf("cancel of a closed handle should be a no-op, got %v", err)
		}
	})

	t.Run("statement error aborts the handle", func(t *testing.T) {
		h, err := conn.Begin(ctx)
		if err != nil {
			t.Fatalf("begin failed: %v", err)
		}

		if _, err := conn.ExecTx(ctx, h, `SELECT * FROM no_such_table`); !errors.Is(err, domain.ErrEngine) {
			t.Fatalf("expected engine error, got %v", err)
		}

		if err := conn.Commit(ctx, h); !errors.Is(err, domain.ErrNoSuchTransaction) {
			t.Fatalf("expected aborted handle to be gone, got %v", err)
		}

		next, err := conn.Begin(ctx)
		if err != nil {
			t.Fatalf("expected a new handle after abort, got %v", err)
		}

		if err := conn.Cancel(ctx, next); err != nil {
			t.Fatalf("cancel failed: %v", err)
		}
		if _, err := conn.Exec(ctx, `SELECT 1`); err != nil {
			t.Fatalf("expected the session to be idle after cancel, got %v", err)
		}
	})

	t.Run("isolation level applies to new transactions", func(t *testing.T) {
		bank := testDB.OpenBank(ctx)

		if err := bank.SetIsolationLevel("serializable"); err != nil {
			t.Fatalf("set isolation failed: %v", err)
		}

		h, err := bank.Conn.Begin(ctx)
		if err != nil {
			t.Fatalf("begin failed: %v", err)
		}
		defer bank.Conn.Cancel(ctx, h)

		var level string
		if err := bank.Conn.FindOneTx(ctx, h, `SHOW transaction_isolation`, nil, &level); err != nil {
			t.Fatalf("show isolation failed: %v", err)
		}
		if level != "serializable" {
			t.Fatalf("expected serializable, got %q", level)
		}

		if err := bank.SetIsolationLevel("chaos"); !errors.Is(err, domain.ErrInvalidIsolationLevel) {
			t.Fatalf("expected ErrInvalidIsolationLevel, got %v", err)
		}
		if bank.IsolationLevel() != domain.Serializable {
			t.Fatalf("invalid level must not change the session, got %s", bank.IsolationLevel())
		}
	})
}
