package integration

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iho/bankito/internal/domain"
	"github.com/iho/bankito/internal/usecase"
	"github.com/iho/bankito/tests/testutil"
)

// barrier returns a pause hook that holds every caller at point until n
// transfers have reached it.
func barrier(n int, point usecase.PausePoint) usecase.Pause {
	var wg sync.WaitGroup
	wg.Add(n)

	reached := make(chan struct{})
	go func() {
		wg.Wait()
		close(reached)
	}()

	return func(ctx context.Context, p usecase.PausePoint) error {
		if p != point {
			return nil
		}

		wg.Done()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-reached:
			return nil
		}
	}
}

func TestConcurrentTransfers(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()

	testDB := testutil.NewTestDB(t)

	t.Run("opposite transfers do not deadlock with ordered locks", func(t *testing.T) {
		testDB.TruncateAll(ctx)

		alice := testDB.CreateUser(ctx, "alice")
		bob := testDB.CreateUser(ctx, "bob")
		aliceMain := testDB.CreateAccount(ctx, alice, "alice-main", 10000)
		bobMain := testDB.CreateAccount(ctx, bob, "bob-main", 10000)

		const (
			workersPerSide = 3
			transfersEach  = 5
		)

		var (
			wg       sync.WaitGroup
			failures atomic.Int32
		)

		run := func(bank *testutil.Bank, from string, to int64) {
			defer wg.Done()

			for range transfersEach {
				if _, err := bank.Transfer(ctx, usecase.TransferRequest{
					FromName:      from,
					DestinationID: to,
					Amount:        100,
				}); err != nil {
					failures.Add(1)
					t.Errorf("transfer from %s failed: %v", from, err)
				}
			}
		}

		pause := usecase.SleepPause(10 * time.Millisecond)

		wg.Add(2 * workersPerSide)

		for range workersPerSide {
			go run(testDB.LoggedIn(ctx, alice, testutil.WithPause(pause)), "alice-main", bobMain.ID)
			go run(testDB.LoggedIn(ctx, bob, testutil.WithPause(pause)), "bob-main", aliceMain.ID)
		}

		wg.Wait()

		if failures.Load() != 0 {
			t.Fatalf("expected every transfer to commit, %d failed", failures.Load())
		}

		if got := testDB.Balance(ctx, aliceMain.ID); got != 10000 {
			t.Errorf("expected alice balance 10000, got %d", got)
		}
		if got := testDB.TotalBalance(ctx); got != 20000 {
			t.Errorf("expected total balance 20000, got %d", got)
		}
		if got := testDB.EntryCount(ctx); got != 2*2*workersPerSide*transfersEach {
			t.Errorf("expected %d entries, got %d", 2*2*workersPerSide*transfersEach, got)
		}

		if _, err := testDB.OpenBank(ctx).Ledger.CheckConsistency(ctx); err != nil {
			t.Errorf("ledger inconsistent: %v", err)
		}
	})

	t.Run("ordered locks reject the second overdraft", func(t *testing.T) {
		testDB.TruncateAll(ctx)

		alice := testDB.CreateUser(ctx, "alice")
		bob := testDB.CreateUser(ctx, "bob")
		aliceMain := testDB.CreateAccount(ctx, alice, "alice-main", 10000)
		bobMain := testDB.CreateAccount(ctx, bob, "bob-main", 0)

		pause := usecase.SleepPause(50 * time.Millisecond)
		banks := []*testutil.Bank{
			testDB.LoggedIn(ctx, alice, testutil.WithPause(pause)),
			testDB.LoggedIn(ctx, alice, testutil.WithPause(pause)),
		}

		errs := make([]error, len(banks))

		var wg sync.WaitGroup
		wg.Add(len(banks))

		for i, bank := range banks {
			go func() {
				defer wg.Done()
				_, errs[i] = bank.Transfer(ctx, usecase.TransferRequest{
					FromName:      "alice-main",
					DestinationID: bobMain.ID,
					Amount:        8000,
				})
			}()
		}

		wg.Wait()

		var committed, rejected int
		for _, err := range errs {
			switch {
			case err == nil:
				committed++
			case errors.Is(err, domain.ErrInsufficientBalance):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}

		if committed != 1 || rejected != 1 {
			t.Fatalf("expected one commit and one rejection, got %d and %d", committed, rejected)
		}
		if got := testDB.Balance(ctx, aliceMain.ID); got != 2000 {
			t.Errorf("expected alice balance 2000, got %d", got)
		}
	})

	t.Run("skip_for_update lets concurrent transfers overdraw", func(t *testing.T) {
		testDB.TruncateAll(ctx)

		alice := testDB.CreateUser(ctx, "alice")
		bob := testDB.CreateUser(ctx, "bob")
		aliceMain := testDB.CreateAccount(ctx, alice, "alice-main", 10000)
		bobMain := testDB.CreateAccount(ctx, bob, "bob-main", 0)

		pause := barrier(2, usecase.PauseBeforeMutation)
		banks := []*testutil.Bank{
			testDB.LoggedIn(ctx, alice, testutil.WithPause(pause)),
			testDB.LoggedIn(ctx, alice, testutil.WithPause(pause)),
		}

		errs := make([]error, len(banks))

		var wg sync.WaitGroup
		wg.Add(len(banks))

		for i, bank := range banks {
			go func() {
				defer wg.Done()
				_, errs[i] = bank.Transfer(ctx, usecase.TransferRequest{
					FromName:      "alice-main",
					DestinationID: bobMain.ID,
					Amount:        8000,
					Options:       domain.TransferOptions{SkipForUpdate: true},
				})
			}()
		}

		wg.Wait()

		for _, err := range errs {
			if err != nil {
				t.Fatalf("expected both unlocked transfers to commit, got %v", err)
			}
		}

		if got := testDB.Balance(ctx, aliceMain.ID); got != -6000 {
			t.Errorf("expected the overdraft anomaly to leave -6000, got %d", got)
		}
		if got := testDB.TotalBalance(ctx); got != 10000 {
			t.Errorf("expected total balance to be conserved, got %d", got)
		}
	})

	t.Run("skip_consistent_lock deadlocks opposite transfers", func(t *testing.T) {
		testDB.TruncateAll(ctx)

		alice := testDB.CreateUser(ctx, "alice")
		bob := testDB.CreateUser(ctx, "bob")
		aliceMain := testDB.CreateAccount(ctx, alice, "alice-main", 10000)
		bobMain := testDB.CreateAccount(ctx, bob, "bob-main", 10000)

		pause := barrier(2, usecase.PauseAfterFirstLock)
		aliceBank := testDB.LoggedIn(ctx, alice, testutil.WithPause(pause))
		bobBank := testDB.LoggedIn(ctx, bob, testutil.WithPause(pause))

		opts := domain.TransferOptions{SkipConsistentLock: true}

		var (
			wg               sync.WaitGroup
			aliceErr, bobErr error
		)

		wg.Add(2)

		go func() {
			defer wg.Done()
			_, aliceErr = aliceBank.Transfer(ctx, usecase.TransferRequest{
				FromName: "alice-main", DestinationID: bobMain.ID, Amount: 1000, Options: opts,
			})
		}()

		go func() {
			defer wg.Done()
			_, bobErr = bobBank.Transfer(ctx, usecase.TransferRequest{
				FromName: "bob-main", DestinationID: aliceMain.ID, Amount: 2000, Options: opts,
			})
		}()

		wg.Wait()

		var victims int
		for _, err := range []error{aliceErr, bobErr} {
			if err == nil {
				continue
			}
			if !errors.Is(err, domain.ErrEngine) || !domain.IsRetryable(err) {
				t.Fatalf("expected a retryable engine error, got %v", err)
			}
			victims++
		}

		if victims != 1 {
			t.Fatalf("expected exactly one deadlock victim, got %d (alice: %v, bob: %v)", victims, aliceErr, bobErr)
		}

		if got := testDB.TotalBalance(ctx); got != 20000 {
			t.Errorf("expected total balance 20000, got %d", got)
		}
		if got := testDB.EntryCount(ctx); got != 2 {
			t.Errorf("expected only the survivor's entry pair, got %d entries", got)
		}
	})

	t.Run("retrier re-issues the deadlock victim", func(t *testing.T) {
		testDB.TruncateAll(ctx)

		alice := testDB.CreateUser(ctx, "alice")
		bob := testDB.CreateUser(ctx, "bob")
		aliceMain := testDB.CreateAccount(ctx, alice, "alice-main", 10000)
		bobMain := testDB.CreateAccount(ctx, bob, "bob-main", 10000)

		pause := barrier(2, usecase.PauseAfterFirstLock)

		// The barrier only holds the first attempt of each side.
		var aliceAttempts, bobAttempts atomic.Int32
		once := func(attempts *atomic.Int32) usecase.Pause {
			return func(ctx context.Context, p usecase.PausePoint) error {
				if p == usecase.PauseAfterFirstLock && attempts.Add(1) > 1 {
					return nil
				}
				return pause(ctx, p)
			}
		}

		aliceBank := testDB.LoggedIn(ctx, alice, testutil.WithPause(once(&aliceAttempts)), testutil.WithRetries(3))
		bobBank := testDB.LoggedIn(ctx, bob, testutil.WithPause(once(&bobAttempts)), testutil.WithRetries(3))

		opts := domain.TransferOptions{SkipConsistentLock: true}

		var wg sync.WaitGroup
		errs := make([]error, 2)

		wg.Add(2)

		go func() {
			defer wg.Done()
			_, errs[0] = aliceBank.Transfer(ctx, usecase.TransferRequest{
				FromName: "alice-main", DestinationID: bobMain.ID, Amount: 1000, Options: opts,
			})
		}()

		go func() {
			defer wg.Done()
			_, errs[1] = bobBank.Transfer(ctx, usecase.TransferRequest{
				FromName: "bob-main", DestinationID: aliceMain.ID, Amount: 2000, Options: opts,
			})
		}()

		wg.Wait()

		for _, err := range errs {
			if err != nil {
				t.Fatalf("expected both transfers to commit with retries, got %v", err)
			}
		}

		if got := testDB.Balance(ctx, aliceMain.ID); got != 11000 {
			t.Errorf("expected alice balance 11000, got %d", got)
		}
		if got := testDB.EntryCount(ctx); got != 4 {
			t.Errorf("expected two entry pairs, got %d entries", got)
		}
	})
}
