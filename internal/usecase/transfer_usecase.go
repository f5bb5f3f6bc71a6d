package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/bankito/internal/domain"
)

// PausePoint names a place in the transfer algorithm where the pause hook
// runs.
type PausePoint string

const (
	PauseAfterFirstLock  PausePoint = "after_first_lock"
	PauseAfterSecondLock PausePoint = "after_second_lock"
	PauseBeforeMutation  PausePoint = "before_mutation"
)

var lockPausePoints = [2]PausePoint{PauseAfterFirstLock, PauseAfterSecondLock}

// Pause is called at every PausePoint. A non-nil error aborts the transfer.
type Pause func(ctx context.Context, point PausePoint) error

// NoPause never waits.
func NoPause(context.Context, PausePoint) error { return nil }

// SleepPause waits d at every pause point, or until ctx is done.
func SleepPause(d time.Duration) Pause {
	if d <= 0 {
		return NoPause
	}

	return func(ctx context.Context, _ PausePoint) error {
		timer := time.NewTimer(d)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	}
}

// TransferUseCase moves funds between two accounts inside one transaction
// of a session.
type TransferUseCase struct {
	txManager   TransactionManager
	accountRepo AccountRepository
	entryRepo   EntryRepository
	refGen      ReferenceGenerator
	pause       Pause
	metrics     TransferMetrics
	logger      zerolog.Logger
	now         func() time.Time
}

// TransferOption customizes a TransferUseCase.
type TransferOption func(*TransferUseCase)

// WithPause installs the hook run after each lock and before mutation.
func WithPause(p Pause) TransferOption {
	return func(uc *TransferUseCase) {
		if p != nil {
			uc.pause = p
		}
	}
}

// WithTransferMetrics reports every transfer outcome to m.
func WithTransferMetrics(m TransferMetrics) TransferOption {
	return func(uc *TransferUseCase) {
		uc.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) TransferOption {
	return func(uc *TransferUseCase) {
		uc.logger = logger
	}
}

// NewTransferUseCase creates a new TransferUseCase.
func NewTransferUseCase(
	txManager TransactionManager,
	accountRepo AccountRepository,
	entryRepo EntryRepository,
	refGen ReferenceGenerator,
	opts ...TransferOption,
) *TransferUseCase {
	uc := &TransferUseCase{
		txManager:   txManager,
		accountRepo: accountRepo,
		entryRepo:   entryRepo,
		refGen:      refGen,
		pause:       NoPause,
		logger:      zerolog.Nop(),
		now:         func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

// TransferInput represents input for a transfer. Source must have been
// resolved with a plain read before the call.
type TransferInput struct {
	Source        *domain.Account
	Description   string
	UserID        int64
	DestinationID int64
	Amount        int64
	Options       domain.TransferOptions
}

// Transfer moves input.Amount from the source account to the destination
// and returns the refreshed source account.
//
// Precondition failures wrap domain.ErrInvalidTransfer and never open a
// transaction. A balance below the amount yields
// domain.ErrInsufficientBalance. Any other failure is a
// *domain.EngineError and leaves no trace in the ledger.
func (uc *TransferUseCase) Transfer(ctx context.Context, input TransferInput) (_ *domain.Account, err error) {
	start := time.Now()
	defer func() {
		uc.observe(input.Options, err, time.Since(start))
	}()

	// 0. Validate inputs before starting transaction
	if err := domain.ValidateTransfer(input.UserID, input.Source, input.DestinationID, input.Amount); err != nil {
		return nil, err
	}

	if err := domain.ValidateDescription(input.Description); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidTransfer, err)
	}

	log := uc.logger.With().
		Int64("from", input.Source.ID).
		Int64("to", input.DestinationID).
		Int64("amount", input.Amount).
		Logger()

	if input.Options.SkipConsistentLock {
		log.Warn().Msg("locking accounts in call order, opposite transfers may deadlock")
	}

	if input.Options.SkipForUpdate {
		log.Warn().Msg("transferring without row locks, balances may be lost")
	}

	// 1. Begin transaction
	h, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, domain.AsEngineError("begin transfer", err)
	}

	defer func() {
		// No-op after commit or an earlier cancel. Runs detached from ctx
		// so a cancelled request still rolls back.
		if cancelErr := uc.txManager.Cancel(context.WithoutCancel(ctx), h); cancelErr != nil {
			log.Debug().Err(cancelErr).Str("handle", string(h)).Msg("cancel after transfer failed")
		}
	}()

	// 2. Lock, check, mutate, record
	sourceBalance, err := uc.execute(ctx, h, input, log)
	if err != nil {
		if domain.IsBusinessError(err) {
			return nil, err
		}
		return nil, domain.AsEngineError("transfer", err)
	}

	// 3. Commit transaction
	if err := uc.txManager.Commit(ctx, h); err != nil {
		return nil, domain.AsEngineError("commit transfer", err)
	}

	source, err := uc.accountRepo.GetByID(ctx, input.Source.ID)
	if err != nil {
		log.Warn().Err(err).Msg("refreshing source after commit failed, returning in-transaction snapshot")

		snapshot := *input.Source
		snapshot.Balance = sourceBalance

		return &snapshot, nil
	}

	return source, nil
}

func (uc *TransferUseCase) execute(ctx context.Context, h TxHandle, input TransferInput, log zerolog.Logger) (int64, error) {
	sourceID := input.Source.ID
	destinationID := input.DestinationID

	// Lock in ascending id order (DEADLOCK PREVENTION) unless told otherwise.
	// One statement per account so the engine can detect a deadlock
	// between the two acquisitions.
	if !input.Options.SkipForUpdate {
		for i, id := range input.Options.LockOrder(sourceID, destinationID) {
			if err := uc.accountRepo.LockForUpdate(ctx, h, id); err != nil {
				return 0, err
			}

			log.Debug().Int64("account_id", id).Msg("row lock acquired")

			if err := uc.pause(ctx, lockPausePoints[i]); err != nil {
				return 0, err
			}
		}
	}

	balance, err := uc.accountRepo.GetBalance(ctx, h, sourceID)
	if err != nil {
		return 0, err
	}

	if balance < input.Amount {
		if err := uc.txManager.Cancel(ctx, h); err != nil {
			log.Warn().Err(err).Str("handle", string(h)).Msg("cancel after insufficient balance failed")
		}
		return 0, fmt.Errorf("%w: balance %s, requested %s", domain.ErrInsufficientBalance,
			domain.FormatAmount(balance), domain.FormatAmount(input.Amount))
	}

	if err := uc.pause(ctx, PauseBeforeMutation); err != nil {
		return 0, err
	}

	if err := uc.accountRepo.AddBalance(ctx, h, sourceID, -input.Amount); err != nil {
		return 0, err
	}

	fromBalance, err := uc.accountRepo.GetBalance(ctx, h, sourceID)
	if err != nil {
		return 0, err
	}

	if err := uc.accountRepo.AddBalance(ctx, h, destinationID, input.Amount); err != nil {
		return 0, err
	}

	toBalance, err := uc.accountRepo.GetBalance(ctx, h, destinationID)
	if err != nil {
		return 0, err
	}

	debit, credit := domain.NewEntryPair(uc.refGen.Generate(), sourceID, destinationID, input.Amount,
		fromBalance, toBalance, input.Description, uc.now())

	if err := uc.entryRepo.Create(ctx, h, debit); err != nil {
		return 0, err
	}

	if err := uc.entryRepo.Create(ctx, h, credit); err != nil {
		return 0, err
	}

	return fromBalance, nil
}

func (uc *TransferUseCase) observe(opts domain.TransferOptions, err error, elapsed time.Duration) {
	if uc.metrics == nil {
		return
	}

	uc.metrics.ObserveTransfer(ScenarioName(opts), Outcome(err), elapsed)
}

// ScenarioName is the inverse of domain.ParseScenario. When both safety
// mechanisms are off the row-lock one wins, since no lock is taken at all.
func ScenarioName(opts domain.TransferOptions) string {
	switch {
	case opts.SkipForUpdate:
		return domain.ScenarioSkipForUpdate
	case opts.SkipConsistentLock:
		return domain.ScenarioSkipConsistentLock
	default:
		return domain.ScenarioSafe
	}
}

// Outcome classifies a transfer result for metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeCommitted
	case errors.Is(err, domain.ErrInvalidTransfer):
		return OutcomeInvalid
	case errors.Is(err, domain.ErrInsufficientBalance):
		return OutcomeInsufficientBalance
	default:
		return OutcomeEngineError
	}
}
