package ledger

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	infrarepo "github.com/amirasaad/ledger/infra/repository"
	"github.com/amirasaad/ledger/pkg/domain"
	"github.com/amirasaad/ledger/pkg/domain/events"
	"github.com/amirasaad/ledger/pkg/domain/transaction"
	"github.com/amirasaad/ledger/pkg/generator"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeposit_Success(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	acc := h.open(t, userID, "100")

	tx, err := h.svc.Deposit(context.Background(), DepositCommand{
		UserID:    userID,
		AccountID: acc.ID,
		Amount:    amountOf("25.50"),
	})
	require.NoError(t, err)
	require.NotNil(t, tx)

	assert.Equal(t, transaction.TypeDeposit, tx.Type)
	assert.Equal(t, transaction.StatusCompleted, tx.Status)
	assert.Equal(t, defaultDepositDescription, tx.Description)
	assert.True(t, strings.HasPrefix(tx.Reference, "TXN-"))
	assert.Nil(t, tx.SourceAccountID)
	require.NotNil(t, tx.DestinationAccountID)
	assert.Equal(t, acc.ID, *tx.DestinationAccountID)
	assertDecimal(t, "100", *tx.DestinationBalanceBefore)
	assertDecimal(t, "125.50", *tx.DestinationBalanceAfter)
	assert.NotNil(t, tx.CompletedAt)
	assertDecimal(t, "125.50", h.balance(t, acc.ID))

	published := h.bus.Published()
	require.Len(t, published, 1)
	completed, ok := published[0].(*events.TransactionCompleted)
	require.True(t, ok)
	assert.Equal(t, tx.Reference, completed.Reference)
	assert.Equal(t, userID, completed.UserID)
}

func TestWithdraw_Success(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	acc := h.open(t, userID, "100")

	tx, err := h.svc.Withdraw(context.Background(), WithdrawCommand{
		UserID:      userID,
		AccountID:   acc.ID,
		Amount:      amountOf("40"),
		Description: "ATM",
	})
	require.NoError(t, err)
	assert.Equal(t, transaction.TypeWithdrawal, tx.Type)
	assert.Equal(t, "ATM", tx.Description)
	assertDecimal(t, "100", *tx.SourceBalanceBefore)
	assertDecimal(t, "60", *tx.SourceBalanceAfter)
	assert.Nil(t, tx.DestinationAccountID)
	assertDecimal(t, "60", h.balance(t, acc.ID))
}

func TestWithdraw_InsufficientFundsRecordsFailure(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	acc := h.open(t, userID, "50")

	tx, err := h.svc.Withdraw(context.Background(), WithdrawCommand{
		UserID:    userID,
		AccountID: acc.ID,
		Amount:    amountOf("75"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	require.NotNil(t, tx)
	assert.Equal(t, transaction.StatusFailed, tx.Status)
	assert.Contains(t, tx.FailureReason, "insufficient funds")
	assert.Nil(t, tx.SourceBalanceAfter)

	assertDecimal(t, "50", h.balance(t, acc.ID))
	history := h.history(t, acc.ID)
	require.Len(t, history, 1)
	assert.Equal(t, transaction.StatusFailed, history[0].Status)
	assert.Equal(t, tx.Reference, history[0].Reference)

	published := h.bus.Published()
	require.Len(t, published, 1)
	assert.Equal(t, events.TypeTransactionFailed, published[0].Type())
}

func TestDepositThenWithdraw_RestoresBalance(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	acc := h.open(t, userID, "25.50")
	ctx := context.Background()

	dep, err := h.svc.Deposit(ctx, DepositCommand{UserID: userID, AccountID: acc.ID, Amount: amountOf("100.00")})
	require.NoError(t, err)
	wd, err := h.svc.Withdraw(ctx, WithdrawCommand{UserID: userID, AccountID: acc.ID, Amount: amountOf("100.00")})
	require.NoError(t, err)

	assert.Equal(t, transaction.StatusCompleted, dep.Status)
	assert.Equal(t, transaction.StatusCompleted, wd.Status)
	assert.NotEqual(t, dep.Reference, wd.Reference)
	assertDecimal(t, "25.50", h.balance(t, acc.ID))
}

func TestRetryAfterFailure_LeavesOriginalRecord(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	acc := h.open(t, userID, "10")
	ctx := context.Background()
	cmd := WithdrawCommand{UserID: userID, AccountID: acc.ID, Amount: amountOf("30")}

	first, err := h.svc.Withdraw(ctx, cmd)
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	second, err := h.svc.Withdraw(ctx, cmd)
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.NotEqual(t, first.Reference, second.Reference)

	stored, err := h.svc.GetTransactionByReference(ctx, userID, first.Reference)
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusFailed, stored.Status)
	assert.Equal(t, first.FailureReason, stored.FailureReason)
	assert.Len(t, h.history(t, acc.ID), 2)
}

func TestTransfer_Success(t *testing.T) {
	h := newHarness(t)
	alice, bob := uuid.New(), uuid.New()
	src := h.open(t, alice, "200")
	dst := h.open(t, bob, "10")

	tx, err := h.svc.Transfer(context.Background(), TransferCommand{
		UserID:            alice,
		SourceAccountID:   src.ID,
		DestinationNumber: dst.Number,
		Amount:            amountOf("75.25"),
	})
	require.NoError(t, err)
	assert.Equal(t, transaction.TypeTransfer, tx.Type)
	assert.Equal(t, "Transfer to "+dst.Number, tx.Description)
	assertDecimal(t, "200", *tx.SourceBalanceBefore)
	assertDecimal(t, "124.75", *tx.SourceBalanceAfter)
	assertDecimal(t, "10", *tx.DestinationBalanceBefore)
	assertDecimal(t, "85.25", *tx.DestinationBalanceAfter)

	assertDecimal(t, "124.75", h.balance(t, src.ID))
	assertDecimal(t, "85.25", h.balance(t, dst.ID))
	assert.Len(t, h.history(t, src.ID), 1)
	assert.Len(t, h.history(t, dst.ID), 1)
}

func TestTransfer_CurrencyMismatchWritesNothing(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	src := h.openIn(t, userID, "100", "EUR")
	dst := h.openIn(t, userID, "100", "USD")

	tx, err := h.svc.Transfer(context.Background(), TransferCommand{
		UserID:            userID,
		SourceAccountID:   src.ID,
		DestinationNumber: dst.Number,
		Amount:            amountOf("10"),
	})
	assert.Nil(t, tx)
	assert.ErrorIs(t, err, domain.ErrInvalidCurrency)
	assert.Empty(t, h.history(t, src.ID))
	assert.Empty(t, h.history(t, dst.ID))
	assertDecimal(t, "100", h.balance(t, src.ID))
}

func TestTransfer_Validation(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	src := h.open(t, userID, "100")
	other := h.open(t, uuid.New(), "100")

	tests := []struct {
		name string
		cmd  TransferCommand
		want error
	}{
		{
			name: "same account",
			cmd:  TransferCommand{UserID: userID, SourceAccountID: src.ID, DestinationNumber: src.Number, Amount: amountOf("1")},
			want: domain.ErrSameAccountTransfer,
		},
		{
			name: "missing destination",
			cmd:  TransferCommand{UserID: userID, SourceAccountID: src.ID, DestinationNumber: "  ", Amount: amountOf("1")},
			want: domain.ErrInvalidAmount,
		},
		{
			name: "unknown destination",
			cmd:  TransferCommand{UserID: userID, SourceAccountID: src.ID, DestinationNumber: "FR760000000000000000", Amount: amountOf("1")},
			want: domain.ErrAccountNotFound,
		},
		{
			name: "source owned by someone else",
			cmd:  TransferCommand{UserID: userID, SourceAccountID: other.ID, DestinationNumber: src.Number, Amount: amountOf("1")},
			want: domain.ErrUnauthorizedOperation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, err := h.svc.Transfer(context.Background(), tt.cmd)
			assert.Nil(t, tx)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, h.history(t, src.ID))
}

func TestDeposit_AmountValidation(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	acc := h.open(t, userID, "0")

	tests := []struct {
		name   string
		amount *string
		want   error
	}{
		{name: "missing", amount: nil, want: domain.ErrInvalidAmount},
		{name: "zero", amount: ptrTo("0"), want: domain.ErrInvalidAmount},
		{name: "negative", amount: ptrTo("-5"), want: domain.ErrInvalidAmount},
		{name: "too precise", amount: ptrTo("0.001"), want: domain.ErrInvalidAmount},
		{name: "trailing zero beyond two decimals", amount: ptrTo("10.000"), want: domain.ErrInvalidAmount},
		{name: "minimum with three decimals", amount: ptrTo("0.010"), want: domain.ErrInvalidAmount},
		{name: "above limit", amount: ptrTo("1000000.01"), want: domain.ErrTransactionLimitExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := DepositCommand{UserID: userID, AccountID: acc.ID}
			if tt.amount != nil {
				cmd.Amount = amountOf(*tt.amount)
			}
			tx, err := h.svc.Deposit(context.Background(), cmd)
			assert.Nil(t, tx)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, h.history(t, acc.ID))
	assert.Empty(t, h.bus.Published())
}

func TestDeposit_AccessAndStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	userID := uuid.New()
	owned := h.open(t, userID, "0")
	suspended := h.open(t, userID, "0")
	inactive := h.open(t, userID, "0")
	_, err := h.svc.SuspendAccount(ctx, userID, suspended.ID)
	require.NoError(t, err)
	_, err = h.svc.DeactivateAccount(ctx, userID, inactive.ID)
	require.NoError(t, err)

	tests := []struct {
		name      string
		userID    uuid.UUID
		accountID uuid.UUID
		want      error
	}{
		{name: "unknown account", userID: userID, accountID: uuid.New(), want: domain.ErrAccountNotFound},
		{name: "not the owner", userID: uuid.New(), accountID: owned.ID, want: domain.ErrUnauthorizedOperation},
		{name: "anonymous", userID: uuid.Nil, accountID: owned.ID, want: domain.ErrUnauthorizedOperation},
		{name: "suspended", userID: userID, accountID: suspended.ID, want: domain.ErrAccountSuspended},
		{name: "inactive", userID: userID, accountID: inactive.ID, want: domain.ErrAccountInactive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, err := h.svc.Deposit(ctx, DepositCommand{UserID: tt.userID, AccountID: tt.accountID, Amount: amountOf("10")})
			assert.Nil(t, tx)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDeposit_ReferenceExhaustion(t *testing.T) {
	fixed := generator.NewReference(nil,
		generator.WithSource(func() (string, error) { return "TXN-20260101000000-ABCDEF12", nil }),
		generator.WithMaxAttempts(3),
	)
	h := newHarness(t, func(d *Deps) { d.References = fixed })
	userID := uuid.New()
	acc := h.open(t, userID, "0")

	_, err := h.svc.Deposit(context.Background(), DepositCommand{UserID: userID, AccountID: acc.ID, Amount: amountOf("1")})
	require.NoError(t, err)

	tx, err := h.svc.Deposit(context.Background(), DepositCommand{UserID: userID, AccountID: acc.ID, Amount: amountOf("1")})
	assert.Nil(t, tx)
	assert.ErrorIs(t, err, domain.ErrIdentifierAllocationFailed)
	assert.Len(t, h.history(t, acc.ID), 1)
	assertDecimal(t, "1", h.balance(t, acc.ID))
}

func TestDeposit_CanceledContextLeavesNoRecord(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	acc := h.open(t, userID, "10")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.svc.Deposit(ctx, DepositCommand{UserID: userID, AccountID: acc.ID, Amount: amountOf("5")})
	require.Error(t, err)
	assert.Empty(t, h.history(t, acc.ID))
	assertDecimal(t, "10", h.balance(t, acc.ID))
}

func TestWithdraw_ConcurrentDrain(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	acc := h.open(t, userID, "100")

	const workers = 10
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		rejected  atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.Withdraw(context.Background(), WithdrawCommand{
				UserID:    userID,
				AccountID: acc.ID,
				Amount:    amountOf("30"),
			})
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, domain.ErrInsufficientFunds):
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 3, succeeded.Load())
	assert.EqualValues(t, workers-3, rejected.Load())
	assertDecimal(t, "10", h.balance(t, acc.ID))
	assert.Len(t, h.history(t, acc.ID), workers)
	assert.Zero(t, h.svc.locks.size())
}

func TestTransfer_OppositeDirectionsDoNotDeadlock(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	a := h.open(t, userID, "100")
	b := h.open(t, userID, "100")

	const rounds = 20
	var wg sync.WaitGroup
	for i := 0; i < rounds; i++ {
		src, dst := a, b
		if i%2 == 1 {
			src, dst = b, a
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.Transfer(context.Background(), TransferCommand{
				UserID:            userID,
				SourceAccountID:   src.ID,
				DestinationNumber: dst.Number,
				Amount:            amountOf("5"),
			})
			assert.NoError(t, err)
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("transfers did not finish")
	}

	total := h.balance(t, a.ID).Add(h.balance(t, b.ID))
	assertDecimal(t, "200", total)
	assertDecimal(t, "100", h.balance(t, a.ID))
	assert.Zero(t, h.svc.locks.size())
}

func TestClassifyFailure(t *testing.T) {
	kept := []error{
		domain.ErrInsufficientFunds,
		domain.ErrAccountNotFound,
		domain.ErrAccountInactive,
		domain.ErrAccountSuspended,
		domain.ErrInvalidCurrency,
	}
	for _, err := range kept {
		assert.Same(t, err, classifyFailure(err))
	}

	wrapped := classifyFailure(domain.ErrConflict)
	assert.ErrorIs(t, wrapped, domain.ErrTransactionFailed)
	assert.ErrorIs(t, wrapped, domain.ErrConflict)
	assert.Equal(t, "concurrent update conflict", failureReason(domain.ErrConflict))
	assert.Equal(t, "boom", failureReason(errors.New("boom")))
}

func ptrTo(s string) *string { return &s }

func TestTransfer_InsufficientFundsTouchesNeitherSide(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	src := h.open(t, userID, "50")
	dst := h.open(t, uuid.New(), "10")

	tx, err := h.svc.Transfer(context.Background(), TransferCommand{
		UserID:            userID,
		SourceAccountID:   src.ID,
		DestinationNumber: dst.Number,
		Amount:            amountOf("75"),
	})
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	require.NotNil(t, tx)
	assert.Equal(t, transaction.StatusFailed, tx.Status)
	require.NotNil(t, tx.SourceBalanceBefore)
	require.NotNil(t, tx.DestinationBalanceBefore)
	assertDecimal(t, "50", *tx.SourceBalanceBefore)
	assertDecimal(t, "10", *tx.DestinationBalanceBefore)
	assert.Nil(t, tx.SourceBalanceAfter)
	assert.Nil(t, tx.DestinationBalanceAfter)

	assertDecimal(t, "50", h.balance(t, src.ID))
	assertDecimal(t, "10", h.balance(t, dst.ID))
	for _, id := range []uuid.UUID{src.ID, dst.ID} {
		history := h.history(t, id)
		require.Len(t, history, 1)
		assert.Equal(t, tx.Reference, history[0].Reference)
		assert.Equal(t, transaction.StatusFailed, history[0].Status)
	}
}

func TestTransfer_AccountStatusReportedPerSide(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	userID := uuid.New()
	other := uuid.New()

	funded := h.open(t, userID, "100")
	suspendedSrc := h.open(t, userID, "100")
	inactiveSrc := h.open(t, userID, "0")
	target := h.open(t, other, "0")
	suspendedDst := h.open(t, other, "0")
	inactiveDst := h.open(t, other, "0")

	_, err := h.svc.SuspendAccount(ctx, userID, suspendedSrc.ID)
	require.NoError(t, err)
	_, err = h.svc.DeactivateAccount(ctx, userID, inactiveSrc.ID)
	require.NoError(t, err)
	_, err = h.svc.SuspendAccount(ctx, other, suspendedDst.ID)
	require.NoError(t, err)
	_, err = h.svc.DeactivateAccount(ctx, other, inactiveDst.ID)
	require.NoError(t, err)

	tests := []struct {
		name string
		src  uuid.UUID
		dst  string
		want error
	}{
		{name: "suspended source", src: suspendedSrc.ID, dst: target.Number, want: domain.ErrAccountSuspended},
		{name: "inactive source", src: inactiveSrc.ID, dst: target.Number, want: domain.ErrAccountInactive},
		{name: "suspended destination", src: funded.ID, dst: suspendedDst.Number, want: domain.ErrAccountSuspended},
		{name: "inactive destination", src: funded.ID, dst: inactiveDst.Number, want: domain.ErrAccountInactive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, err := h.svc.Transfer(ctx, TransferCommand{
				UserID:            userID,
				SourceAccountID:   tt.src,
				DestinationNumber: tt.dst,
				Amount:            amountOf("1"),
			})
			assert.Nil(t, tx)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assertDecimal(t, "100", h.balance(t, funded.ID))
	assert.Empty(t, h.history(t, funded.ID))
	assert.Empty(t, h.history(t, target.ID))
}

func TestWithdraw_FailedRecordUsesLockedBalance(t *testing.T) {
	var (
		h    *harness
		bump func()
	)
	refs := generator.NewReference(nil, generator.WithSource(func() (string, error) {
		// Runs between validation and the atomic step.
		if bump != nil {
			bump()
			bump = nil
		}
		return "TXN-20260101000000-0000BEEF", nil
	}))
	h = newHarness(t, func(d *Deps) { d.References = refs })
	userID := uuid.New()
	acc := h.open(t, userID, "50")
	bump = func() {
		err := h.db.Model(&infrarepo.Account{}).Where("id = ?", acc.ID).Update("balance", dec("60")).Error
		require.NoError(t, err)
	}

	tx, err := h.svc.Withdraw(context.Background(), WithdrawCommand{UserID: userID, AccountID: acc.ID, Amount: amountOf("75")})
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	require.NotNil(t, tx)
	require.NotNil(t, tx.SourceBalanceBefore)
	assertDecimal(t, "60", *tx.SourceBalanceBefore)
	assert.Equal(t, "insufficient funds: balance 60.00, requested 75.00", tx.FailureReason)

	history := h.history(t, acc.ID)
	require.Len(t, history, 1)
	require.NotNil(t, history[0].SourceBalanceBefore)
	assertDecimal(t, "60", *history[0].SourceBalanceBefore)
}

func TestDeposit_ReferenceTakenAtInsertIsReallocated(t *testing.T) {
	refs := generator.NewReference(nil, generator.WithSource(sequence(
		"TXN-20260101000000-00000001",
		"TXN-20260101000000-00000001",
		"TXN-20260101000000-00000002",
	)))
	h := newHarness(t, func(d *Deps) {
		d.Uow = racingUoW{d.Uow}
		d.References = refs
	})
	userID := uuid.New()
	acc := h.open(t, userID, "0")
	ctx := context.Background()

	first, err := h.svc.Deposit(ctx, DepositCommand{UserID: userID, AccountID: acc.ID, Amount: amountOf("5")})
	require.NoError(t, err)
	second, err := h.svc.Deposit(ctx, DepositCommand{UserID: userID, AccountID: acc.ID, Amount: amountOf("7")})
	require.NoError(t, err)

	assert.Equal(t, "TXN-20260101000000-00000001", first.Reference)
	assert.Equal(t, "TXN-20260101000000-00000002", second.Reference)
	assertDecimal(t, "12", h.balance(t, acc.ID))
	assert.Len(t, h.history(t, acc.ID), 2)
}

func TestWithdraw_FailedRecordReallocatesTakenReference(t *testing.T) {
	refs := generator.NewReference(nil, generator.WithSource(sequence(
		"TXN-20260101000000-00000001",
		"TXN-20260101000000-00000001",
		"TXN-20260101000000-00000002",
	)))
	h := newHarness(t, func(d *Deps) {
		d.Uow = racingUoW{d.Uow}
		d.References = refs
	})
	userID := uuid.New()
	acc := h.open(t, userID, "0")
	ctx := context.Background()

	_, err := h.svc.Deposit(ctx, DepositCommand{UserID: userID, AccountID: acc.ID, Amount: amountOf("5")})
	require.NoError(t, err)
	failed, err := h.svc.Withdraw(ctx, WithdrawCommand{UserID: userID, AccountID: acc.ID, Amount: amountOf("50")})
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	require.NotNil(t, failed)
	assert.Equal(t, "TXN-20260101000000-00000002", failed.Reference)
	assert.Len(t, h.history(t, acc.ID), 2)
}

func TestDeposit_ReferenceClashesExhaustBudget(t *testing.T) {
	refs := generator.NewReference(nil,
		generator.WithSource(sequence("TXN-20260101000000-00000001")),
		generator.WithMaxAttempts(3),
	)
	h := newHarness(t, func(d *Deps) {
		d.Uow = racingUoW{d.Uow}
		d.References = refs
	})
	userID := uuid.New()
	acc := h.open(t, userID, "0")
	ctx := context.Background()

	_, err := h.svc.Deposit(ctx, DepositCommand{UserID: userID, AccountID: acc.ID, Amount: amountOf("5")})
	require.NoError(t, err)
	tx, err := h.svc.Deposit(ctx, DepositCommand{UserID: userID, AccountID: acc.ID, Amount: amountOf("7")})
	assert.Nil(t, tx)
	assert.ErrorIs(t, err, domain.ErrIdentifierAllocationFailed)
	assertDecimal(t, "5", h.balance(t, acc.ID))
	assert.Len(t, h.history(t, acc.ID), 1)
}

func TestDeposit_GivesUpWaitingForBusyAccount(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	acc := h.open(t, userID, "10")

	unlock, err := h.svc.locks.lock(context.Background(), acc.ID)
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	tx, err := h.svc.Deposit(ctx, DepositCommand{UserID: userID, AccountID: acc.ID, Amount: amountOf("5")})
	assert.Nil(t, tx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assertDecimal(t, "10", h.balance(t, acc.ID))
	assert.Empty(t, h.history(t, acc.ID))
}
