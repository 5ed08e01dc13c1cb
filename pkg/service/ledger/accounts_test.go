package ledger

import (
	"context"
	"regexp"
	"testing"

	"github.com/amirasaad/ledger/pkg/domain"
	"github.com/amirasaad/ledger/pkg/domain/account"
	"github.com/amirasaad/ledger/pkg/domain/events"
	"github.com/amirasaad/ledger/pkg/generator"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var accountNumberPattern = regexp.MustCompile(`^FR76\d{16}$`)

func TestOpenAccount_Defaults(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()

	acc, err := h.svc.OpenAccount(context.Background(), OpenAccountCommand{UserID: userID})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, acc.ID)
	assert.Regexp(t, accountNumberPattern, acc.Number)
	assert.Equal(t, account.TypeChecking, acc.Type)
	assert.Equal(t, account.StatusActive, acc.Status)
	assert.Equal(t, "EUR", acc.Currency.String())
	assert.True(t, acc.Balance.IsZero())
	assert.Equal(t, userID, acc.UserID)

	stored, err := h.svc.GetAccountByNumber(context.Background(), userID, acc.Number)
	require.NoError(t, err)
	assert.Equal(t, acc.ID, stored.ID)
}

func TestOpenAccount_Options(t *testing.T) {
	h := newHarness(t)
	acc, err := h.svc.OpenAccount(context.Background(), OpenAccountCommand{
		UserID:         uuid.New(),
		Type:           account.TypeSavings,
		Currency:       "USD",
		InitialBalance: amountOf("250.75"),
	})
	require.NoError(t, err)
	assert.Equal(t, account.TypeSavings, acc.Type)
	assert.Equal(t, "USD", acc.Currency.String())
	assertDecimal(t, "250.75", h.balance(t, acc.ID))
	assert.Empty(t, h.history(t, acc.ID))
}

func TestOpenAccount_Rejections(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()

	tests := []struct {
		name string
		cmd  OpenAccountCommand
		want error
	}{
		{name: "anonymous", cmd: OpenAccountCommand{}, want: domain.ErrUnauthorizedOperation},
		{name: "lowercase currency", cmd: OpenAccountCommand{UserID: userID, Currency: "usd"}, want: domain.ErrInvalidCurrency},
		{name: "long currency", cmd: OpenAccountCommand{UserID: userID, Currency: "EURO"}, want: domain.ErrInvalidCurrency},
		{name: "unknown type", cmd: OpenAccountCommand{UserID: userID, Type: "crypto"}, want: account.ErrInvalidType},
		{name: "negative balance", cmd: OpenAccountCommand{UserID: userID, InitialBalance: amountOf("-1")}, want: domain.ErrInvalidAmount},
		{name: "too precise balance", cmd: OpenAccountCommand{UserID: userID, InitialBalance: amountOf("1.005")}, want: domain.ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc, err := h.svc.OpenAccount(context.Background(), tt.cmd)
			assert.Nil(t, acc)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	accounts, err := h.svc.ListAccounts(context.Background(), userID, false)
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestGetAccount_Ownership(t *testing.T) {
	h := newHarness(t)
	owner := uuid.New()
	acc := h.open(t, owner, "5")

	got, err := h.svc.GetAccount(context.Background(), owner, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, acc.Number, got.Number)

	_, err = h.svc.GetAccount(context.Background(), uuid.New(), acc.ID)
	assert.ErrorIs(t, err, domain.ErrUnauthorizedOperation)

	_, err = h.svc.GetAccount(context.Background(), owner, uuid.New())
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	_, err = h.svc.GetAccountByNumber(context.Background(), owner, "FR760000000000000001")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestListAccounts_AndTotals(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	userID := uuid.New()
	first := h.open(t, userID, "100")
	second := h.open(t, userID, "50.25")
	suspended := h.open(t, userID, "30")
	h.open(t, uuid.New(), "999")
	_, err := h.svc.SuspendAccount(ctx, userID, suspended.ID)
	require.NoError(t, err)

	all, err := h.svc.ListAccounts(ctx, userID, false)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	active, err := h.svc.ListAccounts(ctx, userID, true)
	require.NoError(t, err)
	ids := []uuid.UUID{}
	for _, acc := range active {
		ids = append(ids, acc.ID)
	}
	assert.ElementsMatch(t, []uuid.UUID{first.ID, second.ID}, ids)

	total, err := h.svc.GetTotalBalance(ctx, userID)
	require.NoError(t, err)
	assertDecimal(t, "150.25", total)

	stats, err := h.svc.GetAccountStatistics(ctx, userID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.TotalAccounts)
	assert.EqualValues(t, 2, stats.ActiveAccounts)
	assertDecimal(t, "150.25", stats.TotalBalance)
	assert.False(t, stats.Timestamp.IsZero())
}

func TestAccountStatusTransitions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	userID := uuid.New()
	acc := h.open(t, userID, "0")

	suspended, err := h.svc.SuspendAccount(ctx, userID, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, account.StatusSuspended, suspended.Status)

	_, err = h.svc.SuspendAccount(ctx, userID, acc.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidStatusTransition)

	_, err = h.svc.DeactivateAccount(ctx, userID, acc.ID)
	assert.ErrorIs(t, err, domain.ErrAccountInactive)

	reactivated, err := h.svc.ReactivateAccount(ctx, userID, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, account.StatusActive, reactivated.Status)

	_, err = h.svc.ReactivateAccount(ctx, userID, acc.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidStatusTransition)

	deactivated, err := h.svc.DeactivateAccount(ctx, userID, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, account.StatusInactive, deactivated.Status)
	assert.NotNil(t, deactivated.ClosedAt)

	var changes []*events.AccountStatusChanged
	for _, evt := range h.bus.Published() {
		if e, ok := evt.(*events.AccountStatusChanged); ok {
			changes = append(changes, e)
		}
	}
	require.Len(t, changes, 3)
	assert.Equal(t, account.StatusActive, changes[0].From)
	assert.Equal(t, account.StatusSuspended, changes[0].To)
	assert.Equal(t, account.StatusInactive, changes[2].To)
	assert.Zero(t, h.svc.locks.size())
}

func TestDeactivateAccount_RequiresZeroBalance(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	acc := h.open(t, userID, "0.01")

	_, err := h.svc.DeactivateAccount(context.Background(), userID, acc.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidStatusTransition)

	stored, err := h.svc.GetAccount(context.Background(), userID, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, account.StatusActive, stored.Status)
}

func TestChangeStatus_Authorization(t *testing.T) {
	h := newHarness(t)
	acc := h.open(t, uuid.New(), "0")

	_, err := h.svc.SuspendAccount(context.Background(), uuid.New(), acc.ID)
	assert.ErrorIs(t, err, domain.ErrUnauthorizedOperation)

	_, err = h.svc.SuspendAccount(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	assert.Empty(t, h.bus.Published())
}

func TestOpenAccount_NumberTakenAtInsertIsRetried(t *testing.T) {
	numbers := generator.NewAccountNumber(generator.WithSource(sequence(
		"FR760000000000000001",
		"FR760000000000000001",
		"FR760000000000000002",
	)))
	h := newHarness(t, func(d *Deps) {
		d.Uow = racingUoW{d.Uow}
		d.AccountNumbers = numbers
	})
	ctx := context.Background()

	first, err := h.svc.OpenAccount(ctx, OpenAccountCommand{UserID: uuid.New()})
	require.NoError(t, err)
	second, err := h.svc.OpenAccount(ctx, OpenAccountCommand{UserID: uuid.New()})
	require.NoError(t, err)

	assert.Equal(t, "FR760000000000000001", first.Number)
	assert.Equal(t, "FR760000000000000002", second.Number)
}

func TestOpenAccount_NumberClashesExhaustBudget(t *testing.T) {
	numbers := generator.NewAccountNumber(
		generator.WithSource(sequence("FR760000000000000001")),
		generator.WithMaxAttempts(2),
	)
	h := newHarness(t, func(d *Deps) {
		d.Uow = racingUoW{d.Uow}
		d.AccountNumbers = numbers
	})
	ctx := context.Background()

	_, err := h.svc.OpenAccount(ctx, OpenAccountCommand{UserID: uuid.New()})
	require.NoError(t, err)
	acc, err := h.svc.OpenAccount(ctx, OpenAccountCommand{UserID: uuid.New()})
	assert.Nil(t, acc)
	assert.ErrorIs(t, err, domain.ErrIdentifierAllocationFailed)
	assert.NotErrorIs(t, err, domain.ErrAlreadyExists)
}
