package ledger

import (
	"context"
	"errors"

	"github.com/amirasaad/ledger/pkg/domain"
	"github.com/amirasaad/ledger/pkg/domain/account"
	"github.com/amirasaad/ledger/pkg/domain/transaction"
	"github.com/google/uuid"
)

// GetTransactionByReference returns a transaction the caller is a party to.
func (s *Service) GetTransactionByReference(ctx context.Context, userID uuid.UUID, reference string) (*transaction.Transaction, error) {
	repo, err := s.uow.TransactionRepository()
	if err != nil {
		return nil, err
	}
	tx, err := repo.GetByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.Errorf(domain.KindTransactionNotFound, "transaction %s not found", reference)
		}
		return nil, err
	}

	src, err := s.partyAccount(ctx, tx.SourceAccountID)
	if err != nil {
		return nil, err
	}
	dst, err := s.partyAccount(ctx, tx.DestinationAccountID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.CanView(userID, src, dst); err != nil {
		return nil, err
	}
	return tx, nil
}

// partyAccount loads one side of a transaction. A missing side yields nil.
func (s *Service) partyAccount(ctx context.Context, id *uuid.UUID) (*account.Account, error) {
	if id == nil {
		return nil, nil
	}
	acc, err := s.loadAccount(ctx, *id)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return nil, nil
	}
	return acc, err
}

// ListAccountTransactions returns the history of an owned account, newest
// first.
func (s *Service) ListAccountTransactions(
	ctx context.Context,
	userID, accountID uuid.UUID,
	filter TransactionFilter,
) ([]*transaction.Transaction, error) {
	if _, err := s.GetAccount(ctx, userID, accountID); err != nil {
		return nil, err
	}
	repo, err := s.uow.TransactionRepository()
	if err != nil {
		return nil, err
	}
	return repo.ListByAccounts(ctx, []uuid.UUID{accountID}, filter)
}

// ListUserTransactions returns the transactions touching any account of the
// caller, newest first. A transfer between two of the caller's accounts is
// listed once.
func (s *Service) ListUserTransactions(ctx context.Context, userID uuid.UUID, filter TransactionFilter) ([]*transaction.Transaction, error) {
	accounts, err := s.ListAccounts(ctx, userID, false)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return []*transaction.Transaction{}, nil
	}
	ids := make([]uuid.UUID, len(accounts))
	for i, acc := range accounts {
		ids[i] = acc.ID
	}
	repo, err := s.uow.TransactionRepository()
	if err != nil {
		return nil, err
	}
	return repo.ListByAccounts(ctx, ids, filter)
}

// GetTransactionStatistics summarizes the history of an owned account.
func (s *Service) GetTransactionStatistics(ctx context.Context, userID, accountID uuid.UUID) (*TransactionStatistics, error) {
	acc, err := s.GetAccount(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}
	repo, err := s.uow.TransactionRepository()
	if err != nil {
		return nil, err
	}
	stats, err := repo.Stats(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &TransactionStatistics{
		AccountID:         accountID,
		TotalTransactions: stats.TotalTransactions,
		DepositCount:      stats.DepositCount,
		WithdrawalCount:   stats.WithdrawalCount,
		TransferCount:     stats.TransferCount,
		TotalIncoming:     stats.TotalIncoming,
		TotalOutgoing:     stats.TotalOutgoing,
		NetChange:         stats.TotalIncoming.Sub(stats.TotalOutgoing),
		CurrentBalance:    acc.Balance,
		Timestamp:         s.now(),
	}, nil
}
