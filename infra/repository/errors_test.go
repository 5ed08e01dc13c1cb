package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/amirasaad/ledger/pkg/domain"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestMapGormErrorToDomain(t *testing.T) {
	t.Parallel()

	other := errors.New("some other error")
	tests := []struct {
		name     string
		input    error
		expected error
	}{
		{"nil error returns nil", nil, nil},
		{"duplicate key maps to ErrAlreadyExists", gorm.ErrDuplicatedKey, domain.ErrAlreadyExists},
		{"record not found maps to ErrNotFound", gorm.ErrRecordNotFound, domain.ErrNotFound},
		{"non-GORM error returns original", other, other},
		{"joined duplicate key maps correctly", errors.Join(errors.New("outer"), gorm.ErrDuplicatedKey), domain.ErrAlreadyExists},
		{"wrapped record not found maps correctly", fmt.Errorf("query: %w", gorm.ErrRecordNotFound), domain.ErrNotFound},
		{"serialization failure maps to ErrConflict", &pgconn.PgError{Code: "40001"}, domain.ErrConflict},
		{"deadlock maps to ErrConflict", fmt.Errorf("commit: %w", &pgconn.PgError{Code: "40P01"}), domain.ErrConflict},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			result := MapGormErrorToDomain(tt.input)
			if tt.expected == nil {
				require.NoError(t, result)
				return
			}
			require.Error(t, result)
			assert.ErrorIs(t, result, tt.expected)
		})
	}
}

func TestMapGormErrorToDomain_KeepsPgErrorInChain(t *testing.T) {
	t.Parallel()
	pgErr := &pgconn.PgError{Code: "40001", Message: "could not serialize access"}

	result := MapGormErrorToDomain(pgErr)

	var got *pgconn.PgError
	require.ErrorAs(t, result, &got)
	assert.Equal(t, "40001", got.Code)
}

func TestMapGormErrorToDomain_OtherPgCodesPassThrough(t *testing.T) {
	t.Parallel()
	pgErr := &pgconn.PgError{Code: "23503"}

	result := MapGormErrorToDomain(pgErr)

	assert.NotErrorIs(t, result, domain.ErrConflict)
	assert.Same(t, pgErr, result)
}

func TestWrapError(t *testing.T) {
	t.Parallel()
	assert.NoError(t, WrapError(func() error { return nil }))
	assert.ErrorIs(t, WrapError(func() error { return gorm.ErrRecordNotFound }), domain.ErrNotFound)
}
