package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupEnv(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "cli-secret")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", filepath.Join(t.TempDir(), "cli.db"))
	t.Setenv("EVENT_BUS_DRIVER", "memory")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "8")
}

func exec(t *testing.T, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true
	var out bytes.Buffer
	err := run(context.Background(), args, &out, true)
	return out.String(), err
}

func TestRun_Usage(t *testing.T) {
	out, err := exec(t)
	assert.ErrorIs(t, err, errUsage)
	assert.Contains(t, out, "Usage: ledger-cli")
	assert.Contains(t, out, "transfer [-description D]")

	out, err = exec(t, "explode")
	assert.ErrorIs(t, err, errUsage)
	assert.Contains(t, out, "Unknown command: explode")
}

func TestRun_BadArguments(t *testing.T) {
	setupEnv(t)

	out, err := exec(t, "deposit", uuid.NewString())
	assert.ErrorIs(t, err, errUsage)
	assert.Contains(t, out, "Usage: ledger-cli deposit")

	_, err = exec(t, "token", "not-a-uuid")
	assert.ErrorContains(t, err, "invalid user-id")

	_, err = exec(t, "deposit", uuid.NewString(), uuid.NewString(), "ten")
	assert.ErrorContains(t, err, "invalid amount")
}

func TestRun_AccountLifecycle(t *testing.T) {
	setupEnv(t)
	user := uuid.NewString()

	out, err := exec(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "sqlite")

	out, err = exec(t, "token", user)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "."), 3)

	out, err = exec(t, "open", "-currency", "USD", "-balance", "100", user)
	require.NoError(t, err)
	fields := strings.Split(strings.TrimSpace(lastLine(out)), "\t")
	require.Len(t, fields, 6)
	accountID := fields[0]
	assert.Equal(t, "100.00", fields[4])
	assert.Equal(t, "USD", fields[5])

	out, err = exec(t, "deposit", "-description", "salary", user, accountID, "50")
	require.NoError(t, err)
	assert.Contains(t, out, "Deposit successful")

	out, err = exec(t, "withdraw", user, accountID, "500")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "InsufficientFunds")
	assert.Contains(t, out, "Withdraw recorded as failed")

	out, err = exec(t, "history", user, accountID)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 2)

	out, err = exec(t, "stats", user, accountID)
	require.NoError(t, err)
	assert.Contains(t, out, "balance\t150.00")
	assert.Contains(t, out, "transactions\t2")

	out, err = exec(t, "suspend", user, accountID)
	require.NoError(t, err)
	assert.Contains(t, out, "is now suspended")

	out, err = exec(t, "accounts", "-active", user)
	require.NoError(t, err)
	assert.Empty(t, strings.TrimSpace(out))

	_, err = exec(t, "stats", uuid.NewString(), accountID)
	assert.ErrorContains(t, err, "not allowed to access this account")
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return lines[len(lines)-1]
}
