// Package generator allocates unique human-legible identifiers: account
// numbers and transaction references.
package generator

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/amirasaad/ledger/pkg/domain"
	"github.com/google/uuid"
)

// DefaultMaxAttempts bounds the collision retry loop.
const DefaultMaxAttempts = 10

const (
	accountNumberPrefix = "FR76"
	accountNumberDigits = 16
	referencePrefix     = "TXN"
	referenceTimeLayout = "20060102150405"
)

// ExistsFunc reports whether candidate is already taken.
type ExistsFunc func(ctx context.Context, candidate string) (bool, error)

// Generator draws candidates and retries on collision up to a fixed number of
// attempts.
type Generator struct {
	name        string
	candidate   func() (string, error)
	maxAttempts int
}

// Option configures a Generator.
type Option func(*Generator)

// WithMaxAttempts overrides DefaultMaxAttempts. Values below 1 are ignored.
func WithMaxAttempts(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxAttempts = n
		}
	}
}

// WithSource replaces the candidate source.
func WithSource(src func() (string, error)) Option {
	return func(g *Generator) {
		g.candidate = src
	}
}

func newGenerator(name string, src func() (string, error), opts ...Option) *Generator {
	g := &Generator{name: name, candidate: src, maxAttempts: DefaultMaxAttempts}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewAccountNumber returns a generator of "FR76" followed by 16 random digits.
func NewAccountNumber(opts ...Option) *Generator {
	return newGenerator("account number", randomAccountNumber, opts...)
}

// NewReference returns a generator of "TXN-<yyyyMMddHHmmss>-<8 hex upper>"
// references using clock for the timestamp part.
func NewReference(clock func() time.Time, opts ...Option) *Generator {
	if clock == nil {
		clock = time.Now
	}
	src := func() (string, error) {
		suffix := strings.ToUpper(uuid.NewString()[:8])
		return fmt.Sprintf("%s-%s-%s", referencePrefix, clock().UTC().Format(referenceTimeLayout), suffix), nil
	}
	return newGenerator("transaction reference", src, opts...)
}

// MaxAttempts returns the retry bound.
func (g *Generator) MaxAttempts() int {
	return g.maxAttempts
}

// Generate returns a candidate for which exists reports false. After
// MaxAttempts collisions it fails with IdentifierAllocationFailed.
func (g *Generator) Generate(ctx context.Context, exists ExistsFunc) (string, error) {
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		candidate, err := g.candidate()
		if err != nil {
			return "", domain.Wrap(domain.KindIdentifierAllocationFailed, err, "generate "+g.name)
		}
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check %s uniqueness: %w", g.name, err)
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", domain.Errorf(domain.KindIdentifierAllocationFailed,
		"could not allocate a unique %s after %d attempts", g.name, g.maxAttempts)
}

var accountNumberSpace = new(big.Int).Exp(big.NewInt(10), big.NewInt(accountNumberDigits), nil)

func randomAccountNumber() (string, error) {
	n, err := rand.Int(rand.Reader, accountNumberSpace)
	if err != nil {
		return "", err
	}
	digits := n.String()
	return accountNumberPrefix + strings.Repeat("0", accountNumberDigits-len(digits)) + digits, nil
}
