package transaction_test

import (
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/amirasaad/ledger/webapi/testutils"
	txapi "github.com/amirasaad/ledger/webapi/transaction"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

type TransactionTestSuite struct {
	testutils.E2ETestSuite
	alice, bob, carol string
	aliceAcc, bobAcc  string
	reference         string
}

func TestTransactionTestSuite(t *testing.T) {
	suite.Run(t, new(TransactionTestSuite))
}

func (s *TransactionTestSuite) SetupTest() {
	s.E2ETestSuite.SetupTest()
	s.alice = s.Token(uuid.New())
	s.bob = s.Token(uuid.New())
	s.carol = s.Token(uuid.New())

	var bobNumber string
	s.aliceAcc, _ = s.OpenAccount(s.alice, "100")
	s.bobAcc, bobNumber = s.OpenAccount(s.bob, "")

	s.post(s.alice, "/accounts/"+s.aliceAcc+"/deposit", `{"amount":"20"}`, fiber.StatusCreated)
	s.post(s.alice, "/accounts/"+s.aliceAcc+"/withdraw", `{"amount":"500"}`, fiber.StatusUnprocessableEntity)

	body := fmt.Sprintf(`{"amount":"25","destination_account_number":"%s"}`, bobNumber)
	resp := s.MakeRequest(fiber.MethodPost, "/accounts/"+s.aliceAcc+"/transfer", body, s.alice)
	s.Require().Equal(fiber.StatusCreated, resp.StatusCode)
	var tx txapi.TransactionDTO
	s.Decode(resp, &tx)
	s.reference = tx.Reference
}

func (s *TransactionTestSuite) post(token, path, body string, status int) {
	resp := s.MakeRequest(fiber.MethodPost, path, body, token)
	s.Require().Equal(status, resp.StatusCode, path)
	_ = resp.Body.Close()
}

func (s *TransactionTestSuite) list(token, query string) []txapi.TransactionDTO {
	resp := s.MakeRequest(fiber.MethodGet, "/transactions"+query, "", token)
	s.Require().Equal(fiber.StatusOK, resp.StatusCode)
	var txs []txapi.TransactionDTO
	s.Decode(resp, &txs)
	return txs
}

func (s *TransactionTestSuite) TestGetTransaction() {
	for name, token := range map[string]string{"source owner": s.alice, "destination owner": s.bob} {
		s.Run(name, func() {
			resp := s.MakeRequest(fiber.MethodGet, "/transactions/"+s.reference, "", token)
			s.Equal(fiber.StatusOK, resp.StatusCode)
			var tx txapi.TransactionDTO
			s.Decode(resp, &tx)
			s.Equal("transfer", tx.Type)
			s.Equal("25.00", tx.Amount)
			s.Require().NotNil(tx.SourceAccountID)
			s.Equal(s.aliceAcc, *tx.SourceAccountID)
		})
	}

	s.Run("third party", func() {
		resp := s.MakeRequest(fiber.MethodGet, "/transactions/"+s.reference, "", s.carol)
		s.Equal(fiber.StatusForbidden, resp.StatusCode)
		s.Equal("UnauthorizedOperation", s.DecodeProblem(resp).Kind)
	})

	s.Run("unknown reference", func() {
		resp := s.MakeRequest(fiber.MethodGet, "/transactions/TXN-UNKNOWN", "", s.alice)
		s.Equal(fiber.StatusNotFound, resp.StatusCode)
		s.Equal("TransactionNotFound", s.DecodeProblem(resp).Kind)
	})
}

func (s *TransactionTestSuite) TestListUserTransactions() {
	all := s.list(s.alice, "")
	s.Len(all, 3)
	for i := 1; i < len(all); i++ {
		s.False(all[i].CreatedAt.After(all[i-1].CreatedAt), "newest first")
	}

	s.Len(s.list(s.bob, ""), 1)
	s.Empty(s.list(s.carol, ""))

	s.Len(s.list(s.alice, "?type=transfer"), 1)
	s.Len(s.list(s.alice, "?status=failed"), 1)
	s.Len(s.list(s.alice, "?type=deposit&status=completed"), 1)

	future := url.QueryEscape(time.Now().Add(time.Hour).UTC().Format(time.RFC3339))
	s.Empty(s.list(s.alice, "?from="+future))
	s.Len(s.list(s.alice, "?to="+future), 3)
}

func (s *TransactionTestSuite) TestListRejectsBadFilters() {
	for _, query := range []string{"?type=loan", "?status=done", "?from=yesterday"} {
		s.Run(query, func() {
			resp := s.MakeRequest(fiber.MethodGet, "/transactions"+query, "", s.alice)
			s.Equal(fiber.StatusBadRequest, resp.StatusCode)
			s.Equal("Invalid query", s.DecodeProblem(resp).Title)
		})
	}
}

func (s *TransactionTestSuite) TestAccountHistoryOwnership() {
	resp := s.MakeRequest(fiber.MethodGet, "/accounts/"+s.aliceAcc+"/transactions", "", s.bob)
	s.Equal(fiber.StatusForbidden, resp.StatusCode)
	_ = resp.Body.Close()

	resp = s.MakeRequest(fiber.MethodGet, "/accounts/"+s.bobAcc+"/transactions", "", s.bob)
	s.Equal(fiber.StatusOK, resp.StatusCode)
	var txs []txapi.TransactionDTO
	s.Decode(resp, &txs)
	s.Require().Len(txs, 1)
	s.Equal(s.reference, txs[0].Reference)
}
