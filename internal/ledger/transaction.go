package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind names the ledger effect a Transaction records.
type Kind string

const (
	KindDeposit  Kind = "deposit"
	KindWithdraw Kind = "withdraw"
	KindTransfer Kind = "transfer"
)

// Status is the outcome recorded on a Transaction.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Transaction is one completed effect on an Account. Accounts hand out copies, so a
// Transaction obtained from the ledger cannot alter the stored history.
type Transaction struct {
	ID        string          `json:"id"`
	Kind      Kind            `json:"kind"`
	Amount    decimal.Decimal `json:"amount"`
	Status    Status          `json:"status"`
	Detail    string          `json:"detail"`
	Timestamp time.Time       `json:"timestamp"`
}

func newTransaction(kind Kind, amount decimal.Decimal, status Status, detail string, at time.Time) Transaction {
	return Transaction{
		ID:        uuid.NewString(),
		Kind:      kind,
		Amount:    amount,
		Status:    status,
		Detail:    detail,
		Timestamp: at,
	}
}

func validKind(k Kind) bool {
	return k == KindDeposit || k == KindWithdraw || k == KindTransfer
}

func validStatus(s Status) bool {
	return s == StatusSuccess || s == StatusFailed
}
