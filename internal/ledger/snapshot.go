package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	snapshotStorage = "ledger_snapshot"
	snapshotVersion = 1
)

type snapshotMeta struct {
	Storage   string    `json:"storage"`
	Version   int       `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

type snapshot struct {
	Meta      snapshotMeta       `json:"_meta"`
	Customers []customerSnapshot `json:"customers"`
}

type customerSnapshot struct {
	Username string            `json:"username"`
	Password string            `json:"password"`
	Name     string            `json:"name"`
	Address  string            `json:"address"`
	DOB      string            `json:"dob"`
	Phone    string            `json:"phone"`
	Email    string            `json:"email"`
	Accounts []accountSnapshot `json:"accounts"`
}

type accountSnapshot struct {
	Number       string          `json:"number"`
	Type         AccountType     `json:"type"`
	Pin          string          `json:"pin"`
	Balance      decimal.Decimal `json:"balance"`
	Active       bool            `json:"active"`
	Frozen       bool            `json:"frozen"`
	OpenedAt     time.Time       `json:"opened_at"`
	Transactions []Transaction   `json:"transactions"`
}

// encodeCustomers serializes customers, in the given order, to the snapshot format.
func encodeCustomers(customers []*Customer, at time.Time) ([]byte, error) {
	snap := snapshot{
		Meta:      snapshotMeta{Storage: snapshotStorage, Version: snapshotVersion, Timestamp: at},
		Customers: make([]customerSnapshot, 0, len(customers)),
	}
	for _, c := range customers {
		cs := customerSnapshot{
			Username: c.username,
			Password: c.password,
			Name:     c.profile.Name,
			Address:  c.profile.Address,
			DOB:      c.profile.DOB,
			Phone:    c.profile.Phone,
			Email:    c.profile.Email,
			Accounts: make([]accountSnapshot, 0, len(c.accounts)),
		}
		for _, a := range c.accounts {
			txs := a.transactions
			if txs == nil {
				txs = []Transaction{}
			}
			cs.Accounts = append(cs.Accounts, accountSnapshot{
				Number:       a.number,
				Type:         a.accountType,
				Pin:          a.pin,
				Balance:      a.balance,
				Active:       a.active,
				Frozen:       a.frozen,
				OpenedAt:     a.openedAt,
				Transactions: txs,
			})
		}
		snap.Customers = append(snap.Customers, cs)
	}
	blob, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return blob, nil
}

// decodeCustomers rebuilds customers from blob and checks every invariant the ledger relies
// on. Any violation is reported as ErrCorruptSnapshot.
func decodeCustomers(blob []byte, verifier CredentialVerifier, now func() time.Time) ([]*Customer, error) {
	var snap snapshot
	if err := json.Unmarshal(blob, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if snap.Meta.Version > snapshotVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptSnapshot, snap.Meta.Version)
	}

	usernames := make(map[string]struct{}, len(snap.Customers))
	numbers := make(map[string]struct{})
	customers := make([]*Customer, 0, len(snap.Customers))
	for _, cs := range snap.Customers {
		if cs.Username == "" {
			return nil, fmt.Errorf("%w: customer without username", ErrCorruptSnapshot)
		}
		if _, dup := usernames[cs.Username]; dup {
			return nil, fmt.Errorf("%w: duplicate username %q", ErrCorruptSnapshot, cs.Username)
		}
		usernames[cs.Username] = struct{}{}

		c := newCustomer(cs.Username, cs.Password, Profile{
			Name:    cs.Name,
			Address: cs.Address,
			DOB:     cs.DOB,
			Phone:   cs.Phone,
			Email:   cs.Email,
		}, verifier)

		for _, as := range cs.Accounts {
			if err := checkAccountSnapshot(as); err != nil {
				return nil, fmt.Errorf("%w: account %q: %v", ErrCorruptSnapshot, as.Number, err)
			}
			if _, dup := numbers[as.Number]; dup {
				return nil, fmt.Errorf("%w: duplicate account number %q", ErrCorruptSnapshot, as.Number)
			}
			numbers[as.Number] = struct{}{}

			c.AddAccount(&Account{
				number:       as.Number,
				accountType:  as.Type,
				pin:          as.Pin,
				balance:      as.Balance,
				transactions: as.Transactions,
				active:       as.Active,
				frozen:       as.Frozen,
				openedAt:     as.OpenedAt,
				verifier:     verifier,
				now:          now,
			})
		}
		customers = append(customers, c)
	}
	return customers, nil
}

func checkAccountSnapshot(as accountSnapshot) error {
	if as.Number == "" {
		return errors.New("missing number")
	}
	if !IsValidAccountType(as.Type) {
		return fmt.Errorf("unknown type %q", as.Type)
	}
	if as.Balance.IsNegative() {
		return fmt.Errorf("negative balance %s", as.Balance)
	}
	for i, tx := range as.Transactions {
		if !validKind(tx.Kind) {
			return fmt.Errorf("transaction %d: unknown kind %q", i, tx.Kind)
		}
		if !validStatus(tx.Status) {
			return fmt.Errorf("transaction %d: unknown status %q", i, tx.Status)
		}
		if !IsValidAmount(tx.Amount) {
			return fmt.Errorf("transaction %d: non-positive amount %s", i, tx.Amount)
		}
	}
	return nil
}
