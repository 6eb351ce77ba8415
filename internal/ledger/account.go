package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType is the product an Account was opened as.
type AccountType string

const (
	Savings AccountType = "savings"
	Current AccountType = "current"
)

// Account holds a balance and its append-only history. Balance and history only change
// through the money operations below; every successful one appends exactly one Transaction.
type Account struct {
	number       string
	accountType  AccountType
	pin          string
	balance      decimal.Decimal
	transactions []Transaction
	active       bool
	frozen       bool
	openedAt     time.Time

	verifier CredentialVerifier
	now      func() time.Time
}

func newAccount(number string, accountType AccountType, sealedPin string, verifier CredentialVerifier, now func() time.Time) *Account {
	return &Account{
		number:      number,
		accountType: accountType,
		pin:         sealedPin,
		balance:     decimal.Zero,
		active:      true,
		openedAt:    now(),
		verifier:    verifier,
		now:         now,
	}
}

func (a *Account) Number() string           { return a.number }
func (a *Account) Type() AccountType        { return a.accountType }
func (a *Account) Balance() decimal.Decimal { return a.balance }
func (a *Account) Active() bool             { return a.active }
func (a *Account) Frozen() bool             { return a.frozen }
func (a *Account) OpenedAt() time.Time      { return a.openedAt }

// Transactions returns the history in the order the operations completed.
func (a *Account) Transactions() []Transaction {
	out := make([]Transaction, len(a.transactions))
	copy(out, a.transactions)
	return out
}

// Deposit credits amount and returns the new balance.
func (a *Account) Deposit(amount decimal.Decimal) (decimal.Decimal, error) {
	if err := a.credit(amount); err != nil {
		return a.balance, err
	}
	a.record(KindDeposit, amount, "Deposit")
	return a.balance, nil
}

// Withdraw debits amount and returns the new balance.
func (a *Account) Withdraw(amount decimal.Decimal) (decimal.Decimal, error) {
	if err := a.debit(amount); err != nil {
		return a.balance, err
	}
	a.record(KindWithdraw, amount, "Withdraw")
	return a.balance, nil
}

// Transfer moves amount to target. It is all-or-nothing: when target refuses the credit the
// debit is reverted and neither account records anything. On success the source records a
// transfer and the target records a deposit.
func (a *Account) Transfer(amount decimal.Decimal, target *Account) error {
	if err := a.usable(); err != nil {
		return err
	}
	if target == nil {
		return ErrAccountNotFound
	}
	if target == a || target.number == a.number {
		return ErrSameAccount
	}
	if err := a.debit(amount); err != nil {
		return err
	}
	if err := target.credit(amount); err != nil {
		a.balance = a.balance.Add(amount)
		return err
	}
	a.record(KindTransfer, amount, "To: "+target.number)
	target.record(KindDeposit, amount, "From: "+a.number)
	return nil
}

// CheckPin compares pin with the stored PIN. It has no side effects.
func (a *Account) CheckPin(pin string) bool {
	return a.verifier.Verify(a.pin, pin)
}

// SetPin replaces the PIN. The caller is responsible for having checked the old one.
func (a *Account) SetPin(pin string) error {
	if !IsValidPin(pin) {
		return ErrInvalidPin
	}
	sealed, err := a.verifier.Seal(pin)
	if err != nil {
		return err
	}
	a.pin = sealed
	return nil
}

func (a *Account) Close()      { a.active = false }
func (a *Account) Reactivate() { a.active = true }
func (a *Account) Freeze()     { a.frozen = true }
func (a *Account) Unfreeze()   { a.frozen = false }

// State names the lifecycle quadrant, e.g. "active-unfrozen".
func (a *Account) State() string {
	s := "active"
	if !a.active {
		s = "closed"
	}
	if a.frozen {
		return s + "-frozen"
	}
	return s + "-unfrozen"
}

func (a *Account) usable() error {
	if !a.active {
		return ErrAccountClosed
	}
	if a.frozen {
		return ErrAccountFrozen
	}
	return nil
}

func (a *Account) credit(amount decimal.Decimal) error {
	if err := a.usable(); err != nil {
		return err
	}
	if !IsValidAmount(amount) {
		return ErrInvalidAmount
	}
	a.balance = a.balance.Add(amount)
	return nil
}

func (a *Account) debit(amount decimal.Decimal) error {
	if err := a.usable(); err != nil {
		return err
	}
	if !IsValidAmount(amount) {
		return ErrInvalidAmount
	}
	if amount.GreaterThan(a.balance) {
		return ErrInsufficientFunds
	}
	a.balance = a.balance.Sub(amount)
	return nil
}

func (a *Account) record(kind Kind, amount decimal.Decimal, detail string) {
	a.transactions = append(a.transactions, newTransaction(kind, amount, StatusSuccess, detail, a.now()))
}
