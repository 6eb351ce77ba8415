package ledger

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/hongminglow/console-bank/internal/storage"
)

// DefaultSnapshotKey is the gateway key the directory is stored under.
const DefaultSnapshotKey = "bankCustomers"

const (
	accountNumberDigits   = 10
	accountNumberAttempts = 32
)

// Directory is the registry of customers and staff and the only component that talks to the
// persistence gateway. It is not safe for concurrent use; callers serialize access.
type Directory struct {
	customers map[string]*Customer
	order     []string
	staff     []StaffCredential

	gateway  storage.Gateway
	key      string
	verifier CredentialVerifier
	numbers  func() (string, error)
	now      func() time.Time
	log      zerolog.Logger

	// saved is the last snapshot known to be durable; nil means nothing stored yet.
	saved []byte
}

// Option configures a Directory.
type Option func(*Directory)

// WithStaff sets the fixed staff list. Passwords are given in clear and sealed with the
// directory's verifier.
func WithStaff(staff ...StaffCredential) Option {
	return func(d *Directory) { d.staff = append([]StaffCredential(nil), staff...) }
}

func WithVerifier(v CredentialVerifier) Option {
	return func(d *Directory) { d.verifier = v }
}

func WithClock(now func() time.Time) Option {
	return func(d *Directory) { d.now = now }
}

// WithNumberSource replaces the random account number generator.
func WithNumberSource(next func() (string, error)) Option {
	return func(d *Directory) { d.numbers = next }
}

func WithLogger(log zerolog.Logger) Option {
	return func(d *Directory) { d.log = log }
}

func WithSnapshotKey(key string) Option {
	return func(d *Directory) { d.key = key }
}

// NewDirectory returns an empty directory backed by gateway. Call Hydrate to load state.
func NewDirectory(gateway storage.Gateway, opts ...Option) *Directory {
	d := &Directory{
		customers: make(map[string]*Customer),
		gateway:   gateway,
		key:       DefaultSnapshotKey,
		verifier:  PlainVerifier{},
		numbers:   randomAccountNumber,
		now:       func() time.Time { return time.Now().UTC().Round(0) },
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.sealStaff()
	return d
}

func (d *Directory) sealStaff() {
	sealed := make([]StaffCredential, 0, len(d.staff))
	for _, s := range d.staff {
		password, err := d.verifier.Seal(s.Password)
		if err != nil {
			d.log.Error().Err(err).Str("staff", s.Username).Msg("seal staff credential; entry dropped")
			continue
		}
		sealed = append(sealed, StaffCredential{Username: s.Username, Password: password})
	}
	d.staff = sealed
}

// RegisterCustomer creates and persists a new customer.
func (d *Directory) RegisterCustomer(ctx context.Context, username, password string, profile Profile) (*Customer, error) {
	c, _, err := d.register(ctx, username, password, profile, nil)
	return c, err
}

// FirstAccount describes an account opened together with a new customer.
type FirstAccount struct {
	Type AccountType
	Pin  string
}

// RegisterCustomerWithAccount creates a customer and their first account and persists both
// in a single write. Nothing is stored unless every check passes and the write succeeds.
func (d *Directory) RegisterCustomerWithAccount(ctx context.Context, username, password string, profile Profile, first FirstAccount) (*Customer, *Account, error) {
	return d.register(ctx, username, password, profile, &first)
}

func (d *Directory) register(ctx context.Context, username, password string, profile Profile, first *FirstAccount) (*Customer, *Account, error) {
	if !IsValidUsername(username) {
		return nil, nil, ErrInvalidUsername
	}
	if !IsValidPassword(password) {
		return nil, nil, ErrInvalidPassword
	}
	if _, ok := d.customers[username]; ok {
		return nil, nil, ErrUsernameTaken
	}
	sealed, err := d.verifier.Seal(password)
	if err != nil {
		return nil, nil, err
	}
	c := newCustomer(username, sealed, profile, d.verifier)

	var acc *Account
	if first != nil {
		if acc, err = d.prepareAccount(first.Type, first.Pin); err != nil {
			return nil, nil, err
		}
		c.AddAccount(acc)
	}

	d.customers[username] = c
	d.order = append(d.order, username)
	if err := d.Persist(ctx); err != nil {
		return nil, nil, err
	}
	return c, acc, nil
}

func (d *Directory) FindCustomer(username string) (*Customer, error) {
	c, ok := d.customers[username]
	if !ok {
		return nil, ErrCustomerNotFound
	}
	return c, nil
}

// AuthenticateCustomer does not distinguish an unknown username from a wrong password.
func (d *Directory) AuthenticateCustomer(username, password string) (*Customer, error) {
	c, ok := d.customers[username]
	if !ok || !c.VerifyPassword(password) {
		return nil, ErrAuthFailed
	}
	return c, nil
}

func (d *Directory) AuthenticateStaff(username, password string) error {
	for _, s := range d.staff {
		if s.Username == username && d.verifier.Verify(s.Password, password) {
			return nil
		}
	}
	return ErrAuthFailed
}

// ListCustomers returns usernames in registration order.
func (d *Directory) ListCustomers() []string {
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

func (d *Directory) CustomerCount() int {
	return len(d.customers)
}

// GenerateAccountNumber returns a numeric string no account in the directory uses.
func (d *Directory) GenerateAccountNumber() (string, error) {
	for i := 0; i < accountNumberAttempts; i++ {
		n, err := d.numbers()
		if err != nil {
			return "", fmt.Errorf("generate account number: %w", err)
		}
		if !d.accountExists(n) {
			return n, nil
		}
	}
	return "", fmt.Errorf("generate account number: no free number after %d attempts", accountNumberAttempts)
}

// OpenAccount opens a new account for username and persists it.
func (d *Directory) OpenAccount(ctx context.Context, username string, accountType AccountType, pin string) (*Account, error) {
	c, err := d.FindCustomer(username)
	if err != nil {
		return nil, err
	}
	acc, err := d.prepareAccount(accountType, pin)
	if err != nil {
		return nil, err
	}
	c.AddAccount(acc)
	if err := d.Persist(ctx); err != nil {
		return nil, err
	}
	return d.ownedAccount(username, acc.Number())
}

// prepareAccount validates the request and builds an account with a free number. The
// account is not attached to any customer.
func (d *Directory) prepareAccount(accountType AccountType, pin string) (*Account, error) {
	if !IsValidAccountType(accountType) {
		return nil, ErrInvalidAccountType
	}
	if !IsValidPin(pin) {
		return nil, ErrInvalidPin
	}
	number, err := d.GenerateAccountNumber()
	if err != nil {
		return nil, err
	}
	sealed, err := d.verifier.Seal(pin)
	if err != nil {
		return nil, err
	}
	return newAccount(number, accountType, sealed, d.verifier, d.now), nil
}

// Deposit checks the PIN, credits the account and persists.
func (d *Directory) Deposit(ctx context.Context, username, number, pin string, amount decimal.Decimal) (decimal.Decimal, error) {
	acc, err := d.authorizedAccount(username, number, pin)
	if err != nil {
		return decimal.Zero, err
	}
	balance, err := acc.Deposit(amount)
	if err != nil {
		return balance, err
	}
	if err := d.Persist(ctx); err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

// Withdraw checks the PIN, debits the account and persists.
func (d *Directory) Withdraw(ctx context.Context, username, number, pin string, amount decimal.Decimal) (decimal.Decimal, error) {
	acc, err := d.authorizedAccount(username, number, pin)
	if err != nil {
		return decimal.Zero, err
	}
	balance, err := acc.Withdraw(amount)
	if err != nil {
		return balance, err
	}
	if err := d.Persist(ctx); err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

// Transfer moves amount from one of username's accounts to the account targetNumber owned by
// targetUsername. The source PIN gates the operation.
func (d *Directory) Transfer(ctx context.Context, username, number, pin, targetUsername, targetNumber string, amount decimal.Decimal) error {
	src, err := d.authorizedAccount(username, number, pin)
	if err != nil {
		return err
	}
	dst, err := d.ownedAccount(targetUsername, targetNumber)
	if err != nil {
		return err
	}
	if err := src.Transfer(amount, dst); err != nil {
		return err
	}
	return d.Persist(ctx)
}

// ChangePin replaces the PIN after verifying the current one.
func (d *Directory) ChangePin(ctx context.Context, username, number, oldPin, newPin string) error {
	acc, err := d.authorizedAccount(username, number, oldPin)
	if err != nil {
		return err
	}
	if err := acc.SetPin(newPin); err != nil {
		return err
	}
	return d.Persist(ctx)
}

func (d *Directory) CloseAccount(ctx context.Context, username, number string) error {
	return d.mutateCustomer(ctx, username, func(c *Customer) error { return c.CloseAccount(number) })
}

func (d *Directory) ReactivateAccount(ctx context.Context, username, number string) error {
	return d.mutateCustomer(ctx, username, func(c *Customer) error { return c.ReactivateAccount(number) })
}

func (d *Directory) FreezeAccount(ctx context.Context, username, number string) error {
	return d.mutateCustomer(ctx, username, func(c *Customer) error { return c.FreezeAccount(number) })
}

func (d *Directory) UnfreezeAccount(ctx context.Context, username, number string) error {
	return d.mutateCustomer(ctx, username, func(c *Customer) error { return c.UnfreezeAccount(number) })
}

func (d *Directory) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	return d.mutateCustomer(ctx, username, func(c *Customer) error {
		return c.ChangePassword(oldPassword, newPassword)
	})
}

func (d *Directory) UpdateProfile(ctx context.Context, username string, update Profile) error {
	return d.mutateCustomer(ctx, username, func(c *Customer) error {
		c.UpdateProfile(update)
		return nil
	})
}

// Persist writes the whole directory to the gateway. If the write fails the in-memory state
// is rolled back to the last durable snapshot, so memory never runs ahead of storage.
func (d *Directory) Persist(ctx context.Context) error {
	blob, err := encodeCustomers(d.orderedCustomers(), d.now())
	if err != nil {
		return err
	}
	if err := d.gateway.Set(ctx, d.key, blob); err != nil {
		d.log.Error().Err(err).Str("key", d.key).Msg("persist directory; rolling back to last snapshot")
		if rerr := d.restore(d.saved); rerr != nil {
			d.log.Error().Err(rerr).Msg("roll back directory")
		}
		return fmt.Errorf("persist directory: %w", err)
	}
	d.saved = blob
	d.log.Debug().Str("key", d.key).Int("customers", len(d.order)).Int("bytes", len(blob)).Msg("directory persisted")
	return nil
}

// Hydrate replaces the in-memory state with the snapshot stored in the gateway. A missing
// snapshot leaves the directory empty.
func (d *Directory) Hydrate(ctx context.Context) error {
	blob, err := d.gateway.Get(ctx, d.key)
	if errors.Is(err, storage.ErrNotFound) {
		d.log.Info().Str("key", d.key).Msg("no snapshot found; starting with an empty directory")
		return d.restore(nil)
	}
	if err != nil {
		return fmt.Errorf("load directory: %w", err)
	}
	if err := d.restore(blob); err != nil {
		return err
	}
	d.log.Info().Str("key", d.key).Int("customers", len(d.order)).Msg("directory hydrated")
	return nil
}

func (d *Directory) restore(blob []byte) error {
	customers := []*Customer{}
	if blob != nil {
		decoded, err := decodeCustomers(blob, d.verifier, d.now)
		if err != nil {
			return err
		}
		customers = decoded
	}
	d.customers = make(map[string]*Customer, len(customers))
	d.order = make([]string, 0, len(customers))
	for _, c := range customers {
		d.customers[c.username] = c
		d.order = append(d.order, c.username)
	}
	d.saved = blob
	return nil
}

func (d *Directory) orderedCustomers() []*Customer {
	out := make([]*Customer, 0, len(d.order))
	for _, username := range d.order {
		out = append(out, d.customers[username])
	}
	return out
}

func (d *Directory) mutateCustomer(ctx context.Context, username string, fn func(*Customer) error) error {
	c, err := d.FindCustomer(username)
	if err != nil {
		return err
	}
	if err := fn(c); err != nil {
		return err
	}
	return d.Persist(ctx)
}

func (d *Directory) ownedAccount(username, number string) (*Account, error) {
	c, err := d.FindCustomer(username)
	if err != nil {
		return nil, err
	}
	return c.GetAccount(number)
}

func (d *Directory) authorizedAccount(username, number, pin string) (*Account, error) {
	acc, err := d.ownedAccount(username, number)
	if err != nil {
		return nil, err
	}
	if !acc.CheckPin(pin) {
		return nil, ErrPinMismatch
	}
	return acc, nil
}

func (d *Directory) accountExists(number string) bool {
	for _, c := range d.customers {
		if _, ok := c.index[number]; ok {
			return true
		}
	}
	return false
}

func randomAccountNumber() (string, error) {
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(accountNumberDigits), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", accountNumberDigits, n), nil
}
