package ledger

// Profile holds the customer's descriptive fields.
type Profile struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	DOB     string `json:"dob"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
}

// merge returns p with every non-empty field of update applied.
func (p Profile) merge(update Profile) Profile {
	if update.Name != "" {
		p.Name = update.Name
	}
	if update.Address != "" {
		p.Address = update.Address
	}
	if update.DOB != "" {
		p.DOB = update.DOB
	}
	if update.Phone != "" {
		p.Phone = update.Phone
	}
	if update.Email != "" {
		p.Email = update.Email
	}
	return p
}

// Customer owns its accounts exclusively, keyed by account number.
type Customer struct {
	username string
	password string
	profile  Profile
	accounts []*Account
	index    map[string]*Account

	verifier CredentialVerifier
}

func newCustomer(username, sealedPassword string, profile Profile, verifier CredentialVerifier) *Customer {
	return &Customer{
		username: username,
		password: sealedPassword,
		profile:  profile,
		index:    make(map[string]*Account),
		verifier: verifier,
	}
}

func (c *Customer) Username() string { return c.username }
func (c *Customer) Profile() Profile { return c.profile }

// Accounts returns the owned accounts in the order they were opened.
func (c *Customer) Accounts() []*Account {
	out := make([]*Account, len(c.accounts))
	copy(out, c.accounts)
	return out
}

// AddAccount takes ownership of account. Global uniqueness of the number is the
// directory's job; a number already owned by this customer is ignored.
func (c *Customer) AddAccount(account *Account) {
	if _, ok := c.index[account.number]; ok {
		return
	}
	c.accounts = append(c.accounts, account)
	c.index[account.number] = account
}

func (c *Customer) GetAccount(number string) (*Account, error) {
	acc, ok := c.index[number]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return acc, nil
}

func (c *Customer) VerifyPassword(candidate string) bool {
	return c.verifier.Verify(c.password, candidate)
}

// ChangePassword requires the current password before replacing it.
func (c *Customer) ChangePassword(oldPassword, newPassword string) error {
	if !c.VerifyPassword(oldPassword) {
		return ErrAuthFailed
	}
	if !IsValidPassword(newPassword) {
		return ErrInvalidPassword
	}
	sealed, err := c.verifier.Seal(newPassword)
	if err != nil {
		return err
	}
	c.password = sealed
	return nil
}

// UpdateProfile applies the non-empty fields of update.
func (c *Customer) UpdateProfile(update Profile) {
	c.profile = c.profile.merge(update)
}

func (c *Customer) CloseAccount(number string) error {
	return c.withAccount(number, (*Account).Close)
}

func (c *Customer) ReactivateAccount(number string) error {
	return c.withAccount(number, (*Account).Reactivate)
}

func (c *Customer) FreezeAccount(number string) error {
	return c.withAccount(number, (*Account).Freeze)
}

func (c *Customer) UnfreezeAccount(number string) error {
	return c.withAccount(number, (*Account).Unfreeze)
}

func (c *Customer) withAccount(number string, fn func(*Account)) error {
	acc, err := c.GetAccount(number)
	if err != nil {
		return err
	}
	fn(acc)
	return nil
}
