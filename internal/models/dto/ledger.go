package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

type OpenAccountRequest struct {
	AccountType string `json:"account_type" validate:"required,oneof=savings current"`
	Pin         string `json:"pin" validate:"required,len=4,numeric"`
}

// MoneyRequest is the body of deposit and withdraw calls. Amount accepts a JSON number or
// a decimal string.
type MoneyRequest struct {
	Pin    string          `json:"pin" validate:"required"`
	Amount decimal.Decimal `json:"amount"`
}

type TransferRequest struct {
	Pin            string          `json:"pin" validate:"required"`
	Amount         decimal.Decimal `json:"amount"`
	TargetUsername string          `json:"target_username" validate:"required"`
	TargetAccount  string          `json:"target_account" validate:"required"`
}

type ChangePinRequest struct {
	OldPin string `json:"old_pin" validate:"required"`
	NewPin string `json:"new_pin" validate:"required"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=4"`
}

type ProfileRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	DOB     string `json:"dob"`
	Phone   string `json:"phone"`
	Email   string `json:"email" validate:"omitempty,email"`
}

type BalanceResponse struct {
	Account string          `json:"account"`
	Balance decimal.Decimal `json:"balance"`
}

type TransactionView struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"`
	Detail    string          `json:"detail"`
	Timestamp time.Time       `json:"timestamp"`
}

type AccountView struct {
	Number   string          `json:"number"`
	Type     string          `json:"type"`
	Balance  decimal.Decimal `json:"balance"`
	Active   bool            `json:"active"`
	Frozen   bool            `json:"frozen"`
	State    string          `json:"state"`
	OpenedAt time.Time       `json:"opened_at"`
}

type CustomerView struct {
	Username string        `json:"username"`
	Name     string        `json:"name"`
	Address  string        `json:"address"`
	DOB      string        `json:"dob"`
	Phone    string        `json:"phone"`
	Email    string        `json:"email"`
	Accounts []AccountView `json:"accounts"`
}
