package dto

// RegisterRequest creates a customer and, when AccountType is set, opens their first account.
type RegisterRequest struct {
	Username    string `json:"username" validate:"required,min=3"`
	Password    string `json:"password" validate:"required,min=4"`
	Name        string `json:"name"`
	Address     string `json:"address"`
	DOB         string `json:"dob"`
	Phone       string `json:"phone"`
	Email       string `json:"email" validate:"omitempty,email"`
	AccountType string `json:"account_type" validate:"omitempty,oneof=savings current"`
	Pin         string `json:"pin" validate:"omitempty,len=4,numeric"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token string `json:"token"`
	Role  string `json:"role"`
}

type RegisterResponse struct {
	Customer CustomerView `json:"customer"`
	Token    string       `json:"token"`
}
