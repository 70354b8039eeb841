package api

import (
	"errors"

	"vcard-wallet-go/internal/models"
	"vcard-wallet-go/internal/store"

	"github.com/go-playground/validator/v10"
)

const (
	MsgNotLoggedIn        = "No user logged in"
	MsgWalletSignIn       = "Please sign in to access your wallet"
	MsgWalletNotFound     = "Wallet not found"
	MsgInsufficient       = "Insufficient balance"
	MsgCardCancelled      = "Card is cancelled"
	MsgFetchCards         = "Failed to fetch cards"
	MsgInvalidCardData    = "Invalid card data received from backend"
	MsgInvalidCredentials = "Invalid login credentials"
)

var userMessages = []struct {
	err error
	msg string
}{
	{store.ErrNotLoggedIn, MsgNotLoggedIn},
	{store.ErrInvalidCredentials, MsgInvalidCredentials},
	{store.ErrCardCancelled, MsgCardCancelled},
	{store.ErrInvalidCardTransition, "Card cannot be changed to that status"},
	{store.ErrCardNotFound, "Card not found"},
	{store.ErrProfileNotFound, "Profile not found"},
	{store.ErrWalletNotFound, MsgWalletNotFound},
	{store.ErrInsufficientBalance, MsgInsufficient},
	{store.ErrInvalidAmount, "Amount must be greater than zero"},
}

// InputError is a rejected input. It never reaches a backend.
type InputError struct {
	Message string
}

func (e *InputError) Error() string { return e.Message }

// describe turns err into the message shown to the user.
func describe(err error, fallback string) string {
	var input *InputError
	if errors.As(err, &input) {
		return input.Message
	}
	for _, m := range userMessages {
		if errors.Is(err, m.err) {
			return m.msg
		}
	}
	var upstream interface{ Message() string }
	if errors.As(err, &upstream) && upstream.Message() != "" {
		return fallback + ": " + upstream.Message()
	}
	return fallback
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("tron", func(fl validator.FieldLevel) bool {
		return models.ValidTronAddress(fl.Field().String())
	})
	return v
}

type credentials struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6"`
}

type withdrawalInput struct {
	ToAddress string `validate:"required,tron"`
}

var fieldNames = map[string]string{
	"Email":     "email",
	"Password":  "password",
	"ToAddress": "destination address",
}

// validateInput returns an *InputError describing the first failed field.
func validateInput(obj any) error {
	err := validate.Struct(obj)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &InputError{Message: err.Error()}
	}
	fe := fieldErrs[0]
	field, ok := fieldNames[fe.Field()]
	if !ok {
		field = fe.Field()
	}
	switch fe.Tag() {
	case "required":
		return &InputError{Message: "A " + field + " is required"}
	case "email":
		return &InputError{Message: "Invalid email address"}
	case "min":
		return &InputError{Message: "Password should be at least " + fe.Param() + " characters"}
	case "tron":
		return &InputError{Message: "Invalid TRON address"}
	}
	return &InputError{Message: "Invalid " + field}
}
