package models

import "encoding/json"

// CardProgram is the static issuing program the relay creates users and cards under
type CardProgram struct {
	CardProductToken  string             `yaml:"card_product_token"`
	FulfillmentReason string             `yaml:"fulfillment_reason"`
	DefaultUser       DefaultUserProgram `yaml:"default_user"`
	Address           ProgramAddress     `yaml:"address"`
}

// DefaultUserProgram is the template for issuer users created on first card request
type DefaultUserProgram struct {
	FirstName   string `yaml:"first_name"`
	LastName    string `yaml:"last_name"`
	EmailDomain string `yaml:"email_domain"`
}

type ProgramAddress struct {
	Address1   string `yaml:"address1"`
	City       string `yaml:"city"`
	State      string `yaml:"state"`
	PostalCode string `yaml:"postal_code"`
	Country    string `yaml:"country"`
}

// IssuerUserAddress is the address block of an issuer cardholder
type IssuerUserAddress struct {
	Address1    string `json:"address1"`
	City        string `json:"city"`
	State       string `json:"state"`
	PostalCode  string `json:"postal_code"`
	CountryCode string `json:"country_code"`
}

// IssuerUser is a cardholder on the issuer side; Token is the caller's user id
type IssuerUser struct {
	Token     string             `json:"token"`
	FirstName string             `json:"first_name,omitempty"`
	LastName  string             `json:"last_name,omitempty"`
	Email     string             `json:"email,omitempty"`
	Active    bool               `json:"active"`
	Address   *IssuerUserAddress `json:"address,omitempty"`
}

type RecipientAddress struct {
	Address1   string `json:"address1"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type Shipping struct {
	RecipientAddress RecipientAddress `json:"recipient_address"`
}

type Fulfillment struct {
	CardFulfillmentReason string   `json:"card_fulfillment_reason"`
	Shipping              Shipping `json:"shipping"`
}

// IssuerCardRequest is the issuer create-card payload
type IssuerCardRequest struct {
	UserToken        string      `json:"user_token"`
	CardProductToken string      `json:"card_product_token"`
	Fulfillment      Fulfillment `json:"fulfillment"`
}

// IssuerCard is the subset of the issuer card resource the relay reads
type IssuerCard struct {
	Token           string `json:"token"`
	UserToken       string `json:"user_token"`
	LastFour        string `json:"last_four"`
	ExpirationMonth string `json:"expiration_month"`
	ExpirationYear  string `json:"expiration_year"`
	CvvNumber       string `json:"cvv_number"`
	State           string `json:"state"`
}

// ExpiryDate renders the card expiry as MM/YYYY
func (c IssuerCard) ExpiryDate() string {
	return c.ExpirationMonth + "/" + c.ExpirationYear
}

// CreateCardRequest is the relay's create-card request body
type CreateCardRequest struct {
	UserId string `json:"userId" validate:"required"`
}

// IssuedCard is the relay's successful create-card response
type IssuedCard struct {
	Success    bool   `json:"success"`
	Token      string `json:"token"`
	LastFour   string `json:"last_four"`
	ExpiryDate string `json:"expiryDate"`
	Cvv        string `json:"cvv"`
}

// RelayError is the relay's failure envelope. Error carries either a message
// string or the raw upstream payload.
type RelayError struct {
	Success bool            `json:"success"`
	Error   json.RawMessage `json:"error"`
}

type PingResponse struct {
	Success bool            `json:"success"`
	Message json.RawMessage `json:"message"`
}
