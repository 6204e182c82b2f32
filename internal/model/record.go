package model

// Schema identifies the XML layout a record was read from
type Schema string

const (
	SchemaSP     Schema = "sp"
	SchemaABRASF Schema = "abrasf"
)

// StatusCancelled is the status code of a cancelled invoice
const StatusCancelled = "C"

// Record is one fiscal service invoice as read from XML.
// Every field holds the trimmed source text, or "" when the element was absent.
type Record struct {
	Schema Schema

	Number           string
	VerificationCode string
	RegistrationID   string // municipal registration of the issuer
	IssuedAt         string
	BatchNumber      string

	RPS RPS

	Status       string
	Taxation     string
	SimpleOption string

	Provider Party
	Customer Party
	Service  Service
	Amounts  Amounts

	Signature string

	// MunicipalityCode selects the municipality name and logo
	MunicipalityCode string
}

// RPS is the provisional receipt the invoice was converted from
type RPS struct {
	Number         string
	Series         string
	Type           string
	IssuedAt       string
	RegistrationID string
}

// Party is the issuer or recipient of an invoice
type Party struct {
	Name                  string
	TaxID                 string
	MunicipalRegistration string
	Email                 string
	Address               Address
}

// Address is a postal address
type Address struct {
	StreetType       string
	Street           string
	Number           string
	Complement       string
	District         string
	MunicipalityCode string
	State            string
	PostalCode       string
}

// Service describes the rendered service
type Service struct {
	Description      string
	Code             string
	MunicipalityCode string // where the service was provided
	WorkRegistration string
}

// Amounts holds the monetary fields as source text
type Amounts struct {
	Services      string
	Deductions    string
	TaxBase       string
	Rate          string
	ISS           string
	ISSWithheld   string
	Credit        string
	Net           string
	TotalReceived string
	INSS          string
	IRRF          string
	CSLL          string
	COFINS        string
	PIS           string
	ApproxTaxes   string
}

// Cancelled reports whether the invoice was cancelled
func (r *Record) Cancelled() bool {
	return r.Status == StatusCancelled
}

// Received returns the total received, falling back to the service value
func (a Amounts) Received() string {
	if a.TotalReceived != "" {
		return a.TotalReceived
	}
	return a.Services
}
