package server

import "github.com/rezonia/nfse-renderer/internal/app"

// GenerateRequest is the JSON body of the generate endpoint. A raw XML
// body is accepted too, with mode and zipName as query parameters.
type GenerateRequest struct {
	XML     string `json:"xml"`
	Mode    string `json:"mode,omitempty"`
	ZipName string `json:"zipName,omitempty"`
}

// ValidationResponse is the response for validate endpoint
type ValidationResponse struct {
	Valid   bool            `json:"valid"`
	Records []RecordSummary `json:"records,omitempty"`
	Errors  []string        `json:"errors,omitempty"`
}

// RecordSummary describes one parsed invoice
type RecordSummary struct {
	Index            int    `json:"index"`
	Schema           string `json:"schema"`
	Number           string `json:"number,omitempty"`
	RPS              string `json:"rps,omitempty"`
	VerificationCode string `json:"verification_code,omitempty"`
	IssuedAt         string `json:"issued_at,omitempty"`
	Provider         string `json:"provider,omitempty"`
	Customer         string `json:"customer,omitempty"`
	MunicipalityCode string `json:"municipality_code,omitempty"`
	Cancelled        bool   `json:"cancelled"`
	HasQR            bool   `json:"has_qr"`
	Filename         string `json:"filename"`
}

// HealthResponse is the response for health endpoint
type HealthResponse struct {
	Status string     `json:"status"`
	Time   string     `json:"time"`
	Cache  app.Status `json:"cache"`
}

// ErrorResponse is the standard error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
