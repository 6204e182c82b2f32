package layout

import (
	"net/url"
	"strings"

	"github.com/rezonia/nfse-renderer/internal/format"
	"github.com/rezonia/nfse-renderer/internal/model"
)

// DefaultVerifyURL is the São Paulo print and verification page
const DefaultVerifyURL = "https://nfe.prefeitura.sp.gov.br/contribuinte/notaprint.aspx"

// QRPayload returns the text to encode in the verification QR code.
// A verification URL is preferred when the registration id, number and
// verification code are all known; otherwise the decoded signature is used.
// ok is false when neither is available.
func QRPayload(rec model.Record, baseURL string) (payload string, ok bool) {
	registration := rec.RegistrationID
	if registration == "" {
		registration = rec.RPS.RegistrationID
	}

	if registration != "" && rec.Number != "" && rec.VerificationCode != "" {
		if baseURL == "" {
			baseURL = DefaultVerifyURL
		}
		q := url.Values{}
		q.Set("inscricao", registration)
		q.Set("nf", rec.Number)
		q.Set("verificacao", rec.VerificationCode)

		sep := "?"
		if strings.Contains(baseURL, "?") {
			sep = "&"
		}
		return baseURL + sep + q.Encode(), true
	}

	sig := strings.TrimSpace(rec.Signature)
	if sig == "" || sig == format.NotInformed {
		return "", false
	}
	if decoded := strings.TrimSpace(format.DecodeBase64Text(sig)); decoded != "" {
		return decoded, true
	}
	return sig, true
}
