package payment

import (
	"math"
	"strings"
)

// Amounts cross the package boundary in major units and currencies in
// uppercase ISO 4217. ToMinor and FromMinor are the only places that convert
// between major and minor units.

var zeroDecimalCurrencies = map[string]bool{
	"BIF": true, "CLP": true, "DJF": true, "GNF": true, "JPY": true,
	"KMF": true, "KRW": true, "MGA": true, "PYG": true, "RWF": true,
	"UGX": true, "VND": true, "VUV": true, "XAF": true, "XOF": true,
	"XPF": true,
}

var threeDecimalCurrencies = map[string]bool{
	"BHD": true, "JOD": true, "KWD": true, "OMR": true, "TND": true,
}

// NormalizeCurrency returns the uppercase ISO code.
func NormalizeCurrency(currency string) string {
	return strings.ToUpper(strings.TrimSpace(currency))
}

func minorExponent(currency string) int {
	c := NormalizeCurrency(currency)
	switch {
	case zeroDecimalCurrencies[c]:
		return 0
	case threeDecimalCurrencies[c]:
		return 3
	default:
		return 2
	}
}

// ToMinor converts a major-unit amount into the currency's minor unit.
func ToMinor(amount float64, currency string) int64 {
	return int64(math.Round(amount * math.Pow10(minorExponent(currency))))
}

// FromMinor converts a minor-unit amount into the major unit.
func FromMinor(minor int64, currency string) float64 {
	return float64(minor) / math.Pow10(minorExponent(currency))
}

// Pending builds the result returned while a payment awaits the provider.
func Pending(params Params) *Result {
	return &Result{
		Success:  true,
		Amount:   params.Amount,
		Currency: NormalizeCurrency(params.Currency),
		Status:   StatusPending,
		Metadata: params.Metadata,
	}
}

// Failed builds a failed result. The error message is never empty.
func Failed(transactionID string, amount float64, currency string, err error) *Result {
	return &Result{
		Success:       false,
		TransactionID: transactionID,
		Amount:        amount,
		Currency:      NormalizeCurrency(currency),
		Status:        StatusFailed,
		Error:         ErrorMessage(err),
	}
}

// FailedParams is Failed for a CreatePayment call.
func FailedParams(params Params, err error) *Result {
	r := Failed("", params.Amount, params.Currency, err)
	r.Metadata = params.Metadata
	return r
}

// Unsuccessful marks a provider-reported, non-successful status. The result
// keeps the provider status but still carries an error message.
func Unsuccessful(r *Result) *Result {
	if r.Success || r.Error != "" {
		return r
	}
	r.Error = "payment status: " + r.Status
	return r
}

// ErrorMessage returns a non-empty human readable message for err.
func ErrorMessage(err error) string {
	if err == nil || err.Error() == "" {
		return "unknown error"
	}
	return err.Error()
}

// CloneMetadata copies a metadata map so adapters never alias caller state.
func CloneMetadata(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
