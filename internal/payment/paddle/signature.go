package paddle

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

const (
	SignatureHeader = "Paddle-Signature"

	signatureTolerance = 5 * time.Minute
)

var ErrInvalidSignature = errors.New("invalid paddle signature")

// VerifySignature checks a "ts=...;h1=..." header against an HMAC-SHA256 of
// "ts:body".
func VerifySignature(payload []byte, header, secret string, now time.Time) error {
	if secret == "" {
		return errors.New("paddle webhook secret is not configured")
	}

	var ts string
	var sigs []string
	for _, part := range strings.Split(header, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "ts":
			ts = v
		case "h1":
			sigs = append(sigs, v)
		}
	}
	if ts == "" || len(sigs) == 0 {
		return ErrInvalidSignature
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	if d := now.Sub(time.Unix(unix, 0)); d > signatureTolerance || d < -signatureTolerance {
		return errors.New("paddle signature timestamp outside tolerance")
	}

	expected := []byte(computeSignature(ts, payload, secret))
	for _, s := range sigs {
		if hmac.Equal(expected, []byte(s)) {
			return nil
		}
	}
	return ErrInvalidSignature
}

func computeSignature(ts string, payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + ":"))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
