package twofactor

import (
	"encoding/base32"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	period    = 30
	skewSteps = 2
	qrSize    = 150
)

var validateOpts = totp.ValidateOpts{
	Period:    period,
	Skew:      skewSteps,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

var secretEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// generateKey creates a key for account. A non-empty secret is reused so the
// provisioning URI can be rebuilt for an already active factor.
func generateKey(issuer, account, secret string) (*otp.Key, error) {
	opts := totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
		Period:      period,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	}
	if secret != "" {
		raw, err := secretEncoding.DecodeString(strings.ToUpper(strings.TrimRight(secret, "=")))
		if err != nil {
			return nil, fmt.Errorf("twofactor: decode secret: %w", err)
		}
		opts.Secret = raw
	}
	key, err := totp.Generate(opts)
	if err != nil {
		return nil, fmt.Errorf("twofactor: generate key: %w", err)
	}
	return key, nil
}

func validate(code, secret string, at time.Time) bool {
	code = strings.TrimSpace(code)
	if code == "" || secret == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, at, validateOpts)
	return err == nil && ok
}

func codeAt(secret string, at time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, at, validateOpts)
}

func qrCodeURL(base, uri string) string {
	if base == "" {
		base = DefaultQRCodeBaseURL
	}
	return strings.TrimRight(base, "/") + "/qr?size=" + strconv.Itoa(qrSize) + "&text=" + url.QueryEscape(uri)
}
