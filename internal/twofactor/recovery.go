package twofactor

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"
)

const (
	recoveryCodeCount  = 4
	recoveryCodeLength = 50
	recoveryAlphabet   = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
)

// randomString draws n characters from recoveryAlphabet without modulo bias.
func randomString(r io.Reader, n int) (string, error) {
	const limit = 256 - 256%len(recoveryAlphabet)
	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", fmt.Errorf("twofactor: read random: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, recoveryAlphabet[int(b)%len(recoveryAlphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}

func newRecoveryCodes(r io.Reader) ([]string, error) {
	if r == nil {
		r = rand.Reader
	}
	codes := make([]string, 0, recoveryCodeCount)
	seen := make(map[string]struct{}, recoveryCodeCount)
	for len(codes) < recoveryCodeCount {
		code, err := randomString(r, recoveryCodeLength)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes, nil
}

// matchRecoveryCode returns the index of code in codes, comparing every
// candidate in constant time.
func matchRecoveryCode(codes []string, code string) int {
	found := -1
	for i, candidate := range codes {
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(code)) == 1 && found < 0 {
			found = i
		}
	}
	return found
}
