// Package shamir splits secrets with Shamir's threshold scheme and wraps
// every share in a self-describing envelope.
//
// The polynomial arithmetic over GF(2^8) comes from hashicorp/vault's shamir
// package; this package adds the share envelope (format version, split id,
// threshold, x coordinate, checksum) so Combine can detect corrupt or mixed
// shares instead of trusting the caller. The package is pure: no I/O, no
// state.
package shamir

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"

	vaultshamir "github.com/hashicorp/vault/shamir"
)

const (
	// formatVersion identifies the share envelope layout.
	formatVersion = 1

	// splitIDSize is the number of random bytes identifying a split batch.
	splitIDSize = 4

	// checksumSize is the number of SHA-256 bytes appended to each share.
	checksumSize = 8

	// headerSize is version + split id + threshold + x coordinate.
	headerSize = 1 + splitIDSize + 1 + 1

	// MaxShares is the largest supported share count; GF(2^8) has only 255
	// usable evaluation points.
	MaxShares = 255
)

var (
	// ErrInvalidArguments indicates n or t is outside 1 <= t <= n <= 255, or the
	// secret is empty.
	ErrInvalidArguments = errors.New("shamir: invalid split arguments")

	// ErrInsufficientShares indicates fewer shares than the embedded threshold
	// were supplied to Combine.
	ErrInsufficientShares = errors.New("shamir: insufficient shares")

	// ErrCorruptShare indicates a share is malformed, fails its checksum, or is
	// inconsistent with the other shares (mixed split batches, duplicate points,
	// mismatched lengths).
	ErrCorruptShare = errors.New("shamir: corrupt share")
)

// Split divides secret into n shares with reconstruction threshold t.
// Coefficients and evaluation points are drawn fresh on every call, so
// splitting the same secret twice yields unrelated share sets.
func Split(secret []byte, n, t int) ([][]byte, error) {
	if len(secret) == 0 || t < 1 || n < t || n > MaxShares {
		return nil, ErrInvalidArguments
	}

	splitID := make([]byte, splitIDSize)
	if _, err := rand.Read(splitID); err != nil {
		return nil, fmt.Errorf("shamir: failed to generate split id: %w", err)
	}

	payloads, err := splitPayloads(secret, n, t)
	if err != nil {
		return nil, err
	}

	shares := make([][]byte, n)
	for i, payload := range payloads {
		x := payload[len(payload)-1]
		share := make([]byte, 0, headerSize+len(payload)+checksumSize)
		share = append(share, formatVersion)
		share = append(share, splitID...)
		share = append(share, byte(t), x)
		share = append(share, payload...)
		sum := sha256.Sum256(share)
		share = append(share, sum[:checksumSize]...)
		shares[i] = share
	}

	return shares, nil
}

// splitPayloads produces n raw shares, each the secret-length y values with
// the x coordinate as the trailing byte.
func splitPayloads(secret []byte, n, t int) ([][]byte, error) {
	if t == 1 {
		// Degenerate threshold: any single share reconstructs the secret,
		// which the library refuses to express, so every payload carries the
		// secret itself.
		payloads := make([][]byte, n)
		for i := range payloads {
			payload := make([]byte, len(secret)+1)
			copy(payload, secret)
			payload[len(secret)] = byte(i + 1)
			payloads[i] = payload
		}
		return payloads, nil
	}

	payloads, err := vaultshamir.Split(secret, n, t)
	if err != nil {
		return nil, fmt.Errorf("shamir: split failed: %w", err)
	}
	return payloads, nil
}

// Combine reconstructs the secret from at least t valid shares. Extra shares
// beyond the embedded threshold are validated but ignored for interpolation.
func Combine(shares [][]byte) ([]byte, error) {
	if len(shares) == 0 {
		return nil, ErrInsufficientShares
	}

	parsed := make([]parsedShare, 0, len(shares))
	for _, raw := range shares {
		ps, err := parseShare(raw)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, ps)
	}

	first := parsed[0]
	seen := make(map[byte]bool, len(parsed))
	for _, ps := range parsed {
		if string(ps.splitID) != string(first.splitID) ||
			ps.threshold != first.threshold ||
			len(ps.payload) != len(first.payload) {
			return nil, ErrCorruptShare
		}
		if seen[ps.x] {
			return nil, ErrCorruptShare
		}
		seen[ps.x] = true
	}

	t := int(first.threshold)
	if len(parsed) < t {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientShares, len(parsed), t)
	}
	parsed = parsed[:t]

	if t == 1 {
		payload := parsed[0].payload
		secret := make([]byte, len(payload)-1)
		copy(secret, payload[:len(payload)-1])
		return secret, nil
	}

	parts := make([][]byte, t)
	for i, ps := range parsed {
		parts[i] = ps.payload
	}
	secret, err := vaultshamir.Combine(parts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptShare, err)
	}
	return secret, nil
}

type parsedShare struct {
	splitID   []byte
	threshold byte
	x         byte
	payload   []byte
}

func parseShare(raw []byte) (parsedShare, error) {
	// The payload is at least one secret byte plus the trailing x coordinate.
	if len(raw) <= headerSize+checksumSize+1 {
		return parsedShare{}, ErrCorruptShare
	}
	if raw[0] != formatVersion {
		return parsedShare{}, ErrCorruptShare
	}

	body := raw[:len(raw)-checksumSize]
	sum := sha256.Sum256(body)
	if subtle.ConstantTimeCompare(sum[:checksumSize], raw[len(raw)-checksumSize:]) != 1 {
		return parsedShare{}, ErrCorruptShare
	}

	ps := parsedShare{
		splitID:   raw[1 : 1+splitIDSize],
		threshold: raw[1+splitIDSize],
		x:         raw[1+splitIDSize+1],
		payload:   body[headerSize:],
	}
	if ps.threshold == 0 || ps.x == 0 {
		return parsedShare{}, ErrCorruptShare
	}
	// The header x must agree with the payload's trailing coordinate.
	if ps.x != ps.payload[len(ps.payload)-1] {
		return parsedShare{}, ErrCorruptShare
	}
	return ps, nil
}
