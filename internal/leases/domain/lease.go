// Package domain defines the lease domain models.
//
// A lease is a time-bounded grant of access to a secret path. Leases expire on
// a deadline unless renewed and can be revoked early; every renewal attempt,
// successful or not, leaves an append-only history row.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a lease.
type Status string

const (
	// StatusActive means the lease grants access until ExpiresAt.
	StatusActive Status = "active"
	// StatusRevoked means the lease was terminated early. Terminal.
	StatusRevoked Status = "revoked"
	// StatusExpired means the deadline passed without renewal. Terminal.
	StatusExpired Status = "expired"
)

// Lease represents one time-bounded access grant.
type Lease struct {
	// ID is a UUIDv7, so lease ids sort by issue time.
	ID uuid.UUID
	// SecretPath is the path this lease grants access to.
	SecretPath string
	// Grantee identifies the holder; renewals must present the same value.
	Grantee   string
	IssuedAt  time.Time
	ExpiresAt time.Time
	// Duration is the original grant length, the default renewal increment.
	Duration time.Duration
	// RenewalCount is the number of successful renewals so far.
	RenewalCount uint
	// MaxRenewals bounds RenewalCount; nil means the engine default applies.
	MaxRenewals *uint
	// AutoRenew marks leases an external agent renews on the holder's behalf.
	AutoRenew bool
	Status    Status
	// Revocation metadata, set only for revoked leases.
	RevokedAt        *time.Time
	RevokedBy        string
	RevocationReason string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Terminal reports whether the lease can no longer change state.
func (l *Lease) Terminal() bool {
	return l.Status != StatusActive
}

// LeaseRenewal is one append-only renewal history row.
type LeaseRenewal struct {
	ID      uuid.UUID
	LeaseID uuid.UUID
	// RenewedAt is when the attempt happened, successful or not.
	RenewedAt         time.Time
	PreviousExpiresAt time.Time
	// NewExpiresAt equals PreviousExpiresAt for failed attempts.
	NewExpiresAt time.Time
	Success      bool
	// Error is empty on success.
	Error string
	// Actor is who attempted the renewal.
	Actor string
	// IsAuto marks renewals performed by an agent rather than the holder.
	IsAuto bool
}
