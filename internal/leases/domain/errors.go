package domain

import (
	"github.com/sealbox/sealbox/internal/errors"
)

// Lease error definitions.
var (
	// ErrLeaseNotFound indicates no lease exists with the given id.
	ErrLeaseNotFound = errors.Wrap(errors.ErrNotFound, "lease not found")

	// ErrSecretNotFound indicates the lease's secret path has no live current
	// version to grant access to.
	ErrSecretNotFound = errors.Wrap(errors.ErrNotFound, "leased secret not found")

	// ErrAlreadyTerminal indicates the lease is revoked or expired and cannot
	// change state.
	ErrAlreadyTerminal = errors.Wrap(errors.ErrConflict, "lease is already terminal")

	// ErrRenewalLimitExceeded indicates the lease reached its renewal bound.
	ErrRenewalLimitExceeded = errors.Wrap(errors.ErrConflict, "lease renewal limit exceeded")
)
