package repository

import (
	"github.com/google/uuid"

	apperrors "github.com/sealbox/sealbox/internal/errors"
)

// parseClusterID converts a stored cluster id string back into a UUID.
func parseClusterID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, apperrors.Wrap(err, "failed to parse cluster id")
	}
	return id, nil
}
