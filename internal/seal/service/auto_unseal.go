package service

import (
	"context"
	"fmt"

	"gocloud.dev/secrets"

	// Register KMS keeper drivers for auto-unseal.
	_ "gocloud.dev/secrets/awskms"
	_ "gocloud.dev/secrets/azurekeyvault"
	_ "gocloud.dev/secrets/gcpkms"
	_ "gocloud.dev/secrets/hashivault"
	_ "gocloud.dev/secrets/localsecrets"
)

// OpenKeeper opens a KMS keeper for the configured auto-unseal key URI.
// Supports: gcpkms://, awskms://, azurekeyvault://, hashivault://, base64key://
// The returned *secrets.Keeper satisfies the Keeper interface.
func OpenKeeper(ctx context.Context, keyURI string) (*secrets.Keeper, error) {
	keeper, err := secrets.OpenKeeper(ctx, keyURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open auto-unseal keeper: %w", err)
	}
	return keeper, nil
}
