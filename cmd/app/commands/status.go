package commands

import (
	"context"
	"fmt"
	"time"

	keysUsecase "github.com/sealbox/sealbox/internal/keys/usecase"
	sealService "github.com/sealbox/sealbox/internal/seal/service"
)

// RunStatus reports the seal state and the encryption key inventory. Keys whose
// last rotation is older than the configured cadence are flagged; rotation is
// never applied automatically.
func RunStatus(
	ctx context.Context,
	manager sealService.Manager,
	keys keysUsecase.KeyUseCase,
	tuple IOTuple,
	rotationCadence time.Duration,
) error {
	status, err := manager.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to get seal status: %w", err)
	}

	fmt.Fprintf(tuple.Writer, "Initialized: %t\n", status.Initialized)
	fmt.Fprintf(tuple.Writer, "State:       %s\n", status.State)
	if status.Initialized {
		fmt.Fprintf(tuple.Writer, "Cluster:     %s\n", status.ClusterID)
		fmt.Fprintf(tuple.Writer, "Shares:      %d (threshold %d)\n", status.ShareCount, status.Threshold)
	}
	if status.Progress > 0 {
		fmt.Fprintf(tuple.Writer, "Unseal progress: %d of %d\n", status.Progress, status.Threshold)
	}

	inventory, err := keys.ListKeys(ctx)
	if err != nil {
		return fmt.Errorf("failed to list encryption keys: %w", err)
	}
	if len(inventory) == 0 {
		return nil
	}

	fmt.Fprintln(tuple.Writer, "\nEncryption keys:")
	now := time.Now().UTC()
	for _, key := range inventory {
		line := fmt.Sprintf(
			"  %s  algorithm=%s  version=%d  min_decryption_version=%d",
			key.Name, key.Algorithm, key.CurrentVersion, key.MinDecryptionVersion,
		)
		if rotationCadence > 0 && now.Sub(key.UpdatedAt) > rotationCadence {
			line += fmt.Sprintf("  ROTATION OVERDUE (last change %s)", key.UpdatedAt.Format(time.RFC3339))
		}
		fmt.Fprintln(tuple.Writer, line)
	}
	return nil
}
