package app

import (
	"context"
	"fmt"

	"github.com/sealbox/sealbox/internal/database"
	sealRepository "github.com/sealbox/sealbox/internal/seal/repository"
	sealService "github.com/sealbox/sealbox/internal/seal/service"
)

// SealConfigRepository returns the seal configuration repository.
func (c *Container) SealConfigRepository() (sealService.SealConfigRepository, error) {
	var err error
	c.sealConfigRepoInit.Do(func() {
		c.sealConfigRepo, err = c.initSealConfigRepository()
		if err != nil {
			c.initErrors["sealConfigRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["sealConfigRepo"]; exists {
		return nil, storedErr
	}
	return c.sealConfigRepo, nil
}

// SealManager returns the seal manager.
func (c *Container) SealManager() (sealService.Manager, error) {
	var err error
	c.sealManagerInit.Do(func() {
		c.sealManager, err = c.initSealManager()
		if err != nil {
			c.initErrors["sealManager"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["sealManager"]; exists {
		return nil, storedErr
	}
	return c.sealManager, nil
}

// initSealConfigRepository creates the seal configuration repository based on
// the database driver.
func (c *Container) initSealConfigRepository() (sealService.SealConfigRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for seal config repository: %w", err)
	}

	switch c.config.DBDriver {
	case database.DriverPostgres:
		return sealRepository.NewPostgreSQLSealConfigRepository(db), nil
	case database.DriverMySQL:
		return sealRepository.NewMySQLSealConfigRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initSealManager creates the seal manager, opening a KMS keeper when
// auto-unseal is configured.
func (c *Container) initSealManager() (sealService.Manager, error) {
	repo, err := c.SealConfigRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get seal config repository: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics: %w", err)
	}

	var keeper sealService.Keeper
	if c.config.AutoUnsealKeyURI != "" {
		k, err := sealService.OpenKeeper(context.Background(), c.config.AutoUnsealKeyURI)
		if err != nil {
			return nil, fmt.Errorf("failed to open auto-unseal keeper: %w", err)
		}
		keeper = k
	}

	return sealService.NewSealManager(repo, keeper, c.Logger(), businessMetrics), nil
}
