package app

import (
	"fmt"

	"github.com/sealbox/sealbox/internal/database"
	leasesRepository "github.com/sealbox/sealbox/internal/leases/repository"
	leasesService "github.com/sealbox/sealbox/internal/leases/service"
	leasesUsecase "github.com/sealbox/sealbox/internal/leases/usecase"
)

// LeaseRepository returns the lease repository.
func (c *Container) LeaseRepository() (leasesUsecase.LeaseRepository, error) {
	var err error
	c.leaseRepoInit.Do(func() {
		c.leaseRepo, err = c.initLeaseRepository()
		if err != nil {
			c.initErrors["leaseRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["leaseRepo"]; exists {
		return nil, storedErr
	}
	return c.leaseRepo, nil
}

// LeaseUseCase returns the lease use case, wrapped with metrics when enabled.
func (c *Container) LeaseUseCase() (leasesUsecase.LeaseUseCase, error) {
	var err error
	c.leaseUseCaseInit.Do(func() {
		c.leaseUseCase, err = c.initLeaseUseCase()
		if err != nil {
			c.initErrors["leaseUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["leaseUseCase"]; exists {
		return nil, storedErr
	}
	return c.leaseUseCase, nil
}

// LeaseSweeper returns the lease expiration sweeper.
func (c *Container) LeaseSweeper() (*leasesService.Sweeper, error) {
	var err error
	c.leaseSweeperInit.Do(func() {
		c.leaseSweeper, err = c.initLeaseSweeper()
		if err != nil {
			c.initErrors["leaseSweeper"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["leaseSweeper"]; exists {
		return nil, storedErr
	}
	return c.leaseSweeper, nil
}

// initLeaseRepository creates the lease repository based on the database driver.
func (c *Container) initLeaseRepository() (leasesUsecase.LeaseRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for lease repository: %w", err)
	}

	switch c.config.DBDriver {
	case database.DriverPostgres:
		return leasesRepository.NewPostgreSQLLeaseRepository(db), nil
	case database.DriverMySQL:
		return leasesRepository.NewMySQLLeaseRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initLeaseUseCase creates the lease use case with all its dependencies.
func (c *Container) initLeaseUseCase() (leasesUsecase.LeaseUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for lease use case: %w", err)
	}

	leaseRepo, err := c.LeaseRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get lease repository for lease use case: %w", err)
	}

	secretUseCase, err := c.SecretUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get secret use case for lease use case: %w", err)
	}

	useCase := leasesUsecase.NewLeaseUseCase(
		txManager,
		leaseRepo,
		secretUseCase,
		c.Logger(),
		c.config.LeaseMaxRenewals,
	)

	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for lease use case: %w", err)
		}
		useCase = leasesUsecase.NewLeaseUseCaseWithMetrics(useCase, businessMetrics)
	}

	return useCase, nil
}

// initLeaseSweeper creates the lease expiration sweeper.
func (c *Container) initLeaseSweeper() (*leasesService.Sweeper, error) {
	leaseUseCase, err := c.LeaseUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get lease use case for lease sweeper: %w", err)
	}

	return leasesService.NewSweeper(
		leaseUseCase,
		c.Logger(),
		c.config.LeaseSweepInterval,
		c.config.LeaseSweepBatchSize,
		c.config.LeaseSweepBatchesPerSec,
	), nil
}
