package app

import (
	"fmt"

	"github.com/sealbox/sealbox/internal/database"
	keysRepository "github.com/sealbox/sealbox/internal/keys/repository"
	keysService "github.com/sealbox/sealbox/internal/keys/service"
	keysUsecase "github.com/sealbox/sealbox/internal/keys/usecase"
)

// KeyRepository returns the encryption key repository.
func (c *Container) KeyRepository() (keysUsecase.KeyRepository, error) {
	var err error
	c.keyRepoInit.Do(func() {
		c.keyRepo, err = c.initKeyRepository()
		if err != nil {
			c.initErrors["keyRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["keyRepo"]; exists {
		return nil, storedErr
	}
	return c.keyRepo, nil
}

// KeyUseCase returns the key hierarchy use case.
func (c *Container) KeyUseCase() (keysUsecase.KeyUseCase, error) {
	var err error
	c.keyUseCaseInit.Do(func() {
		c.keyUseCase, err = c.initKeyUseCase()
		if err != nil {
			c.initErrors["keyUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["keyUseCase"]; exists {
		return nil, storedErr
	}
	return c.keyUseCase, nil
}

// initKeyRepository creates the key repository based on the database driver.
func (c *Container) initKeyRepository() (keysUsecase.KeyRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for key repository: %w", err)
	}

	switch c.config.DBDriver {
	case database.DriverPostgres:
		return keysRepository.NewPostgreSQLKeyRepository(db), nil
	case database.DriverMySQL:
		return keysRepository.NewMySQLKeyRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initKeyUseCase creates the key use case with all its dependencies. The seal
// manager is the master key source: key material is only reachable while the
// engine is unsealed.
func (c *Container) initKeyUseCase() (keysUsecase.KeyUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for key use case: %w", err)
	}

	keyRepo, err := c.KeyRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get key repository for key use case: %w", err)
	}

	sealManager, err := c.SealManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get seal manager for key use case: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for key use case: %w", err)
	}

	keyWrapper := keysService.NewKeyWrapper(keysService.NewAEADManager())

	return keysUsecase.NewKeyUseCase(
		txManager,
		keyRepo,
		keyWrapper,
		sealManager,
		c.Logger(),
		businessMetrics,
	), nil
}
