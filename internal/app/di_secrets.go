package app

import (
	"fmt"

	"github.com/sealbox/sealbox/internal/database"
	keysService "github.com/sealbox/sealbox/internal/keys/service"
	secretsRepository "github.com/sealbox/sealbox/internal/secrets/repository"
	secretsUsecase "github.com/sealbox/sealbox/internal/secrets/usecase"
)

// SecretRepository returns the secret repository, wrapped with the read-through
// cache when enabled.
func (c *Container) SecretRepository() (secretsUsecase.SecretRepository, error) {
	var err error
	c.secretRepoInit.Do(func() {
		c.secretRepo, err = c.initSecretRepository()
		if err != nil {
			c.initErrors["secretRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["secretRepo"]; exists {
		return nil, storedErr
	}
	return c.secretRepo, nil
}

// SecretUseCase returns the secret store use case, wrapped with metrics when
// enabled.
func (c *Container) SecretUseCase() (secretsUsecase.SecretUseCase, error) {
	var err error
	c.secretUseCaseInit.Do(func() {
		c.secretUseCase, err = c.initSecretUseCase()
		if err != nil {
			c.initErrors["secretUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["secretUseCase"]; exists {
		return nil, storedErr
	}
	return c.secretUseCase, nil
}

// initSecretRepository creates the secret repository based on the database
// driver, optionally decorated with the in-memory read-through cache.
func (c *Container) initSecretRepository() (secretsUsecase.SecretRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for secret repository: %w", err)
	}

	var repo secretsUsecase.SecretRepository
	switch c.config.DBDriver {
	case database.DriverPostgres:
		repo = secretsRepository.NewPostgreSQLSecretRepository(db)
	case database.DriverMySQL:
		repo = secretsRepository.NewMySQLSecretRepository(db)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}

	if c.config.SecretCacheEnabled {
		repo = secretsUsecase.NewCachedSecretRepository(repo, c.config.SecretCacheTTL)
	}
	return repo, nil
}

// initSecretUseCase creates the secret use case with all its dependencies.
func (c *Container) initSecretUseCase() (secretsUsecase.SecretUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for secret use case: %w", err)
	}

	secretRepo, err := c.SecretRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get secret repository for secret use case: %w", err)
	}

	keyUseCase, err := c.KeyUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get key use case for secret use case: %w", err)
	}

	useCase := secretsUsecase.NewSecretUseCase(
		txManager,
		secretRepo,
		keyUseCase,
		keysService.NewAEADManager(),
		c.Logger(),
		c.config.SecretKeyName,
		c.config.SecretMaxVersions,
	)

	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for secret use case: %w", err)
		}
		useCase = secretsUsecase.NewSecretUseCaseWithMetrics(useCase, businessMetrics)
	}

	return useCase, nil
}
