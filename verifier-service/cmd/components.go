package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redhat-et/idbind/pkg/accounts"
	"github.com/redhat-et/idbind/pkg/config"
	"github.com/redhat-et/idbind/pkg/keys"
	"github.com/redhat-et/idbind/pkg/logger"
	"github.com/redhat-et/idbind/pkg/policy"
	"github.com/redhat-et/idbind/pkg/telemetry"
)

// newKeyRegistry loads the static keys and the optional JWKS file
func newKeyRegistry(cfg config.KeysConfig, log *logger.Logger) (*keys.Registry, error) {
	reg := keys.NewRegistry()
	for _, k := range cfg.Static {
		if err := reg.AddEncoded(k.Kid, k.N, k.E); err != nil {
			return nil, fmt.Errorf("invalid static key: %w", err)
		}
		log.Info("Loaded static key", "kid", k.Kid)
	}
	if cfg.JWKSFile != "" {
		n, err := reg.LoadJWKSFile(cfg.JWKSFile)
		if err != nil {
			return nil, err
		}
		log.Info("Loaded JWKS file", "path", cfg.JWKSFile, "keys", n)
	}
	return reg, nil
}

func newPolicyEngine(ctx context.Context, cfg config.PolicyConfig) (*policy.Engine, error) {
	return policy.New(ctx, policy.Options{
		Issuers:              cfg.Issuers,
		Audiences:            cfg.Audiences,
		Leeway:               time.Duration(cfg.LeewaySeconds) * time.Second,
		RequireEmailVerified: cfg.RequireEmailVerified,
		SkipTimeChecks:       cfg.SkipTimeChecks,
	})
}

// factoryParams parses the deployer address and init code hash
func factoryParams(cfg config.AccountsConfig) (accounts.Address, accounts.Hash, error) {
	deployer, err := accounts.ParseAddress(cfg.Factory)
	if err != nil {
		return accounts.Address{}, accounts.Hash{}, fmt.Errorf("invalid factory address: %w", err)
	}
	var initCodeHash accounts.Hash
	if cfg.InitCodeHash != "" {
		if initCodeHash, err = accounts.ParseHash(cfg.InitCodeHash); err != nil {
			return accounts.Address{}, accounts.Hash{}, fmt.Errorf("invalid init code hash: %w", err)
		}
	}
	return deployer, initCodeHash, nil
}

// newFactory builds the account factory over the configured store backend
func newFactory(ctx context.Context, cfg config.AccountsConfig, log *logger.Logger) (*accounts.Factory, error) {
	deployer, initCodeHash, err := factoryParams(cfg)
	if err != nil {
		return nil, err
	}

	var store accounts.Store
	switch cfg.Backend {
	case "", "memory":
		store = accounts.NewMemoryStore()
	case "redis":
		store = accounts.NewRedisStore(accounts.RedisConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
	case "s3":
		store, err = accounts.NewS3Store(ctx, accounts.S3Config{
			BucketHost:      cfg.Storage.BucketHost,
			BucketPort:      cfg.Storage.BucketPort,
			BucketName:      cfg.Storage.BucketName,
			UseSSL:          cfg.Storage.UseSSL,
			Region:          cfg.Storage.Region,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
			HTTPClient: &http.Client{
				Timeout:   10 * time.Second,
				Transport: telemetry.WrapTransport(nil),
			},
		})
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown accounts backend %q", cfg.Backend)
	}

	log.Info("Account store configured", "backend", cfg.Backend, "factory", deployer.Hex())
	return accounts.NewFactory(store, deployer, initCodeHash), nil
}
