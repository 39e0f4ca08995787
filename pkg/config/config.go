package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// ServiceConfig holds listener configuration
type ServiceConfig struct {
	Port       int    `mapstructure:"port"`
	HealthPort int    `mapstructure:"health_port"`
	Host       string `mapstructure:"host"`
	MockSPIFFE bool   `mapstructure:"mock_spiffe"`
	LogLevel   string `mapstructure:"log_level"`
}

// Addr returns the API listen address
func (c ServiceConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// HealthAddr returns the health and metrics listen address (plain HTTP)
func (c ServiceConfig) HealthAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HealthPort)
}

// SPIFFEConfig holds SPIFFE-related configuration
type SPIFFEConfig struct {
	SocketPath  string `mapstructure:"socket_path"`
	TrustDomain string `mapstructure:"trust_domain"`
}

// OTelConfig holds OpenTelemetry configuration
type OTelConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

// StaticKey is one RSA signing key given as base64url JWK members
type StaticKey struct {
	Kid string `mapstructure:"kid"`
	N   string `mapstructure:"n"`
	E   string `mapstructure:"e"`
}

// KeysConfig lists the trusted issuer signing keys
type KeysConfig struct {
	Static   []StaticKey `mapstructure:"static"`
	JWKSFile string      `mapstructure:"jwks_file"`
}

// PolicyConfig holds the claim policy applied to signature-valid tokens
type PolicyConfig struct {
	Issuers              []string `mapstructure:"issuers"`
	Audiences            []string `mapstructure:"audiences"`
	LeewaySeconds        int64    `mapstructure:"leeway_seconds"`
	RequireEmailVerified bool     `mapstructure:"require_email_verified"`
	SkipTimeChecks       bool     `mapstructure:"skip_time_checks"`
}

// RedisConfig holds the Redis account store settings
type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// StorageConfig holds S3-compatible object storage configuration
type StorageConfig struct {
	BucketHost      string `mapstructure:"bucket_host"`
	BucketPort      int    `mapstructure:"bucket_port"`
	BucketName      string `mapstructure:"bucket_name"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// AccountsConfig selects the account store and the factory parameters used
// for address derivation
type AccountsConfig struct {
	Backend      string        `mapstructure:"backend"`
	Factory      string        `mapstructure:"factory"`
	InitCodeHash string        `mapstructure:"init_code_hash"`
	Redis        RedisConfig   `mapstructure:"redis"`
	Storage      StorageConfig `mapstructure:"storage"`
}

// LimitsConfig bounds request sizes
type LimitsConfig struct {
	MaxBodyBytes int64 `mapstructure:"max_body_bytes"`
}

// CommonConfig holds the full service configuration
type CommonConfig struct {
	Service  ServiceConfig  `mapstructure:"service"`
	SPIFFE   SPIFFEConfig   `mapstructure:"spiffe"`
	OTel     OTelConfig     `mapstructure:"otel"`
	Keys     KeysConfig     `mapstructure:"keys"`
	Policy   PolicyConfig   `mapstructure:"policy"`
	Accounts AccountsConfig `mapstructure:"accounts"`
	Limits   LimitsConfig   `mapstructure:"limits"`
}

// EnvPrefix is the prefix of every environment override
const EnvPrefix = "IDBIND"

// InitViper initializes Viper with search paths, env handling and defaults
func InitViper(serviceName string) *viper.Viper {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath(fmt.Sprintf("./%s", serviceName))
	v.AddConfigPath("/etc/idbind/")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service.host", "0.0.0.0")
	v.SetDefault("service.port", 8080)
	v.SetDefault("service.health_port", 8180)
	v.SetDefault("service.mock_spiffe", true)
	v.SetDefault("service.log_level", "info")

	v.SetDefault("spiffe.socket_path", "unix:///run/spire/sockets/agent.sock")
	v.SetDefault("spiffe.trust_domain", "idbind.example.com")

	v.SetDefault("otel.enabled", false)
	v.SetDefault("otel.collector_endpoint", "")

	v.SetDefault("keys.jwks_file", "")

	v.SetDefault("policy.issuers", []string{"https://accounts.google.com", "accounts.google.com"})
	v.SetDefault("policy.audiences", []string{})
	v.SetDefault("policy.leeway_seconds", 60)
	v.SetDefault("policy.require_email_verified", true)
	v.SetDefault("policy.skip_time_checks", false)

	v.SetDefault("accounts.backend", "memory")
	v.SetDefault("accounts.factory", "0x0000000000000000000000000000000000000000")
	v.SetDefault("accounts.init_code_hash", "")
	v.SetDefault("accounts.redis.addr", "localhost:6379")
	v.SetDefault("accounts.redis.db", 0)
	v.SetDefault("accounts.redis.key_prefix", "idbind:account:")
	v.SetDefault("accounts.storage.bucket_host", "localhost")
	v.SetDefault("accounts.storage.bucket_port", 9000)
	v.SetDefault("accounts.storage.bucket_name", "accounts")
	v.SetDefault("accounts.storage.use_ssl", false)
	v.SetDefault("accounts.storage.region", "us-east-1")

	v.SetDefault("limits.max_body_bytes", 64<<10)
}

// Load reads the configuration from file and environment
func Load(v *viper.Viper, cfg any) error {
	// Support standard PORT/HOST env vars used by container platforms
	if portStr := os.Getenv("PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			v.Set("service.port", port)
		}
	}
	if host := os.Getenv("HOST"); host != "" {
		v.Set("service.host", host)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return nil
}

// BindFlags binds common CLI flags to Viper
func BindFlags(cmd *cobra.Command, v *viper.Viper) {
	flags := cmd.PersistentFlags()
	flags.IntP("port", "p", 0, "Port to listen on")
	flags.String("host", "", "Host to bind to")
	flags.Bool("mock-spiffe", true, "Use mock SPIFFE mode (no SPIRE required)")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.Bool("otel-enabled", false, "Enable OpenTelemetry tracing")
	flags.String("otel-collector-endpoint", "", "OpenTelemetry collector gRPC endpoint (e.g. localhost:4317)")
	flags.String("jwks-file", "", "JWKS document with trusted signing keys")
	flags.String("accounts-backend", "", "Account store backend (memory, redis, s3)")

	v.BindPFlag("service.port", flags.Lookup("port"))
	v.BindPFlag("service.host", flags.Lookup("host"))
	v.BindPFlag("service.mock_spiffe", flags.Lookup("mock-spiffe"))
	v.BindPFlag("service.log_level", flags.Lookup("log-level"))
	v.BindPFlag("otel.enabled", flags.Lookup("otel-enabled"))
	v.BindPFlag("otel.collector_endpoint", flags.Lookup("otel-collector-endpoint"))
	v.BindPFlag("keys.jwks_file", flags.Lookup("jwks-file"))
	v.BindPFlag("accounts.backend", flags.Lookup("accounts-backend"))
}

// LoadStorageConfigFromEnv supplements the S3 settings from OBC-style
// BUCKET_* environment variables
func LoadStorageConfigFromEnv(cfg *StorageConfig) {
	if host := os.Getenv("BUCKET_HOST"); host != "" {
		cfg.BucketHost = host
	}
	if portStr := os.Getenv("BUCKET_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			cfg.BucketPort = port
		}
	}
	if name := os.Getenv("BUCKET_NAME"); name != "" {
		cfg.BucketName = name
	}
	if region := os.Getenv("BUCKET_REGION"); region != "" {
		cfg.Region = region
	}
	if key := os.Getenv("AWS_ACCESS_KEY_ID"); key != "" {
		cfg.AccessKeyID = key
	}
	if secret := os.Getenv("AWS_SECRET_ACCESS_KEY"); secret != "" {
		cfg.SecretAccessKey = secret
	}

	// 443 implies HTTPS unless BUCKET_SSL says otherwise
	if sslStr := os.Getenv("BUCKET_SSL"); sslStr != "" {
		cfg.UseSSL = sslStr == "true" || sslStr == "1"
	} else if cfg.BucketPort == 443 {
		cfg.UseSSL = true
	}
}
