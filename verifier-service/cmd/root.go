package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/redhat-et/idbind/pkg/config"
	"github.com/redhat-et/idbind/pkg/logger"
)

var (
	cfgFile string
	v       *viper.Viper
)

var rootCmd = &cobra.Command{
	Use:   "idbind",
	Short: "OIDC ID token verification and account binding",
	Long: `idbind verifies RS256 OpenID Connect ID tokens against known RSA-2048
issuer keys and binds verified identities to deterministic account addresses.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")

	v = config.InitViper("verifier-service")
	config.BindFlags(rootCmd, v)
}

func initConfig() {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	}
}

// loadConfig reads the configuration and applies the log level
func loadConfig() (*config.CommonConfig, error) {
	var cfg config.CommonConfig
	if err := config.Load(v, &cfg); err != nil {
		return nil, err
	}
	logger.SetLevel(logger.ParseLevel(cfg.Service.LogLevel))
	config.LoadStorageConfigFromEnv(&cfg.Accounts.Storage)
	return &cfg, nil
}
