package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/redhat-et/idbind/pkg/accounts"
)

var (
	addressName string
	addressSalt string
)

var addressCmd = &cobra.Command{
	Use:   "address",
	Short: "Print the account address for a name or salt",
	Long: `Print the deterministic account address derived from the configured
factory address and init code hash. Nothing is registered.`,
	RunE: runAddress,
}

func init() {
	rootCmd.AddCommand(addressCmd)
	addressCmd.Flags().StringVar(&addressName, "name", "", "Account name, hashed with Keccak-256 into the salt")
	addressCmd.Flags().StringVar(&addressSalt, "salt", "", "Explicit 32-byte hex salt")
}

func runAddress(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	salt, err := saltFrom(addressName, addressSalt)
	if err != nil {
		return err
	}

	deployer, initCodeHash, err := factoryParams(cfg.Accounts)
	if err != nil {
		return err
	}
	// GetAddress never touches the store
	factory := accounts.NewFactory(nil, deployer, initCodeHash)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"name":    addressName,
		"salt":    salt,
		"factory": deployer,
		"address": factory.GetAddress(salt),
	})
}
