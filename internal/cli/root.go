// Package cli implements the marketflow command line.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/neomorfeo/marketflow/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "marketflow",
	Short: "Marketplace transaction process service",
	Long: `marketflow runs marketplace transactions through the sell-purchase and
default-negotiation processes, validating every transition and keeping the
negotiation offer history consistent.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
}

func initConfig() error {
	config.Init(viper.GetViper())
	if cfgFile == "" {
		return nil
	}
	viper.SetConfigFile(cfgFile)
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config %s: %w", cfgFile, err)
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
