// Hermod collects form responses through QR codes. This binary serves the
// account and authentication API and manages its database schema.
//
// @title Hermod API
// @version 1.0
// @BasePath /
// @securityDefinitions.basic BasicAuth
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"fmt"
	"os"

	"github.com/hermod-app/hermod/internal/config"
	"github.com/hermod-app/hermod/internal/logging"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var version = "dev"

var (
	cfg    config.Config
	logger *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:           "hermod",
	Short:         "Hermod account and authentication API",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		if level, _ := cmd.Flags().GetString("log-level"); level != "" {
			cfg.Log.Level = level
		}
		logger = logging.New(cfg.Log.Level, cfg.Log.Format)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "Log level (env: LOG_LEVEL)")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
