package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/actionsum/appclock/internal/client"
	"github.com/actionsum/appclock/internal/config"
)

var (
	version = "0.1.0"
	commit  = "unknown"
	date    = "unknown"
)

const clientTimeout = 5 * time.Second

var rootCmd = &cobra.Command{
	Use:   "appclock",
	Short: "Application focus time tracker",
	Long: `appclock records how long registered applications hold window focus and
breaks the time down per hour and category.

The tracker runs as a background daemon with a local HTTP API. Every other
command talks to that API.`,
	SilenceUsage: true,
}

// Global flags
var apiAddr string

func init() {
	rootCmd.PersistentFlags().StringVar(&apiAddr, "addr", "", "Daemon API address (host:port), defaults to the configured web host and port")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// SetVersion overrides the build information printed by the version command.
func SetVersion(v, c, d string) {
	version, commit, date = v, c, d
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newClient() (*client.Client, error) {
	addr := apiAddr
	if addr == "" {
		cfg, err := loadConfig()
		if err != nil {
			return nil, err
		}
		addr = cfg.Address()
	}
	return client.New("http://"+addr, clientTimeout), nil
}
