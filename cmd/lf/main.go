package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmerrifield20/lostfound/pkg/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is overridden via -ldflags "-X main.version=...".
var version = "dev"

var (
	serverURL    string
	cfgFile      string
	outputFormat string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "lf",
	Short: "Lost and found ledger CLI",
	Long: `lf is the command-line interface for a lostfound ledger server.

It reports lost and found items, edits or withdraws your own reports, and
audits the hash-linked ledger that records them.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			viper.AddConfigPath(configDir())
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.SetEnvPrefix("lf")
		viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if serverURL == "" {
			serverURL = viper.GetString("server_url")
		}
		if serverURL == "" {
			serverURL = "http://localhost:8080"
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.lf/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "ledger server URL (default http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "text", "Output format: text or json")

	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(withdrawCmd)
	rootCmd.AddCommand(chainCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(rechainCmd)
	rootCmd.AddCommand(versionCmd)
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".lf"
	}
	return filepath.Join(home, ".lf")
}

// newClient builds a client with the stored session token and, when set,
// the admin secret.
func newClient() (*client.Client, error) {
	opts := []client.Option{}
	if token := viper.GetString("token"); token != "" {
		opts = append(opts, client.WithBearerToken(token))
	}
	if secret := viper.GetString("admin_secret"); secret != "" {
		opts = append(opts, client.WithAdminSecret(secret))
	}
	return client.New(serverURL, opts...)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the lf CLI version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("lf %s (lost and found ledger)\n", version)
	},
}
