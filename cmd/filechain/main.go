package main

import (
	"fmt"
	"os"

	"github.com/jmerrifield20/filechain/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is overridden via -ldflags "-X main.version=...".
var version = "dev"

var (
	cfgFile   string
	serverURL string
	v         *viper.Viper
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "filechain",
	Short: "Content-addressed file storage with a tamper-evident ledger",
	Long: `filechain stores uploaded files in a content-addressed store and records
each upload in an append-only, hash-chained ledger.

Run the server with 'filechain serve', or talk to a running server with
'filechain upload', 'filechain ls' and 'filechain verify --server'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		v = config.New()
		if cfgFile != "" {
			v.SetConfigFile(cfgFile)
		}
		if _, err := config.ReadFile(v); err != nil {
			return err
		}
		if serverURL == "" {
			serverURL = v.GetString("client.server_url")
		}
		if serverURL == "" {
			serverURL = fmt.Sprintf("http://localhost:%d", v.GetInt("server.port"))
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default configs/filechain.yaml or ./filechain.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "filechain server URL (default http://localhost:<server.port>)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the filechain version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("filechain", version)
	},
}
