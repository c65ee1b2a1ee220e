// Command sheet-editor runs the shared spreadsheet editing server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"shared-spreadsheet-editor/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "sheet-editor",
	Short: "Shared spreadsheet editor",
	Long: `Edit tabular files stored behind the /api/excel service from the browser.

Commands:
  serve   Run the HTTP API and the websocket editing endpoint.
  export  Write a stored file as CSV or XLSX.

Examples:
  sheet-editor serve --config editor.yaml
  sheet-editor export 6f1c... --format xlsx --out budget.xlsx`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
}

func loadConfig() (config.Config, error) {
	return config.Load(configPath)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
