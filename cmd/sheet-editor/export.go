package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"shared-spreadsheet-editor/internal/export"
	"shared-spreadsheet-editor/internal/sheet"
	"shared-spreadsheet-editor/internal/store"
)

var (
	exportFormat string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export <file-id>",
	Short: "Write a stored file as CSV or XLSX",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		files, err := store.Open(filepath.Join(cfg.DataDir, "excel"), nil)
		if err != nil {
			return err
		}
		body, err := exportFile(files, args[0], exportFormat)
		if err != nil {
			return err
		}
		if exportOut == "" || exportOut == "-" {
			_, err = cmd.OutOrStdout().Write(body)
			return err
		}
		return os.WriteFile(exportOut, body, 0o644)
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "csv", "Output format: csv or xlsx")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output path (default stdout)")
	rootCmd.AddCommand(exportCmd)
}

func exportFile(files *store.FileStore, id, format string) ([]byte, error) {
	f, err := files.Get(id)
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", id, err)
	}
	doc, err := f.Document()
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", id, err)
	}
	body, _, err := export.Encode(sheet.ToGrid(doc), nil, nil, format)
	return body, err
}
