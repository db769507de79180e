package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"civica/internal/codec"
)

var (
	exportFormat string
	exportOutput string
	importFormat string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export every city and citizen as a dataset",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		exporter, err := codec.ExporterFor(exportFormat)
		if err != nil {
			fatal(err)
		}

		m, closer, err := openManager()
		if err != nil {
			fatal(err)
		}
		defer closer()

		ds, err := m.Export(context.Background())
		if err != nil {
			fatal(err)
		}

		out := os.Stdout
		if exportOutput != "" {
			f, err := os.Create(exportOutput)
			if err != nil {
				fatal(err)
			}
			defer f.Close()
			out = f
		}

		if err := exporter.Export(ds, out); err != nil {
			fatal(err)
		}
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a dataset in one atomic unit of work",
	Long: `Imports cities and citizens from a JSON or YAML dataset. Records
carrying an ID update the stored entity of that identity; records without
one insert. A record referencing an unknown identity aborts the whole
import with nothing applied.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		format := importFormat
		if format == "" {
			format = formatFromPath(args[0])
		}
		importer, err := codec.ImporterFor(format)
		if err != nil {
			fatal(err)
		}

		f, err := os.Open(args[0])
		if err != nil {
			fatal(err)
		}
		defer f.Close()

		ds, err := importer.Parse(f)
		if err != nil {
			fatal(err)
		}

		m, closer, err := openManager()
		if err != nil {
			fatal(err)
		}
		defer closer()

		if err := m.Import(context.Background(), ds); err != nil {
			fatal(err)
		}
		fmt.Printf("Imported %d cities and %d citizens\n", len(ds.Cities), len(ds.Citizens))
	},
}

func formatFromPath(path string) string {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "json"
	}
	return ext
}

func init() {
	rootCmd.AddCommand(exportCmd, importCmd)

	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "Output format (json, yaml)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Write to file instead of stdout")

	importCmd.Flags().StringVar(&importFormat, "format", "", "Input format (json, yaml); inferred from the file extension by default")
}
