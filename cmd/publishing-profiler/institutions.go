// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/publishing-profiler/internal/dataset"
	"github.com/pdiddy/publishing-profiler/pkg/types"
)

var institutionsCmd = &cobra.Command{
	Use:   "institutions",
	Short: "List the configured institutions and their input files",
	Long: `Institutions lists every institution in the configuration with its
OpenAlex ID and the merged input file found under the data directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		listInstitutions(cfg, os.Stdout)
		return nil
	},
}

func listInstitutions(cfg types.ProfilerConfig, w io.Writer) {
	fmt.Fprintf(w, "%-28s  %-12s  %s\n", "Institution", "OpenAlex ID", "Input")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	for _, inst := range cfg.Institutions {
		input, err := dataset.Discover(cfg.DataDir, inst)
		if err != nil {
			input = "(none)"
		}
		fmt.Fprintf(w, "%-28s  %-12s  %s\n", inst.Name, inst.OpenAlexID, input)
	}
}

func init() {
	rootCmd.AddCommand(institutionsCmd)
}
