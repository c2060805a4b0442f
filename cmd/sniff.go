package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sharmasourab93/market-gen/internal/download"
	"github.com/sharmasourab93/market-gen/internal/sniff"
)

type sniffReport struct {
	File      string `yaml:"file" json:"file"`
	Kind      string `yaml:"kind" json:"kind"`
	MIME      string `yaml:"mime" json:"mime"`
	Delimiter string `yaml:"delimiter,omitempty" json:"delimiter,omitempty"`
	Quoted    bool   `yaml:"quoted,omitempty" json:"quoted,omitempty"`
	SkipSpace bool   `yaml:"skip_initial_space,omitempty" json:"skip_initial_space,omitempty"`
	Legacy    bool   `yaml:"legacy_workbook,omitempty" json:"legacy_workbook,omitempty"`
	Title     string `yaml:"html_title,omitempty" json:"html_title,omitempty"`
}

func newSniffCmd(a *app) *cobra.Command {
	var (
		parse  bool
		output string
	)

	cmd := &cobra.Command{
		Use:   "sniff <file>",
		Short: "Show how a local file would be classified",
		Long: `sniff runs the payload classifier on a local file and reports what it
found. With --parse the file goes through the same unzip and parse steps as a
download and the resulting table is printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			if parse {
				d := download.New(download.Options{MaxBodyBytes: a.cfg.HTTP.MaxBodyBytes, Logger: a.logger})
				t, err := d.Decode(b)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), t, output)
			}

			res := sniff.Classify(b)
			desc := sniff.Describe(b)
			report := sniffReport{
				File:   args[0],
				Kind:   res.Kind.String(),
				MIME:   desc.MIME,
				Legacy: desc.Legacy,
				Title:  desc.Title,
			}
			if res.Kind == sniff.CSV {
				report.Delimiter = fmt.Sprintf("%q", res.Dialect.Delimiter)
				report.Quoted = res.Dialect.Quoted
				report.SkipSpace = res.Dialect.SkipInitialSpace
			}
			return renderYAML(cmd.OutOrStdout(), report)
		},
	}

	cmd.Flags().BoolVar(&parse, "parse", false, "parse the file and print the table")
	cmd.Flags().StringVarP(&output, "output", "o", formatTable, "table output format with --parse: table, csv, json, yaml")
	return cmd
}
