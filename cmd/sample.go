package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/insightloom/internal/parser"
	"github.com/KaramelBytes/insightloom/internal/utils"
)

const (
	defaultSampleRows = 500
	defaultSampleSeed = 42
)

var (
	sampleOutput string
	sampleRows   int
	sampleSeed   uint64
)

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Write the built-in marketing sample data as CSV",
	Long: `Write a generated marketing campaign table (date, campaign, source, medium,
spend, impressions, clicks, conversions, revenue, cpc, ctr, roi) to try the
pipeline without your own data. The same --seed always writes the same rows.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if sampleRows <= 0 {
			return fmt.Errorf("--rows must be positive, got %d", sampleRows)
		}
		ds := parser.Sample(sampleRows, sampleSeed)
		body, err := parser.EncodeCSV(ds.Table)
		if err != nil {
			return err
		}
		if sampleOutput == "" {
			_, err := cmd.OutOrStdout().Write(body)
			return err
		}
		if err := utils.SafeWriteFile(sampleOutput, body); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %d sample rows to %s\n", sampleRows, sampleOutput)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sampleCmd)
	sampleCmd.Flags().StringVarP(&sampleOutput, "output", "o", "", "write the CSV to this path instead of stdout")
	sampleCmd.Flags().IntVar(&sampleRows, "rows", defaultSampleRows, "number of rows to generate")
	sampleCmd.Flags().Uint64Var(&sampleSeed, "seed", defaultSampleSeed, "random seed")
}
