package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/fklub/mpledger/internal/converter"
	"github.com/fklub/mpledger/pkg/utils"
)

var convertCmd = &cobra.Command{
	Use:   "convert <infile> <appendix-start>",
	Short: "Convert a MobilePay export to a journal CSV and appendices",
	Long: `The convert command reads a MobilePay MyShop export and writes

  <output>/<first>-<last>.csv          journal rows for the Dinero import
  <output>/<first>-<last>/<n>.pdf      one appendix per settlement batch
  <output>/<first>-<last>.xlsx         workbook, when "xlsx" is a report format

Appendices are numbered from appendix-start. Nothing is written when the
export contains an unknown event or an amount or date that cannot be read.`,

	Args: cobra.ExactArgs(2),

	RunE: func(cmd *cobra.Command, args []string) error {
		first, err := strconv.Atoi(args[1])
		if err != nil || first < 1 {
			return fmt.Errorf("appendix-start must be a positive number, got %q", args[1])
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		c := converter.New(args[0], first, cfg)
		c.SetLogger(newLogger(cmd, cfg))

		result := c.Run()
		if result.Error != nil {
			return result.Error
		}

		out := cmd.OutOrStdout()
		if result.Stats.Batches == 0 {
			fmt.Fprintln(out, "No valid transactions, nothing written.")
			return nil
		}

		fmt.Fprintf(out, "Wrote %d appendices (%s), %d journal rows, %d warning(s)\n",
			result.Stats.Batches, utils.AppendixRange(first, result.Stats.Batches),
			result.Stats.Entries, result.Stats.Warnings)
		for _, f := range result.OutputFiles {
			fmt.Fprintf(out, "  %s\n", f)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(convertCmd)

	convertCmd.Flags().StringP("merchant", "n", "",
		"MyShop number whose transactions are converted (overrides gateway.merchant_number)")
	convertCmd.Flags().StringP("output", "o", "",
		"Output directory (overrides output.directory)")
	convertCmd.Flags().StringSlice("format", nil,
		"Report formats to write: pdf, xlsx (overrides report.formats)")
}
