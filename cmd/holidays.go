package cmd

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/fklub/mpledger/internal/calendar"
)

var holidaysCmd = &cobra.Command{
	Use:   "holidays [year]",
	Short: "List the days Danish banks are closed",
	Long: `List the weekdays on which Danish banks do not settle transfers in the given
year (default: the current year), including extra closures from the
configuration. Weekends are always closed and not listed.`,

	Args: cobra.MaximumNArgs(1),

	RunE: func(cmd *cobra.Command, args []string) error {
		year := time.Now().Year()
		if len(args) == 1 {
			y, err := strconv.Atoi(args[0])
			if err != nil || y < 1583 {
				return fmt.Errorf("invalid year %q", args[0])
			}
			year = y
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		var extra []calendar.Rule
		if closures := cfg.ExtraClosures(); len(closures) > 0 {
			extra = append(extra, calendar.Dates("Banklukkedag", closures...))
		}
		cal := calendar.NewDanishBank(extra...)

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		for _, h := range cal.Holidays(year) {
			if calendar.IsWeekend(h.Date) {
				continue
			}
			kind := "public holiday"
			if h.BankOnly {
				kind = "bank closure"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", h.Date.Format("2006-01-02"), h.Date.Format("Mon"), h.Name, kind)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(holidaysCmd)
}
