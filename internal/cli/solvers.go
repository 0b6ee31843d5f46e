package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// solversCmd represents the solvers command
var solversCmd = &cobra.Command{
	Use:   "solvers",
	Short: "List registered solvers",
	Long: `List the solvers registered from the solvers section of the config.
When none are configured, any solver id whose stake meets stake.min_stake
may evaluate.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		fmt.Fprintf(os.Stderr, "Minimum stake: %s\n\n", a.cfg.Stake.MinStake)
		if a.solvers == nil {
			fmt.Fprintln(os.Stderr, "No registered solvers (open registration)")
			return nil
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "SOLVER\tSTAKE\tACTIVE\tREGISTERED")
		for _, s := range a.solvers.List() {
			fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", s.ID, s.Stake, s.Active, s.RegisteredAt.Local().Format("2006-01-02 15:04"))
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(solversCmd)
}
