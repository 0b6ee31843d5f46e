package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	pingProviders bool
	pingTimeout   time.Duration
)

// providersCmd represents the providers command
var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List configured evidence providers",
	Long: `List the providers that answer questions, in rank order. Providers that
could not be created (for example without an API key) are reported as
warnings and left out.

Example:
  veracity providers
  veracity providers --ping`,
	Args: cobra.NoArgs,
	RunE: runProviders,
}

func init() {
	rootCmd.AddCommand(providersCmd)

	providersCmd.Flags().BoolVar(&pingProviders, "ping", false, "check that each provider is reachable")
	providersCmd.Flags().DurationVar(&pingTimeout, "timeout", 10*time.Second, "timeout per ping")
}

func runProviders(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	entries := a.gateway.Providers()
	if len(entries) == 0 {
		fmt.Fprintln(os.Stderr, "No providers available")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	if pingProviders {
		fmt.Fprintln(tw, "RANK\tPROVIDER\tPRIORITY\tSTATUS")
	} else {
		fmt.Fprintln(tw, "RANK\tPROVIDER\tPRIORITY")
	}

	var failed int
	for rank, e := range entries {
		if !pingProviders {
			fmt.Fprintf(tw, "%d\t%s\t%d\n", rank, e.Provider.Name(), e.Priority)
			continue
		}

		pctx, cancel := context.WithTimeout(ctx, pingTimeout)
		start := time.Now()
		err := e.Provider.Ping(pctx)
		cancel()

		status := fmt.Sprintf("ok (%s)", time.Since(start).Round(time.Millisecond))
		if err != nil {
			failed++
			status = "✗ " + err.Error()
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", rank, e.Provider.Name(), e.Priority, status)
	}
	_ = tw.Flush()

	if failed > 0 {
		return fmt.Errorf("%d of %d providers unreachable", failed, len(entries))
	}
	return nil
}
