package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/Sternrassler/exorde-client/pkg/output"
	"github.com/Sternrassler/exorde-client/pkg/pagination"
	"github.com/spf13/cobra"
)

// dateLayout prints item dates the way the API writes them.
const dateLayout = "2006-01-02T15:04:05.000Z"

func newHistoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Fetch one metric for a flat keyword expression into a JSON array",
		Example: `  exorde-fetch history --endpoint /volume/history \
    --start-date 2024-07-01T00:00:00.000Z --end-date 2024-08-01T00:00:00.000Z \
    --keywords 'msft,$msft,microsoft' --condition or -o response.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.bindFlags(cmd.Flags(), historyBindings); err != nil {
				return err
			}
			return a.runHistory(cmd)
		},
	}

	flags := cmd.Flags()
	flags.String("endpoint", "", "endpoint path or URL (default /volume/history)")
	flags.String("keywords", "", "comma separated keywords")
	addFilterFlags(cmd)
	return cmd
}

var historyBindings = withFilterBindings(map[string]string{
	"fetch.endpoint": "endpoint",
	"fetch.keywords": "keywords",
})

// addFilterFlags registers the filters shared by history and groups.
func addFilterFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("start-date", "", "ISO-8601 start of the range")
	flags.String("end-date", "", "ISO-8601 end of the range")
	flags.Int("interval", 60, "aggregation interval in minutes")
	flags.Int("limit", 100, "page size")
	flags.String("condition", "or", "keyword match condition (or, and)")
}

// withFilterBindings adds the bindings of addFilterFlags to bindings.
func withFilterBindings(bindings map[string]string) map[string]string {
	bindings["fetch.start_date"] = "start-date"
	bindings["fetch.end_date"] = "end-date"
	bindings["fetch.interval"] = "interval"
	bindings["fetch.limit"] = "limit"
	bindings["fetch.condition"] = "condition"
	return bindings
}

func (a *app) runHistory(cmd *cobra.Command) error {
	rt, err := a.setup(cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	spec := rt.cfg.RequestSpec()
	result, fetchErr := rt.fetcher.FetchAll(cmd.Context(), spec)
	if result == nil {
		return fetchErr
	}

	// Partial results are written too; the fetch error is returned afterwards.
	if err := output.WriteJSON(rt.cfg.Output.Path, result.Items, rt.cfg.OutputOptions()); err != nil {
		return errors.Join(fetchErr, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Data written to %s\n", rt.cfg.Output.Path)
	printSummary(out, result)

	if fetchErr != nil {
		rt.logger.Error().Err(fetchErr).Str("endpoint", spec.Endpoint).Msg("Fetch incomplete")
	}
	return fetchErr
}

func printSummary(w io.Writer, result *pagination.Result) {
	summary, err := pagination.Summarize(result)
	if errors.Is(err, pagination.ErrEmptyResult) {
		fmt.Fprintf(w, "Total pages : %d\n", result.Pages)
		fmt.Fprintln(w, "No items fetched")
		return
	}

	fmt.Fprintf(w, "Total pages : %d\n", summary.Pages)
	fmt.Fprintf(w, "Total items fetched: %d\n", summary.Items)
	if !summary.FirstEndDate.IsZero() {
		fmt.Fprintf(w, "first fetched item date: %s\n", summary.FirstEndDate.UTC().Format(dateLayout))
	}
	if !summary.LastEndDate.IsZero() {
		fmt.Fprintf(w, "last fetched item date: %s\n", summary.LastEndDate.UTC().Format(dateLayout))
	}
}
