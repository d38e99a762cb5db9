package main

import (
	"errors"
	"fmt"

	"github.com/Sternrassler/exorde-client/pkg/output"
	"github.com/spf13/cobra"
)

func newGroupsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "groups",
		Short: "Fetch keyword groups, optionally across several endpoints, into a nested JSON object",
		Long: `Fetches every keyword group of fetch.keyword_groups (config file) one after
the other. With --endpoints the whole batch runs per endpoint and the output
is keyed by endpoint, then by group label.`,
		Example: `  exorde-fetch groups --config job.yaml \
    --endpoints /volume/history,/sentiment/history -o response.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.bindFlags(cmd.Flags(), groupsBindings); err != nil {
				return err
			}
			return a.runGroups(cmd)
		},
	}

	flags := cmd.Flags()
	flags.String("endpoint", "", "endpoint path or URL when --endpoints is not set")
	flags.StringSlice("endpoints", nil, "endpoint paths or URLs, fetched in order")
	flags.String("format", "structured", "structured, or text to also print the result")
	addFilterFlags(cmd)
	return cmd
}

var groupsBindings = withFilterBindings(map[string]string{
	"fetch.endpoint":  "endpoint",
	"fetch.endpoints": "endpoints",
	"fetch.format":    "format",
})

func (a *app) runGroups(cmd *cobra.Command) error {
	rt, err := a.setup(cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	req := rt.cfg.GroupRequest()
	if len(req.Groups) == 0 {
		return errors.New("fetch.keyword_groups is empty: define keyword groups in the config file")
	}

	endpoints := len(req.Endpoints)
	if endpoints == 0 {
		endpoints = 1
	}
	rt.logger.Info().
		Int("endpoints", endpoints).
		Int("groups", len(req.Groups)).
		Msg("Fetching keyword groups")

	collection, fetchErr := rt.fetcher.CollectKeywordGroups(cmd.Context(), req)
	if collection == nil {
		return fetchErr
	}

	if err := output.WriteJSON(rt.cfg.Output.Path, collection.Value(), rt.cfg.OutputOptions()); err != nil {
		return errors.Join(fetchErr, err)
	}

	out := cmd.OutOrStdout()
	if collection.Text != "" {
		fmt.Fprintln(out, collection.Text)
	}
	fmt.Fprintf(out, "Data written to %s\n", rt.cfg.Output.Path)

	if fetchErr != nil {
		rt.logger.Error().Err(fetchErr).Msg("Some keyword groups are incomplete")
	}
	return fetchErr
}
