package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/reputationai/reputation-audit/internal/model"
	"github.com/reputationai/reputation-audit/internal/store"
)

var runsFilter = struct {
	owner  string
	status string
	limit  int
	offset int
}{}

var runsCmd = &cobra.Command{
	Use:   "runs [id]",
	Short: "List audit runs, or show a single run by id",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := newStore(ctx, cfg.Store)
		if err != nil {
			return eris.Wrap(err, "cmd: open store")
		}
		defer st.Close()

		var id string
		if len(args) == 1 {
			id = args[0]
		}
		out, err := lookupRuns(ctx, st, id, store.RunFilter{
			OwnerID: runsFilter.owner,
			Status:  model.RunStatus(runsFilter.status),
			Limit:   runsFilter.limit,
			Offset:  runsFilter.offset,
		})
		if err != nil {
			return err
		}
		return printJSON(out)
	},
}

// lookupRuns returns the single run for id when one is given, otherwise the
// filtered list. A missing id is an error; an empty list is not.
func lookupRuns(ctx context.Context, st store.Store, id string, filter store.RunFilter) (any, error) {
	if id != "" {
		run, err := st.GetRun(ctx, id)
		if err != nil {
			return nil, eris.Wrap(err, "cmd: load run")
		}
		if run == nil {
			return nil, eris.Errorf("cmd: run %s not found", id)
		}
		return run, nil
	}

	runs, err := st.ListRuns(ctx, filter)
	if err != nil {
		return nil, eris.Wrap(err, "cmd: list runs")
	}
	return runs, nil
}

func init() {
	runsCmd.Flags().StringVar(&runsFilter.owner, "owner", "", "filter by owner identifier")
	runsCmd.Flags().StringVar(&runsFilter.status, "status", "", "filter by run status")
	runsCmd.Flags().IntVar(&runsFilter.limit, "limit", 50, "maximum rows returned")
	runsCmd.Flags().IntVar(&runsFilter.offset, "offset", 0, "rows to skip")
	rootCmd.AddCommand(runsCmd)
}
