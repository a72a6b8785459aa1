package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/randompersona1/ussplitter-server/internal/queue"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var counts bool

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List known jobs and their statuses",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			store, err := queue.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()

			if counts {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(queue.AllStatuses()))
				for _, status := range queue.AllStatuses() {
					rows = append(rows, []string{statusLabel(status), strconv.Itoa(stats[status])})
				}
				fmt.Fprintln(out, renderTable(out, []string{"Status", "Jobs"}, rows))
				return nil
			}

			jobs, err := store.ListStatuses(cmd.Context())
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				fmt.Fprintln(out, "No jobs.")
				return nil
			}

			rows := make([][]string, 0, len(jobs))
			for _, job := range jobs {
				rows = append(rows, []string{job.ID, statusLabel(job.Status)})
			}
			fmt.Fprintln(out, renderTable(out, []string{"Job", "Status"}, rows))
			return nil
		},
	}

	cmd.Flags().BoolVar(&counts, "counts", false, "Print the per-status job counts instead of the job list")
	return cmd
}

func statusLabel(status queue.Status) string {
	return cases.Title(language.Und).String(strings.ToLower(string(status)))
}
