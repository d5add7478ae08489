package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func jobsCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect background training jobs",
	}

	var (
		userID uint
		jobID  string
	)
	status := &cobra.Command{
		Use:   "status",
		Short: "Show the state of a training job",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := app.Queue.Status(cmd.Context(), userID, jobID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), job)
		},
	}
	status.Flags().UintVar(&userID, "user", 0, "Owner user id")
	status.Flags().StringVar(&jobID, "id", "", "Job id")
	_ = status.MarkFlagRequired("user")
	_ = status.MarkFlagRequired("id")

	cmd.AddCommand(status)
	return cmd
}

func workerCommand(app *App) *cobra.Command {
	var numWorkers int
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run pending training jobs until none is left",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app.Queue.Start(numWorkers)
			defer app.Queue.Stop()

			if err := app.Queue.WaitIdle(ctx); err != nil {
				return err
			}
			for stalled := 0; ; {
				done := app.Queue.Processed()
				queued, err := app.Queue.ResumePending(ctx)
				if err != nil {
					return err
				}
				if queued == 0 {
					break
				}
				if err := app.Queue.WaitIdle(ctx); err != nil {
					return err
				}
				if app.Queue.Processed() > done {
					stalled = 0
					continue
				}
				// a job claimed by another process drops out of the pending
				// list, so one still listed after two idle passes is stuck
				if stalled++; stalled == 2 {
					return fmt.Errorf("%d pending training job(s) could not be started", queued)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "processed %d training job(s)\n", app.Queue.Processed())
			return nil
		},
	}
	cmd.Flags().IntVar(&numWorkers, "workers", app.NumWorkers, "Number of concurrent trainings")
	return cmd
}
