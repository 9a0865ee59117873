// Package watch implements the watch command: launch a job and follow
// its event stream with a live progress bar.
package watch

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/progress"
	"github.com/spf13/cobra"

	"github.com/4liaghaie/scraper-dashboard/internal/client"
	"github.com/4liaghaie/scraper-dashboard/internal/jobs"
	"github.com/4liaghaie/scraper-dashboard/internal/logger"
	"github.com/4liaghaie/scraper-dashboard/internal/params"
	"github.com/4liaghaie/scraper-dashboard/internal/retry"
)

const renderInterval = 100 * time.Millisecond

// Command returns the watch command.
func Command() *cobra.Command {
	var (
		serverURL string
		paramsRaw string
		jobID     string
	)

	cmd := &cobra.Command{
		Use:   "watch [kind]",
		Short: "Launch a job and follow its progress",
		Long: `Launches a job of the given kind and renders its event stream as a
progress bar. With --job it attaches to an existing job instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if jobID == "" && len(args) == 0 {
				return fmt.Errorf("either a kind argument or --job is required")
			}

			var seed params.Values
			if paramsRaw != "" {
				if err := json.Unmarshal([]byte(paramsRaw), &seed); err != nil {
					return fmt.Errorf("parse --params: %w", err)
				}
			}

			kind := ""
			if len(args) > 0 {
				kind = args[0]
			}
			return run(cmd, serverURL, kind, jobID, seed)
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "dashboard server URL")
	cmd.Flags().StringVar(&paramsRaw, "params", "", "parameter overrides as a JSON object")
	cmd.Flags().StringVar(&jobID, "job", "", "attach to an existing job id instead of launching")
	return cmd
}

func run(cmd *cobra.Command, serverURL, kind, jobID string, seed params.Values) error {
	c := client.New(serverURL, logger.NewNop(),
		client.WithResubscribe(retry.StreamConfig()),
	)
	ctx := cmd.Context()

	if jobID == "" {
		snap, err := c.Start(ctx, kind, seed)
		if err != nil {
			return fmt.Errorf("start %s: %w", kind, err)
		}
		jobID = snap.ID
		fmt.Fprintf(os.Stdout, "started %s as job %s\n", kind, jobID)
	}

	sub, err := c.Subscribe(ctx, jobID)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", jobID, err)
	}
	defer sub.Close()

	pw := progress.NewWriter()
	pw.SetOutputWriter(os.Stdout)
	pw.SetUpdateFrequency(renderInterval)
	pw.Style().Visibility.ETA = true
	go pw.Render()
	defer pw.Stop()

	tracker := &progress.Tracker{Message: jobID, Units: progress.UnitsDefault}
	pw.AppendTracker(tracker)

	ticker := time.NewTicker(renderInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sub.Done():
			return finish(tracker, sub.View())
		case <-ticker.C:
			render(tracker, sub.View())
		}
	}
}

// render mirrors the current view onto the tracker.
func render(tracker *progress.Tracker, view client.View) {
	snap := view.Snapshot
	tracker.UpdateTotal(int64(snap.Total))
	tracker.SetValue(int64(snap.Done))
	if snap.Note != "" {
		tracker.UpdateMessage(fmt.Sprintf("%s  %s", snap.ID, snap.Note))
	}
}

// finish settles the tracker for the terminal state and reports it.
func finish(tracker *progress.Tracker, view client.View) error {
	render(tracker, view)
	snap := view.Snapshot

	switch snap.Status {
	case jobs.StatusDone:
		tracker.MarkAsDone()
		fmt.Fprintf(os.Stdout, "\ndone: %d processed, %d ok, %d failed\n", snap.Done, snap.OK, snap.Err)
		return nil
	case jobs.StatusCancelled:
		tracker.MarkAsErrored()
		fmt.Fprintf(os.Stdout, "\ncancelled after %d items\n", snap.Done)
		return nil
	case jobs.StatusError:
		tracker.MarkAsErrored()
		return fmt.Errorf("job failed: %s", snap.Note)
	default:
		tracker.MarkAsErrored()
		if view.LastErr != nil {
			return fmt.Errorf("stream lost: %w", view.LastErr)
		}
		return fmt.Errorf("stream ended before the job finished")
	}
}
