package cli

import (
	"github.com/spf13/cobra"

	"github.com/pixelrelay/pixelrelay-cloud/internal/app"
)

func newDeliverCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "deliver",
		Short: "Run one delivery pass over pending and retrying logs",
		Long: "Claims due delivery logs, attempts each once against its destination, " +
			"and exits. Meant to be driven by cron or a job runner; the service " +
			"never schedules passes on its own.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.RunDeliveryPass(limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum logs to claim this pass (0 uses WORKER_BATCH_LIMIT)")

	return cmd
}
