package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewDeliveryCmd создаёт группу команд для доставок в CRM.
func NewDeliveryCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delivery",
		Short: "Manage CRM deliveries",
	}

	cmd.AddCommand(
		newDeliveryListCmd(clientFn, outputFn),
		newDeliveryEnqueueCmd(clientFn, outputFn),
	)

	return cmd
}

func newDeliveryListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var opts ListOpts

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List deliveries",
		RunE: func(cmd *cobra.Command, args []string) error {
			deliveries, err := clientFn().ListDeliveries(opts)
			if err != nil {
				return err
			}

			headers := []string{"ID", "LEAD_ID", "STATUS", "ATTEMPTS", "NEXT_ATTEMPT", "LAST_ERROR"}
			rows := make([][]string, len(deliveries))
			for i, d := range deliveries {
				rows[i] = []string{
					d.ID, d.LeadID, d.Status, strconv.Itoa(d.Attempts),
					d.NextAttemptAt, truncate(d.LastError, 60),
				}
			}

			outputFn().Print(headers, rows, deliveries)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.AccountID, "account-id", "", "Filter by account ID")
	cmd.Flags().StringVar(&opts.LeadID, "lead-id", "", "Filter by lead ID")
	cmd.Flags().StringVar(&opts.Status, "status", "", "Filter by status (queued, sent, failed, dead)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Max results")

	return cmd
}

func newDeliveryEnqueueCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var accountID string

	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Create deliveries for leads that have none",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := clientFn().EnqueueDeliveries(accountID)
			if err != nil {
				return err
			}

			outputFn().Success(fmt.Sprintf("Deliveries enqueued: %d", n))
			return nil
		},
	}

	cmd.Flags().StringVar(&accountID, "account-id", "", "Limit to account ID")

	return cmd
}
