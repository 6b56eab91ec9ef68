package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// NewTaskCmd создаёт группу команд для очереди задач скрейпера.
func NewTaskCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage scrape tasks",
	}

	cmd.AddCommand(
		newTaskListCmd(clientFn, outputFn),
		newTaskShowCmd(clientFn, outputFn),
		newTaskDiscoverCmd(clientFn, outputFn),
		newTaskReclaimCmd(clientFn, outputFn),
		newTaskRequeueCmd(clientFn, outputFn),
	)

	return cmd
}

var taskHeaders = []string{"ID", "TYPE", "CITY", "STATUS", "ATTEMPTS", "CLAIMED_BY", "LAST_ERROR"}

func taskRow(t TaskResponse) []string {
	return []string{
		t.ID, t.Type, t.City, t.Status, strconv.Itoa(t.Attempts), t.ClaimedBy, truncate(t.LastError, 60),
	}
}

func newTaskListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var opts ListOpts

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, err := clientFn().ListTasks(opts)
			if err != nil {
				return err
			}

			rows := make([][]string, len(tasks))
			for i, t := range tasks {
				rows[i] = taskRow(t)
			}

			outputFn().Print(taskHeaders, rows, tasks)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.AccountID, "account-id", "", "Filter by account ID")
	cmd.Flags().StringVar(&opts.City, "city", "", "Filter by city")
	cmd.Flags().StringVar(&opts.Type, "type", "", "Filter by type (discover, detail)")
	cmd.Flags().StringVar(&opts.Status, "status", "", "Filter by status")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Max results")

	return cmd
}

func newTaskShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:     "show ID",
		Aliases: []string{"get"},
		Short:   "Show task details",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := clientFn().GetTask(args[0])
			if err != nil {
				return err
			}

			outputFn().Print(taskHeaders, [][]string{taskRow(*task)}, task)
			return nil
		},
	}
}

func newTaskDiscoverCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var req CreateDiscoverRequest

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Enqueue a discover task for a city",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			res, err := clientFn().CreateDiscover(req)
			if err != nil {
				return err
			}

			if res.Created {
				out.Success(fmt.Sprintf("Discover task created: %s", res.Task.ID))
			} else {
				out.Success(fmt.Sprintf("Discover task already queued: %s", res.Task.ID))
			}
			out.Print(taskHeaders, [][]string{taskRow(res.Task)}, res)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.AccountID, "account-id", "", "Account ID (required)")
	cmd.Flags().StringVar(&req.City, "city", "", "City (required)")
	cmd.Flags().StringVar(&req.IndexURL, "index-url", "", "Index page URL")
	cmd.MarkFlagRequired("account-id")
	cmd.MarkFlagRequired("city")

	return cmd
}

func newTaskReclaimCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "reclaim",
		Short: "Return tasks with expired claims to the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := clientFn().ReclaimTasks(olderThan)
			if err != nil {
				return err
			}

			outputFn().Success(fmt.Sprintf("Tasks reclaimed: %d", n))
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Claim age (default: server visibility timeout)")

	return cmd
}

func newTaskRequeueCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var req RequeueRequest

	cmd := &cobra.Command{
		Use:   "requeue [ID...]",
		Short: "Return failed tasks to the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			req.IDs = args

			n, err := clientFn().RequeueTasks(req)
			if err != nil {
				return err
			}

			outputFn().Success(fmt.Sprintf("Tasks requeued: %d", n))
			return nil
		},
	}

	cmd.Flags().StringVar(&req.AccountID, "account-id", "", "Filter by account ID")
	cmd.Flags().StringVar(&req.City, "city", "", "Filter by city")
	cmd.Flags().StringVar(&req.ReasonPrefix, "reason", "", "Filter by last error prefix")

	return cmd
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
