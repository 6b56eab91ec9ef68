package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewScheduleCmd создаёт группу команд для управления расписаниями discover.
func NewScheduleCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage discover schedules",
	}

	cmd.AddCommand(
		newScheduleListCmd(clientFn, outputFn),
		newScheduleCreateCmd(clientFn, outputFn),
		newScheduleShowCmd(clientFn, outputFn),
		newScheduleUpdateCmd(clientFn, outputFn),
		newScheduleDeleteCmd(clientFn, outputFn),
		newScheduleEnableCmd(clientFn, outputFn),
		newScheduleDisableCmd(clientFn, outputFn),
	)

	return cmd
}

var scheduleHeaders = []string{"ID", "CITY", "CRON", "INTERVAL", "TIMEZONE", "ENABLED", "NEXT_DUE"}

func scheduleRow(s ScheduleResponse) []string {
	return []string{
		s.ID, s.City, s.CronExpr, formatInterval(s.IntervalSec), s.Timezone,
		strconv.FormatBool(s.Enabled), s.NextDueAt,
	}
}

func newScheduleListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var opts ListOpts

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			schedules, err := clientFn().ListSchedules(opts)
			if err != nil {
				return err
			}

			rows := make([][]string, len(schedules))
			for i, s := range schedules {
				rows[i] = scheduleRow(s)
			}

			outputFn().Print(scheduleHeaders, rows, schedules)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.AccountID, "account-id", "", "Filter by account ID")
	cmd.Flags().StringVar(&opts.City, "city", "", "Filter by city")

	return cmd
}

func newScheduleCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var req CreateScheduleRequest

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a discover schedule for a city",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			schedule, err := clientFn().CreateSchedule(req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Schedule created: %s", schedule.ID))
			out.Print(scheduleHeaders, [][]string{scheduleRow(*schedule)}, schedule)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.AccountID, "account-id", "", "Account ID (required)")
	cmd.Flags().StringVar(&req.City, "city", "", "City (required)")
	cmd.Flags().StringVar(&req.IndexURL, "index-url", "", "Index page URL")
	cmd.Flags().StringVar(&req.CronExpr, "cron", "", "Cron expression (e.g. '0 9 * * *')")
	cmd.Flags().IntVar(&req.IntervalSec, "interval", 0, "Interval in seconds")
	cmd.Flags().StringVar(&req.Timezone, "timezone", "", "Timezone (e.g. 'America/Chicago')")
	cmd.MarkFlagRequired("account-id")
	cmd.MarkFlagRequired("city")

	return cmd
}

func newScheduleShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:     "show ID",
		Aliases: []string{"get"},
		Short:   "Show schedule details",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schedule, err := clientFn().GetSchedule(args[0])
			if err != nil {
				return err
			}

			outputFn().Print(scheduleHeaders, [][]string{scheduleRow(*schedule)}, schedule)
			return nil
		},
	}
}

func newScheduleUpdateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var city string
	var indexURL string
	var cronExpr string
	var intervalSec int
	var timezone string

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Update a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			req := UpdateScheduleRequest{}
			if cmd.Flags().Changed("city") {
				req.City = &city
			}
			if cmd.Flags().Changed("index-url") {
				req.IndexURL = &indexURL
			}
			if cmd.Flags().Changed("cron") {
				req.CronExpr = &cronExpr
			}
			if cmd.Flags().Changed("interval") {
				req.IntervalSec = &intervalSec
			}
			if cmd.Flags().Changed("timezone") {
				req.Timezone = &timezone
			}

			schedule, err := clientFn().UpdateSchedule(args[0], req)
			if err != nil {
				return err
			}

			out.Success("Schedule updated")
			out.Print(scheduleHeaders, [][]string{scheduleRow(*schedule)}, schedule)
			return nil
		},
	}

	cmd.Flags().StringVar(&city, "city", "", "New city")
	cmd.Flags().StringVar(&indexURL, "index-url", "", "New index page URL")
	cmd.Flags().StringVar(&cronExpr, "cron", "", "New cron expression")
	cmd.Flags().IntVar(&intervalSec, "interval", 0, "New interval in seconds")
	cmd.Flags().StringVar(&timezone, "timezone", "", "New timezone")

	return cmd
}

func newScheduleDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := clientFn().DeleteSchedule(args[0]); err != nil {
				return err
			}

			outputFn().Success(fmt.Sprintf("Schedule deleted: %s", args[0]))
			return nil
		},
	}
}

func newScheduleEnableCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "enable ID",
		Short: "Enable a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := clientFn().SetScheduleEnabled(args[0], true); err != nil {
				return err
			}

			outputFn().Success(fmt.Sprintf("Schedule enabled: %s", args[0]))
			return nil
		},
	}
}

func newScheduleDisableCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "disable ID",
		Short: "Disable a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := clientFn().SetScheduleEnabled(args[0], false); err != nil {
				return err
			}

			outputFn().Success(fmt.Sprintf("Schedule disabled: %s", args[0]))
			return nil
		},
	}
}

func formatInterval(sec int) string {
	if sec <= 0 {
		return ""
	}
	return strconv.Itoa(sec) + "s"
}
