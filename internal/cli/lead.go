package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// NewLeadCmd создаёт группу команд для лидов и касаний.
func NewLeadCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lead",
		Short: "Manage leads and touches",
	}

	cmd.AddCommand(
		newLeadShowCmd(clientFn, outputFn),
		newLeadStateCmd(clientFn, outputFn),
		newLeadEnrollCmd(clientFn, outputFn),
		newLeadTouchesCmd(clientFn, outputFn),
		newLeadSendCmd(clientFn, outputFn),
		newTouchExecuteCmd(clientFn, outputFn),
	)

	return cmd
}

var touchHeaders = []string{"ID", "STEP", "CHANNEL", "STATUS", "SCHEDULED", "SENT", "ERROR"}

func touchRow(t TouchResponse) []string {
	return []string{
		t.ID, strconv.Itoa(t.Step), t.Channel, t.Status, t.ScheduledAt, t.SentAt, truncate(t.Error, 60),
	}
}

func newLeadShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:     "show ID",
		Aliases: []string{"get"},
		Short:   "Show lead details",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lead, err := clientFn().GetLead(args[0])
			if err != nil {
				return err
			}

			outputFn().Print(
				[]string{"ID", "CITY", "STATE", "PHONE", "EMAIL", "LISTING_URL"},
				[][]string{{lead.ID, lead.City, lead.State, lead.Phone, lead.Email, lead.ListingURL}},
				lead,
			)
			return nil
		},
	}
}

func newLeadStateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "state ID STATE",
		Short: "Move a lead to a new state (dead, qualified, ...)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := clientFn().SetLeadState(args[0], args[1])
			if err != nil {
				return err
			}

			out := outputFn()
			out.Success(fmt.Sprintf("Lead %s is %s, touches canceled: %d", res.Lead.ID, res.Lead.State, res.Canceled))
			out.Print(
				[]string{"ID", "STATE", "CANCELED"},
				[][]string{{res.Lead.ID, res.Lead.State, strconv.Itoa(res.Canceled)}},
				res,
			)
			return nil
		},
	}
}

func newLeadEnrollCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var file string
	var name string
	var campaignID string
	var steps []string
	var startAt string

	cmd := &cobra.Command{
		Use:   "enroll LEAD_ID",
		Short: "Enroll a lead into a campaign",
		Long: `Enroll a lead into a campaign.

The campaign is read from a JSON file (--file, "-" for stdin) or built from
--step flags in the form OFFSET:CHANNEL, e.g. --step 0:email --step 48h:sms.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			var req EnrollRequest
			if file != "" {
				data, err := readFileOrStdin(file)
				if err != nil {
					return err
				}
				if err := json.Unmarshal(data, &req); err != nil {
					return fmt.Errorf("invalid campaign JSON: %w", err)
				}
			}
			if name != "" {
				req.Name = name
			}
			if campaignID != "" {
				req.CampaignID = campaignID
			}
			for _, s := range steps {
				step, err := parseStep(s)
				if err != nil {
					return err
				}
				req.Steps = append(req.Steps, step)
			}
			if startAt != "" {
				t, err := time.Parse(time.RFC3339, startAt)
				if err != nil {
					return fmt.Errorf("invalid --start-at: %w", err)
				}
				req.StartAt = &t
			}

			res, err := clientFn().EnrollLead(args[0], req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Touches planned: %d", res.Inserted))
			rows := make([][]string, len(res.Touches))
			for i, t := range res.Touches {
				rows[i] = touchRow(t)
			}
			out.Print(touchHeaders, rows, res)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Campaign JSON file (- for stdin)")
	cmd.Flags().StringVar(&name, "name", "", "Campaign name")
	cmd.Flags().StringVar(&campaignID, "campaign-id", "", "Campaign ID")
	cmd.Flags().StringArrayVar(&steps, "step", nil, "Step as OFFSET:CHANNEL (repeatable)")
	cmd.Flags().StringVar(&startAt, "start-at", "", "Campaign start time (RFC3339, default: now)")

	return cmd
}

// parseStep разбирает "48h:sms" в CampaignStep.
func parseStep(s string) (CampaignStep, error) {
	offset, channel, ok := strings.Cut(s, ":")
	if !ok || channel == "" {
		return CampaignStep{}, fmt.Errorf("invalid step %q, expected OFFSET:CHANNEL", s)
	}
	d, err := time.ParseDuration(offset)
	if err != nil {
		return CampaignStep{}, fmt.Errorf("invalid step offset %q: %w", offset, err)
	}
	return CampaignStep{OffsetSec: int(d.Seconds()), Channel: channel}, nil
}

func newLeadTouchesCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "touches LEAD_ID",
		Short: "List touches of a lead",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			touches, err := clientFn().ListTouches(args[0])
			if err != nil {
				return err
			}

			rows := make([][]string, len(touches))
			for i, t := range touches {
				rows[i] = touchRow(t)
			}
			outputFn().Print(touchHeaders, rows, touches)
			return nil
		},
	}
}

func newLeadSendCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var channel string
	var fields []string

	cmd := &cobra.Command{
		Use:   "send LEAD_ID",
		Short: "Send an ad-hoc touch to a lead",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			payload, err := parseKeyValues(fields)
			if err != nil {
				return err
			}

			touch, err := clientFn().SendTouch(args[0], channel, payload)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Touch %s: %s", touch.ID, touch.Status))
			out.Print(touchHeaders, [][]string{touchRow(*touch)}, touch)
			return nil
		},
	}

	cmd.Flags().StringVar(&channel, "channel", "", "Channel: email, sms, whatsapp, voice (required)")
	cmd.Flags().StringSliceVar(&fields, "set", nil, "Payload field as KEY=VALUE (repeatable)")
	cmd.MarkFlagRequired("channel")

	return cmd
}

func newTouchExecuteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "execute TOUCH_ID",
		Short: "Send a planned touch now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			touch, err := clientFn().ExecuteTouch(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Touch %s: %s", touch.ID, touch.Status))
			out.Print(touchHeaders, [][]string{touchRow(*touch)}, touch)
			return nil
		},
	}
}

func parseKeyValues(kvs []string) (map[string]any, error) {
	if len(kvs) == 0 {
		return nil, nil
	}
	m := make(map[string]any, len(kvs))
	for _, kv := range kvs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("invalid format %q, expected KEY=VALUE", kv)
		}
		m[k] = v
	}
	return m, nil
}

func readFileOrStdin(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}
