package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// NewWebhookCmd создаёт команды для отправки входящих событий (отладка интеграций).
func NewWebhookCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhook",
		Short: "Send inbound events",
	}

	cmd.AddCommand(newWebhookSendCmd(clientFn, outputFn))

	return cmd
}

func newWebhookSendCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var ev InboundEvent
	var secret string

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Post an inbound event to /webhooks/inbound",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			if ev.EventID == "" {
				ev.EventID = uuid.NewString()
			}

			res, err := clientFn().SendInbound(ev, secret)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Event %s: %s", ev.EventID, res.Result))
			out.Print(
				[]string{"RESULT", "LEAD_ID", "STATE", "DEDUPED", "CANCELED"},
				[][]string{{res.Result, res.LeadID, res.State, fmt.Sprint(res.Deduped), fmt.Sprint(res.Canceled)}},
				res,
			)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&ev.EventID, "event-id", "", "Event ID (default: random)")
	f.StringVar(&ev.AccountID, "account-id", "", "Account ID (required)")
	f.StringVar(&ev.Kind, "kind", "inbound_message", "Kind: inbound_message, appointment_booked, delivery_status")
	f.StringVar(&ev.LeadID, "lead-id", "", "Lead ID")
	f.StringVar(&ev.Email, "email", "", "Sender email")
	f.StringVar(&ev.Phone, "phone", "", "Sender phone")
	f.StringVar(&ev.Channel, "channel", "", "Channel")
	f.StringVar(&ev.TouchID, "touch-id", "", "Touch ID (delivery_status)")
	f.StringVar(&ev.Status, "status", "", "Provider status (delivery_status)")
	f.StringVar(&secret, "secret", "", "Webhook HMAC secret")
	cmd.MarkFlagRequired("account-id")

	return cmd
}
