package channels

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/shaiso/Prospector/internal/domain"
)

// SESAPI — часть клиента sesv2, которую использует SESSender.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSender отправляет email-касания через Amazon SES.
//
// Payload касания: subject, body.
type SESSender struct {
	client SESAPI
	from   string
}

// NewSESSender создаёт SESSender с клиентом из стандартной цепочки AWS-конфигурации.
func NewSESSender(ctx context.Context, from string) (*SESSender, error) {
	if from == "" {
		return nil, fmt.Errorf("ses sender: from address is not set")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewSESSenderWithClient(sesv2.NewFromConfig(cfg), from), nil
}

// NewSESSenderWithClient создаёт SESSender с готовым клиентом.
func NewSESSenderWithClient(client SESAPI, from string) *SESSender {
	return &SESSender{client: client, from: from}
}

func (s *SESSender) Send(ctx context.Context, touch *domain.TouchRun, lead *domain.Lead) (string, error) {
	to := lead.Email
	if to == "" {
		to = lead.Listing.SellerEmail
	}
	if to == "" {
		return "", fmt.Errorf("%w: email", ErrNoRecipient)
	}

	subject := payloadString(touch.Payload, "subject")
	if subject == "" {
		subject = lead.Listing.Title
	}

	out, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject)},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(payloadString(touch.Payload, "body"))},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: ses: %v", ErrProvider, err)
	}
	return aws.ToString(out.MessageId), nil
}
