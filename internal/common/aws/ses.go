// internal/common/aws/ses.go
package aws

import (
	"context"
	"fmt"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESService is the subset of the SES API used here.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// Email is a single outbound message.
type Email struct {
	From     string
	To       []string
	Subject  string
	HTMLBody string
	TextBody string
}

type SESClient struct {
	client SESService
}

func NewSESClient(ctx context.Context, region string) (*SESClient, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return &SESClient{client: ses.NewFromConfig(cfg)}, nil
}

// NewSESClientWithService wraps an existing SES implementation, e.g. a test double.
func NewSESClientWithService(svc SESService) *SESClient {
	return &SESClient{client: svc}
}

// Send delivers e and returns the SES message id.
func (s *SESClient) Send(ctx context.Context, e Email) (string, error) {
	if len(e.To) == 0 {
		return "", fmt.Errorf("ses: no recipients")
	}
	body := &types.Body{}
	if e.HTMLBody != "" {
		body.Html = &types.Content{Data: sdkaws.String(e.HTMLBody), Charset: sdkaws.String("UTF-8")}
	}
	text := e.TextBody
	if text == "" {
		text = e.HTMLBody
	}
	body.Text = &types.Content{Data: sdkaws.String(text), Charset: sdkaws.String("UTF-8")}

	out, err := s.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{ToAddresses: e.To},
		Message: &types.Message{
			Subject: &types.Content{Data: sdkaws.String(e.Subject), Charset: sdkaws.String("UTF-8")},
			Body:    body,
		},
		Source: sdkaws.String(e.From),
	})
	if err != nil {
		return "", fmt.Errorf("ses send: %w", err)
	}
	return sdkaws.ToString(out.MessageId), nil
}
