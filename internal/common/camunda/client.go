// internal/common/camunda/client.go
package camunda

import (
	"context"
	"fmt"
	"strings"
	"time"

	"hire-onboarding/internal/common/errors"
	"hire-onboarding/internal/common/retry"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// Client publishes lifecycle messages to a Zeebe gateway.
type Client struct {
	client zbc.Client
	config *ClientConfig
}

// ClientConfig holds configuration for the Zeebe client.
type ClientConfig struct {
	GatewayAddress         string
	UsePlaintextConnection bool
	ConnectionTimeout      time.Duration
	RequestTimeout         time.Duration
	Retry                  retry.Policy
}

// DefaultRetry backs off 1s, 2s, 4s between the four publish attempts.
var DefaultRetry = retry.Exponential(4, time.Second, 10*time.Second)

// NewClient creates a plaintext client with default timeouts and verifies the broker
// with a topology request.
func NewClient(address string) (*Client, error) {
	config := &ClientConfig{
		GatewayAddress:         address,
		UsePlaintextConnection: true,
		ConnectionTimeout:      10 * time.Second,
		RequestTimeout:         30 * time.Second,
		Retry:                  DefaultRetry,
	}

	zeebeClient, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         config.GatewayAddress,
		UsePlaintextConnection: config.UsePlaintextConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Zeebe client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.ConnectionTimeout)
	defer cancel()

	if _, err := zeebeClient.NewTopologyCommand().Send(ctx); err != nil {
		zeebeClient.Close()
		return nil, fmt.Errorf("failed to connect to Zeebe broker at %s: %w", config.GatewayAddress, err)
	}

	return &Client{client: zeebeClient, config: config}, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// PublishMessage publishes a message correlated by correlationKey. messageID makes
// repeated publishes of the same logical message idempotent within ttl.
func (c *Client) PublishMessage(ctx context.Context, name, correlationKey, messageID string, ttl time.Duration, variables interface{}) error {
	return c.send(ctx, "publish-message", func(ctx context.Context) error {
		cmd, err := c.client.NewPublishMessageCommand().
			MessageName(name).
			CorrelationKey(correlationKey).
			MessageId(messageID).
			TimeToLive(ttl).
			VariablesFromObject(variables)
		if err != nil {
			return err
		}
		reqCtx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
		defer cancel()
		_, err = cmd.Send(reqCtx)
		return err
	})
}

// send runs cmd under the client's retry policy. Only transient gateway errors are
// retried; the final failure is mapped to an application error.
func (c *Client) send(ctx context.Context, operation string, cmd func(context.Context) error) error {
	var last error
	attempts := 0
	err := retry.Poll(ctx, c.config.Retry, func(ctx context.Context, attempt int) (bool, error) {
		attempts = attempt
		last = cmd(ctx)
		if last == nil {
			return true, nil
		}
		if !isRetryableZeebeError(last) {
			return false, retry.Permanent(last)
		}
		return false, last
	})
	if err == nil {
		return nil
	}
	if last == nil || ctx.Err() != nil {
		return fmt.Errorf("zeebe %s: %w", operation, err)
	}
	return mapZeebeError(last, operation, attempts)
}

var retryablePhrases = []string{
	"connection refused",
	"connection reset",
	"timeout",
	"deadline exceeded",
	"unavailable",
	"unreachable",
	"broken pipe",
}

func isRetryableZeebeError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, phrase := range retryablePhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

// mapZeebeError converts a gateway failure into an application error.
func mapZeebeError(err error, operation string, attempts int) error {
	msg := fmt.Sprintf("zeebe %s failed after %d attempt(s)", operation, attempts)

	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "permission denied"), strings.Contains(lower, "unauthorized"):
		return errors.NewUnauthorizedError(fmt.Sprintf("%s: %v", msg, err))
	case strings.Contains(lower, "already exists"):
		// same message id still buffered
		return nil
	default:
		return errors.NewIntegrationError("zeebe", fmt.Errorf("%s: %w", msg, err))
	}
}

// HealthCheck sends a topology request to the gateway.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.ConnectionTimeout)
	defer cancel()

	if _, err := c.client.NewTopologyCommand().Send(ctx); err != nil {
		return fmt.Errorf("zeebe health check failed: %w", err)
	}
	return nil
}
