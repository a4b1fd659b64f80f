// Package fetch is the read-only contract-call transport: ABI-encoded eth_call
// over a retrying HTTP client, rate limited and guarded by a circuit breaker per
// network.
package fetch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

// newRetryClient creates a new HTTP client with retry capabilities
func newRetryClient(retryMax int, timeout time.Duration) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = retryMax
	c.RetryWaitMin = 500 * time.Millisecond
	c.RetryWaitMax = 3 * time.Second
	c.HTTPClient.Timeout = timeout
	c.Logger = retryLogger{}
	return c
}

// StandardClient converts a retryablehttp.Client to a standard http.Client
func StandardClient(retryClient *retryablehttp.Client) *http.Client {
	return retryClient.StandardClient()
}

// dial connects an ethclient to endpoint through httpClient
func dial(ctx context.Context, endpoint string, httpClient *http.Client) (*ethclient.Client, error) {
	rc, err := rpc.DialOptions(ctx, endpoint, rpc.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("error dialing %s: %w", endpoint, err)
	}
	return ethclient.NewClient(rc), nil
}

// retryLogger routes retryablehttp's leveled logs into logrus
type retryLogger struct{}

func (retryLogger) fields(keysAndValues []interface{}) *logrus.Entry {
	f := logrus.Fields{"component": "rpc-http"}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		f[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return logrus.WithFields(f)
}

func (l retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.fields(keysAndValues).Error(msg)
}

func (l retryLogger) Info(msg string, keysAndValues ...interface{}) {
	l.fields(keysAndValues).Debug(msg)
}

func (l retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.fields(keysAndValues).Debug(msg)
}

func (l retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.fields(keysAndValues).Warn(msg)
}
