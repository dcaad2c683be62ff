package solver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/goccy/go-json"

	appLog "schedgen/internal/log"
	"schedgen/internal/model"
)

const (
	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 16 << 20
)

var (
	// ErrServiceUnreachable reports a connection-level failure: the
	// scheduling service could not be reached at all.
	ErrServiceUnreachable = errors.New("solver: scheduling service unreachable")
	// ErrFetchFailed reports any other failure to obtain schedules,
	// including a response that is neither a schedule list nor an error.
	ErrFetchFailed = errors.New("solver: failed to fetch schedules")
)

// ServiceError carries the human-readable message of an {"error": ...}
// response.
type ServiceError struct {
	Message string
}

func (e *ServiceError) Error() string {
	return e.Message
}

// Client posts encoded requests to the scheduling service.
type Client struct {
	client *http.Client
	url    string
}

// NewClient creates a Client for the service root endpoint url. A zero
// timeout uses a 30 second default.
func NewClient(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		client: &http.Client{
			Timeout: timeout,
		},
		url: url,
	}
}

// Generate sends body and returns the candidate schedules. Errors are a
// *ServiceError, or wrap ErrServiceUnreachable or ErrFetchFailed.
func (c *Client) Generate(ctx context.Context, body string) ([]model.Schedule, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	req.Header.Set("Content-Type", "text/plain")

	appLog.Info("solver request start", "url", redactURL(c.url), "body_bytes", len(body))
	start := time.Now()

	resp, err := c.client.Do(req)
	if err != nil {
		if isConnectFailure(err) {
			return nil, fmt.Errorf("%w: %v", ErrServiceUnreachable, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrFetchFailed, err)
	}

	schedules, err := DecodeResponse(data)
	if err != nil {
		appLog.Error("solver request failed", err, "url", redactURL(c.url), "status", resp.StatusCode)
		return nil, err
	}

	appLog.Info("solver request success",
		"url", redactURL(c.url),
		"status", resp.StatusCode,
		"schedule_count", len(schedules),
		"elapsed", time.Since(start),
	)
	return schedules, nil
}

// DecodeResponse interprets a service response body. The HTTP status is not
// consulted: the body alone decides between a schedule list and an error.
func DecodeResponse(data []byte) ([]model.Schedule, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrFetchFailed)
	}

	switch data[0] {
	case '[':
		var schedules []model.Schedule
		if err := json.Unmarshal(data, &schedules); err != nil {
			return nil, fmt.Errorf("%w: decode schedules: %v", ErrFetchFailed, err)
		}
		if schedules == nil {
			schedules = []model.Schedule{}
		}
		return schedules, nil
	case '{':
		var obj struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, fmt.Errorf("%w: decode error object: %v", ErrFetchFailed, err)
		}
		if obj.Error == "" {
			return nil, fmt.Errorf("%w: object response without error", ErrFetchFailed)
		}
		return nil, &ServiceError{Message: obj.Error}
	default:
		return nil, fmt.Errorf("%w: unexpected response", ErrFetchFailed)
	}
}

// isConnectFailure reports errors meaning no connection to the service was
// established.
func isConnectFailure(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	return false
}

// redactURL keeps only the scheme and host of u for logging.
func redactURL(u string) string {
	i := strings.Index(u, "://")
	if i == -1 {
		return "solver://...(redacted)"
	}
	rest := u[i+3:]
	if j := strings.IndexByte(rest, '/'); j != -1 {
		rest = rest[:j]
	}
	return u[:i+3] + rest + "/"
}
