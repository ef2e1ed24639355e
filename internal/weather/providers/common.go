package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
)

// maxBodyBytes bounds how much of a response body is read.
const maxBodyBytes = 1 << 20

var (
	errRateLimited  = errors.New("rate limited")
	errServerError  = errors.New("server error")
	errCircuitOpen  = errors.New("circuit breaker open")
	errNoHTTPClient = errors.New("http client not configured")
)

// response is a fully read HTTP response.
type response struct {
	StatusCode int
	Body       []byte
}

// statusError is returned for 429 and 5xx responses. The body is kept so the
// caller can still look for an error payload in it.
type statusError struct {
	kind error
	resp response
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%v: %d", e.kind, e.resp.StatusCode)
}

func (e *statusError) Unwrap() error {
	return e.kind
}

// cancelled marks a breaker result whose request was abandoned by its caller.
type cancelled struct{ err error }

// redactURLError drops the query string from a *url.Error so credentials
// passed as query parameters never reach error messages.
func redactURLError(err error) error {
	var ue *url.Error
	if !errors.As(err, &ue) {
		return err
	}
	redacted := *ue
	if u, parseErr := url.Parse(ue.URL); parseErr == nil {
		u.RawQuery = ""
		u.User = nil
		redacted.URL = u.String()
	} else {
		redacted.URL = ""
	}
	return &redacted
}

func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})
}

// doGet executes a single GET through the circuit breaker and reads the body.
// There are no retries. A cancelled context is reported as ctx.Err() and is
// never counted as a breaker failure, since superseded requests are routine.
// 4xx responses are returned as-is because their body may carry an
// authoritative error payload.
func doGet(ctx context.Context, client *http.Client, cb *gobreaker.CircuitBreaker, rawURL string) (response, error) {
	if client == nil {
		return response{}, errNoHTTPClient
	}
	if err := ctx.Err(); err != nil {
		return response{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return response{}, redactURLError(err)
	}
	req.Header.Set("Accept", "application/json")

	result, err := cb.Execute(func() (interface{}, error) {
		resp, execErr := client.Do(req)
		if execErr != nil {
			if ctx.Err() != nil {
				return cancelled{err: ctx.Err()}, nil
			}
			return nil, redactURLError(execErr)
		}
		defer resp.Body.Close()

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if readErr != nil {
			if ctx.Err() != nil {
				return cancelled{err: ctx.Err()}, nil
			}
			return nil, readErr
		}

		r := response{StatusCode: resp.StatusCode, Body: body}
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return nil, &statusError{kind: errRateLimited, resp: r}
		case resp.StatusCode >= 500:
			return nil, &statusError{kind: errServerError, resp: r}
		}
		return r, nil
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return response{}, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}
		return response{}, err
	}

	switch r := result.(type) {
	case cancelled:
		return response{}, r.err
	case response:
		return r, nil
	default:
		return response{}, fmt.Errorf("unexpected result type from circuit breaker")
	}
}
