package telegram

import (
	"errors"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"time"
)

const (
	clientTimeout  = 30 * time.Second
	retryAttempts  = 3
	retryBaseDelay = 2 * time.Second
)

// newHTTPClient builds the Bot API client: short dial and header timeouts
// and retries of transient network failures.
func newHTTPClient() *http.Client {
	base := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 5 * time.Second,
	}
	return &http.Client{
		Timeout:   clientTimeout,
		Transport: &retrying{next: base, attempts: retryAttempts, delay: retryBaseDelay},
	}
}

// retrying re-sends a request after a transient network error, waiting
// delay*n before attempt n+1. HTTP error statuses are returned as is.
type retrying struct {
	next     http.RoundTripper
	attempts int
	delay    time.Duration
}

func (r *retrying) RoundTrip(req *http.Request) (*http.Response, error) {
	var err error
	for n := 1; ; n++ {
		attempt := req
		if n > 1 {
			if attempt, err = rewind(req); err != nil {
				return nil, err
			}
		}
		var resp *http.Response
		resp, err = r.next.RoundTrip(attempt)
		if err == nil {
			return resp, nil
		}
		if n >= r.attempts || !retryable(err) {
			return nil, err
		}
		if err := sleepCtx(req, r.delay*time.Duration(n)); err != nil {
			return nil, err
		}
	}
}

// rewind clones req with a fresh body for another attempt.
func rewind(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return clone, nil
	}
	if req.GetBody == nil {
		return nil, errors.New("telegram: request body cannot be replayed")
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	clone.Body = body
	return clone, nil
}

func sleepCtx(req *http.Request, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-req.Context().Done():
		return req.Context().Err()
	case <-t.C:
		return nil
	}
}

// retryable reports transient transport failures: timeouts, failed dials and
// reset connections.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
