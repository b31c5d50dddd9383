package ai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"time"
)

type retryPolicy struct {
	timeout  time.Duration
	attempts int
	base     time.Duration
	max      time.Duration
}

// backoff yields successive jittered delays capped at max.
type backoff struct {
	next time.Duration
	max  time.Duration
}

func (p retryPolicy) backoff() *backoff { return &backoff{next: p.base, max: p.max} }

func (b *backoff) delay() time.Duration {
	d := withJitter(b.next)
	if b.max > 0 && d > b.max {
		d = b.max
	}
	b.next *= 2
	return d
}

// withJitter spreads d by +/- 20%.
func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return time.Duration(float64(d) * (0.8 + rand.Float64()*0.4))
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

func retryableNetErr(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string) (time.Duration, error) {
	if v == "" {
		return 0, errors.New("empty Retry-After")
	}
	if s, err := strconv.Atoi(v); err == nil {
		if s < 0 {
			s = 0
		}
		return time.Duration(s) * time.Second, nil
	}
	if t, err := http.ParseTime(v); err == nil {
		return max(time.Until(t), 0), nil
	}
	return 0, fmt.Errorf("invalid Retry-After: %q", v)
}

// postJSON sends payload to endpoint, retrying 429/5xx responses and
// transient network errors under policy. A 2xx body is handed to decode.
func postJSON(ctx context.Context, hc *http.Client, p retryPolicy, endpoint string, header http.Header, payload []byte, decode func(*http.Response) error) error {
	bo := p.backoff()
	var lastErr error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header = header.Clone()
		req.Header.Set("Content-Type", "application/json")

		resp, err := hc.Do(req)
		if err != nil {
			lastErr = &UnreachableError{Host: req.URL.Host, Err: err}
			if retryableNetErr(err) && attempt < p.attempts {
				if err := sleep(ctx, bo.delay()); err != nil {
					return err
				}
				continue
			}
			return lastErr
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			err = decode(resp)
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			return nil
		}

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		resp.Body.Close()
		lastErr = classify(decodeAPIError(resp, body), resp)
		if !retryableStatus(resp.StatusCode) || attempt == p.attempts {
			return lastErr
		}
		wait := bo.delay()
		if ra, err := parseRetryAfter(resp.Header.Get("Retry-After")); err == nil {
			wait = ra
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
	return lastErr
}
