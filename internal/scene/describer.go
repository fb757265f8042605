package scene

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"clawnema/internal/config"
	"clawnema/internal/logger"
)

const unavailableDescription = "Scene analysis unavailable"

// Fallbacks is the pool served when the upstream cannot produce a description.
var Fallbacks = []string{
	"A breathtaking view of the city skyline at night, with dazzling lights reflecting off the river.",
	"The drone show forms a giant tiger in the sky, illuminating the darkness with orange and black lights.",
	"A peaceful jazz cafe scene with a saxophonist playing under warm, dim lighting.",
	"A busy intersection with cars streaming by, their headlights creating streaks of light.",
	"A stunning display of coordinated lights dancing across the night sky.",
	"The serenity of the scene invites quiet contemplation and appreciation.",
	"Vibrant colors and movements create a mesmerizing visual experience.",
}

type Description struct {
	Text         string
	UsedFallback bool
	Attempts     int
	Timestamp    time.Time
}

type Describer struct {
	APIKey      string
	URL         string
	Condition   string
	MaxAttempts int
	Client      *http.Client
	Timer       backoff.Timer
	Pick        func(n int) int
	Logger      *logger.Logger
	Metrics     *Metrics
	Now         func() time.Time
}

func NewDescriber(cfg config.SceneConfig, l *logger.Logger, m *Metrics) *Describer {
	return &Describer{
		APIKey:      cfg.APIKey,
		URL:         cfg.APIURL,
		Condition:   cfg.Condition,
		MaxAttempts: cfg.MaxAttempts,
		Client:      &http.Client{Timeout: cfg.RequestTimeout},
		Pick:        rand.Intn,
		Logger:      l,
		Metrics:     m,
		Now:         time.Now,
	}
}

type checkRequest struct {
	StreamURL string `json:"stream_url"`
	Condition string `json:"condition"`
}

type checkResponse struct {
	Explanation string `json:"explanation"`
	Result      string `json:"result"`
	Description string `json:"description"`
}

func (r checkResponse) text() string {
	switch {
	case r.Explanation != "":
		return r.Explanation
	case r.Result != "":
		return r.Result
	case r.Description != "":
		return r.Description
	}
	return unavailableDescription
}

// statusError is a non-2xx answer from the upstream.
type statusError struct {
	Code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, http.StatusText(e.Code))
}

func (e *statusError) retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// Describe never fails. Upstream 429 and 5xx answers back off attempt*2s,
// network errors back off attempt*1s, any other status goes straight to the
// fallback pool. No delay follows the final attempt.
func (d *Describer) Describe(ctx context.Context, streamURL string) Description {
	if d.APIKey == "" {
		d.Logger.LogScene("FALLBACK", "No API key configured, using fallback response")
		return d.fallback("no_api_key", 0)
	}

	policy := &upstreamBackOff{max: d.MaxAttempts}
	if policy.max < 1 {
		policy.max = 1
	}

	var text, reason string
	op := func() error {
		policy.attempt++
		d.Logger.LogScene("ATTEMPT", fmt.Sprintf("Attempt %d/%d for stream %s", policy.attempt, policy.max, truncate(streamURL, 50)))

		out, err := d.call(ctx, streamURL)
		if err == nil {
			text = out
			return nil
		}

		var se *statusError
		if errors.As(err, &se) {
			if !se.retryable() {
				d.Metrics.attempt("rejected")
				d.Logger.Error("SCENE", fmt.Sprintf("Upstream refused request: %v", se))
				reason = "rejected"
				return backoff.Permanent(se)
			}
			d.Metrics.attempt("retryable")
			policy.step = 2 * time.Second
			return se
		}

		d.Metrics.attempt("network_error")
		d.Logger.Warn("SCENE", fmt.Sprintf("Attempt %d failed: %v", policy.attempt, err))
		if ctx.Err() != nil {
			reason = "cancelled"
			return backoff.Permanent(err)
		}
		policy.step = time.Second
		return err
	}
	notify := func(err error, wait time.Duration) {
		d.Logger.LogScene("RETRY", fmt.Sprintf("%v, retry in %s", err, wait))
	}

	err := backoff.RetryNotifyWithTimer(op, backoff.WithContext(policy, ctx), notify, d.Timer)
	if err == nil {
		d.Metrics.attempt("ok")
		d.Logger.LogScene("SUCCESS", fmt.Sprintf("Described stream on attempt %d", policy.attempt))
		return Description{Text: text, Attempts: policy.attempt, Timestamp: d.now()}
	}

	switch {
	case reason != "":
	case ctx.Err() != nil:
		reason = "cancelled"
	default:
		reason = "exhausted"
		d.Logger.Warn("SCENE", fmt.Sprintf("All %d attempts failed, using fallback response", policy.attempt))
	}
	return d.fallback(reason, policy.attempt)
}

// upstreamBackOff waits attempt*step after each failed attempt, where the
// last failure picks step, and stops once max attempts have been made.
type upstreamBackOff struct {
	max     int
	attempt int
	step    time.Duration
}

func (b *upstreamBackOff) Reset() {
	b.attempt = 0
}

func (b *upstreamBackOff) NextBackOff() time.Duration {
	if b.attempt >= b.max {
		return backoff.Stop
	}
	return time.Duration(b.attempt) * b.step
}

func (d *Describer) call(ctx context.Context, streamURL string) (string, error) {
	payload, err := json.Marshal(checkRequest{StreamURL: streamURL, Condition: d.Condition})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+d.APIKey)

	resp, err := d.client().Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &statusError{Code: resp.StatusCode}
	}

	var body checkResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode upstream response: %w", err)
	}
	return body.text(), nil
}

func (d *Describer) fallback(reason string, attempts int) Description {
	d.Metrics.fallback(reason)
	pick := rand.Intn
	if d.Pick != nil {
		pick = d.Pick
	}
	return Description{
		Text:         Fallbacks[pick(len(Fallbacks))],
		UsedFallback: true,
		Attempts:     attempts,
		Timestamp:    d.now(),
	}
}

func (d *Describer) client() *http.Client {
	if d.Client != nil {
		return d.Client
	}
	return http.DefaultClient
}

func (d *Describer) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
