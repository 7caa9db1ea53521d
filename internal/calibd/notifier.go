package calibd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/readout-calibration/pkg/config"
	"github.com/GoSim-25-26J-441/readout-calibration/pkg/logger"
	"github.com/GoSim-25-26J-441/readout-calibration/pkg/models"
	"github.com/GoSim-25-26J-441/readout-calibration/pkg/utils"
)

// CallbackSecretHeader carries the per-job callback secret.
const CallbackSecretHeader = "X-Readout-Callback-Secret"

var (
	ErrInvalidURL       = errors.New("invalid callback URL")
	ErrMetadataEndpoint = errors.New("callback URL targets a metadata endpoint")
	ErrInternalHost     = errors.New("callback URL targets an internal address")
)

var metadataHosts = map[string]bool{
	"169.254.169.254":          true,
	"metadata.google.internal": true,
	"metadata":                 true,
}

// validateCallbackURL rejects non-HTTP schemes, cloud metadata endpoints and
// literal private or loopback IPs. The hostname localhost is allowed for development.
func validateCallbackURL(raw string) error {
	u, err := url.Parse(strings.ReplaceAll(raw, "{job_id}", "job"))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https", ErrInvalidURL)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("%w: missing hostname", ErrInvalidURL)
	}
	if metadataHosts[strings.ToLower(host)] {
		return fmt.Errorf("%w: %s", ErrMetadataEndpoint, host)
	}
	if ip := net.ParseIP(host); ip != nil {
		if ip.IsUnspecified() || isPrivateIP(ip) {
			return fmt.Errorf("%w: %s", ErrInternalHost, host)
		}
	}
	return nil
}

func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast()
}

// NotificationPayload is the JSON body posted to a job's callback URL.
type NotificationPayload struct {
	JobID           string                     `json:"job_id"`
	Status          JobStatus                  `json:"status"`
	CreatedAtUnixMs int64                      `json:"created_at_unix_ms"`
	StartedAtUnixMs int64                      `json:"started_at_unix_ms,omitempty"`
	EndedAtUnixMs   int64                      `json:"ended_at_unix_ms,omitempty"`
	Error           string                     `json:"error,omitempty"`
	Best            *models.OptimizationResult `json:"best,omitempty"`
	Evaluated       int                        `json:"evaluated"`
	Failures        int                        `json:"failures"`
	Timestamp       int64                      `json:"timestamp"`
}

// Notifier posts job completion callbacks with retries.
type Notifier struct {
	httpClient *http.Client
	maxRetries int
	backoff    utils.BackoffStrategy

	wg sync.WaitGroup
}

// NewNotifier creates a notifier from the callback settings.
func NewNotifier(cfg config.Callback) *Notifier {
	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: cfg.MaxRetries,
		backoff:    utils.BackoffFromConfig(cfg.Backoff, cfg.BaseMs, 0),
	}
}

// Notify posts the job state to callbackURL in the background.
func (n *Notifier) Notify(callbackURL, callbackSecret string, job *Job) {
	if callbackURL == "" {
		return
	}
	if job == nil {
		logger.Warn("cannot notify: nil job", "callback_url", callbackURL)
		return
	}
	if err := validateCallbackURL(callbackURL); err != nil {
		logger.Warn("callback URL rejected", "job_id", job.ID, "error", err)
		return
	}

	finalURL := strings.ReplaceAll(callbackURL, "{job_id}", url.PathEscape(job.ID))
	payload := NotificationPayload{
		JobID:           job.ID,
		Status:          job.Status,
		CreatedAtUnixMs: job.CreatedAtUnixMs,
		StartedAtUnixMs: job.StartedAtUnixMs,
		EndedAtUnixMs:   job.EndedAtUnixMs,
		Error:           job.Error,
		Best:            job.Best,
		Evaluated:       job.Evaluated,
		Failures:        job.Failures,
		Timestamp:       time.Now().UTC().UnixMilli(),
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.send(context.Background(), finalURL, callbackSecret, payload)
	}()
}

// Wait blocks until queued notifications have been delivered or given up.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func (n *Notifier) send(ctx context.Context, callbackURL, callbackSecret string, payload NotificationPayload) {
	body, err := json.Marshal(payload)
	if err != nil {
		logger.Error("failed to marshal notification payload", "job_id", payload.JobID, "error", err)
		return
	}

	var lastErr error
	for attempt := 0; attempt <= n.maxRetries; attempt++ {
		if attempt > 0 {
			delay := n.backoff.NextDelay(attempt - 1)
			logger.Debug("retrying notification", "job_id", payload.JobID, "attempt", attempt, "delay", delay)
			if err := utils.Sleep(ctx, delay); err != nil {
				return
			}
		}

		lastErr = n.post(ctx, callbackURL, callbackSecret, body)
		if lastErr == nil {
			logger.Info("notification sent", "job_id", payload.JobID, "status", payload.Status)
			return
		}
		logger.Warn("notification attempt failed", "job_id", payload.JobID, "attempt", attempt+1, "error", lastErr)
	}

	logger.Error("failed to send notification after retries",
		"job_id", payload.JobID,
		"max_retries", n.maxRetries,
		"last_error", lastErr)
}

func (n *Notifier) post(ctx context.Context, callbackURL, callbackSecret string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "readout-calibration/1.0")
	if callbackSecret != "" {
		req.Header.Set(CallbackSecretHeader, callbackSecret)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
	return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, snippet)
}
