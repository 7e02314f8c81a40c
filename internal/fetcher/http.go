package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"pricewatch/internal/quote"
	"pricewatch/internal/version"
)

const maxBodyBytes = 1 << 20

// HTTPOptions parameterise the HTTP quote fetcher.
type HTTPOptions struct {
	URL           string
	PricePath     string
	TimestampPath string
	Timeout       time.Duration
	UserAgent     string
	// RateLimit caps outbound requests per second; zero disables throttling.
	RateLimit float64
	// Now is the capture clock used when the provider asserts no time.
	Now func() time.Time
}

// HTTP fetches a JSON quote with a single GET request.
type HTTP struct {
	opts    HTTPOptions
	logger  zerolog.Logger
	client  *http.Client
	limiter *rate.Limiter
	now     func() time.Time
}

// NewHTTP constructs a quote fetcher.
func NewHTTP(opts HTTPOptions, logger zerolog.Logger) *HTTP {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if strings.TrimSpace(opts.PricePath) == "" {
		opts.PricePath = "bitcoin.usd"
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}

	return &HTTP{
		opts:    opts,
		logger:  logger.With().Str("component", "quote_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
		now:     now,
	}
}

// FetchQuote performs the provider call and extracts one observation.
//
// The observation time is chosen in this order: the configured timestamp
// path in the body, the HTTP Date header, then the local clock at capture.
func (h *HTTP) FetchQuote(ctx context.Context) (quote.Observation, error) {
	endpoint := strings.TrimSpace(h.opts.URL)
	if endpoint == "" {
		return quote.Observation{}, &quote.FetchError{Endpoint: "<unset>", Err: errors.New("provider url not configured")}
	}

	if h.limiter != nil {
		if err := h.limiter.Wait(ctx); err != nil {
			return quote.Observation{}, &quote.FetchError{Endpoint: endpoint, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return quote.Observation{}, &quote.FetchError{Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(h.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", version.UserAgent())
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return quote.Observation{}, &quote.FetchError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	captured := h.now().UTC()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return quote.Observation{}, &quote.FetchError{Endpoint: endpoint, Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return quote.Observation{}, &quote.FetchError{Endpoint: endpoint, Status: resp.StatusCode, Err: parseHTTPError(payload)}
	}

	if !gjson.ValidBytes(payload) {
		return quote.Observation{}, &quote.FetchError{Endpoint: endpoint, Status: resp.StatusCode, Err: errors.New("malformed json payload")}
	}

	observedAt, source := h.observedAt(payload, resp.Header, captured)
	obs := quote.ParseObservation(extractPrice(payload, h.opts.PricePath), observedAt, source)

	h.logger.Info().
		Str("price", obs.Raw).
		Time("observed_at", obs.ObservedAt).
		Str("time_source", string(obs.TimeSource)).
		Msg("quote fetched")
	return obs, nil
}

// extractPrice returns the textual price at path, or "" when absent.
// Non-numeric JSON values are returned verbatim for the validator to reject.
func extractPrice(payload []byte, path string) string {
	res := gjson.GetBytes(payload, path)
	if !res.Exists() || res.Type == gjson.Null {
		return ""
	}
	if res.Type == gjson.Number {
		return res.Raw
	}
	if res.Type == gjson.String {
		return strings.TrimSpace(res.Str)
	}
	return res.Raw
}

func (h *HTTP) observedAt(payload []byte, header http.Header, captured time.Time) (time.Time, quote.TimeSource) {
	if path := strings.TrimSpace(h.opts.TimestampPath); path != "" {
		if ts, ok := parsePayloadTime(gjson.GetBytes(payload, path)); ok {
			return ts, quote.TimeFromPayload
		}
	}
	if date := header.Get("Date"); date != "" {
		if ts, err := http.ParseTime(date); err == nil {
			return ts.UTC(), quote.TimeFromHeader
		}
		h.logger.Debug().Str("date", date).Msg("unparsable Date header; using capture time")
	}
	return captured, quote.TimeFromLocal
}

func parsePayloadTime(res gjson.Result) (time.Time, bool) {
	switch res.Type {
	case gjson.Number:
		secs := res.Int()
		if secs <= 0 {
			return time.Time{}, false
		}
		// Values this large are milliseconds.
		if secs > 1e12 {
			return time.UnixMilli(secs).UTC(), true
		}
		return time.Unix(secs, 0).UTC(), true
	case gjson.String:
		ts, err := time.Parse(time.RFC3339, res.Str)
		if err != nil {
			return time.Time{}, false
		}
		return ts.UTC(), true
	default:
		return time.Time{}, false
	}
}

func parseHTTPError(payload []byte) error {
	if gjson.ValidBytes(payload) {
		for _, key := range []string{"error", "status.error_message", "message", "description"} {
			if msg := gjson.GetBytes(payload, key).String(); msg != "" {
				return fmt.Errorf("provider error: %s", msg)
			}
		}
	}
	if body := strings.TrimSpace(string(payload)); body != "" {
		if len(body) > 256 {
			body = body[:256]
		}
		return fmt.Errorf("provider error: %s", body)
	}
	return errors.New("provider error")
}

var _ QuoteFetcher = (*HTTP)(nil)
