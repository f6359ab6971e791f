// Package fetch downloads LOTL and Trusted List documents, archives them under
// the raw directory and records their digests.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"tlwatch/internal/trustlist/models"
	"tlwatch/pkg/platform/circuit"
	"tlwatch/pkg/platform/sentinel"
)

// MaxDocumentBytes caps a single download. The full EU LOTL is a few MB.
const MaxDocumentBytes = 64 << 20

// Document is one downloaded file. Body is the exact bytes written to Source.Path.
type Document struct {
	Source models.Source
	Body   []byte
}

type Fetcher struct {
	client   *http.Client
	rawDir   string
	attempts int
	initial  time.Duration
	max      time.Duration
	logger   *slog.Logger
	clock    func() time.Time

	mu       sync.Mutex
	breakers map[string]*circuit.Breaker
}

type Option func(*Fetcher)

func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithRetry sets the attempt count and the backoff bounds between attempts.
func WithRetry(attempts int, initial, max time.Duration) Option {
	return func(f *Fetcher) {
		f.attempts = attempts
		f.initial = initial
		f.max = max
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(f *Fetcher) {
		if clock != nil {
			f.clock = clock
		}
	}
}

func New(rawDir string, opts ...Option) (*Fetcher, error) {
	if rawDir == "" {
		return nil, fmt.Errorf("raw directory is required")
	}
	f := &Fetcher{
		client:   NewHTTPClient(60 * time.Second),
		rawDir:   rawDir,
		attempts: 3,
		initial:  time.Second,
		max:      10 * time.Second,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		clock:    func() time.Time { return time.Now().UTC() },
		breakers: make(map[string]*circuit.Breaker),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Fetch downloads rawURL and writes it to the raw directory. countryCode is empty
// for the LOTL. The returned Source has no RunID; the caller assigns it.
func (f *Fetcher) Fetch(ctx context.Context, kind models.SourceType, countryCode, rawURL string) (*Document, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	breaker := f.breaker(u.Host)
	if !breaker.Allow() {
		return nil, fmt.Errorf("fetch %s: host %s is failing: %w", rawURL, u.Host, sentinel.ErrUnavailable)
	}

	var body []byte
	err = retry(ctx, f.attempts, f.initial, f.max,
		func(attempt int, err error) {
			f.logger.WarnContext(ctx, "retrying download",
				"url", rawURL,
				"country_code", countryCode,
				"attempt", attempt+1,
				"error", err,
			)
		},
		func() error {
			var getErr error
			body, getErr = f.get(ctx, rawURL)
			return getErr
		},
	)
	if err != nil {
		if _, change := breaker.RecordFailure(); change.Opened {
			f.logger.ErrorContext(ctx, "download circuit opened", "host", u.Host)
		}
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	breaker.RecordSuccess()

	fetchedAt := f.clock()
	path := filepath.Join(f.rawDir, SafeFilename(string(kind), countryCode, fetchedAt))
	if err := os.MkdirAll(f.rawDir, 0o755); err != nil {
		return nil, fmt.Errorf("create raw directory: %w", err)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", path, err)
	}

	sum := sha256.Sum256(body)
	return &Document{
		Source: models.Source{
			SourceType:  kind,
			CountryCode: countryCode,
			URL:         rawURL,
			FetchedAt:   fetchedAt,
			SHA256:      hex.EncodeToString(sum[:]),
			Bytes:       int64(len(body)),
			Path:        path,
		},
		Body: body,
	}, nil
}

func (f *Fetcher) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, permanent(err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("unexpected status %s", resp.Status)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, permanent(err)
		}
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxDocumentBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(body) > MaxDocumentBytes {
		return nil, permanent(fmt.Errorf("document exceeds %d bytes", MaxDocumentBytes))
	}
	return body, nil
}

func (f *Fetcher) breaker(host string) *circuit.Breaker {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.breakers[host]
	if !ok {
		b = circuit.New(host, circuit.WithFailureThreshold(3), circuit.WithCooldown(5*time.Minute))
		f.breakers[host] = b
	}
	return b
}

// SafeFilename names an archived document: prefix[_CC]_<UTC timestamp>.xml.
func SafeFilename(prefix, countryCode string, at time.Time) string {
	ts := at.UTC().Format("2006-01-02T150405") + "_0000"
	if countryCode != "" {
		return fmt.Sprintf("%s_%s_%s.xml", prefix, countryCode, ts)
	}
	return fmt.Sprintf("%s_%s.xml", prefix, ts)
}
