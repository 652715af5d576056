package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/recodarr/recodarr/internal/models"
	"github.com/recodarr/recodarr/internal/probe"
	"github.com/recodarr/recodarr/internal/version"
)

// ErrUnauthorized is returned when the service rejects the API key.
var ErrUnauthorized = errors.New("invalid API key (401 Unauthorized)")

// SystemStatus is the identity a catalog service reports on a successful
// connectivity test.
type SystemStatus struct {
	AppName      string `json:"appName"`
	Version      string `json:"version"`
	InstanceName string `json:"instanceName"`
}

// Candidate is one downloaded file a catalog knows about, carrying the specs
// the catalog reports so the scan pipeline can skip probing.
type Candidate struct {
	FilePath      string
	FileSizeBytes int64
	Specs         models.MediaSpecs
}

// Client speaks the v3 JSON API of one catalog service instance.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	retries uint64
	logger  *slog.Logger
}

// NewClient creates a client for a service. baseURL is the root without the
// /api/v3 suffix.
func NewClient(baseURL, apiKey string, timeout time.Duration, retries int, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if retries < 0 {
		retries = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		retries: uint64(retries),
		logger:  logger.With(slog.String("component", "external")),
	}
}

// Test verifies connectivity and credentials via /system/status. Transport
// failures come back as friendly, user-displayable errors.
func (c *Client) Test(ctx context.Context) (*SystemStatus, error) {
	var status SystemStatus
	if err := c.get(ctx, "/system/status", nil, &status); err != nil {
		return nil, friendlyError(err, c.baseURL)
	}
	return &status, nil
}

// mediaInfo is the codec metadata catalogs attach to files. Movie catalogs
// call the resolution field videoResolution, series catalogs just resolution.
type mediaInfo struct {
	VideoCodec      string `json:"videoCodec"`
	VideoResolution string `json:"videoResolution"`
	Resolution      string `json:"resolution"`
	VideoBitrate    int64  `json:"videoBitrate"`
}

func (m mediaInfo) resolution() string {
	if m.VideoResolution != "" {
		return m.VideoResolution
	}
	return m.Resolution
}

type movieFile struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	MediaInfo mediaInfo `json:"mediaInfo"`
}

type movieRecord struct {
	ID        int64      `json:"id"`
	Title     string     `json:"title"`
	MovieFile *movieFile `json:"movieFile"`
}

type seriesRecord struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

type episodeFileRecord struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	MediaInfo mediaInfo `json:"mediaInfo"`
}

// PullMovies fetches the movie inventory, keeping only records with a
// downloaded file.
func (c *Client) PullMovies(ctx context.Context) ([]Candidate, error) {
	var movies []movieRecord
	if err := c.get(ctx, "/movie", nil, &movies); err != nil {
		return nil, friendlyError(err, c.baseURL)
	}

	candidates := make([]Candidate, 0, len(movies))
	for _, movie := range movies {
		if movie.MovieFile == nil || movie.MovieFile.Path == "" {
			continue
		}
		candidates = append(candidates, Candidate{
			FilePath:      movie.MovieFile.Path,
			FileSizeBytes: movie.MovieFile.Size,
			Specs:         catalogSpecs(movie.MovieFile.MediaInfo, string(models.KindCatalogMovie)),
		})
	}
	return candidates, nil
}

// PullSeries fetches the series inventory, then the episode files per
// series. A failing series is skipped, not fatal to the pull.
func (c *Client) PullSeries(ctx context.Context) ([]Candidate, error) {
	var series []seriesRecord
	if err := c.get(ctx, "/series", nil, &series); err != nil {
		return nil, friendlyError(err, c.baseURL)
	}

	var candidates []Candidate
	for _, s := range series {
		if s.ID == 0 {
			continue
		}
		var files []episodeFileRecord
		params := url.Values{"seriesId": {strconv.FormatInt(s.ID, 10)}}
		if err := c.get(ctx, "/episodefile", params, &files); err != nil {
			c.logger.Warn("episode file fetch failed",
				slog.Int64("series_id", s.ID),
				slog.String("error", err.Error()))
			continue
		}
		for _, file := range files {
			if file.Path == "" {
				continue
			}
			candidates = append(candidates, Candidate{
				FilePath:      file.Path,
				FileSizeBytes: file.Size,
				Specs:         catalogSpecs(file.MediaInfo, string(models.KindCatalogSeries)),
			})
		}
	}
	return candidates, nil
}

// RegisterWebhook installs this service as a notification target so download
// events push instead of waiting for the next sync.
func (c *Client) RegisterWebhook(ctx context.Context, webhookURL string) error {
	payload := map[string]any{
		"name":           "Recodarr",
		"implementation": "Webhook",
		"configContract": "WebhookSettings",
		"fields": []map[string]any{
			{"name": "url", "value": webhookURL},
			{"name": "method", "value": 1}, // POST
		},
		"onDownload": true,
		"onUpgrade":  true,
		"onRename":   false,
		"onDelete":   false,
		"tags":       []int{},
	}
	if err := c.post(ctx, "/notification", payload, nil); err != nil {
		return friendlyError(err, c.baseURL)
	}
	return nil
}

// catalogSpecs converts reported media info into the spec snapshot the scan
// pipeline consumes. Codecs normalise through the same table probing uses.
func catalogSpecs(mi mediaInfo, source string) models.MediaSpecs {
	return models.MediaSpecs{
		Codec:      probe.NormalizeCodec(mi.VideoCodec),
		Resolution: mi.resolution(),
		BitRate:    mi.VideoBitrate,
		Source:     source,
	}
}

type httpStatusError struct {
	code int
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.code)
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, params, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out)
}

// do performs one API call with exponential backoff on transient failures.
// Auth and client errors are permanent and fail immediately.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, body, out any) error {
	endpoint := c.baseURL + "/api/v3" + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	call := func() error {
		var reader io.Reader
		if body != nil {
			data, err := json.Marshal(body)
			if err != nil {
				return backoff.Permanent(err)
			}
			reader = strings.NewReader(string(data))
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("X-Api-Key", c.apiKey)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", version.UserAgent())
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusUnauthorized {
			return backoff.Permanent(ErrUnauthorized)
		}
		if resp.StatusCode >= 400 {
			err := &httpStatusError{code: resp.StatusCode}
			if resp.StatusCode < 500 {
				return backoff.Permanent(err)
			}
			return err
		}
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("decoding %s response: %w", path, err))
		}
		return nil
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.retries), ctx)
	return backoff.Retry(call, policy)
}

// friendlyError rewrites transport failures into messages fit for the UI.
func friendlyError(err error, baseURL string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnauthorized) {
		return ErrUnauthorized
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errors.New("connection timed out")
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("cannot connect to %s, is it running?", baseURL)
	}
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return fmt.Errorf("service returned HTTP %d", statusErr.code)
	}
	return err
}
