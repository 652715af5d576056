package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/recodarr/recodarr/internal/config"
	"github.com/recodarr/recodarr/internal/models"
	"github.com/recodarr/recodarr/internal/probe"
	"github.com/recodarr/recodarr/internal/repository"
	"github.com/recodarr/recodarr/internal/scan"
)

var (
	// ErrConnectionNotFound is returned for an unknown connection ID.
	ErrConnectionNotFound = errors.New("connection not found")
	// ErrNoProfile means no profile could be resolved for pushed or pulled
	// candidates. Marking a profile as default fixes it.
	ErrNoProfile = errors.New("no default profile configured")
	// ErrSyncUnsupported is returned for kinds without a pull implementation.
	ErrSyncUnsupported = errors.New("sync not supported for this connection kind")
)

// SyncResult summarises one library pull.
type SyncResult struct {
	Candidates int `json:"candidates"`
	Queued     int `json:"queued"`
	Skipped    int `json:"skipped"`
	Errors     int `json:"errors"`
}

// PushResult is the verdict for one webhook delivery.
type PushResult struct {
	Queued  bool   `json:"queued"`
	Message string `json:"message"`
}

// Syncer owns catalog connections: tests, pulls, webhook registration, and
// pushes. All queue inserts go through the scan pipeline.
type Syncer struct {
	cfg         config.ExternalConfig
	connections repository.ConnectionRepository
	profiles    repository.ProfileRepository
	roots       repository.ScanRootRepository
	scanner     *scan.Scanner
	cipher      *Cipher
	logger      *slog.Logger
}

// NewSyncer creates a syncer. cipher may be nil only when no connection
// stores an API key. roots may be nil, in which case every candidate binds
// to the default profile.
func NewSyncer(
	cfg config.ExternalConfig,
	connections repository.ConnectionRepository,
	profiles repository.ProfileRepository,
	roots repository.ScanRootRepository,
	scanner *scan.Scanner,
	cipher *Cipher,
	logger *slog.Logger,
) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		cfg:         cfg,
		connections: connections,
		profiles:    profiles,
		roots:       roots,
		scanner:     scanner,
		cipher:      cipher,
		logger:      logger.With(slog.String("component", "external")),
	}
}

// client builds an API client for a stored connection.
func (s *Syncer) client(conn *models.ExternalConnection) (*Client, error) {
	apiKey := ""
	if conn.APIKeyEncrypted != "" {
		if s.cipher == nil {
			return nil, errors.New("no secret key configured to decrypt the API key")
		}
		decrypted, err := s.cipher.Decrypt(conn.APIKeyEncrypted)
		if err != nil {
			return nil, err
		}
		apiKey = decrypted
	}
	return NewClient(conn.BaseURL, apiKey, s.cfg.HTTPTimeout, s.cfg.RetryAttempts, s.logger), nil
}

// Test checks connectivity for a connection and stamps last_tested on
// success.
func (s *Syncer) Test(ctx context.Context, id models.ULID) (*SystemStatus, error) {
	conn, err := s.connections.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, ErrConnectionNotFound
	}
	client, err := s.client(conn)
	if err != nil {
		return nil, err
	}
	status, err := client.Test(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.connections.UpdateLastTested(ctx, id, time.Now()); err != nil {
		s.logger.Warn("stamping last_tested failed", slog.String("error", err.Error()))
	}
	return status, nil
}

// Sync pulls a connection's library and funnels every candidate through the
// scan pipeline. last_synced is stamped when the pull itself succeeded.
func (s *Syncer) Sync(ctx context.Context, id models.ULID) (*SyncResult, error) {
	conn, err := s.connections.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, ErrConnectionNotFound
	}
	client, err := s.client(conn)
	if err != nil {
		return nil, err
	}

	var candidates []Candidate
	switch conn.Kind {
	case models.KindCatalogMovie:
		candidates, err = client.PullMovies(ctx)
	case models.KindCatalogSeries:
		candidates, err = client.PullSeries(ctx)
	default:
		return nil, fmt.Errorf("%w: %s", ErrSyncUnsupported, conn.Kind)
	}
	if err != nil {
		return nil, err
	}

	defaultProfile, err := s.profiles.GetDefault(ctx)
	if err != nil {
		return nil, err
	}
	if defaultProfile == nil {
		return nil, ErrNoProfile
	}

	// Candidates under a scan root linked to this connection inherit the
	// root's profile and upscale settings.
	linked, err := s.linkedRoots(ctx, id)
	if err != nil {
		return nil, err
	}
	profileCache := map[models.ULID]*models.Profile{}

	result := &SyncResult{Candidates: len(candidates)}
	for _, candidate := range candidates {
		profile, root := defaultProfile, matchRoot(linked, candidate.FilePath)
		if root != nil {
			p, err := s.rootProfile(ctx, root, profileCache)
			if err != nil {
				return nil, err
			}
			if p != nil {
				profile = p
			} else {
				root = nil
			}
		}

		specs := candidate.Specs
		verdict, err := s.scanner.Process(ctx, candidate.FilePath, profile, root, &specs)
		if err != nil {
			result.Errors++
			s.logger.Warn("processing sync candidate failed",
				slog.String("path", candidate.FilePath),
				slog.String("error", err.Error()))
			continue
		}
		if verdict.Outcome == scan.OutcomeQueued {
			result.Queued++
		} else {
			result.Skipped++
		}
	}

	if err := s.connections.UpdateLastSynced(ctx, id, time.Now()); err != nil {
		s.logger.Warn("stamping last_synced failed", slog.String("error", err.Error()))
	}
	s.logger.Info("library sync complete",
		slog.String("connection", conn.Name),
		slog.Int("candidates", result.Candidates),
		slog.Int("queued", result.Queued))
	return result, nil
}

// SyncAll pulls every enabled connection. Per-connection failures are
// isolated.
func (s *Syncer) SyncAll(ctx context.Context) (*SyncResult, error) {
	conns, err := s.connections.GetEnabled(ctx)
	if err != nil {
		return nil, err
	}
	total := &SyncResult{}
	for _, conn := range conns {
		if conn.Kind == models.KindSceneLibrary {
			continue
		}
		result, err := s.Sync(ctx, conn.ID)
		if err != nil {
			total.Errors++
			s.logger.Error("connection sync failed",
				slog.String("connection", conn.Name),
				slog.String("error", err.Error()))
			continue
		}
		total.Candidates += result.Candidates
		total.Queued += result.Queued
		total.Skipped += result.Skipped
		total.Errors += result.Errors
	}
	return total, nil
}

// RegisterWebhook installs the push endpoint for a connection.
func (s *Syncer) RegisterWebhook(ctx context.Context, id models.ULID, publicURL string) (string, error) {
	conn, err := s.connections.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if conn == nil {
		return "", ErrConnectionNotFound
	}
	client, err := s.client(conn)
	if err != nil {
		return "", err
	}
	webhookURL := strings.TrimRight(publicURL, "/") + "/api/v1/webhooks/" + string(conn.Kind)
	if err := client.RegisterWebhook(ctx, webhookURL); err != nil {
		return "", err
	}
	return webhookURL, nil
}

// pushPayload is the subset of a download notification the handler reads.
// Movie events carry movieFile, series events episodeFile.
type pushPayload struct {
	EventType   string       `json:"eventType"`
	MovieFile   *movieFile   `json:"movieFile"`
	EpisodeFile *episodeFile `json:"episodeFile"`
}

type episodeFile struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	MediaInfo mediaInfo `json:"mediaInfo"`
}

// HandlePush processes one webhook delivery. Only Download and Upgrade
// events are actionable; everything else is acknowledged and ignored.
func (s *Syncer) HandlePush(ctx context.Context, kind models.ConnectionKind, payload []byte) (*PushResult, error) {
	var push pushPayload
	if err := json.Unmarshal(payload, &push); err != nil {
		return nil, fmt.Errorf("parsing webhook payload: %w", err)
	}

	s.logger.Info("webhook received",
		slog.String("kind", string(kind)),
		slog.String("event", push.EventType))

	if push.EventType != "Download" && push.EventType != "Upgrade" {
		return &PushResult{Message: fmt.Sprintf("event %q ignored", push.EventType)}, nil
	}

	// The payload's size field is advisory; the scan pipeline stats the file
	// itself before queueing.
	var path string
	var mi mediaInfo
	switch kind {
	case models.KindCatalogMovie:
		if push.MovieFile != nil {
			path = push.MovieFile.Path
			mi = push.MovieFile.MediaInfo
		}
	case models.KindCatalogSeries:
		if push.EpisodeFile != nil {
			path = push.EpisodeFile.Path
			mi = push.EpisodeFile.MediaInfo
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrSyncUnsupported, kind)
	}
	if path == "" {
		return nil, errors.New("no file path in webhook payload")
	}

	profile, root, err := s.pushTarget(ctx, path)
	if err != nil {
		return nil, err
	}

	specs := models.MediaSpecs{
		Codec:      probe.NormalizeCodec(mi.VideoCodec),
		Resolution: mi.resolution(),
		Source:     string(kind),
	}

	verdict, err := s.scanner.Process(ctx, path, profile, root, &specs)
	if err != nil {
		return nil, err
	}
	switch verdict.Outcome {
	case scan.OutcomeQueued:
		return &PushResult{Queued: true, Message: "queued: " + path}, nil
	case scan.OutcomePermissionError:
		return &PushResult{Message: "queued with permission error: " + verdict.Reason}, nil
	default:
		return &PushResult{Message: "skipped: " + verdict.Reason}, nil
	}
}

// linkedRoots returns the enabled scan roots linked to a connection.
func (s *Syncer) linkedRoots(ctx context.Context, connID models.ULID) ([]*models.ScanRoot, error) {
	if s.roots == nil {
		return nil, nil
	}
	roots, err := s.roots.GetByConnectionID(ctx, connID)
	if err != nil {
		return nil, err
	}
	enabled := roots[:0]
	for _, root := range roots {
		if models.BoolVal(root.Enabled) {
			enabled = append(enabled, root)
		}
	}
	return enabled, nil
}

// rootProfile resolves a root's profile through a per-call cache. A missing
// profile yields (nil, nil) so the caller can fall back to the default.
func (s *Syncer) rootProfile(ctx context.Context, root *models.ScanRoot, cache map[models.ULID]*models.Profile) (*models.Profile, error) {
	if p, ok := cache[root.ProfileID]; ok {
		return p, nil
	}
	p, err := s.profiles.GetByID(ctx, root.ProfileID)
	if err != nil {
		return nil, err
	}
	cache[root.ProfileID] = p
	return p, nil
}

// pushTarget picks the profile and root for a pushed file. A path under any
// enabled scan root inherits that root's profile and upscale settings;
// everything else binds to the default profile.
func (s *Syncer) pushTarget(ctx context.Context, path string) (*models.Profile, *models.ScanRoot, error) {
	if s.roots != nil {
		roots, err := s.roots.GetEnabled(ctx)
		if err != nil {
			return nil, nil, err
		}
		if root := matchRoot(roots, path); root != nil {
			profile, err := s.profiles.GetByID(ctx, root.ProfileID)
			if err != nil {
				return nil, nil, err
			}
			if profile != nil {
				return profile, root, nil
			}
		}
	}

	profile, err := s.profiles.GetDefault(ctx)
	if err != nil {
		return nil, nil, err
	}
	if profile == nil {
		return nil, nil, ErrNoProfile
	}
	return profile, nil, nil
}

// matchRoot returns the first root whose path contains p, longest path
// first so nested roots win over their parents.
func matchRoot(roots []*models.ScanRoot, p string) *models.ScanRoot {
	var best *models.ScanRoot
	for _, root := range roots {
		if !underDir(p, root.Path) {
			continue
		}
		if best == nil || len(root.Path) > len(best.Path) {
			best = root
		}
	}
	return best
}

// underDir reports whether p is inside dir.
func underDir(p, dir string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
