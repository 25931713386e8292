package directory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/prepdeck/interviewchat/internal/auth"
	"github.com/prepdeck/interviewchat/internal/infrastructure/monitoring"
	"github.com/prepdeck/interviewchat/internal/logging"
	"github.com/prepdeck/interviewchat/internal/shared/id"
	"github.com/prepdeck/interviewchat/internal/types"
)

// Options configures a Directory.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	Tokens     auth.TokenSource
	IDs        *id.Generator
	Logger     *logging.Logger
	Metrics    *monitoring.Metrics
}

// Directory caches the user's session list and mediates all REST calls
// to the interview service. The cache is single-writer: only Directory
// methods mutate it. Any remote failure leaves the cache exactly as it
// was.
//
// Which session is "current" is not the directory's business; that
// authority belongs to the controller.
type Directory struct {
	api *apiClient
	ids *id.Generator
	log *logging.Logger

	mu       sync.RWMutex
	sessions []types.Session
}

// New creates a directory client. Tokens is required.
func New(opts Options) *Directory {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.IDs == nil {
		opts.IDs = id.NewGenerator()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = monitoring.NewNop()
	}
	return &Directory{
		api: newAPIClient(opts),
		ids: opts.IDs,
		log: opts.Logger,
	}
}

// Refresh replaces the cached list with the server's, de-duplicated by
// id (first occurrence wins) with server ordering preserved. On failure
// the cache is untouched.
func (d *Directory) Refresh(ctx context.Context) error {
	sessions, err := d.api.sessions(ctx)
	if err != nil {
		return err
	}

	deduped := dedupeByID(sessions)
	d.mu.Lock()
	d.sessions = deduped
	d.mu.Unlock()

	d.api.metrics.SessionsCached.Set(float64(len(deduped)))
	d.log.Debug("session list refreshed", zap.Int("count", len(deduped)))
	return nil
}

// Create starts a new session with the given profile. Returns the new
// session and the server's initial greeting. A failed create leaves no
// half-initialized session in the cache.
func (d *Directory) Create(ctx context.Context, profile types.Profile) (types.Session, types.Message, error) {
	resp, err := d.api.start(ctx, profile)
	if err != nil {
		return types.Session{}, types.Message{}, err
	}
	if resp.SessionID == "" {
		return types.Session{}, types.Message{}, fmt.Errorf("start: remote returned no session id")
	}

	now := time.Now().UTC()
	session := types.Session{
		ID:             resp.SessionID,
		TargetPosition: profile.TargetPosition,
		TargetField:    profile.TargetField,
		CreatedAt:      now,
		LastActivity:   now,
		MessageCount:   1,
		Status:         types.SessionActive,
	}
	greeting := types.Message{
		ID:        d.ids.Message(),
		SessionID: resp.SessionID,
		Role:      types.RoleAssistant,
		Content:   resp.Message.Content,
		Timestamp: now,
	}

	d.mu.Lock()
	d.sessions = append(d.sessions, session)
	count := len(d.sessions)
	d.mu.Unlock()

	d.api.metrics.SessionsCached.Set(float64(count))
	d.log.Info("session created", zap.String("session_id", session.ID))
	return session, greeting, nil
}

// Delete removes a session remotely, then from the cache. The caller
// (controller) is responsible for selecting a replacement when the
// deleted session was current.
func (d *Directory) Delete(ctx context.Context, sessionID string) error {
	if err := d.api.deleteSession(ctx, sessionID); err != nil {
		return err
	}

	d.mu.Lock()
	kept := d.sessions[:0]
	for _, s := range d.sessions {
		if s.ID != sessionID {
			kept = append(kept, s)
		}
	}
	d.sessions = kept
	count := len(kept)
	d.mu.Unlock()

	d.api.metrics.SessionsCached.Set(float64(count))
	d.log.Info("session deleted", zap.String("session_id", sessionID))
	return nil
}

// History fetches the ordered message sequence for a session. Used when
// switching to a session that was not freshly created.
func (d *Directory) History(ctx context.Context, sessionID string) ([]types.Message, error) {
	return d.api.history(ctx, sessionID)
}

// Sessions returns a snapshot of the cached list.
func (d *Directory) Sessions() []types.Session {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]types.Session(nil), d.sessions...)
}

// Get looks up a cached session by id.
func (d *Directory) Get(sessionID string) (types.Session, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, s := range d.sessions {
		if s.ID == sessionID {
			return s, true
		}
	}
	return types.Session{}, false
}

// MostRecent returns the cached session with the latest activity.
func (d *Directory) MostRecent() (types.Session, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if len(d.sessions) == 0 {
		return types.Session{}, false
	}
	best := d.sessions[0]
	for _, s := range d.sessions[1:] {
		if s.LastActivity.After(best.LastActivity) {
			best = s
		}
	}
	return best, true
}

// Len returns the number of cached sessions.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.sessions)
}

func dedupeByID(sessions []types.Session) []types.Session {
	seen := make(map[string]bool, len(sessions))
	out := make([]types.Session, 0, len(sessions))
	for _, s := range sessions {
		if s.ID == "" || seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		out = append(out, s)
	}
	return out
}
