// Package sdk embeds Herald in a host application: it syncs notification and
// segment definitions, decides which notifications apply to the current user,
// keeps the device schedule in line, and reports sessions.
package sdk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/rafaeljc/herald/internal/catalog"
	"github.com/rafaeljc/herald/internal/client"
	"github.com/rafaeljc/herald/internal/content"
	"github.com/rafaeljc/herald/internal/model"
	"github.com/rafaeljc/herald/internal/observability"
	"github.com/rafaeljc/herald/internal/reconciler"
	"github.com/rafaeljc/herald/internal/session"
	"github.com/rafaeljc/herald/internal/syncer"
	"github.com/rafaeljc/herald/internal/trigger"
)

var (
	// ErrNotificationNotFound is returned by TriggerImmediate for an id not in the cache.
	ErrNotificationNotFound = errors.New("notification not found")

	// ErrClosed is returned by every operation after Destroy.
	ErrClosed = errors.New("sdk: destroyed")

	// ErrAlreadyInitialized is returned by a second Initialize.
	ErrAlreadyInitialized = errors.New("sdk: already initialized")

	// ErrSync matches every full or delta sync failure.
	ErrSync = client.ErrSync
)

var defaultChannel = content.DefaultChannel

type lifecycle int

const (
	stateNew lifecycle = iota
	stateRunning
	stateClosed
)

// SDK is the facade host applications use. All methods are safe for concurrent use.
type SDK struct {
	cfg        Config
	logger     *slog.Logger
	now        func() time.Time
	scheduler  NotificationScheduler
	appState   AppStateSource
	client     *client.Client
	catalog    *catalog.Catalog
	reconciler *reconciler.Reconciler
	tracker    *session.Tracker

	// syncs serializes sync invocations end to end, so a slow full sync
	// cannot overwrite the result of a newer delta.
	syncs *semaphore.Weighted

	mu       sync.Mutex
	state    lifecycle
	user     model.UserContext
	stopAuto context.CancelFunc
	autoDone chan struct{}
}

// Option configures an SDK.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	httpClient *http.Client
	appState   AppStateSource
	now        func() time.Time
}

// WithLogger sets the logger. Nil keeps slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithHTTPClient replaces the HTTP client used to reach the API.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithAppState sets the source of foreground/background events for session tracking.
func WithAppState(src AppStateSource) Option {
	return func(o *options) { o.appState = src }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New creates an SDK. Nothing happens on the network until Initialize.
// It panics if scheduler is nil.
func New(cfg Config, scheduler NotificationScheduler, opts ...Option) (*SDK, error) {
	if scheduler == nil {
		panic("sdk: notification scheduler cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	o := options{logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	logger := o.logger.With(slog.String("app_id", cfg.AppID))

	clientOpts := []client.Option{
		client.WithAPIKey(cfg.APIKey),
		client.WithTimeout(cfg.RequestTimeout),
		client.WithLogger(logger),
	}
	if o.httpClient != nil {
		clientOpts = append(clientOpts, client.WithHTTPClient(o.httpClient))
	}
	apiClient, err := client.New(cfg.APIURL, cfg.AppID, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating api client: %w", err)
	}

	s := &SDK{
		cfg:        cfg,
		logger:     logger,
		now:        o.now,
		scheduler:  scheduler,
		appState:   o.appState,
		client:     apiClient,
		catalog:    catalog.New(),
		reconciler: reconciler.New(scheduler, logger, reconciler.WithClock(o.now)),
		syncs:      semaphore.NewWeighted(1),
	}

	if cfg.TrackSessions {
		s.tracker = session.New(apiClient, s.currentUserID, logger,
			session.WithClock(o.now),
			session.WithEventTimeout(cfg.RequestTimeout),
		)
	}

	return s, nil
}

// Initialize requests permission, configures the channel, performs a full
// sync, then starts auto-sync and session tracking. A failed full sync is
// returned and leaves the SDK uninitialized, so Initialize can be retried.
func (s *SDK) Initialize(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case stateClosed:
		s.mu.Unlock()
		return ErrClosed
	case stateRunning:
		s.mu.Unlock()
		return ErrAlreadyInitialized
	}
	s.mu.Unlock()

	// 1. Permission. A refusal is not fatal: scheduling calls will fail and be logged.
	granted, err := s.scheduler.RequestPermission(ctx)
	if err != nil {
		return fmt.Errorf("requesting notification permission: %w", err)
	}
	if !granted {
		s.logger.Warn("notification permission not granted")
	}

	// 2. Channel
	if err := s.scheduler.ConfigureChannel(ctx, s.cfg.Channel); err != nil {
		return fmt.Errorf("configuring notification channel: %w", err)
	}

	// 3. Full sync (reconciles on success)
	if _, err := s.Sync(ctx); err != nil {
		return err
	}

	// 4. Auto-sync
	s.mu.Lock()
	if s.state != stateNew {
		s.mu.Unlock()
		if s.state == stateClosed {
			return ErrClosed
		}
		return ErrAlreadyInitialized
	}
	s.state = stateRunning
	autoCtx, stop := context.WithCancel(context.Background())
	s.stopAuto = stop
	s.autoDone = make(chan struct{})
	s.mu.Unlock()

	loop := syncer.New(s.logger, syncer.Config{
		Interval:      s.cfg.SyncInterval,
		FullSyncEvery: s.cfg.FullSyncEvery,
	}, autoSyncTarget{s})

	go func() {
		defer close(s.autoDone)
		_ = loop.Run(autoCtx)
	}()

	// 5. Sessions
	if s.tracker != nil {
		s.tracker.Start(ctx, s.appState)
	}

	s.logger.Info("sdk initialized",
		slog.Int("notifications", len(s.catalog.Notifications())),
		slog.Int64("version", s.catalog.Version()),
	)
	return nil
}

// Sync performs a full sync: the cache is replaced and reconciliation runs.
// On failure the cache and watermark are untouched.
func (s *SDK) Sync(ctx context.Context) (SyncResponse, error) {
	return s.sync(ctx, true)
}

// SyncDelta fetches notifications newer than the watermark and merges them.
func (s *SDK) SyncDelta(ctx context.Context) (SyncResponse, error) {
	return s.sync(ctx, false)
}

func (s *SDK) sync(ctx context.Context, full bool) (SyncResponse, error) {
	kind := "delta"
	if full {
		kind = "full"
	}

	if s.isClosed() {
		return SyncResponse{}, ErrClosed
	}

	if err := s.syncs.Acquire(ctx, 1); err != nil {
		return SyncResponse{}, fmt.Errorf("waiting for in-flight sync: %w", err)
	}
	defer s.syncs.Release(1)

	start := time.Now()

	var (
		resp SyncResponse
		err  error
	)
	if full {
		resp, err = s.client.FullSync(ctx)
	} else {
		resp, err = s.client.DeltaSync(ctx, s.catalog.Version())
	}
	if err != nil {
		observability.SDKSyncTotal.WithLabelValues(kind, "fail").Inc()
		return SyncResponse{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Results that arrive after Destroy are dropped.
	if s.state == stateClosed {
		observability.SDKSyncTotal.WithLabelValues(kind, "discarded").Inc()
		return SyncResponse{}, ErrClosed
	}

	if full {
		s.catalog.ReplaceAll(resp, s.now())
	} else {
		s.catalog.Merge(resp)
	}
	s.reconcileLocked(ctx)

	observability.SDKSyncTotal.WithLabelValues(kind, "success").Inc()
	observability.SDKSyncDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	observability.SDKWatermark.Set(float64(s.catalog.Version()))

	s.logger.Debug("sync completed",
		slog.String("kind", kind),
		slog.Int("received", len(resp.Notifications)),
		slog.Int64("version", s.catalog.Version()),
	)
	return resp, nil
}

// reconcileLocked must be called with mu held.
func (s *SDK) reconcileLocked(ctx context.Context) {
	res := s.reconciler.Reconcile(ctx, s.catalog.Notifications(), s.catalog.Segments(), s.user.Clone())

	observability.SDKScheduleOps.WithLabelValues("scheduled").Add(float64(res.Scheduled))
	observability.SDKScheduleOps.WithLabelValues("cancelled").Add(float64(res.Cancelled))
	observability.SDKScheduleOps.WithLabelValues("unchanged").Add(float64(res.Unchanged))
	observability.SDKScheduleOps.WithLabelValues("failed").Add(float64(res.Failed))
	observability.SDKScheduledNotifications.Set(float64(len(s.reconciler.Scheduled())))
}

// SetUserContext shallow-merges uc into the current context: set fields
// replace the old ones and a non-nil Properties replaces the whole bag.
// Reconciliation runs, and the properties are pushed upstream when a user id
// is known. Push failures are logged only.
func (s *SDK) SetUserContext(ctx context.Context, uc UserContext) error {
	s.mu.Lock()
	if s.state == stateClosed {
		s.mu.Unlock()
		return ErrClosed
	}
	previous := s.user.UserID
	s.user = s.user.Merge(uc)
	current := s.user.Clone()
	s.reconcileLocked(ctx)
	s.mu.Unlock()

	if uc.Properties != nil {
		s.pushProperties(ctx, current)
	}

	if s.tracker != nil && current.UserID != "" && current.UserID != previous {
		s.tracker.Identify(ctx)
	}
	return nil
}

// UpdateUserProperties merges props key by key into the current properties,
// reconciles, and pushes the resulting bag upstream.
func (s *SDK) UpdateUserProperties(ctx context.Context, props Properties) error {
	s.mu.Lock()
	if s.state == stateClosed {
		s.mu.Unlock()
		return ErrClosed
	}
	merged := make(Properties, len(s.user.Properties)+len(props))
	for k, v := range s.user.Properties {
		merged[k] = v
	}
	for k, v := range props {
		merged[k] = v
	}
	s.user.Properties = merged
	current := s.user.Clone()
	s.reconcileLocked(ctx)
	s.mu.Unlock()

	s.pushProperties(ctx, current)
	return nil
}

func (s *SDK) pushProperties(ctx context.Context, uc UserContext) {
	if uc.UserID == "" {
		s.logger.Debug("property push skipped: no user id")
		return
	}
	if _, err := s.client.UpsertUser(ctx, uc.UserID, uc.Properties); err != nil {
		s.logger.Warn("failed to push user properties",
			slog.String("user_id", uc.UserID),
			slog.String("error", err.Error()),
		)
	}
}

// TriggerImmediate presents a cached notification right away, rendered for the
// current user. Eligibility is not checked: this is an explicit request.
func (s *SDK) TriggerImmediate(ctx context.Context, notificationID string) error {
	s.mu.Lock()
	if s.state == stateClosed {
		s.mu.Unlock()
		return ErrClosed
	}
	uc := s.user.Clone()
	s.mu.Unlock()

	n, ok := s.catalog.Get(notificationID)
	if !ok {
		return fmt.Errorf("notification %s: %w", notificationID, ErrNotificationNotFound)
	}

	if _, err := s.scheduler.Schedule(ctx, content.Render(n, uc), trigger.FireNow()); err != nil {
		return fmt.Errorf("presenting notification %s: %w", notificationID, err)
	}
	return nil
}

// Notifications returns a copy of the cached notifications.
func (s *SDK) Notifications() []Notification {
	return s.catalog.Notifications()
}

// ScheduledIDs returns a copy of the notification id -> device schedule id mapping.
func (s *SDK) ScheduledIDs() map[string]string {
	return s.reconciler.Scheduled()
}

// UserContext returns a copy of the current user context.
func (s *SDK) UserContext() UserContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user.Clone()
}

// Version returns the delta-sync watermark.
func (s *SDK) Version() int64 {
	return s.catalog.Version()
}

// LastFullSync returns when the cache was last replaced by a full sync.
// Notifications disabled on the server since then may still be cached.
func (s *SDK) LastFullSync() time.Time {
	return s.catalog.StaleSince()
}

// Destroy stops auto-sync, ends the open session, cancels every schedule and
// clears the cache. In-flight syncs complete but their results are discarded.
// Calling Destroy more than once is a no-op.
func (s *SDK) Destroy(ctx context.Context) error {
	s.mu.Lock()
	if s.state == stateClosed {
		s.mu.Unlock()
		return nil
	}
	s.state = stateClosed
	stop, done := s.stopAuto, s.autoDone
	s.mu.Unlock()

	// 1. Timer
	if stop != nil {
		stop()
		<-done
	}

	// 2. Session and app-state observer
	if s.tracker != nil {
		s.tracker.Close(ctx)
	}

	// 3. Device schedules
	cancelled := s.reconciler.CancelAll(ctx)
	observability.SDKScheduledNotifications.Set(0)

	// 4. Cache
	s.catalog.Clear()

	s.logger.Info("sdk destroyed", slog.Int("cancelled", cancelled))
	return nil
}

func (s *SDK) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateClosed
}

func (s *SDK) currentUserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user.UserID
}

// autoSyncTarget adapts the SDK to the auto-sync loop.
type autoSyncTarget struct{ s *SDK }

func (t autoSyncTarget) FullSync(ctx context.Context) error {
	_, err := t.s.Sync(ctx)
	return ignoreClosed(err)
}

func (t autoSyncTarget) DeltaSync(ctx context.Context) error {
	_, err := t.s.SyncDelta(ctx)
	return ignoreClosed(err)
}

func ignoreClosed(err error) error {
	if errors.Is(err, ErrClosed) {
		return nil
	}
	return err
}
