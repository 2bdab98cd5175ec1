package session

import (
	"context"
	"sync"
	"time"

	"moodle-assistant/internal/common/errors"
	"moodle-assistant/internal/common/logger"
	"moodle-assistant/internal/common/metrics"
	"moodle-assistant/internal/common/validation"
	"moodle-assistant/internal/models"
	"moodle-assistant/internal/storage"
)

// Controller tracks whether the user is signed in. Transitions happen on login,
// logout, failed validation and any 401 seen by the API client.
type Controller struct {
	client Client
	store  *storage.Store
	cache  QueryCache
	nav    Navigator
	logger logger.Logger

	mu         sync.RWMutex
	state      State
	generation uint64

	subsMu  sync.Mutex
	subs    map[int]func(State)
	nextSub int

	unregister func()
}

// NewController registers the controller's 401 handler on client. cache and nav
// may be nil.
func NewController(client Client, store *storage.Store, cache QueryCache, nav Navigator, log logger.Logger) *Controller {
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	c := &Controller{
		client: client,
		store:  store,
		cache:  cache,
		nav:    nav,
		logger: log.WithFields(map[string]interface{}{"component": "session"}),
		subs:   make(map[int]func(State)),
	}
	c.unregister = client.OnUnauthorized(c.handleUnauthorized)
	return c
}

// Close detaches the controller from the API client.
func (c *Controller) Close() {
	if c.unregister != nil {
		c.unregister()
	}
}

// State returns the current snapshot.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Subscribe calls fn after every transition until the returned function is called.
func (c *Controller) Subscribe(fn func(State)) (unsubscribe func()) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn

	return func() {
		c.subsMu.Lock()
		defer c.subsMu.Unlock()
		delete(c.subs, id)
	}
}

func (c *Controller) notify(s State) {
	c.subsMu.Lock()
	subs := make([]func(State), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.subsMu.Unlock()

	for _, fn := range subs {
		fn(s)
	}
}

// Initialize restores a persisted session without contacting the backend. Both
// keys must be present and the user must be valid; anything less is ignored.
// A session revoked server-side looks valid here until the first 401.
func (c *Controller) Initialize(ctx context.Context) State {
	sessionID, _ := c.store.GetString(ctx, models.StorageKeySessionID)
	user, userRes := storage.Get(ctx, c.store, models.StorageKeyUser, models.UserInfo{})

	next := unauthenticated()
	switch {
	case sessionID != "" && userRes.OK() && user.Valid():
		next = authenticated(sessionID, user)
		c.logger.Debug("restored cached session", map[string]interface{}{
			"session_id": logger.Mask(sessionID),
			"username":   user.Username,
		})
	case sessionID != "" || userRes.OK():
		c.logger.Debug("ignoring partial cached session", map[string]interface{}{
			"has_session_id": sessionID != "",
			"user_status":    userRes.Status.String(),
		})
	}

	c.mu.Lock()
	c.state = next
	c.mu.Unlock()

	setGauge(next)
	c.notify(next)
	return next
}

// Login validates creds locally, then authenticates against the backend. On
// failure the state stays unauthenticated and the error carries the message to
// show: the server's reason, "Authentication failed" or "Connection failed".
func (c *Controller) Login(ctx context.Context, creds models.LoginRequest) (State, error) {
	if err := validation.ValidateCredentials(creds); err != nil {
		metrics.LoginAttempts.WithLabelValues(metrics.OutcomeInvalid).Inc()
		return c.State(), err
	}
	creds.MoodleURL = validation.NormalizeMoodleURL(creds.MoodleURL)

	gen := c.currentGeneration()
	log := c.logger.WithFields(map[string]interface{}{
		"moodle_url": creds.MoodleURL,
		"username":   creds.Username,
	})

	resp, err := c.client.Login(ctx, creds)
	if err != nil {
		outcome := metrics.OutcomeTransport
		if stdErr, ok := errors.As(err); ok && stdErr.StatusCode != 0 {
			outcome = metrics.OutcomeRejected
		}
		metrics.LoginAttempts.WithLabelValues(outcome).Inc()
		log.WithError(err).Warn("login request failed", nil)
		return c.State(), err
	}

	if !resp.Complete() {
		metrics.LoginAttempts.WithLabelValues(metrics.OutcomeRejected).Inc()
		log.Info("login rejected", map[string]interface{}{"message": resp.Message})
		return c.State(), errors.NewAuthenticationError(resp.Message)
	}

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		c.client.ClearSession(ctx)
		metrics.LoginAttempts.WithLabelValues(metrics.OutcomeSuperseded).Inc()
		log.Warn("discarding login response that arrived after a session reset", nil)
		return c.State(), ErrLoginSuperseded
	}
	next := authenticated(resp.SessionID, *resp.UserInfo)
	c.state = next
	c.mu.Unlock()

	metrics.LoginAttempts.WithLabelValues(metrics.OutcomeSuccess).Inc()
	setGauge(next)
	log.Info("login succeeded", map[string]interface{}{"session_id": logger.Mask(resp.SessionID)})
	c.notify(next)
	return next, nil
}

// Logout ends the session. The backend call is best effort; locally the session
// always ends.
func (c *Controller) Logout(ctx context.Context) {
	c.endSession(ctx, metrics.ReasonLogout)
}

func (c *Controller) endSession(ctx context.Context, reason string) {
	c.bumpGeneration()

	if err := c.client.Logout(ctx); err != nil {
		c.logger.WithError(err).Debug("backend logout failed, local session cleared anyway", nil)
	}
	c.reset(reason)
}

// Validate asks the backend whether the session is still live. A negative or
// failed answer logs the user out.
func (c *Controller) Validate(ctx context.Context) (bool, error) {
	resp, err := c.client.ValidateSession(ctx)
	if err != nil {
		if !errors.IsUnauthorized(err) {
			c.endSession(ctx, metrics.ReasonValidation)
		}
		return false, err
	}
	if !resp.Valid {
		c.endSession(ctx, metrics.ReasonValidation)
		return false, nil
	}

	if resp.UserInfo.Valid() {
		c.mu.Lock()
		if c.state.Authenticated {
			c.state.User = resp.UserInfo
		}
		c.mu.Unlock()
	}
	return true, nil
}

// StartValidation runs Validate every interval while authenticated, until ctx
// ends. A zero interval disables it.
func (c *Controller) StartValidation(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !c.State().Authenticated {
					continue
				}
				if _, err := c.Validate(ctx); err != nil {
					c.logger.WithError(err).Debug("periodic validation failed", nil)
				}
			}
		}
	}()
}

func (c *Controller) handleUnauthorized(ctx context.Context) {
	c.reset(metrics.ReasonUnauthorized)
	if c.nav != nil {
		c.nav.RedirectToLogin(ctx)
	}
}

// reset moves to unauthenticated and drops cached queries.
func (c *Controller) reset(reason string) {
	c.mu.Lock()
	wasAuthenticated := c.state.Authenticated
	c.state = unauthenticated()
	c.generation++
	c.mu.Unlock()

	if c.cache != nil {
		c.cache.Clear()
	}

	metrics.SessionInvalidations.WithLabelValues(reason).Inc()
	setGauge(State{})
	c.logger.Info("session ended", map[string]interface{}{
		"reason":            reason,
		"was_authenticated": wasAuthenticated,
	})
	c.notify(State{})
}

func (c *Controller) currentGeneration() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

func (c *Controller) bumpGeneration() {
	c.mu.Lock()
	c.generation++
	c.mu.Unlock()
}

func setGauge(s State) {
	if s.Authenticated {
		metrics.AuthenticatedSessions.Set(1)
		return
	}
	metrics.AuthenticatedSessions.Set(0)
}
