// Package runs executes scenario runs in the background and keeps their
// reports for the HTTP API.
package runs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/copyleftdev/authscry/internal/report"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusErrored   Status = "errored"
	StatusCancelled Status = "cancelled"
)

var (
	ErrRunNotFound = errors.New("run not found")
	ErrShutdown    = errors.New("run manager is shut down")
)

// Executor runs a scenario selection. scenario.Runner implements it.
type Executor interface {
	Check(selection []string) error
	Run(ctx context.Context, selection []string) (*report.Report, error)
}

// Run is one submitted execution.
type Run struct {
	ID          uuid.UUID      `json:"id"`
	Status      Status         `json:"status"`
	Selection   []string       `json:"selection,omitempty"`
	CallbackURL string         `json:"callback_url,omitempty"`
	Passed      *bool          `json:"passed,omitempty"`
	Report      *report.Report `json:"report,omitempty"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

type Manager struct {
	executor Executor
	logger   *zap.Logger
	client   *http.Client

	mu   sync.RWMutex
	runs map[uuid.UUID]*Run

	// startMu orders run starts against Shutdown so wg.Add never races
	// wg.Wait.
	startMu sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewManager(executor Executor, logger *zap.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		executor: executor,
		logger:   logger.Named("runs"),
		client:   &http.Client{Timeout: 10 * time.Second},
		runs:     make(map[uuid.UUID]*Run),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Submit validates the selection and starts the run in the background.
func (m *Manager) Submit(selection []string, callbackURL string) (*Run, error) {
	if callbackURL != "" {
		u, err := url.Parse(callbackURL)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return nil, fmt.Errorf("invalid callback URL %q", callbackURL)
		}
	}
	if err := m.executor.Check(selection); err != nil {
		return nil, err
	}

	m.startMu.Lock()
	defer m.startMu.Unlock()
	if err := m.ctx.Err(); err != nil {
		return nil, ErrShutdown
	}

	now := time.Now()
	run := &Run{
		ID:          uuid.New(),
		Status:      StatusPending,
		Selection:   selection,
		CallbackURL: callbackURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	m.mu.Lock()
	m.runs[run.ID] = run
	m.mu.Unlock()

	m.wg.Add(1)
	go m.execute(run)

	m.logger.Info("Run submitted", zap.String("run_id", run.ID.String()), zap.Strings("selection", selection))
	return m.snapshot(run), nil
}

// Get returns a copy of the run.
func (m *Manager) Get(id uuid.UUID) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	cp := *run
	return &cp, nil
}

// List returns copies of every run, newest first.
func (m *Manager) List() []Run {
	m.mu.RLock()
	out := make([]Run, 0, len(m.runs))
	for _, run := range m.runs {
		out = append(out, *run)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *Manager) snapshot(run *Run) *Run {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp := *run
	return &cp
}

func (m *Manager) update(run *Run, fn func(r *Run)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(run)
	run.UpdatedAt = time.Now()
}

func (m *Manager) execute(run *Run) {
	defer m.wg.Done()
	m.update(run, func(r *Run) { r.Status = StatusRunning })

	rep, err := m.executor.Run(m.ctx, run.Selection)

	m.update(run, func(r *Run) {
		switch {
		case err != nil:
			r.Status = StatusErrored
			r.Error = err.Error()
		case m.ctx.Err() != nil:
			r.Status = StatusCancelled
			r.Report = rep
		default:
			r.Status = StatusCompleted
			r.Report = rep
			passed := rep.Passed()
			r.Passed = &passed
		}
	})

	final := m.snapshot(run)
	m.logger.Info("Run finished", zap.String("run_id", final.ID.String()), zap.String("status", string(final.Status)))

	if final.CallbackURL != "" {
		m.notifyCallback(final)
	}
}

// notifyCallback posts the finished run to its callback URL.
func (m *Manager) notifyCallback(run *Run) {
	log := m.logger.With(zap.String("run_id", run.ID.String()), zap.String("callback_url", run.CallbackURL))

	body, err := json.Marshal(run)
	if err != nil {
		log.Error("Error marshaling run for callback", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.client.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, run.CallbackURL, bytes.NewReader(body))
	if err != nil {
		log.Error("Error creating callback request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		log.Warn("Error sending callback", zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		log.Info("Callback notification sent", zap.Int("status", resp.StatusCode))
	} else {
		log.Warn("Callback notification rejected", zap.Int("status", resp.StatusCode))
	}
}

// Shutdown cancels running scenarios and waits for their runs to settle.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.startMu.Lock()
	m.cancel()
	m.startMu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.client.CloseIdleConnections()
		m.logger.Info("Run manager shut down")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
