package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chromedp/chromedp"
	"github.com/copyleftdev/authscry/internal/config"
	"github.com/copyleftdev/authscry/internal/page"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Compile-time check to ensure Manager implements the interface
var _ page.Opener = (*Manager)(nil)

// Manager owns one Chrome process and hands out pages, each in its own
// browser context so cookies and storage never leak between scenarios.
type Manager struct {
	allocatorCtx    context.Context
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc

	cfg         *config.BrowserConfig
	logger      *zap.Logger
	sem         *semaphore.Weighted
	activeCtxWg sync.WaitGroup

	startOnce sync.Once
	startErr  error
}

// AllocatorOptions builds the Chrome flags for cfg.
func AllocatorOptions(cfg *config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("mute-audio", true),
		chromedp.WindowSize(1280, 1024),
		chromedp.IgnoreCertErrors,
	)

	if cfg.ExecutablePath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecutablePath))
	}
	if cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.UserDataDir))
	}
	return opts
}

// NewManager prepares the allocator. Chrome itself starts on the first
// OpenPage.
func NewManager(cfg *config.BrowserConfig, logger *zap.Logger) *Manager {
	allocatorCtx, cancel := chromedp.NewExecAllocator(context.Background(), AllocatorOptions(cfg)...)

	sessions := cfg.MaxSessions
	if sessions < 1 {
		sessions = 1
	}

	return &Manager{
		allocatorCtx:    allocatorCtx,
		allocatorCancel: cancel,
		cfg:             cfg,
		logger:          logger.Named("browser"),
		sem:             semaphore.NewWeighted(int64(sessions)),
	}
}

func (m *Manager) start() error {
	m.startOnce.Do(func() {
		sugar := m.logger.Sugar()
		m.browserCtx, m.browserCancel = chromedp.NewContext(
			m.allocatorCtx,
			chromedp.WithLogf(sugar.Debugf),
			chromedp.WithErrorf(sugar.Warnf),
		)
		// Running with no actions launches the browser.
		if err := chromedp.Run(m.browserCtx); err != nil {
			m.startErr = fmt.Errorf("failed to start chrome: %w", err)
			return
		}
		m.logger.Info("Chrome started", zap.Bool("headless", m.cfg.Headless))
	})
	return m.startErr
}

// OpenPage implements page.Opener. It blocks while MaxSessions pages are open.
func (m *Manager) OpenPage(ctx context.Context) (page.Page, func(), error) {
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return nil, nil, fmt.Errorf("failed to acquire browser slot: %w", err)
	}

	if err := m.start(); err != nil {
		m.sem.Release(1)
		return nil, nil, err
	}

	tabCtx, tabCancel := chromedp.NewContext(m.browserCtx, chromedp.WithNewBrowserContext())
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		m.sem.Release(1)
		return nil, nil, fmt.Errorf("failed to open browser context: %w", err)
	}

	m.activeCtxWg.Add(1)
	var once sync.Once
	closePage := func() {
		once.Do(func() {
			if err := chromedp.Cancel(tabCtx); err != nil && !errors.Is(err, context.Canceled) {
				m.logger.Debug("Closing page", zap.Error(err))
			}
			tabCancel()
			m.activeCtxWg.Done()
			m.sem.Release(1)
		})
	}

	p := &Page{ctx: tabCtx, actionTimeout: m.cfg.ActionTimeout}
	if t := chromedp.FromContext(tabCtx); t != nil && t.Target != nil {
		m.logger.Debug("Opened page", zap.String("target", t.Target.TargetID.String()))
	}
	return p, closePage, nil
}

// Shutdown waits for open pages to be closed, then stops Chrome.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("Shutting down browser manager")

	done := make(chan struct{})
	go func() {
		m.activeCtxWg.Wait()
		close(done)
	}()

	var waitErr error
	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("Shutdown timeout reached while waiting for open pages")
		waitErr = ctx.Err()
	}

	if m.browserCtx != nil {
		if err := chromedp.Cancel(m.browserCtx); err != nil && !errors.Is(err, context.Canceled) {
			m.logger.Debug("Closing browser", zap.Error(err))
		}
		m.browserCancel()
	}
	m.allocatorCancel()
	return waitErr
}
