package bot

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bissquit/soc-relay/internal/telegram"
)

// API is the subset of the Telegram client the poller needs.
type API interface {
	GetMe(ctx context.Context) (*telegram.User, error)
	GetUpdates(ctx context.Context, offset int64, pollTimeout time.Duration) ([]telegram.Update, error)
}

// PollerConfig contains poller configuration.
type PollerConfig struct {
	PollTimeout time.Duration // server-side long-poll window
	RetryDelay  time.Duration // pause after a failed poll
}

// DefaultPollerConfig returns default poller configuration.
func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		PollTimeout: 30 * time.Second,
		RetryDelay:  5 * time.Second,
	}
}

// Poller runs the long-lived getUpdates receive loop and feeds inbound
// messages to the command router.
type Poller struct {
	config   PollerConfig
	api      API
	commands *Commands

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPoller creates a new update poller.
func NewPoller(config PollerConfig, api API, commands *Commands) *Poller {
	defaults := DefaultPollerConfig()
	if config.PollTimeout <= 0 {
		config.PollTimeout = defaults.PollTimeout
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = defaults.RetryDelay
	}
	return &Poller{
		config:   config,
		api:      api,
		commands: commands,
	}
}

// Start launches the receive loop.
func (p *Poller) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go p.run(runCtx)
}

// Stop terminates the receive loop and waits for it to finish.
func (p *Poller) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	slog.Info("bot poller stopped")
}

func (p *Poller) run(ctx context.Context) {
	defer p.wg.Done()

	me := p.authorize(ctx)
	if me == nil {
		return
	}
	p.commands.SetBotUsername(me.Username)

	slog.Info("bot poller started",
		"bot", me.Username,
		"poll_timeout", p.config.PollTimeout,
	)

	var offset int64
	for {
		if ctx.Err() != nil {
			return
		}

		updates, err := p.api.GetUpdates(ctx, offset, p.config.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("poll failed", "error", err)
			if !p.sleep(ctx, p.config.RetryDelay) {
				return
			}
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			if u.Message != nil {
				p.commands.Handle(ctx, u.Message)
			}
		}
	}
}

// authorize verifies the bot token, retrying until it succeeds or the
// context ends.
func (p *Poller) authorize(ctx context.Context) *telegram.User {
	for {
		me, err := p.api.GetMe(ctx)
		if err == nil {
			return me
		}
		if ctx.Err() != nil {
			return nil
		}
		slog.Error("bot authorization failed", "error", err)
		if !p.sleep(ctx, p.config.RetryDelay) {
			return nil
		}
	}
}

func (p *Poller) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
