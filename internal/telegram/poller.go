package telegram

import (
	"context"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const defaultPollTimeout = 30 * time.Second

// UpdateSource is the part of Client the poller needs
type UpdateSource interface {
	DeleteWebhook(ctx context.Context) error
	Updates(timeout time.Duration) tgbotapi.UpdatesChannel
	StopUpdates()
}

// Poller receives updates with getUpdates long polling. Each update is handled
// on its own goroutine so slow provider calls for one chat do not hold up others.
type Poller struct {
	source  UpdateSource
	handle  UpdateHandler
	logger  *zap.Logger
	timeout time.Duration
}

// NewPoller creates a poller feeding handle
func NewPoller(source UpdateSource, handle UpdateHandler, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		source:  source,
		handle:  handle,
		logger:  logger,
		timeout: defaultPollTimeout,
	}
}

// Run polls until ctx is done, then waits for in-flight updates
func (p *Poller) Run(ctx context.Context) error {
	if err := p.source.DeleteWebhook(ctx); err != nil {
		return err
	}

	updates := p.source.Updates(p.timeout)
	defer p.source.StopUpdates()

	var wg sync.WaitGroup
	defer wg.Wait()

	// Updates already taken off the queue are finished even during shutdown
	handleCtx := context.WithoutCancel(ctx)

	p.logger.Info("polling for updates", zap.Duration("timeout", p.timeout))
	for {
		select {
		case <-ctx.Done():
			return nil
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				p.handle(handleCtx, u)
			}()
		}
	}
}
