package mail

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"devpulse/internal/config"
	"devpulse/internal/domain/models"
	"devpulse/internal/lib/logger/sl"
)

const defaultSendTimeout = 10 * time.Second

// Dispatcher queues invitation emails and delivers them from a fixed pool
// of workers. Each send is bounded by a timeout and retried with
// exponential backoff a limited number of times, then dropped.
type Dispatcher struct {
	log           *slog.Logger
	sender        Sender
	queue         chan models.InvitationNotice
	workers       int
	sendTimeout   time.Duration
	maxAttempts   uint
	retryInterval time.Duration

	mu      sync.RWMutex
	closed  bool
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewDispatcher(log *slog.Logger, sender Sender, cfg config.MailConfig) *Dispatcher {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	size := cfg.QueueSize
	if size < 1 {
		size = 1
	}
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	timeout := cfg.SendTimeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}

	return &Dispatcher{
		log:           log.With(slog.String("component", "mail.dispatcher")),
		sender:        sender,
		queue:         make(chan models.InvitationNotice, size),
		workers:       workers,
		sendTimeout:   timeout,
		maxAttempts:   attempts,
		retryInterval: cfg.RetryInterval,
	}
}

// Start launches the workers. It is a no-op when already started.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started || d.closed {
		return
	}
	d.started = true

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work(ctx)
	}

	d.log.Info("mail dispatcher started", slog.Int("workers", d.workers))
}

// Enqueue never blocks. It returns false when the queue is full or the
// dispatcher is stopped.
func (d *Dispatcher) Enqueue(notice models.InvitationNotice) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.log.Warn("dispatcher stopped, email dropped", slog.String("to", notice.To))
		return false
	}

	select {
	case d.queue <- notice:
		return true
	default:
		d.log.Warn("mail queue full, email dropped", slog.String("to", notice.To))
		return false
	}
}

// Stop closes the queue and waits for queued emails to be delivered. When
// ctx ends first, in-flight sends and retries are cancelled.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()

	if !started {
		return nil
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		d.log.Info("mail dispatcher stopped")
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return fmt.Errorf("mail.Dispatcher.Stop: %w", ctx.Err())
	}
}

func (d *Dispatcher) work(ctx context.Context) {
	defer d.wg.Done()

	for notice := range d.queue {
		d.deliver(ctx, notice)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, notice models.InvitationNotice) {
	log := d.log.With(slog.String("to", notice.To))

	send := func() (struct{}, error) {
		sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
		defer cancel()
		return struct{}{}, d.sender.Send(sendCtx, notice)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.retryInterval

	_, err := backoff.Retry(ctx, send,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(d.maxAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn("invitation email failed, retrying", sl.Err(err), slog.Duration("next", next))
		}),
	)
	if err != nil {
		log.Error("invitation email not delivered", sl.Err(err))
		return
	}

	log.Info("invitation email sent")
}
