// Package notification delivers status updates to users when their
// claims, tows and incidents move. Delivery is asynchronous and
// best-effort; losing a notification never fails the operation that
// triggered it.
package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/linkaid/platform/internal/shared/types"
)

// Provider sends a notification over one channel.
type Provider interface {
	Send(ctx context.Context, notification *Notification) error
}

// Service queues notifications and delivers them from a worker pool.
type Service struct {
	providers map[Channel]Provider
	log       *zap.Logger

	queue      chan *Notification
	workers    int
	maxRetries int

	mu      sync.RWMutex
	history map[string]*Notification
	byUser  map[types.ID][]string

	wg      sync.WaitGroup
	cancel  context.CancelFunc
	running bool
}

// Config holds notification service settings.
type Config struct {
	QueueSize  int
	Workers    int
	MaxRetries int
}

// DefaultConfig returns default service configuration
func DefaultConfig() Config {
	return Config{
		QueueSize:  1000,
		Workers:    4,
		MaxRetries: 3,
	}
}

// NewService creates a notification service
func NewService(cfg Config, providers map[Channel]Provider, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Service{
		providers:  providers,
		log:        log,
		queue:      make(chan *Notification, cfg.QueueSize),
		workers:    cfg.Workers,
		maxRetries: cfg.MaxRetries,
		history:    make(map[string]*Notification),
		byUser:     make(map[types.ID][]string),
	}
}

// Start launches the delivery workers
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("notification service already running")
	}

	workerCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(workerCtx)
	}

	s.running = true
	return nil
}

// Stop drains the workers
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

// Notify queues a message. A full queue drops the message rather than
// blocking the caller.
func (s *Service) Notify(recipientID types.ID, subject, body string, priority Priority, data map[string]any) {
	n := &Notification{
		ID:          types.NewID().String(),
		Channel:     ChannelInApp,
		Priority:    priority,
		Status:      StatusPending,
		RecipientID: recipientID,
		Subject:     subject,
		Body:        body,
		Data:        data,
		CreatedAt:   time.Now().UTC(),
	}

	s.mu.Lock()
	s.history[n.ID] = n
	s.byUser[recipientID] = append(s.byUser[recipientID], n.ID)
	s.mu.Unlock()

	select {
	case s.queue <- n:
	default:
		s.log.Warn("notification queue full, dropping message",
			zap.String("recipient_id", recipientID.String()),
			zap.String("subject", subject))
		s.mu.Lock()
		n.Status = StatusFailed
		n.ErrorMessage = "queue full"
		s.mu.Unlock()
	}
}

func (s *Service) worker(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case n := <-s.queue:
			s.deliver(ctx, n)
		}
	}
}

func (s *Service) deliver(ctx context.Context, n *Notification) {
	provider, ok := s.providers[n.Channel]
	if !ok {
		s.mu.Lock()
		n.Status = StatusFailed
		n.ErrorMessage = fmt.Sprintf("no provider for channel %s", n.Channel)
		s.mu.Unlock()
		return
	}

	var err error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if err = provider.Send(ctx, n); err == nil {
			now := time.Now().UTC()
			s.mu.Lock()
			n.Status = StatusSent
			n.SentAt = &now
			n.RetryCount = attempt
			s.mu.Unlock()
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(attempt+1) * time.Second):
		}
	}

	s.log.Warn("notification delivery failed",
		zap.String("id", n.ID),
		zap.Error(err))
	s.mu.Lock()
	n.Status = StatusFailed
	n.RetryCount = s.maxRetries
	n.ErrorMessage = err.Error()
	s.mu.Unlock()
}

// ListForUser returns a user's notifications, newest first. Entries
// are copied under the lock; delivery workers keep mutating the stored
// ones, so handing out the live pointers would race with them.
func (s *Service) ListForUser(userID types.ID) []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byUser[userID]
	result := make([]Notification, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		if n, ok := s.history[ids[i]]; ok {
			result = append(result, *n)
		}
	}
	return result
}

// MarkAsRead marks a notification as read by its recipient.
func (s *Service) MarkAsRead(userID types.ID, notificationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.history[notificationID]
	if !ok || n.RecipientID != userID {
		return fmt.Errorf("notification not found: %s", notificationID)
	}

	now := time.Now().UTC()
	n.Status = StatusRead
	n.ReadAt = &now
	return nil
}
