package notification

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// InAppProvider keeps delivery in-process; the dashboard polls for
// messages through the service.
type InAppProvider struct{}

// NewInAppProvider creates the in-app provider
func NewInAppProvider() *InAppProvider {
	return &InAppProvider{}
}

// Send is a no-op: in-app messages are already in the service history.
func (p *InAppProvider) Send(ctx context.Context, notification *Notification) error {
	return nil
}

// ConsoleProvider prints notifications to stdout. Used in development.
type ConsoleProvider struct {
	prefix string
}

// NewConsoleProvider creates a console provider
func NewConsoleProvider(prefix string) *ConsoleProvider {
	return &ConsoleProvider{prefix: prefix}
}

// Send prints the notification
func (p *ConsoleProvider) Send(ctx context.Context, notification *Notification) error {
	fmt.Printf("[%s] to=%s subject=%q body=%q\n",
		p.prefix, notification.RecipientID, notification.Subject, notification.Body)
	return nil
}

// MockProvider records sends for tests.
type MockProvider struct {
	mu         sync.Mutex
	sent       []*Notification
	failOnSend bool
	sendDelay  time.Duration
}

// NewMockProvider creates a mock provider
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// Send records the notification, or fails if configured to
func (p *MockProvider) Send(ctx context.Context, notification *Notification) error {
	if p.sendDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.sendDelay):
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failOnSend {
		return fmt.Errorf("mock provider send failure")
	}

	p.sent = append(p.sent, notification)
	return nil
}

// SetFailOnSend makes subsequent sends fail
func (p *MockProvider) SetFailOnSend(fail bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failOnSend = fail
}

// Sent returns the notifications delivered so far
func (p *MockProvider) Sent() []*Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Notification, len(p.sent))
	copy(out, p.sent)
	return out
}
