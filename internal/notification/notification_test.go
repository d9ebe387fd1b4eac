package notification

import (
	"context"
	"testing"
	"time"

	"github.com/linkaid/platform/internal/shared/types"
)

func startService(t *testing.T, provider Provider) *Service {
	t.Helper()

	svc := NewService(Config{QueueSize: 16, Workers: 2, MaxRetries: 0},
		map[Channel]Provider{ChannelInApp: provider}, nil)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(svc.Stop)
	return svc
}

func waitForStatus(t *testing.T, svc *Service, userID types.ID, want Status) Notification {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		list := svc.ListForUser(userID)
		if len(list) > 0 && list[0].Status == want {
			return list[0]
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("notification never reached status %s", want)
	return Notification{}
}

func TestNotifyDelivers(t *testing.T) {
	provider := NewMockProvider()
	svc := startService(t, provider)

	userID := types.NewID()
	svc.Notify(userID, "Tow accepted", "Your tow request was accepted, ETA 20 min", PriorityHigh, nil)

	n := waitForStatus(t, svc, userID, StatusSent)
	if n.Subject != "Tow accepted" {
		t.Errorf("unexpected subject %q", n.Subject)
	}
	if len(provider.Sent()) != 1 {
		t.Errorf("expected 1 delivered notification, got %d", len(provider.Sent()))
	}
}

func TestNotifyFailureIsRecorded(t *testing.T) {
	provider := NewMockProvider()
	provider.SetFailOnSend(true)
	svc := startService(t, provider)

	userID := types.NewID()
	svc.Notify(userID, "Claim update", "Your claim moved to pending", PriorityNormal, nil)

	n := waitForStatus(t, svc, userID, StatusFailed)
	if n.ErrorMessage == "" {
		t.Error("failed notification should carry an error message")
	}
}

func TestListForUserNewestFirst(t *testing.T) {
	svc := startService(t, NewMockProvider())

	userID := types.NewID()
	svc.Notify(userID, "first", "b", PriorityNormal, nil)
	svc.Notify(userID, "second", "b", PriorityNormal, nil)

	list := svc.ListForUser(userID)
	if len(list) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(list))
	}
	if list[0].Subject != "second" {
		t.Errorf("expected newest first, got %q", list[0].Subject)
	}

	if got := svc.ListForUser(types.NewID()); len(got) != 0 {
		t.Errorf("another user must not see these notifications")
	}
}

func TestListForUserDuringDelivery(t *testing.T) {
	provider := NewMockProvider()
	provider.sendDelay = time.Millisecond
	svc := startService(t, provider)

	userID := types.NewID()
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			svc.Notify(userID, "update", "body", PriorityNormal, nil)
		}
	}()

	// Readers must see stable copies while workers flip pending
	// entries to sent.
	for i := 0; i < 200; i++ {
		for _, n := range svc.ListForUser(userID) {
			if n.Status == StatusSent && n.SentAt == nil {
				t.Fatal("sent notification without a sent timestamp")
			}
		}
	}
	<-done

	list := svc.ListForUser(userID)
	if len(list) == 0 {
		t.Fatal("expected queued notifications")
	}
	list[0].Status = StatusRead
	if got := svc.ListForUser(userID)[0].Status; got == StatusRead {
		t.Error("mutating a returned copy must not touch service state")
	}
}

func TestMarkAsRead(t *testing.T) {
	svc := startService(t, NewMockProvider())

	userID := types.NewID()
	svc.Notify(userID, "subject", "body", PriorityNormal, nil)
	n := waitForStatus(t, svc, userID, StatusSent)

	if err := svc.MarkAsRead(types.NewID(), n.ID); err == nil {
		t.Error("another user must not be able to mark the notification read")
	}

	if err := svc.MarkAsRead(userID, n.ID); err != nil {
		t.Fatalf("MarkAsRead failed: %v", err)
	}
	if got := svc.ListForUser(userID)[0]; got.Status != StatusRead || got.ReadAt == nil {
		t.Error("notification should be marked read")
	}
}
