package workflow_test

import (
	"context"
	"errors"
	"testing"

	"github.com/mmdatafocus/pos_backend/workflow"
	"github.com/sirupsen/logrus"
)

func TestDispatcherDeliversQueuedNotificationsBeforeClose(t *testing.T) {
	logger, _ := newTestLogger()
	notifier := &fakeNotifier{}
	d := workflow.NewNotificationDispatcher(notifier, logger, 3, 64)

	for i := 0; i < 50; i++ {
		if !d.Dispatch(context.Background(), i, testBusinessId, 1) {
			t.Fatalf("dispatch %d rejected", i)
		}
	}
	d.Close()

	if got := notifier.count(); got != 50 {
		t.Fatalf("expected 50 deliveries, got %d", got)
	}
	if d.Dispatch(context.Background(), "late", testBusinessId, 1) {
		t.Fatalf("dispatch after Close must be rejected")
	}
	d.Close()
}

func TestDispatcherDropsWhenQueueIsFull(t *testing.T) {
	logger, hook := newTestLogger()
	notifier := &fakeNotifier{started: make(chan struct{}), release: make(chan struct{})}
	d := workflow.NewNotificationDispatcher(notifier, logger, 1, 1)

	if !d.Dispatch(context.Background(), "first", testBusinessId, 1) {
		t.Fatalf("first dispatch rejected")
	}
	<-notifier.started // the only worker is now busy

	if !d.Dispatch(context.Background(), "second", testBusinessId, 1) {
		t.Fatalf("second dispatch should fit in the queue")
	}
	if d.Dispatch(context.Background(), "third", testBusinessId, 1) {
		t.Fatalf("third dispatch should be dropped")
	}
	if !hasWarning(hook, "Dispatch") {
		t.Fatalf("dropped notification should be logged")
	}

	go func() {
		<-notifier.started
	}()
	close(notifier.release)
	d.Close()
	if got := notifier.count(); got != 2 {
		t.Fatalf("expected 2 deliveries, got %d", got)
	}
}

func TestDispatcherIgnoresRequestCancellation(t *testing.T) {
	logger, hook := newTestLogger()
	notifier := &fakeNotifier{err: errors.New("socket closed")}
	d := workflow.NewNotificationDispatcher(notifier, logger, 1, 4)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if !d.Dispatch(ctx, "payload", testBusinessId, 3) {
		t.Fatalf("dispatch rejected")
	}
	d.Close()

	if notifier.count() != 1 {
		t.Fatalf("notification should be delivered even though the request ended")
	}
	logged := false
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.ErrorLevel && e.Data["funcName"] == "deliver" {
			logged = true
		}
	}
	if !logged {
		t.Fatalf("notifier error should be logged")
	}
}
