package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/mmdatafocus/pos_backend/config"
	"github.com/sirupsen/logrus"
)

const notifyTimeout = 10 * time.Second

type notification struct {
	ctx        context.Context
	payload    any
	businessId string
	locationId int
}

// NotificationDispatcher runs post-commit notifications on a fixed pool of goroutines.
// Delivery is best effort: a full queue drops the notification and logs it.
type NotificationDispatcher struct {
	service NotificationService
	logger  *logrus.Logger
	queue   chan notification
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewNotificationDispatcher(service NotificationService, logger *logrus.Logger, workers int, queueSize int) *NotificationDispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	d := &NotificationDispatcher{
		service: service,
		logger:  logger,
		queue:   make(chan notification, queueSize),
	}
	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.run()
	}
	return d
}

// NewNotificationDispatcherFromEnv sizes the pool from NOTIFY_WORKERS and NOTIFY_QUEUE_SIZE.
func NewNotificationDispatcherFromEnv(service NotificationService, logger *logrus.Logger) *NotificationDispatcher {
	return NewNotificationDispatcher(service, logger, config.NotifyWorkers(), config.NotifyQueueSize())
}

// Dispatch enqueues a notification without blocking. It reports whether it was accepted.
// The request context's values are kept but its cancellation is not.
func (d *NotificationDispatcher) Dispatch(ctx context.Context, payload any, businessId string, locationId int) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed || d.service == nil {
		return false
	}
	n := notification{
		ctx:        context.WithoutCancel(ctx),
		payload:    payload,
		businessId: businessId,
		locationId: locationId,
	}
	select {
	case d.queue <- n:
		return true
	default:
		config.LogWarn(d.logger, "NotificationDispatcher", "Dispatch", "queue full, notification dropped", logrus.Fields{
			"business_id": businessId,
			"location_id": locationId,
		})
		return false
	}
}

// Close stops accepting notifications and waits for the queued ones to be delivered.
func (d *NotificationDispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *NotificationDispatcher) run() {
	defer d.wg.Done()
	for n := range d.queue {
		d.deliver(n)
	}
}

func (d *NotificationDispatcher) deliver(n notification) {
	defer func() {
		if r := recover(); r != nil {
			config.LogWarn(d.logger, "NotificationDispatcher", "deliver", "notifier panicked", logrus.Fields{"panic": r})
		}
	}()
	ctx, cancel := context.WithTimeout(n.ctx, notifyTimeout)
	defer cancel()
	if err := d.service.Notify(ctx, n.payload, n.businessId, n.locationId); err != nil {
		config.LogError(d.logger, "NotificationDispatcher", "deliver", "Notify", n.businessId, err)
	}
}
