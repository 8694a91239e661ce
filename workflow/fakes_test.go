package workflow_test

import (
	"context"
	"errors"
	"sync"

	"github.com/mmdatafocus/pos_backend/models"
)

type fakePermissions struct {
	mu      sync.Mutex
	granted map[string]bool // empty grants everything
	asked   []string
}

func (p *fakePermissions) Check(ctx context.Context, userId int, code string, businessId string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.asked = append(p.asked, code)
	if len(p.granted) == 0 {
		return true, nil
	}
	return p.granted[code], nil
}

type fakeRecipes struct {
	products  map[int][]models.RecipeLine
	modifiers map[int][]models.RecipeLine
	err       error
}

func (r *fakeRecipes) GetRecipeLines(ctx context.Context, productId int, businessId string) ([]models.RecipeLine, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.products[productId], nil
}

func (r *fakeRecipes) GetModifierRecipeLines(ctx context.Context, modifierId int, businessId string) ([]models.RecipeLine, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.modifiers[modifierId], nil
}

// fakeDelivery maps order id to the courier who picked it up.
type fakeDelivery map[int]int

func (d fakeDelivery) IsPickedUpBy(ctx context.Context, orderId int, userId int) (bool, error) {
	courier, ok := d[orderId]
	return ok && courier == userId, nil
}

type auditCall struct {
	event      string
	businessId string
	details    map[string]interface{}
}

type fakeAudit struct {
	mu    sync.Mutex
	calls []auditCall
	fail  bool
}

func (a *fakeAudit) Append(ctx context.Context, event string, businessId string, actor models.Actor, details map[string]interface{}) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, auditCall{event: event, businessId: businessId, details: details})
	if a.fail {
		return errors.New("audit store unavailable")
	}
	return nil
}

type notified struct {
	payload    any
	businessId string
	locationId int
}

type fakeNotifier struct {
	mu      sync.Mutex
	got     []notified
	err     error
	started chan struct{}
	release chan struct{}
}

func (n *fakeNotifier) Notify(ctx context.Context, payload any, businessId string, locationId int) error {
	if n.started != nil {
		n.started <- struct{}{}
	}
	if n.release != nil {
		<-n.release
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.got = append(n.got, notified{payload: payload, businessId: businessId, locationId: locationId})
	return n.err
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.got)
}
