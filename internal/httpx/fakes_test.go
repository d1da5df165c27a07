package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-printshop/internal/catalog"
	"github.com/ariefcatur/go-printshop/internal/estimate"
	"github.com/ariefcatur/go-printshop/internal/orders"
	"github.com/ariefcatur/go-printshop/internal/tasks"
)

type stubEstimator struct {
	est   estimate.Estimate
	err   error
	calls [][]estimate.Line
}

func (s *stubEstimator) Estimate(_ context.Context, lines []estimate.Line) (estimate.Estimate, error) {
	s.calls = append(s.calls, lines)
	if len(lines) == 0 {
		return estimate.Estimate{}, estimate.ErrNoLines
	}
	return s.est, s.err
}

// stallingEstimator blocks until its context ends.
type stallingEstimator struct{}

func (stallingEstimator) Estimate(ctx context.Context, _ []estimate.Line) (estimate.Estimate, error) {
	<-ctx.Done()
	return estimate.Estimate{}, ctx.Err()
}

type fakeCatalog struct {
	variants []catalog.ProductVariant
	pending  map[string][]catalog.PendingItem
	err      error
}

func (f *fakeCatalog) ListVariantsByProduct(_ context.Context, name string) ([]catalog.ProductVariant, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []catalog.ProductVariant
	for _, v := range f.variants {
		if v.ProductName == name {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeCatalog) PendingByQueue(_ context.Context, queueID string) ([]catalog.PendingItem, error) {
	return f.pending[queueID], f.err
}

// fakeOrders implements OrderStore and orders.Store.
type fakeOrders struct {
	mu      sync.Mutex
	byID    map[string]orders.Order
	byExt   map[string]string
	seq     int
	created int
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{byID: map[string]orders.Order{}, byExt: map[string]string{}}
}

func (f *fakeOrders) put(o orders.Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[o.ID] = o
	f.byExt[o.ExternalID] = o.ID
}

func (f *fakeOrders) CreateOrderTx(ctx context.Context, o *orders.Order) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.byExt[o.ExternalID]; ok {
		*o = f.byID[id]
		return true, nil
	}
	f.seq++
	f.created++
	o.ID = fmt.Sprintf("order-%d", f.seq)
	for i := range o.Items {
		o.Items[i].ID = fmt.Sprintf("%s-item-%d", o.ID, i)
		o.Items[i].OrderID = o.ID
	}
	o.CreatedAt = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	f.byID[o.ID] = *o
	f.byExt[o.ExternalID] = o.ID
	return false, nil
}

func (f *fakeOrders) GetOrder(_ context.Context, id string) (orders.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.byID[id]
	if !ok {
		return orders.Order{}, fmt.Errorf("%w: %s", orders.ErrOrderNotFound, id)
	}
	return o, nil
}

func (f *fakeOrders) GetOrderStatus(ctx context.Context, id string) (string, bool, error) {
	o, err := f.GetOrder(ctx, id)
	if err != nil {
		return "", false, err
	}
	return o.StatusName(), o.IsRefund(), nil
}

func (f *fakeOrders) SetTrackingNumber(_ context.Context, id, number string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.byID[id]
	if !ok {
		return orders.ErrOrderNotFound
	}
	o.TrackingNumber = &number
	f.byID[id] = o
	return nil
}

func (f *fakeOrders) UpdateStatus(_ context.Context, id, from string, to orders.LifecycleStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.byID[id]
	if !ok {
		return orders.ErrOrderNotFound
	}
	if o.StatusName() != from {
		return orders.ErrStatusConflict
	}
	o.Status = to
	o.StoredStatus = to.Name()
	f.byID[id] = o
	return nil
}

func (f *fakeOrders) setStatus(id string, s orders.LifecycleStatus, queueMs, printMs int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o := f.byID[id]
	o.Status, o.StoredStatus = s, s.Name()
	o.QueueTimeMs, o.PrintTimeMs = queueMs, printMs
	f.byID[id] = o
}

type memCache struct {
	mu sync.Mutex
	m  map[string]string
}

func newMemCache() *memCache { return &memCache{m: map[string]string{}} }

func (c *memCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[key]
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = value
	return nil
}

func (c *memCache) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.m[key]; ok {
		return false, nil
	}
	c.m[key] = value
	return true, nil
}

func (c *memCache) Del(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.m, k)
	}
	return nil
}

type sentEvent struct {
	topic string
	env   orders.Envelope
}

type capturePublisher struct {
	mu     sync.Mutex
	events []sentEvent
}

func (p *capturePublisher) Publish(topic string, _, value []byte, _ ...kafkago.Header) {
	var env orders.Envelope
	_ = json.Unmarshal(value, &env)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, sentEvent{topic: topic, env: env})
}

func (p *capturePublisher) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.topic)
	}
	return out
}

// inlineTasks runs tasks synchronously so tests can observe their effects.
type inlineTasks struct{ names []string }

func (t *inlineTasks) Submit(ctx context.Context, name string, fn tasks.Func) <-chan error {
	t.names = append(t.names, name)
	done := make(chan error, 1)
	done <- fn(ctx)
	close(done)
	return done
}

type fakeQueue struct {
	items map[string]catalog.QueueItem
}

func (q *fakeQueue) MarkProcessed(_ context.Context, id, _ string) (catalog.QueueItem, error) {
	it, ok := q.items[id]
	if !ok {
		return catalog.QueueItem{}, fmt.Errorf("%w: %s", catalog.ErrQueueItemNotFound, id)
	}
	it.IsProcessed = true
	q.items[id] = it
	return it, nil
}
