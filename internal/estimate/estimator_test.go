package estimate

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ariefcatur/go-printshop/internal/catalog"
)

type queued struct {
	variantID string
	qty       int
	processed bool
}

type fakeStore struct {
	variants   map[string]catalog.ProductVariant
	items      []queued
	variantErr error
	pendingErr error
	queueReads map[string]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{variants: map[string]catalog.ProductVariant{}, queueReads: map[string]int{}}
}

func (f *fakeStore) addVariant(id, queue string, printSeconds float64, group int) {
	f.variants[id] = catalog.ProductVariant{
		ID:                    id,
		EstimatedPrintSeconds: &printSeconds,
		GroupSize:             &group,
		PrintQueueID:          &queue,
	}
}

func (f *fakeStore) enqueue(variantID string, qty int, processed bool) {
	f.items = append(f.items, queued{variantID: variantID, qty: qty, processed: processed})
}

func (f *fakeStore) GetVariant(_ context.Context, id string) (catalog.ProductVariant, error) {
	if f.variantErr != nil {
		return catalog.ProductVariant{}, f.variantErr
	}
	v, ok := f.variants[id]
	if !ok {
		return catalog.ProductVariant{}, fmt.Errorf("%w: %s", catalog.ErrVariantNotFound, id)
	}
	return v, nil
}

func (f *fakeStore) PendingByQueue(_ context.Context, queueID string) ([]catalog.PendingItem, error) {
	f.queueReads[queueID]++
	if f.pendingErr != nil {
		return nil, f.pendingErr
	}
	var out []catalog.PendingItem
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, it := range f.items {
		v := f.variants[it.variantID]
		if it.processed || v.PrintQueueID == nil || *v.PrintQueueID != queueID {
			continue
		}
		out = append(out, catalog.PendingItem{
			QueueItemID:           fmt.Sprintf("qi-%d", i),
			ProductVariantID:      it.variantID,
			Quantity:              it.qty,
			CreatedAt:             base.Add(time.Duration(i) * time.Minute),
			EstimatedPrintSeconds: v.EstimatedPrintSeconds,
			GroupSize:             v.GroupSize,
		})
	}
	return out, nil
}

func TestEstimateEmptyQueuesIsZero(t *testing.T) {
	store := newFakeStore()
	store.addVariant("a", "q1", 3600, 2)
	store.addVariant("b", "q2", 600, 1)
	store.enqueue("a", 4, true)

	got, err := New(store).Estimate(context.Background(), []Line{{"a", 1}, {"b", 3}})
	require.NoError(t, err)
	require.Equal(t, Estimate{}, got)
}

func TestEstimateSingleVariantScenario(t *testing.T) {
	store := newFakeStore()
	store.addVariant("a", "q1", 3600, 2)
	store.enqueue("a", 4, false)

	got, err := New(store).Estimate(context.Background(), []Line{{"a", 1}})
	require.NoError(t, err)
	require.Equal(t, int64(7_200_000), got.QueueTimeMs)
	require.Equal(t, got.QueueTimeMs, got.PrintTimeMs)
}

func TestBatchSecondsIsContinuous(t *testing.T) {
	p := 100.0
	g := 3
	require.InDelta(t, 100.0*5/3, BatchSeconds(&p, 5, &g), 1e-9)
	require.Equal(t, int64(166_667), Millis(BatchSeconds(&p, 5, &g)))

	require.Zero(t, BatchSeconds(nil, 5, &g))
	require.Equal(t, 500.0, BatchSeconds(&p, 5, nil))
	zero := 0
	require.Equal(t, 500.0, BatchSeconds(&p, 5, &zero))
}

func TestEstimateSharedQueueSumsPendingWork(t *testing.T) {
	store := newFakeStore()
	store.addVariant("a", "q1", 100, 1)
	store.addVariant("b", "q1", 50, 2)
	store.enqueue("a", 2, false) // 200s
	store.enqueue("b", 4, false) // 100s

	got, err := New(store).Estimate(context.Background(), []Line{{"a", 1}, {"b", 1}})
	require.NoError(t, err)
	require.Equal(t, int64(300_000), got.QueueTimeMs)
	// no dedup: the shared queue is read once per requested variant
	require.Equal(t, 2, store.queueReads["q1"])
}

func TestEstimateDistinctQueuesTakesSlowest(t *testing.T) {
	store := newFakeStore()
	store.addVariant("a", "q1", 100, 1)
	store.addVariant("b", "q2", 50, 1)
	store.enqueue("a", 2, false) // q1: 200s
	store.enqueue("b", 1, false) // q2: 50s
	store.enqueue("b", 1, false) // q2: 100s

	got, err := New(store).Estimate(context.Background(), []Line{{"a", 1}, {"b", 1}})
	require.NoError(t, err)
	require.Equal(t, int64(200_000), got.QueueTimeMs)
}

func TestEstimateFailOpenOnMissingData(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	store := newFakeStore()
	store.addVariant("a", "q1", 100, 1)
	store.enqueue("a", 1, false)
	store.variants["no-queue"] = catalog.ProductVariant{ID: "no-queue"}

	got, err := New(store, WithLogger(zap.New(core))).Estimate(context.Background(),
		[]Line{{"ghost", 1}, {"no-queue", 1}, {"a", 1}})
	require.NoError(t, err)
	require.Equal(t, int64(100_000), got.QueueTimeMs)
	require.Equal(t, 1, logs.FilterMessage("estimate: variant not found").Len())
}

func TestEstimateStoreErrorsAbort(t *testing.T) {
	boom := errors.New("connection reset")

	store := newFakeStore()
	store.variantErr = boom
	_, err := New(store).Estimate(context.Background(), []Line{{"a", 1}})
	require.ErrorIs(t, err, boom)

	store = newFakeStore()
	store.addVariant("a", "q1", 100, 1)
	store.pendingErr = boom
	_, err = New(store).Estimate(context.Background(), []Line{{"a", 1}})
	require.ErrorIs(t, err, boom)
}

func TestEstimateValidation(t *testing.T) {
	e := New(newFakeStore())

	_, err := e.Estimate(context.Background(), nil)
	require.ErrorIs(t, err, ErrNoLines)

	_, err = e.Estimate(context.Background(), []Line{{"a", 1}, {"b", 0}})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, 1, verr.Index)

	_, err = e.Estimate(context.Background(), []Line{{"", 1}})
	require.ErrorAs(t, err, &verr)
}

func TestEstimateOwnPrintTime(t *testing.T) {
	store := newFakeStore()
	store.addVariant("a", "q1", 3600, 2)
	store.addVariant("b", "q2", 60, 1)
	store.enqueue("a", 4, false)

	got, err := New(store, WithOwnPrintTime(true)).Estimate(context.Background(), []Line{{"a", 1}, {"b", 10}})
	require.NoError(t, err)
	require.Equal(t, int64(7_200_000), got.QueueTimeMs)
	// a: 3600*1/2 = 1800s on q1, b: 60*10 = 600s on q2
	require.Equal(t, int64(1_800_000), got.PrintTimeMs)
}
