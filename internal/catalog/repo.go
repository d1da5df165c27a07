package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrQueueItemNotFound = errors.New("queue item not found")

// Repo reads variants and queue items from postgres.
type Repo struct{ DB *pgxpool.Pool }

const variantColumns = `id, product_name, attributes, price_cents, estimated_print_seconds,
	group_size, print_queue_id, created_at, updated_at`

func scanVariant(row pgx.Row) (ProductVariant, error) {
	var v ProductVariant
	err := row.Scan(&v.ID, &v.ProductName, &v.Attributes, &v.PriceCents, &v.EstimatedPrintSeconds,
		&v.GroupSize, &v.PrintQueueID, &v.CreatedAt, &v.UpdatedAt)
	return v, err
}

func (r *Repo) GetVariant(ctx context.Context, id string) (ProductVariant, error) {
	v, err := scanVariant(r.DB.QueryRow(ctx, `SELECT `+variantColumns+` FROM product_variants WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return ProductVariant{}, fmt.Errorf("%w: %s", ErrVariantNotFound, id)
	}
	if err != nil {
		return ProductVariant{}, fmt.Errorf("get variant %s: %w", id, err)
	}
	return v, nil
}

func (r *Repo) ListVariantsByProduct(ctx context.Context, productName string) ([]ProductVariant, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+variantColumns+` FROM product_variants
	                              WHERE product_name=$1 ORDER BY created_at, id`, productName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProductVariant
	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// PendingByQueue returns unprocessed work on queueID, oldest first.
func (r *Repo) PendingByQueue(ctx context.Context, queueID string) ([]PendingItem, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT qi.id, qi.product_variant_id, qi.quantity, qi.created_at,
		       pv.estimated_print_seconds, pv.group_size
		FROM queue_items qi
		JOIN product_variants pv ON pv.id = qi.product_variant_id
		WHERE pv.print_queue_id = $1 AND qi.is_processed = false
		ORDER BY qi.created_at ASC, qi.id ASC`, queueID)
	if err != nil {
		return nil, fmt.Errorf("pending items of queue %s: %w", queueID, err)
	}
	defer rows.Close()

	var out []PendingItem
	for rows.Next() {
		var p PendingItem
		if err := rows.Scan(&p.QueueItemID, &p.ProductVariantID, &p.Quantity, &p.CreatedAt,
			&p.EstimatedPrintSeconds, &p.GroupSize); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// EnqueueLine is one order line to be produced.
type EnqueueLine struct {
	OrderItemID      string
	ProductVariantID string
	Quantity         int
}

// EnqueueOrder inserts one queue item per order line. Lines already enqueued
// are skipped, so replaying the same order is harmless. Returns the number of
// rows inserted.
func (r *Repo) EnqueueOrder(ctx context.Context, orderID string, lines []EnqueueLine) (int, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	inserted := 0
	now := time.Now().UTC()
	for _, l := range lines {
		if l.Quantity <= 0 {
			return 0, fmt.Errorf("invalid qty for order item %s", l.OrderItemID)
		}
		ct, err := tx.Exec(ctx, `
			INSERT INTO queue_items(id, product_variant_id, order_id, order_item_id, quantity, is_processed, created_at)
			VALUES ($1,$2,$3,$4,$5,false,$6)
			ON CONFLICT (order_item_id) DO NOTHING`,
			uuid.NewString(), l.ProductVariantID, orderID, l.OrderItemID, l.Quantity, now)
		if err != nil {
			return 0, fmt.Errorf("enqueue order item %s: %w", l.OrderItemID, err)
		}
		inserted += int(ct.RowsAffected())
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return inserted, nil
}

// MarkProcessed flips is_processed on a single row. Marking an already
// processed item again returns it unchanged.
func (r *Repo) MarkProcessed(ctx context.Context, id string) (QueueItem, error) {
	var q QueueItem
	var queueID *string
	err := r.DB.QueryRow(ctx, `
		UPDATE queue_items qi
		SET is_processed = true, processed_at = COALESCE(qi.processed_at, now())
		FROM product_variants pv
		WHERE qi.id = $1 AND pv.id = qi.product_variant_id
		RETURNING qi.id, qi.product_variant_id, qi.order_id, qi.order_item_id, pv.print_queue_id,
		          qi.quantity, qi.is_processed, qi.created_at, qi.processed_at`, id).
		Scan(&q.ID, &q.ProductVariantID, &q.OrderID, &q.OrderItemID, &queueID,
			&q.Quantity, &q.IsProcessed, &q.CreatedAt, &q.ProcessedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return QueueItem{}, fmt.Errorf("%w: %s", ErrQueueItemNotFound, id)
	}
	if err != nil {
		return QueueItem{}, fmt.Errorf("mark queue item %s processed: %w", id, err)
	}
	if queueID != nil {
		q.PrintQueueID = *queueID
	}
	return q, nil
}
