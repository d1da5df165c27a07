package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrStatusConflict = errors.New("order status changed concurrently")
)

type Repo struct {
	DB     *pgxpool.Pool
	Logger *zap.Logger
}

const orderColumns = `id, external_id, user_id, status, is_refund, payment_ref,
	subtotal_cents, shipping_cents, total_cents,
	ship_name, ship_line1, ship_line2, ship_city, ship_state, ship_postal_code, ship_country,
	tracking_number, queue_time_ms, print_time_ms, estimate_available, estimated_delivery,
	created_at, updated_at`

// CreateOrderTx: idempotent via external_id. If the external id was already
// used, o is replaced with the stored order and existed is true.
func (r *Repo) CreateOrderTx(ctx context.Context, o *Order) (existed bool, err error) {
	stored, ok, err := r.byExternalID(ctx, o.ExternalID)
	if err != nil {
		return false, err
	}
	if ok {
		*o = stored
		return true, nil
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	o.CreatedAt, o.UpdatedAt = now, now
	o.StoredStatus = o.Status.Name()

	_, err = tx.Exec(ctx, `
		INSERT INTO orders(`+orderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)`,
		o.ID, o.ExternalID, o.UserID, o.Status.Name(), o.Status.IsRefund(), o.PaymentRef,
		o.SubtotalCents, o.ShippingCents, o.TotalCents,
		o.Shipping.Name, o.Shipping.Line1, o.Shipping.Line2, o.Shipping.City, o.Shipping.State,
		o.Shipping.PostalCode, o.Shipping.Country,
		o.TrackingNumber, o.QueueTimeMs, o.PrintTimeMs, o.EstimateAvailable, o.EstimatedDelivery,
		o.CreatedAt, o.UpdatedAt)
	if isUniqueViolation(err) {
		// a concurrent checkout with the same external id won the insert
		_ = tx.Rollback(ctx)
		stored, ok, err := r.byExternalID(ctx, o.ExternalID)
		if err != nil {
			return false, err
		}
		if ok {
			*o = stored
			return true, nil
		}
	}
	if err != nil {
		return false, fmt.Errorf("insert order: %w", err)
	}

	for i := range o.Items {
		it := &o.Items[i]
		if it.Qty <= 0 {
			return false, fmt.Errorf("invalid qty for variant %s", it.ProductVariantID)
		}
		if it.ID == "" {
			it.ID = uuid.NewString()
		}
		it.OrderID = o.ID
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items(id, order_id, product_variant_id, product_name, size, colors, personalization, price_cents, qty)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			it.ID, it.OrderID, it.ProductVariantID, it.ProductName, it.Size, it.Colors,
			it.Personalization, it.PriceCents, it.Qty)
		if err != nil {
			return false, fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return false, nil
}

func (r *Repo) byExternalID(ctx context.Context, externalID string) (Order, bool, error) {
	var id string
	err := r.DB.QueryRow(ctx, `SELECT id FROM orders WHERE external_id=$1`, externalID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, false, nil
	}
	if err != nil {
		return Order{}, false, err
	}
	o, err := r.GetOrder(ctx, id)
	if err != nil {
		return Order{}, false, err
	}
	return o, true, nil
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func (r *Repo) GetOrder(ctx context.Context, id string) (Order, error) {
	var (
		o      Order
		status string
		refund bool
	)
	err := r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id).Scan(
		&o.ID, &o.ExternalID, &o.UserID, &status, &refund, &o.PaymentRef,
		&o.SubtotalCents, &o.ShippingCents, &o.TotalCents,
		&o.Shipping.Name, &o.Shipping.Line1, &o.Shipping.Line2, &o.Shipping.City, &o.Shipping.State,
		&o.Shipping.PostalCode, &o.Shipping.Country,
		&o.TrackingNumber, &o.QueueTimeMs, &o.PrintTimeMs, &o.EstimateAvailable, &o.EstimatedDelivery,
		&o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	if err != nil {
		return Order{}, fmt.Errorf("get order %s: %w", id, err)
	}

	o.StoredStatus = status
	o.Status, err = ParseStatus(refund, status)
	if err != nil {
		// keep the order readable; the track's first stage stands in
		o.Status = LifecycleStatus{track: trackOf(refund)}
		if r.Logger != nil {
			r.Logger.Warn("stored order status not on its track",
				zap.String("order_id", o.ID), zap.String("status", status), zap.Bool("is_refund", refund))
		}
	}

	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, product_variant_id, product_name, size, colors, personalization, price_cents, qty
		FROM order_items WHERE order_id=$1 ORDER BY id`, id)
	if err != nil {
		return Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductVariantID, &it.ProductName, &it.Size,
			&it.Colors, &it.Personalization, &it.PriceCents, &it.Qty); err != nil {
			return Order{}, err
		}
		o.Items = append(o.Items, it)
	}
	return o, rows.Err()
}

// UpdateStatus writes to only while the stored status still equals from.
func (r *Repo) UpdateStatus(ctx context.Context, id, from string, to LifecycleStatus) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET status=$3, is_refund=$4, updated_at=now()
		WHERE id=$1 AND status=$2`, id, from, to.Name(), to.IsRefund())
	if err != nil {
		return fmt.Errorf("update order %s status: %w", id, err)
	}
	if ct.RowsAffected() == 1 {
		return nil
	}
	var exists bool
	if err := r.DB.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id=$1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	return fmt.Errorf("%w: %s", ErrStatusConflict, id)
}

func (r *Repo) SetTrackingNumber(ctx context.Context, id, number string) error {
	ct, err := r.DB.Exec(ctx, `UPDATE orders SET tracking_number=$2, updated_at=now() WHERE id=$1`, id, number)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	return nil
}

// GetOrderStatus reads only the status column pair.
func (r *Repo) GetOrderStatus(ctx context.Context, id string) (status string, isRefund bool, err error) {
	err = r.DB.QueryRow(ctx, `SELECT status, is_refund FROM orders WHERE id=$1`, id).Scan(&status, &isRefund)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	return status, isRefund, err
}
