package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/signature"
)

const cartUpdatedEvent = "cart_updated"

// AddCartItem increments the quantity of (cart, sku) by qty, creating the
// caller's cart and the line item as needed, and returns the resulting
// quantity. The increment is a single atomic upsert, so concurrent adds for
// the same line item all land. The whole operation, including the outbox
// event carrying the post-mutation snapshot, is one transaction.
func (r *Repository) AddCartItem(ctx context.Context, userRef, sku string, qty int) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin add item: %w", translateErr(err))
	}
	defer tx.Rollback()

	product, err := getProduct(ctx, tx, sku)
	if err != nil {
		return 0, err
	}

	cartID, err := getOrCreateCart(ctx, tx, userRef)
	if err != nil {
		return 0, err
	}

	var newQty int
	err = tx.QueryRowContext(ctx, `
		INSERT INTO cart_items (cart_id, product_id, sku, qty)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cart_id, sku) DO UPDATE SET qty = cart_items.qty + excluded.qty
		RETURNING qty
	`, cartID, product.ID, sku, qty).Scan(&newQty)
	if err != nil {
		return 0, fmt.Errorf("upsert cart item: %w", translateErr(err))
	}

	if err := finishMutation(ctx, tx, cartID, userRef); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit add item: %w", translateErr(err))
	}
	return newQty, nil
}

// SetCartItem overwrites the quantity of (cart, sku). qty = 0 deletes the
// row, or no-ops when there is nothing to delete. The product is resolved
// first in every case, so an unknown SKU fails with ErrProductNotFound.
func (r *Repository) SetCartItem(ctx context.Context, userRef, sku string, qty int) (domain.SetOutcome, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin set item: %w", translateErr(err))
	}
	defer tx.Rollback()

	product, err := getProduct(ctx, tx, sku)
	if err != nil {
		return "", err
	}

	cartID, err := getOrCreateCart(ctx, tx, userRef)
	if err != nil {
		return "", err
	}

	var outcome domain.SetOutcome
	if qty == 0 {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM cart_items WHERE cart_id = $1 AND sku = $2`, cartID, sku)
		if err != nil {
			return "", fmt.Errorf("delete cart item: %w", translateErr(err))
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return "", fmt.Errorf("delete cart item rows affected: %w", err)
		}
		if affected == 0 {
			// Nothing to delete; leave the cart untouched.
			if e2 := tx.Commit(); e2 != nil {
				return "", fmt.Errorf("commit set item: %w", translateErr(e2))
			}
			return domain.SetNoop, nil
		}
		outcome = domain.SetDeleted
	} else {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO cart_items (cart_id, product_id, sku, qty)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (cart_id, sku) DO UPDATE SET qty = excluded.qty
		`, cartID, product.ID, sku, qty)
		if err != nil {
			return "", fmt.Errorf("upsert cart item: %w", translateErr(err))
		}
		outcome = domain.SetApplied
	}

	if err := finishMutation(ctx, tx, cartID, userRef); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit set item: %w", translateErr(err))
	}
	return outcome, nil
}

// RemoveCartItem deletes the (cart, sku) row if present and reports whether a
// row was actually removed. Removing an absent item is not an error.
func (r *Repository) RemoveCartItem(ctx context.Context, userRef, sku string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin remove item: %w", translateErr(err))
	}
	defer tx.Rollback()

	cartID, err := getOrCreateCart(ctx, tx, userRef)
	if err != nil {
		return false, err
	}

	res, err := tx.ExecContext(ctx,
		`DELETE FROM cart_items WHERE cart_id = $1 AND sku = $2`, cartID, sku)
	if err != nil {
		return false, fmt.Errorf("delete cart item: %w", translateErr(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete cart item rows affected: %w", err)
	}
	if affected == 0 {
		if e2 := tx.Commit(); e2 != nil {
			return false, fmt.Errorf("commit remove item: %w", translateErr(e2))
		}
		return false, nil
	}

	if err := finishMutation(ctx, tx, cartID, userRef); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit remove item: %w", translateErr(err))
	}
	return true, nil
}

// GetCartSnapshot resolves (or lazily creates) the caller's cart and returns
// a consistent snapshot joined against current catalog pricing.
func (r *Repository) GetCartSnapshot(ctx context.Context, userRef string) (*domain.CartSnapshot, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin snapshot: %w", translateErr(err))
	}
	defer tx.Rollback()

	cartID, err := getOrCreateCart(ctx, tx, userRef)
	if err != nil {
		return nil, err
	}

	snap, err := buildSnapshot(ctx, tx, cartID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit snapshot: %w", translateErr(err))
	}
	return snap, nil
}

// getOrCreateCart is an atomic "insert if absent, else fetch": safe under
// concurrent first access thanks to the user_ref unique constraint.
func getOrCreateCart(ctx context.Context, tx *sql.Tx, userRef string) (int64, error) {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO carts (user_ref, updated_at)
		VALUES ($1, $2)
		ON CONFLICT (user_ref) DO NOTHING
	`, userRef, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("insert cart: %w", translateErr(err))
	}

	var id int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM carts WHERE user_ref = $1`, userRef).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("select cart: %w", translateErr(err))
	}
	return id, nil
}

// finishMutation refreshes the cart timestamp and appends the outbox event
// with the post-mutation snapshot, all inside the mutation's transaction.
func finishMutation(ctx context.Context, tx *sql.Tx, cartID int64, userRef string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE carts SET updated_at = $1 WHERE id = $2`, time.Now().UTC(), cartID)
	if err != nil {
		return fmt.Errorf("touch cart: %w", translateErr(err))
	}

	snap, err := buildSnapshot(ctx, tx, cartID)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO cart_events (aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4)
	`, userRef, cartUpdatedEvent, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert cart event: %w", translateErr(err))
	}

	return nil
}

func buildSnapshot(ctx context.Context, tx *sql.Tx, cartID int64) (*domain.CartSnapshot, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT ci.sku, p.name, ci.qty, p.price, p.currency
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.sku
	`, cartID)
	if err != nil {
		return nil, fmt.Errorf("query cart items: %w", translateErr(err))
	}
	defer rows.Close()

	snap := &domain.CartSnapshot{
		Items:    []domain.SnapshotItem{},
		Subtotal: decimal.Zero,
		Currency: domain.DefaultCurrency,
	}

	var pairs []signature.Item
	for rows.Next() {
		var (
			item     domain.SnapshotItem
			currency string
		)
		if err := rows.Scan(&item.SKU, &item.Name, &item.Qty, &item.UnitPrice, &currency); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}

		// Line totals round half up to the currency's 2 minor digits.
		item.LineTotal = item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Qty))).Round(2)

		if len(snap.Items) == 0 {
			// First row's currency stands for the cart; only correct for
			// single-currency catalogs.
			snap.Currency = currency
		}

		snap.Items = append(snap.Items, item)
		snap.Subtotal = snap.Subtotal.Add(item.LineTotal)
		pairs = append(pairs, signature.Item{SKU: item.SKU, Qty: item.Qty})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	snap.Normalization, snap.Signature = signature.Normalize(pairs)
	return snap, nil
}

func (r *Repository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, aggregate_id, event_type, payload, created_at
		FROM cart_events
		WHERE processed = FALSE
		ORDER BY id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query cart events: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		ev := &OutboxEvent{}
		if err := rows.Scan(&ev.ID, &ev.AggregateID, &ev.EventType, &ev.Payload, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan cart event: %w", err)
		}
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return events, nil
}

func (r *Repository) MarkEventAsProcessed(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE cart_events SET processed = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark event processed: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark event rows affected: %w", err)
	}
	if affected == 0 {
		return errors.New("event not found")
	}

	return nil
}

type OutboxEvent struct {
	ID          int64
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}
