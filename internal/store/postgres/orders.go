package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/safar/go-procurement/internal/database"
	"github.com/safar/go-procurement/internal/models"
	"github.com/safar/go-procurement/internal/store"
)

const orderColumns = `po_number, vendor_name, buyer_name, department, order_date, expected_delivery_date,
	delivery_address, payment_terms, shipping_charges, other_charges, discount_amount,
	subtotal, tax_total, grand_total, status, notes, quotation_file, invoice_file,
	approved_by, approved_at, delivered_at, invoiced_at, paid_at, cancelled_at, cancel_reason,
	created_at, updated_at, version`

func scanOrder(row rowScanner) (*models.PurchaseOrder, error) {
	o := &models.PurchaseOrder{}
	var expected sql.NullTime
	err := row.Scan(
		&o.PONumber,
		&o.VendorName,
		&o.BuyerName,
		&o.Department,
		&o.OrderDate,
		&expected,
		addressColumn{&o.DeliveryAddress},
		&o.PaymentTerms,
		&o.ShippingCharges,
		&o.OtherCharges,
		&o.DiscountAmount,
		&o.Subtotal,
		&o.TaxTotal,
		&o.GrandTotal,
		&o.Status,
		&o.Notes,
		&o.QuotationFile,
		&o.InvoiceFile,
		&o.ApprovedBy,
		&o.ApprovedAt,
		&o.DeliveredAt,
		&o.InvoicedAt,
		&o.PaidAt,
		&o.CancelledAt,
		&o.CancelReason,
		&o.CreatedAt,
		&o.UpdatedAt,
		&o.Version,
	)
	if err != nil {
		return nil, err
	}
	if expected.Valid {
		o.ExpectedDeliveryDate = expected.Time
	}
	return o, nil
}

func (s *Store) CreatePurchaseOrder(ctx context.Context, order *models.PurchaseOrder) error {
	return database.WithTransaction(ctx, s.db, s.txOptions(sql.LevelReadCommitted), func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO purchase_orders (`+orderColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			         $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28)`,
			orderArgs(order)...)
		if err != nil {
			if database.IsUniqueViolation(err) {
				return fmt.Errorf("%w: purchase order %s", models.ErrDuplicate, order.PONumber)
			}
			return fmt.Errorf("create purchase order: %w", err)
		}
		return insertItems(ctx, tx, order)
	})
}

func orderArgs(o *models.PurchaseOrder) []any {
	return []any{
		o.PONumber,
		o.VendorName,
		o.BuyerName,
		o.Department,
		o.OrderDate,
		nullTime(o.ExpectedDeliveryDate),
		addressColumn{&o.DeliveryAddress},
		o.PaymentTerms,
		o.ShippingCharges,
		o.OtherCharges,
		o.DiscountAmount,
		o.Subtotal,
		o.TaxTotal,
		o.GrandTotal,
		o.Status,
		o.Notes,
		o.QuotationFile,
		o.InvoiceFile,
		o.ApprovedBy,
		o.ApprovedAt,
		o.DeliveredAt,
		o.InvoicedAt,
		o.PaidAt,
		o.CancelledAt,
		o.CancelReason,
		o.CreatedAt,
		o.UpdatedAt,
		o.Version,
	}
}

func insertItems(ctx context.Context, tx *sql.Tx, order *models.PurchaseOrder) error {
	for i, item := range order.Items {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO purchase_order_items (po_number, position, product_name, description, quantity,
			     unit_of_measure, unit_price, hsn_code, tax_rate, total_price, tax_amount)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			order.PONumber, i, item.ProductName, item.Description, item.Quantity,
			item.UnitOfMeasure, item.UnitPrice, item.HSNCode, item.TaxRate, item.TotalPrice, item.TaxAmount)
		if err != nil {
			return fmt.Errorf("create purchase order item %d: %w", i, err)
		}
	}
	return nil
}

func (s *Store) GetPurchaseOrder(ctx context.Context, poNumber string) (*models.PurchaseOrder, error) {
	order, err := scanOrder(s.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM purchase_orders WHERE po_number = $1`, poNumber))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.NewNotFoundError("purchase order", poNumber)
		}
		return nil, fmt.Errorf("get purchase order: %w", err)
	}

	items, err := s.loadItems(ctx, []string{poNumber})
	if err != nil {
		return nil, err
	}
	order.Items = items[poNumber]
	return order, nil
}

// UpdatePurchaseOrder rewrites the header and item list of an order in one
// transaction, guarded by the expected version.
func (s *Store) UpdatePurchaseOrder(ctx context.Context, order *models.PurchaseOrder, expectedVersion int) error {
	return database.WithRetry(ctx, s.db, s.txOptions(sql.LevelReadCommitted), func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE purchase_orders
			 SET vendor_name = $3, buyer_name = $4, department = $5, order_date = $6,
			     expected_delivery_date = $7, delivery_address = $8, payment_terms = $9,
			     shipping_charges = $10, other_charges = $11, discount_amount = $12,
			     subtotal = $13, tax_total = $14, grand_total = $15, status = $16,
			     notes = $17, quotation_file = $18, invoice_file = $19, approved_by = $20,
			     approved_at = $21, delivered_at = $22, invoiced_at = $23, paid_at = $24,
			     cancelled_at = $25, cancel_reason = $26, updated_at = $27, version = $28
			 WHERE po_number = $1 AND version = $2`,
			order.PONumber, expectedVersion,
			order.VendorName, order.BuyerName, order.Department, order.OrderDate,
			nullTime(order.ExpectedDeliveryDate), addressColumn{&order.DeliveryAddress}, order.PaymentTerms,
			order.ShippingCharges, order.OtherCharges, order.DiscountAmount,
			order.Subtotal, order.TaxTotal, order.GrandTotal, order.Status,
			order.Notes, order.QuotationFile, order.InvoiceFile, order.ApprovedBy,
			order.ApprovedAt, order.DeliveredAt, order.InvoicedAt, order.PaidAt,
			order.CancelledAt, order.CancelReason, order.UpdatedAt, order.Version,
		)
		if err != nil {
			return fmt.Errorf("update purchase order: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			var exists bool
			if err := tx.QueryRowContext(ctx,
				"SELECT EXISTS(SELECT 1 FROM purchase_orders WHERE po_number = $1)",
				order.PONumber).Scan(&exists); err != nil {
				return fmt.Errorf("check purchase order exists: %w", err)
			}
			if !exists {
				return models.NewNotFoundError("purchase order", order.PONumber)
			}
			return database.ErrOptimisticLockFailed
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM purchase_order_items WHERE po_number = $1`, order.PONumber); err != nil {
			return fmt.Errorf("clear purchase order items: %w", err)
		}
		return insertItems(ctx, tx, order)
	})
}

// ListPurchaseOrders returns matching orders newest first, keyset-paginated on
// (created_at, po_number).
func (s *Store) ListPurchaseOrders(ctx context.Context, filter store.OrderFilter) ([]models.PurchaseOrder, error) {
	var (
		where []string
		args  []any
	)
	if len(filter.Statuses) > 0 {
		args = append(args, pq.Array(store.StatusStrings(filter.Statuses)))
		where = append(where, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if filter.After != nil {
		args = append(args, filter.After.CreatedAt, filter.After.PONumber)
		where = append(where, fmt.Sprintf("(created_at, po_number) < ($%d, $%d)", len(args)-1, len(args)))
	}

	query := `SELECT ` + orderColumns + ` FROM purchase_orders`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, po_number DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list purchase orders: %w", err)
	}
	defer rows.Close()

	var (
		orders  []models.PurchaseOrder
		numbers []string
	)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan purchase order: %w", err)
		}
		orders = append(orders, *o)
		numbers = append(numbers, o.PONumber)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	items, err := s.loadItems(ctx, numbers)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].PONumber]
	}
	return orders, nil
}

func (s *Store) loadItems(ctx context.Context, poNumbers []string) (map[string][]models.LineItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT po_number, product_name, description, quantity, unit_of_measure,
		        unit_price, hsn_code, tax_rate, total_price, tax_amount
		 FROM purchase_order_items
		 WHERE po_number = ANY($1)
		 ORDER BY po_number, position`,
		pq.Array(poNumbers))
	if err != nil {
		return nil, fmt.Errorf("get purchase order items: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]models.LineItem, len(poNumbers))
	for rows.Next() {
		var (
			po   string
			item models.LineItem
		)
		err := rows.Scan(
			&po,
			&item.ProductName,
			&item.Description,
			&item.Quantity,
			&item.UnitOfMeasure,
			&item.UnitPrice,
			&item.HSNCode,
			&item.TaxRate,
			&item.TotalPrice,
			&item.TaxAmount,
		)
		if err != nil {
			return nil, fmt.Errorf("scan purchase order item: %w", err)
		}
		out[po] = append(out[po], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}
