package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/safar/go-procurement/internal/database"
	"github.com/safar/go-procurement/internal/models"
	"github.com/safar/go-procurement/internal/store"
)

const (
	vendorColumns   = `id, name, contact_person, email, phone, gstin, address, created_at`
	customerColumns = `id, kind, name, organization_name, email, phone, gstin, address, created_at`
	employeeColumns = `id, name, email, department, designation, created_at`
)

func scanVendor(row rowScanner) (*models.Vendor, error) {
	v := &models.Vendor{}
	err := row.Scan(&v.ID, &v.Name, &v.ContactPerson, &v.Email, &v.Phone, &v.GSTIN,
		addressColumn{&v.Address}, &v.CreatedAt)
	return v, err
}

func scanCustomer(row rowScanner) (*models.Customer, error) {
	c := &models.Customer{}
	err := row.Scan(&c.ID, &c.Kind, &c.Name, &c.OrganizationName, &c.Email, &c.Phone, &c.GSTIN,
		addressColumn{&c.Address}, &c.CreatedAt)
	return c, err
}

func scanEmployee(row rowScanner) (*models.Employee, error) {
	e := &models.Employee{}
	err := row.Scan(&e.ID, &e.Name, &e.Email, &e.Department, &e.Designation, &e.CreatedAt)
	return e, err
}

// createWithApproval inserts an entity and, when req is set, its approval
// request in the same transaction.
func (s *Store) createWithApproval(ctx context.Context, req *models.ApprovalRequest, insert func(tx *sql.Tx) error) error {
	return database.WithTransaction(ctx, s.db, s.txOptions(sql.LevelReadCommitted), func(tx *sql.Tx) error {
		if err := insert(tx); err != nil {
			return err
		}
		if req == nil {
			return nil
		}
		return insertApproval(ctx, tx, req)
	})
}

func (s *Store) CreateVendor(ctx context.Context, v *models.Vendor, req *models.ApprovalRequest) error {
	return s.createWithApproval(ctx, req, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO vendors (`+vendorColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			v.ID, v.Name, v.ContactPerson, v.Email, v.Phone, v.GSTIN, addressColumn{&v.Address}, v.CreatedAt)
		if err != nil {
			return fmt.Errorf("create vendor: %w", err)
		}
		return nil
	})
}

func (s *Store) CreateCustomer(ctx context.Context, c *models.Customer, req *models.ApprovalRequest) error {
	return s.createWithApproval(ctx, req, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO customers (`+customerColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			c.ID, c.Kind, c.Name, c.OrganizationName, c.Email, c.Phone, c.GSTIN, addressColumn{&c.Address}, c.CreatedAt)
		if err != nil {
			return fmt.Errorf("create customer: %w", err)
		}
		return nil
	})
}

func (s *Store) CreateEmployee(ctx context.Context, e *models.Employee, req *models.ApprovalRequest) error {
	return s.createWithApproval(ctx, req, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO employees (`+employeeColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
			e.ID, e.Name, e.Email, e.Department, e.Designation, e.CreatedAt)
		if err != nil {
			return fmt.Errorf("create employee: %w", err)
		}
		return nil
	})
}

func notFound(err error, kind string, id uuid.UUID) error {
	if errors.Is(err, sql.ErrNoRows) {
		return models.NewNotFoundError(kind, id.String())
	}
	return fmt.Errorf("get %s: %w", kind, err)
}

func (s *Store) GetVendor(ctx context.Context, id uuid.UUID) (*models.Vendor, error) {
	v, err := scanVendor(s.db.QueryRowContext(ctx, `SELECT `+vendorColumns+` FROM vendors WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "vendor", id)
	}
	return v, nil
}

func (s *Store) GetCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	c, err := scanCustomer(s.db.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "customer", id)
	}
	return c, nil
}

func (s *Store) GetEmployee(ctx context.Context, id uuid.UUID) (*models.Employee, error) {
	e, err := scanEmployee(s.db.QueryRowContext(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "employee", id)
	}
	return e, nil
}

// queryNewest runs a newest-first listing over table and scans each row.
func queryNewest[T any](ctx context.Context, db *sql.DB, table, columns string, limit, offset int, scan func(rowScanner) (*T, error)) ([]T, error) {
	query := `SELECT ` + columns + ` FROM ` + table + ` ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`
	rows, err := db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		out = append(out, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

func (s *Store) count(ctx context.Context, table string) (int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&total); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return total, nil
}

func listPage[T any](ctx context.Context, s *Store, table, columns string, page, pageSize int, scan func(rowScanner) (*T, error)) (*store.OffsetPage[T], error) {
	total, err := s.count(ctx, table)
	if err != nil {
		return nil, err
	}
	items, err := queryNewest(ctx, s.db, table, columns, pageSize, (page-1)*pageSize, scan)
	if err != nil {
		return nil, err
	}
	return store.NewOffsetPage(items, total, page, pageSize), nil
}

func (s *Store) ListVendors(ctx context.Context, page, pageSize int) (*store.OffsetPage[models.Vendor], error) {
	return listPage(ctx, s, "vendors", vendorColumns, page, pageSize, scanVendor)
}

func (s *Store) ListCustomers(ctx context.Context, page, pageSize int) (*store.OffsetPage[models.Customer], error) {
	return listPage(ctx, s, "customers", customerColumns, page, pageSize, scanCustomer)
}

func (s *Store) ListEmployees(ctx context.Context, page, pageSize int) (*store.OffsetPage[models.Employee], error) {
	return listPage(ctx, s, "employees", employeeColumns, page, pageSize, scanEmployee)
}

func (s *Store) RecentVendors(ctx context.Context, limit int) ([]models.Vendor, error) {
	return queryNewest(ctx, s.db, "vendors", vendorColumns, limit, 0, scanVendor)
}

func (s *Store) RecentCustomers(ctx context.Context, limit int) ([]models.Customer, error) {
	return queryNewest(ctx, s.db, "customers", customerColumns, limit, 0, scanCustomer)
}

func (s *Store) CountVendors(ctx context.Context) (int64, error) {
	return s.count(ctx, "vendors")
}

func (s *Store) CountCustomers(ctx context.Context) (int64, error) {
	return s.count(ctx, "customers")
}

func (s *Store) CountEmployees(ctx context.Context) (int64, error) {
	return s.count(ctx, "employees")
}

func (s *Store) CreateReceipt(ctx context.Context, r *models.Receipt) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO receipts (id, customer_id, amount, note, issued_by, issued_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		r.ID, r.CustomerID, r.Amount, r.Note, r.IssuedBy, r.IssuedAt)
	if err != nil {
		return fmt.Errorf("create receipt: %w", err)
	}
	return nil
}

func (s *Store) ListReceipts(ctx context.Context, customerID uuid.UUID) ([]models.Receipt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, customer_id, amount, note, issued_by, issued_at
		 FROM receipts
		 WHERE customer_id = $1
		 ORDER BY issued_at, id`,
		customerID)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	defer rows.Close()

	receipts := []models.Receipt{}
	for rows.Next() {
		var r models.Receipt
		if err := rows.Scan(&r.ID, &r.CustomerID, &r.Amount, &r.Note, &r.IssuedBy, &r.IssuedAt); err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		receipts = append(receipts, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return receipts, nil
}
