// Package registration creates vendors, customers and employees. Kinds that
// are gated by the approval registry are stored together with their pending
// approval request in a single write.
package registration

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/safar/go-procurement/internal/approval"
	"github.com/safar/go-procurement/internal/models"
	"github.com/safar/go-procurement/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Repository persists entities. A non-nil request must be stored atomically
// with its entity: both or neither.
type Repository interface {
	CreateVendor(ctx context.Context, v *models.Vendor, req *models.ApprovalRequest) error
	CreateCustomer(ctx context.Context, c *models.Customer, req *models.ApprovalRequest) error
	CreateEmployee(ctx context.Context, e *models.Employee, req *models.ApprovalRequest) error

	GetVendor(ctx context.Context, id uuid.UUID) (*models.Vendor, error)
	GetCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	GetEmployee(ctx context.Context, id uuid.UUID) (*models.Employee, error)

	ListVendors(ctx context.Context, page, pageSize int) (*store.OffsetPage[models.Vendor], error)
	ListCustomers(ctx context.Context, page, pageSize int) (*store.OffsetPage[models.Customer], error)
	ListEmployees(ctx context.Context, page, pageSize int) (*store.OffsetPage[models.Employee], error)

	CreateReceipt(ctx context.Context, r *models.Receipt) error
	ListReceipts(ctx context.Context, customerID uuid.UUID) ([]models.Receipt, error)
}

type Params struct {
	Repository Repository
	Registry   *approval.Registry
	Logger     *zap.Logger
	Clock      func() time.Time
}

type Service struct {
	repo     Repository
	registry *approval.Registry
	log      *zap.Logger
	now      func() time.Time
}

func NewService(p Params) *Service {
	s := &Service{repo: p.Repository, registry: p.Registry, log: p.Logger, now: p.Clock}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

type VendorInput struct {
	Name          string
	ContactPerson string
	Email         string
	Phone         string
	GSTIN         string
	Address       models.Address
}

type CustomerInput struct {
	Kind             models.CustomerKind
	Name             string
	OrganizationName string
	Email            string
	Phone            string
	GSTIN            string
	Address          models.Address
}

type EmployeeInput struct {
	Name        string
	Email       string
	Department  string
	Designation string
}

func (s *Service) RegisterVendor(ctx context.Context, in VendorInput) (*models.Vendor, *models.ApprovalRequest, error) {
	v := &models.Vendor{
		ID:            uuid.New(),
		Name:          strings.TrimSpace(in.Name),
		ContactPerson: strings.TrimSpace(in.ContactPerson),
		Email:         strings.TrimSpace(in.Email),
		Phone:         strings.TrimSpace(in.Phone),
		GSTIN:         strings.ToUpper(strings.TrimSpace(in.GSTIN)),
		Address:       in.Address,
		CreatedAt:     s.now().UTC(),
	}
	if v.Name == "" {
		return nil, nil, models.NewValidationError("name", "is required")
	}
	if err := validateContact(v.Email, v.GSTIN, v.Address); err != nil {
		return nil, nil, err
	}

	req, err := s.gate(models.EntityVendor, v.ID, v.Name)
	if err != nil {
		return nil, nil, err
	}
	if err := s.repo.CreateVendor(ctx, v, req); err != nil {
		return nil, nil, fmt.Errorf("create vendor: %w", err)
	}

	s.logRegistered(models.EntityVendor, v.ID, req)
	return v, req, nil
}

func (s *Service) RegisterCustomer(ctx context.Context, in CustomerInput) (*models.Customer, *models.ApprovalRequest, error) {
	c := &models.Customer{
		ID:               uuid.New(),
		Kind:             models.CustomerKind(strings.ToLower(strings.TrimSpace(string(in.Kind)))),
		Name:             strings.TrimSpace(in.Name),
		OrganizationName: strings.TrimSpace(in.OrganizationName),
		Email:            strings.TrimSpace(in.Email),
		Phone:            strings.TrimSpace(in.Phone),
		GSTIN:            strings.ToUpper(strings.TrimSpace(in.GSTIN)),
		Address:          in.Address,
		CreatedAt:        s.now().UTC(),
	}
	switch c.Kind {
	case models.CustomerIndividual:
	case models.CustomerOrganizational:
		if c.OrganizationName == "" {
			return nil, nil, models.NewValidationError("organizationName", "is required for organizational customers")
		}
	default:
		return nil, nil, models.NewValidationError("kind", fmt.Sprintf("unknown customer kind %q", in.Kind))
	}
	if c.Name == "" {
		return nil, nil, models.NewValidationError("name", "is required")
	}
	if err := validateContact(c.Email, c.GSTIN, c.Address); err != nil {
		return nil, nil, err
	}

	req, err := s.gate(models.EntityCustomer, c.ID, c.DisplayName())
	if err != nil {
		return nil, nil, err
	}
	if err := s.repo.CreateCustomer(ctx, c, req); err != nil {
		return nil, nil, fmt.Errorf("create customer: %w", err)
	}

	s.logRegistered(models.EntityCustomer, c.ID, req)
	return c, req, nil
}

func (s *Service) RegisterEmployee(ctx context.Context, in EmployeeInput) (*models.Employee, *models.ApprovalRequest, error) {
	e := &models.Employee{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(in.Name),
		Email:       strings.TrimSpace(in.Email),
		Department:  strings.TrimSpace(in.Department),
		Designation: strings.TrimSpace(in.Designation),
		CreatedAt:   s.now().UTC(),
	}
	if e.Name == "" {
		return nil, nil, models.NewValidationError("name", "is required")
	}
	if err := models.ValidateEmail(e.Email); err != nil {
		return nil, nil, err
	}

	req, err := s.gate(models.EntityEmployee, e.ID, e.Name)
	if err != nil {
		return nil, nil, err
	}
	if err := s.repo.CreateEmployee(ctx, e, req); err != nil {
		return nil, nil, fmt.Errorf("create employee: %w", err)
	}

	s.logRegistered(models.EntityEmployee, e.ID, req)
	return e, req, nil
}

func validateContact(email, gstin string, addr models.Address) error {
	if err := models.ValidateEmail(email); err != nil {
		return err
	}
	if err := models.ValidateGSTIN(gstin); err != nil {
		return err
	}
	return addr.Validate()
}

func (s *Service) gate(kind models.EntityType, id uuid.UUID, summary string) (*models.ApprovalRequest, error) {
	if s.registry == nil || !s.registry.IsGated(kind) {
		return nil, nil
	}
	return s.registry.NewRequest(kind, id.String(), summary)
}

func (s *Service) logRegistered(kind models.EntityType, id uuid.UUID, req *models.ApprovalRequest) {
	fields := []zap.Field{
		zap.String("entity_type", string(kind)),
		zap.String("entity_id", id.String()),
		zap.Bool("awaiting_approval", req != nil),
	}
	if req != nil {
		fields = append(fields, zap.String("request_id", req.ID.String()))
	}
	s.log.Info("entity registered", fields...)
}

func (s *Service) GetVendor(ctx context.Context, id uuid.UUID) (*models.Vendor, error) {
	return s.repo.GetVendor(ctx, id)
}

func (s *Service) GetCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	return s.repo.GetCustomer(ctx, id)
}

func (s *Service) GetEmployee(ctx context.Context, id uuid.UUID) (*models.Employee, error) {
	return s.repo.GetEmployee(ctx, id)
}

func (s *Service) ListVendors(ctx context.Context, page, pageSize int) (*store.OffsetPage[models.Vendor], error) {
	page, pageSize = store.NormalizePage(page, pageSize)
	return s.repo.ListVendors(ctx, page, pageSize)
}

func (s *Service) ListCustomers(ctx context.Context, page, pageSize int) (*store.OffsetPage[models.Customer], error) {
	page, pageSize = store.NormalizePage(page, pageSize)
	return s.repo.ListCustomers(ctx, page, pageSize)
}

func (s *Service) ListEmployees(ctx context.Context, page, pageSize int) (*store.OffsetPage[models.Employee], error) {
	page, pageSize = store.NormalizePage(page, pageSize)
	return s.repo.ListEmployees(ctx, page, pageSize)
}

// IssueReceipt records a payment receipt for a customer. Customers awaiting
// or refused approval cannot receive receipts.
func (s *Service) IssueReceipt(ctx context.Context, customerID uuid.UUID, amount decimal.Decimal, note, issuedBy string) (*models.Receipt, error) {
	if !amount.IsPositive() {
		return nil, models.NewValidationError("amount", "must be greater than zero")
	}
	issuedBy = strings.TrimSpace(issuedBy)
	if issuedBy == "" {
		return nil, models.NewValidationError("issuedBy", "is required")
	}

	customer, err := s.repo.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if s.registry != nil {
		if err := s.registry.RequireApproved(ctx, models.EntityCustomer, customer.ID.String()); err != nil {
			return nil, err
		}
	}

	receipt := &models.Receipt{
		ID:         uuid.New(),
		CustomerID: customer.ID,
		Amount:     amount,
		Note:       strings.TrimSpace(note),
		IssuedBy:   issuedBy,
		IssuedAt:   s.now().UTC(),
	}
	if err := s.repo.CreateReceipt(ctx, receipt); err != nil {
		return nil, fmt.Errorf("create receipt: %w", err)
	}

	s.log.Info("receipt issued",
		zap.String("receipt_id", receipt.ID.String()),
		zap.String("customer_id", customer.ID.String()),
		zap.String("amount", amount.StringFixed(2)),
	)
	return receipt, nil
}

func (s *Service) ListReceipts(ctx context.Context, customerID uuid.UUID) ([]models.Receipt, error) {
	if _, err := s.repo.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}
	return s.repo.ListReceipts(ctx, customerID)
}
