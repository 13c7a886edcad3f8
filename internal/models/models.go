package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusDraft     OrderStatus = "draft"
	OrderStatusApproved  OrderStatus = "approved"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusInvoiced  OrderStatus = "invoiced"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusCancelled OrderStatus = "cancelled"
)

func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusDraft, OrderStatusApproved, OrderStatusDelivered,
		OrderStatusInvoiced, OrderStatusPaid, OrderStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no transition may leave s.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusPaid || s == OrderStatusCancelled
}

type Address struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type LineItem struct {
	ProductName   string          `json:"product_name"`
	Description   string          `json:"description,omitempty"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitOfMeasure UnitOfMeasure   `json:"unit_of_measure"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	HSNCode       string          `json:"hsn_code,omitempty"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	TaxAmount     decimal.Decimal `json:"tax_amount"`
}

type PurchaseOrder struct {
	PONumber             string          `json:"po_number"`
	VendorName           string          `json:"vendor_name"`
	BuyerName            string          `json:"buyer_name"`
	Department           string          `json:"department"`
	OrderDate            time.Time       `json:"order_date"`
	ExpectedDeliveryDate time.Time       `json:"expected_delivery_date"`
	DeliveryAddress      Address         `json:"delivery_address"`
	PaymentTerms         PaymentTerms    `json:"payment_terms"`
	Items                []LineItem      `json:"items"`
	ShippingCharges      decimal.Decimal `json:"shipping_charges"`
	OtherCharges         decimal.Decimal `json:"other_charges"`
	DiscountAmount       decimal.Decimal `json:"discount_amount"`
	Subtotal             decimal.Decimal `json:"subtotal"`
	TaxTotal             decimal.Decimal `json:"tax_total"`
	GrandTotal           decimal.Decimal `json:"grand_total"`
	Status               OrderStatus     `json:"status"`
	Notes                string          `json:"notes,omitempty"`
	QuotationFile        string          `json:"quotation_file,omitempty"`
	InvoiceFile          string          `json:"invoice_file,omitempty"`

	ApprovedBy   string     `json:"approved_by,omitempty"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`
	DeliveredAt  *time.Time `json:"delivered_at,omitempty"`
	InvoicedAt   *time.Time `json:"invoiced_at,omitempty"`
	PaidAt       *time.Time `json:"paid_at,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CancelReason string     `json:"cancel_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int       `json:"version"`
}

// Clone returns a copy that shares no mutable state with o.
func (o *PurchaseOrder) Clone() *PurchaseOrder {
	c := *o
	c.Items = append([]LineItem(nil), o.Items...)
	c.ApprovedAt = cloneTime(o.ApprovedAt)
	c.DeliveredAt = cloneTime(o.DeliveredAt)
	c.InvoicedAt = cloneTime(o.InvoicedAt)
	c.PaidAt = cloneTime(o.PaidAt)
	c.CancelledAt = cloneTime(o.CancelledAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

type EntityType string

const (
	EntityEmployee EntityType = "employee"
	EntityVendor   EntityType = "vendor"
	EntityCustomer EntityType = "customer"
	EntityPurchase EntityType = "purchase"
)

var EntityTypes = []EntityType{EntityEmployee, EntityVendor, EntityCustomer, EntityPurchase}

func (e EntityType) IsValid() bool {
	switch e {
	case EntityEmployee, EntityVendor, EntityCustomer, EntityPurchase:
		return true
	}
	return false
}

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

func (s ApprovalStatus) IsValid() bool {
	switch s {
	case ApprovalPending, ApprovalApproved, ApprovalRejected:
		return true
	}
	return false
}

type ApprovalRequest struct {
	ID              uuid.UUID      `json:"id"`
	EntityType      EntityType     `json:"entity_type"`
	EntityID        string         `json:"entity_id"`
	Summary         string         `json:"summary,omitempty"`
	ApprovalStatus  ApprovalStatus `json:"approval_status"`
	RejectionReason string         `json:"rejection_reason,omitempty"`
	ReviewedBy      string         `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time     `json:"reviewed_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

// Resolution is the terminal state written onto a pending ApprovalRequest.
type Resolution struct {
	Status     ApprovalStatus
	Reviewer   string
	Reason     string
	ReviewedAt time.Time
}

type Vendor struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	ContactPerson string    `json:"contact_person,omitempty"`
	Email         string    `json:"email,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	GSTIN         string    `json:"gstin,omitempty"`
	Address       Address   `json:"address"`
	CreatedAt     time.Time `json:"created_at"`
}

type CustomerKind string

const (
	CustomerIndividual     CustomerKind = "individual"
	CustomerOrganizational CustomerKind = "organizational"
)

type Customer struct {
	ID               uuid.UUID    `json:"id"`
	Kind             CustomerKind `json:"kind"`
	Name             string       `json:"name"`
	OrganizationName string       `json:"organization_name,omitempty"`
	Email            string       `json:"email,omitempty"`
	Phone            string       `json:"phone,omitempty"`
	GSTIN            string       `json:"gstin,omitempty"`
	Address          Address      `json:"address"`
	CreatedAt        time.Time    `json:"created_at"`
}

// DisplayName is the organization name for organizational customers.
func (c Customer) DisplayName() string {
	if c.Kind == CustomerOrganizational && c.OrganizationName != "" {
		return c.OrganizationName
	}
	return c.Name
}

type Employee struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email,omitempty"`
	Department  string    `json:"department,omitempty"`
	Designation string    `json:"designation,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type Receipt struct {
	ID         uuid.UUID       `json:"id"`
	CustomerID uuid.UUID       `json:"customer_id"`
	Amount     decimal.Decimal `json:"amount"`
	Note       string          `json:"note,omitempty"`
	IssuedBy   string          `json:"issued_by"`
	IssuedAt   time.Time       `json:"issued_at"`
}

type ActivityKind string

const (
	ActivityVendorCreated   ActivityKind = "vendor_created"
	ActivityPurchaseCreated ActivityKind = "purchase_created"
	ActivityCustomerCreated ActivityKind = "customer_created"
)

type Activity struct {
	Kind      ActivityKind `json:"kind"`
	Reference string       `json:"reference"`
	Title     string       `json:"title"`
	CreatedAt time.Time    `json:"created_at"`
}

type DashboardSummary struct {
	VendorCount        int64                `json:"vendor_count"`
	CustomerCount      int64                `json:"customer_count"`
	EmployeeCount      int64                `json:"employee_count"`
	PurchaseCount      int64                `json:"purchase_count"`
	TotalPurchaseValue decimal.Decimal      `json:"total_purchase_value"`
	PendingPayments    decimal.Decimal      `json:"pending_payments"`
	PendingRequests    int64                `json:"pending_requests"`
	PendingApprovals   map[EntityType]int64 `json:"pending_approvals"`
	RecentActivities   []Activity           `json:"recent_activities"`
	UnavailableSources []string             `json:"unavailable_sources,omitempty"`
}
