package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/safar/go-procurement/internal/models"
	"github.com/safar/go-procurement/internal/purchase"
	"github.com/shopspring/decimal"
)

type lineItemRequest struct {
	ProductName   string          `json:"product_name"`
	Description   string          `json:"description"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitOfMeasure string          `json:"unit_of_measure"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	HSNCode       string          `json:"hsn_code"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
}

func (r lineItemRequest) model() models.LineItem {
	return models.LineItem{
		ProductName:   strings.TrimSpace(r.ProductName),
		Description:   strings.TrimSpace(r.Description),
		Quantity:      r.Quantity,
		UnitOfMeasure: models.UnitOfMeasure(strings.ToLower(strings.TrimSpace(r.UnitOfMeasure))),
		UnitPrice:     r.UnitPrice,
		HSNCode:       strings.TrimSpace(r.HSNCode),
		TaxRate:       r.TaxRate,
	}
}

func lineItems(in []lineItemRequest) []models.LineItem {
	if in == nil {
		return nil
	}
	out := make([]models.LineItem, len(in))
	for i, item := range in {
		out[i] = item.model()
	}
	return out
}

type createPurchaseOrderRequest struct {
	PONumber             string            `json:"po_number"`
	VendorName           string            `json:"vendor_name"`
	BuyerName            string            `json:"buyer_name"`
	Department           string            `json:"department"`
	OrderDate            *time.Time        `json:"order_date"`
	ExpectedDeliveryDate *time.Time        `json:"expected_delivery_date"`
	DeliveryAddress      models.Address    `json:"delivery_address"`
	PaymentTerms         string            `json:"payment_terms"`
	Items                []lineItemRequest `json:"items"`
	ShippingCharges      decimal.Decimal   `json:"shipping_charges"`
	OtherCharges         decimal.Decimal   `json:"other_charges"`
	DiscountAmount       decimal.Decimal   `json:"discount_amount"`
	Notes                string            `json:"notes"`
	QuotationFile        string            `json:"quotation_file"`
}

type updatePurchaseOrderRequest struct {
	VendorName           *string           `json:"vendor_name"`
	BuyerName            *string           `json:"buyer_name"`
	Department           *string           `json:"department"`
	OrderDate            *time.Time        `json:"order_date"`
	ExpectedDeliveryDate *time.Time        `json:"expected_delivery_date"`
	DeliveryAddress      *models.Address   `json:"delivery_address"`
	PaymentTerms         *string           `json:"payment_terms"`
	Items                []lineItemRequest `json:"items"`
	ShippingCharges      *decimal.Decimal  `json:"shipping_charges"`
	OtherCharges         *decimal.Decimal  `json:"other_charges"`
	DiscountAmount       *decimal.Decimal  `json:"discount_amount"`
	Notes                *string           `json:"notes"`
	QuotationFile        *string           `json:"quotation_file"`
}

type transitionRequest struct {
	Action      string `json:"action"`
	Actor       string `json:"actor"`
	InvoiceFile string `json:"invoice_file"`
	Reason      string `json:"reason"`
}

type attachInvoiceRequest struct {
	InvoiceFile string `json:"invoice_file"`
}

type lineItemResponse struct {
	ProductName   string `json:"product_name"`
	Description   string `json:"description,omitempty"`
	Quantity      string `json:"quantity"`
	UnitOfMeasure string `json:"unit_of_measure"`
	UnitPrice     string `json:"unit_price"`
	HSNCode       string `json:"hsn_code,omitempty"`
	TaxRate       string `json:"tax_rate"`
	TotalPrice    string `json:"total_price"`
	TaxAmount     string `json:"tax_amount"`
}

type purchaseOrderResponse struct {
	PONumber             string             `json:"po_number"`
	VendorName           string             `json:"vendor_name"`
	BuyerName            string             `json:"buyer_name"`
	Department           string             `json:"department,omitempty"`
	OrderDate            time.Time          `json:"order_date"`
	ExpectedDeliveryDate *time.Time         `json:"expected_delivery_date,omitempty"`
	DeliveryAddress      models.Address     `json:"delivery_address"`
	PaymentTerms         string             `json:"payment_terms,omitempty"`
	PaymentDueDate       *time.Time         `json:"payment_due_date,omitempty"`
	AdvanceAmount        string             `json:"advance_amount,omitempty"`
	Items                []lineItemResponse `json:"items"`
	ShippingCharges      string             `json:"shipping_charges"`
	OtherCharges         string             `json:"other_charges"`
	DiscountAmount       string             `json:"discount_amount"`
	Subtotal             string             `json:"subtotal"`
	TaxTotal             string             `json:"tax_total"`
	GrandTotal           string             `json:"grand_total"`
	Status               models.OrderStatus `json:"status"`
	AllowedActions       []purchase.Action  `json:"allowed_actions"`
	Notes                string             `json:"notes,omitempty"`
	QuotationFile        string             `json:"quotation_file,omitempty"`
	InvoiceFile          string             `json:"invoice_file,omitempty"`
	ApprovedBy           string             `json:"approved_by,omitempty"`
	ApprovedAt           *time.Time         `json:"approved_at,omitempty"`
	DeliveredAt          *time.Time         `json:"delivered_at,omitempty"`
	InvoicedAt           *time.Time         `json:"invoiced_at,omitempty"`
	PaidAt               *time.Time         `json:"paid_at,omitempty"`
	CancelledAt          *time.Time         `json:"cancelled_at,omitempty"`
	CancelReason         string             `json:"cancel_reason,omitempty"`
	CreatedAt            time.Time          `json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`
	Version              int                `json:"version"`
}

type totalsResponse struct {
	Subtotal   string `json:"subtotal"`
	TaxTotal   string `json:"tax_total"`
	GrandTotal string `json:"grand_total"`
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func newPurchaseOrderResponse(o *models.PurchaseOrder) purchaseOrderResponse {
	resp := purchaseOrderResponse{
		PONumber:        o.PONumber,
		VendorName:      o.VendorName,
		BuyerName:       o.BuyerName,
		Department:      o.Department,
		OrderDate:       o.OrderDate,
		DeliveryAddress: o.DeliveryAddress,
		PaymentTerms:    string(o.PaymentTerms),
		Items:           make([]lineItemResponse, len(o.Items)),
		ShippingCharges: money(o.ShippingCharges),
		OtherCharges:    money(o.OtherCharges),
		DiscountAmount:  money(o.DiscountAmount),
		Subtotal:        money(o.Subtotal),
		TaxTotal:        money(o.TaxTotal),
		GrandTotal:      money(o.GrandTotal),
		Status:          o.Status,
		AllowedActions:  purchase.AllowedActions(o.Status),
		Notes:           o.Notes,
		QuotationFile:   o.QuotationFile,
		InvoiceFile:     o.InvoiceFile,
		ApprovedBy:      o.ApprovedBy,
		ApprovedAt:      o.ApprovedAt,
		DeliveredAt:     o.DeliveredAt,
		InvoicedAt:      o.InvoicedAt,
		PaidAt:          o.PaidAt,
		CancelledAt:     o.CancelledAt,
		CancelReason:    o.CancelReason,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
		Version:         o.Version,
	}
	if resp.AllowedActions == nil {
		resp.AllowedActions = []purchase.Action{}
	}
	if !o.ExpectedDeliveryDate.IsZero() {
		expected := o.ExpectedDeliveryDate
		resp.ExpectedDeliveryDate = &expected
	}
	if o.InvoicedAt != nil && o.PaymentTerms != "" {
		due := o.PaymentTerms.DueDate(*o.InvoicedAt)
		resp.PaymentDueDate = &due
	}
	if advance := o.PaymentTerms.AdvanceAmount(o.GrandTotal); advance.IsPositive() {
		resp.AdvanceAmount = money(advance)
	}
	for i, item := range o.Items {
		resp.Items[i] = lineItemResponse{
			ProductName:   item.ProductName,
			Description:   item.Description,
			Quantity:      item.Quantity.String(),
			UnitOfMeasure: string(item.UnitOfMeasure),
			UnitPrice:     money(item.UnitPrice),
			HSNCode:       item.HSNCode,
			TaxRate:       item.TaxRate.String(),
			TotalPrice:    money(item.TotalPrice),
			TaxAmount:     money(item.TaxAmount),
		}
	}
	return resp
}

func (s *Server) CreatePurchaseOrder(c *gin.Context) {
	var req createPurchaseOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, errInvalidRequest)
		return
	}

	draft := purchase.CreateDraftRequest{
		PONumber:        req.PONumber,
		VendorName:      req.VendorName,
		BuyerName:       req.BuyerName,
		Department:      req.Department,
		DeliveryAddress: req.DeliveryAddress,
		PaymentTerms:    models.PaymentTerms(strings.TrimSpace(req.PaymentTerms)),
		Items:           lineItems(req.Items),
		ShippingCharges: req.ShippingCharges,
		OtherCharges:    req.OtherCharges,
		DiscountAmount:  req.DiscountAmount,
		Notes:           strings.TrimSpace(req.Notes),
		QuotationFile:   strings.TrimSpace(req.QuotationFile),
	}
	if req.OrderDate != nil {
		draft.OrderDate = *req.OrderDate
	}
	if req.ExpectedDeliveryDate != nil {
		draft.ExpectedDeliveryDate = *req.ExpectedDeliveryDate
	}

	order, err := s.purchases.CreateDraft(c.Request.Context(), draft)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": newPurchaseOrderResponse(order)})
}

// PreviewTotals computes the totals of an order body without storing it.
func (s *Server) PreviewTotals(c *gin.Context) {
	var req createPurchaseOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, errInvalidRequest)
		return
	}

	totals, err := s.purchases.ComputeTotals(&models.PurchaseOrder{
		Items:           lineItems(req.Items),
		ShippingCharges: req.ShippingCharges,
		OtherCharges:    req.OtherCharges,
		DiscountAmount:  req.DiscountAmount,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": totalsResponse{
		Subtotal:   money(totals.Subtotal),
		TaxTotal:   money(totals.TaxTotal),
		GrandTotal: money(totals.GrandTotal),
	}})
}

func (s *Server) GetPurchaseOrder(c *gin.Context) {
	order, err := s.purchases.Get(c.Request.Context(), c.Param("po"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newPurchaseOrderResponse(order)})
}

func (s *Server) ListPurchaseOrders(c *gin.Context) {
	var statuses []models.OrderStatus
	for _, raw := range c.QueryArray("status") {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				statuses = append(statuses, models.OrderStatus(strings.ToLower(part)))
			}
		}
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			AbortWithError(c, models.NewValidationError("limit", "must be an integer"))
			return
		}
		limit = n
	}

	page, err := s.purchases.List(c.Request.Context(), statuses, c.Query("cursor"), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	items := make([]purchaseOrderResponse, len(page.Items))
	for i := range page.Items {
		items[i] = newPurchaseOrderResponse(&page.Items[i])
	}
	c.JSON(http.StatusOK, gin.H{
		"data":        items,
		"next_cursor": page.NextCursor,
		"has_more":    page.HasMore,
	})
}

func (s *Server) UpdatePurchaseOrder(c *gin.Context) {
	var req updatePurchaseOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, errInvalidRequest)
		return
	}

	patch := purchase.DraftPatch{
		VendorName:           req.VendorName,
		BuyerName:            req.BuyerName,
		Department:           req.Department,
		OrderDate:            req.OrderDate,
		ExpectedDeliveryDate: req.ExpectedDeliveryDate,
		DeliveryAddress:      req.DeliveryAddress,
		Items:                lineItems(req.Items),
		ShippingCharges:      req.ShippingCharges,
		OtherCharges:         req.OtherCharges,
		DiscountAmount:       req.DiscountAmount,
		Notes:                req.Notes,
		QuotationFile:        req.QuotationFile,
	}
	if req.PaymentTerms != nil {
		terms := models.PaymentTerms(strings.TrimSpace(*req.PaymentTerms))
		patch.PaymentTerms = &terms
	}

	order, err := s.purchases.UpdateDraft(c.Request.Context(), c.Param("po"), patch)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newPurchaseOrderResponse(order)})
}

func (s *Server) TransitionPurchaseOrder(c *gin.Context) {
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, errInvalidRequest)
		return
	}

	action, err := purchase.ParseAction(req.Action)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	order, err := s.purchases.Transition(c.Request.Context(), c.Param("po"), action, purchase.TransitionPayload{
		Actor:       strings.TrimSpace(req.Actor),
		InvoiceFile: req.InvoiceFile,
		Reason:      req.Reason,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newPurchaseOrderResponse(order)})
}

func (s *Server) AttachInvoice(c *gin.Context) {
	var req attachInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, errInvalidRequest)
		return
	}

	order, err := s.purchases.AttachInvoice(c.Request.Context(), c.Param("po"), req.InvoiceFile)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newPurchaseOrderResponse(order)})
}
