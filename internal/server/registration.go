package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/safar/go-procurement/internal/models"
	"github.com/safar/go-procurement/internal/registration"
	"github.com/shopspring/decimal"
)

type vendorRequest struct {
	Name          string         `json:"name"`
	ContactPerson string         `json:"contact_person"`
	Email         string         `json:"email"`
	Phone         string         `json:"phone"`
	GSTIN         string         `json:"gstin"`
	Address       models.Address `json:"address"`
}

type customerRequest struct {
	Kind             string         `json:"kind"`
	Name             string         `json:"name"`
	OrganizationName string         `json:"organization_name"`
	Email            string         `json:"email"`
	Phone            string         `json:"phone"`
	GSTIN            string         `json:"gstin"`
	Address          models.Address `json:"address"`
}

type employeeRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Department  string `json:"department"`
	Designation string `json:"designation"`
}

type receiptRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Note     string          `json:"note"`
	IssuedBy string          `json:"issued_by"`
}

// registered is the response for a new entity together with the approval
// request raised for it, if its kind is gated.
type registered struct {
	Entity   any                     `json:"entity"`
	Approval *models.ApprovalRequest `json:"approval,omitempty"`
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return page, pageSize
}

func (s *Server) CreateVendor(c *gin.Context) {
	var req vendorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, errInvalidRequest)
		return
	}

	vendor, approvalReq, err := s.registrations.RegisterVendor(c.Request.Context(), registration.VendorInput{
		Name:          req.Name,
		ContactPerson: req.ContactPerson,
		Email:         req.Email,
		Phone:         req.Phone,
		GSTIN:         req.GSTIN,
		Address:       req.Address,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": registered{Entity: vendor, Approval: approvalReq}})
}

func (s *Server) ListVendors(c *gin.Context) {
	page, pageSize := pageParams(c)
	result, err := s.registrations.ListVendors(c.Request.Context(), page, pageSize)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) GetVendor(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	vendor, err := s.registrations.GetVendor(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": vendor})
}

func (s *Server) CreateCustomer(c *gin.Context) {
	var req customerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, errInvalidRequest)
		return
	}

	customer, approvalReq, err := s.registrations.RegisterCustomer(c.Request.Context(), registration.CustomerInput{
		Kind:             models.CustomerKind(strings.ToLower(strings.TrimSpace(req.Kind))),
		Name:             req.Name,
		OrganizationName: req.OrganizationName,
		Email:            req.Email,
		Phone:            req.Phone,
		GSTIN:            req.GSTIN,
		Address:          req.Address,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": registered{Entity: customer, Approval: approvalReq}})
}

func (s *Server) ListCustomers(c *gin.Context) {
	page, pageSize := pageParams(c)
	result, err := s.registrations.ListCustomers(c.Request.Context(), page, pageSize)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) GetCustomer(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	customer, err := s.registrations.GetCustomer(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": customer})
}

func (s *Server) IssueReceipt(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req receiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, errInvalidRequest)
		return
	}

	receipt, err := s.registrations.IssueReceipt(c.Request.Context(), id, req.Amount, req.Note, req.IssuedBy)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": receipt})
}

func (s *Server) ListReceipts(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	receipts, err := s.registrations.ListReceipts(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": receipts})
}

func (s *Server) CreateEmployee(c *gin.Context) {
	var req employeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, errInvalidRequest)
		return
	}

	employee, approvalReq, err := s.registrations.RegisterEmployee(c.Request.Context(), registration.EmployeeInput{
		Name:        req.Name,
		Email:       req.Email,
		Department:  req.Department,
		Designation: req.Designation,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": registered{Entity: employee, Approval: approvalReq}})
}

func (s *Server) ListEmployees(c *gin.Context) {
	page, pageSize := pageParams(c)
	result, err := s.registrations.ListEmployees(c.Request.Context(), page, pageSize)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) GetEmployee(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	employee, err := s.registrations.GetEmployee(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": employee})
}
