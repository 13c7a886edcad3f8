package registration_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/safar/go-procurement/internal/approval"
	"github.com/safar/go-procurement/internal/models"
	"github.com/safar/go-procurement/internal/registration"
	"github.com/safar/go-procurement/internal/store/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T, gated ...models.EntityType) (*registration.Service, *approval.Registry, *memory.Store) {
	t.Helper()
	repo := memory.New()
	registry := approval.NewRegistry(approval.Params{Repository: repo, GatedKinds: gated})
	svc := registration.NewService(registration.Params{Repository: repo, Registry: registry})
	return svc, registry, repo
}

func TestRegisterCustomerIsGated(t *testing.T) {
	svc, registry, repo := setup(t, models.EntityCustomer)
	ctx := context.Background()

	c, req, err := svc.RegisterCustomer(ctx, registration.CustomerInput{
		Kind:             "Organizational",
		Name:             "Anita Rao",
		OrganizationName: "Rao Exports",
		Email:            "accounts@raoexports.in",
		GSTIN:            "29abcde1234f1z5",
	})
	require.NoError(t, err)
	require.NotNil(t, req)

	assert.Equal(t, models.CustomerOrganizational, c.Kind)
	assert.Equal(t, "29ABCDE1234F1Z5", c.GSTIN)
	assert.Equal(t, c.ID.String(), req.EntityID)
	assert.Equal(t, "Rao Exports", req.Summary)

	pending, err := registry.ListPending(ctx, nil)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, req.ID, pending[0].ID)

	counts, err := repo.CountPendingApprovals(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[models.EntityCustomer])
}

func TestRegisterVendorUngated(t *testing.T) {
	svc, registry, _ := setup(t, models.EntityCustomer)
	ctx := context.Background()

	v, req, err := svc.RegisterVendor(ctx, registration.VendorInput{
		Name:    " Acme Supplies ",
		Email:   "sales@acme.example",
		Address: models.Address{City: "Pune", PostalCode: "411001"},
	})
	require.NoError(t, err)
	assert.Nil(t, req)
	assert.Equal(t, "Acme Supplies", v.Name)

	st, err := registry.StatusFor(ctx, models.EntityVendor, v.ID.String())
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalApproved, st)

	got, err := svc.GetVendor(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, v.Name, got.Name)
}

func TestRegistrationValidation(t *testing.T) {
	svc, _, repo := setup(t, models.EntityCustomer)
	ctx := context.Background()

	_, _, err := svc.RegisterCustomer(ctx, registration.CustomerInput{Kind: "organizational", Name: "A"})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, _, err = svc.RegisterCustomer(ctx, registration.CustomerInput{Kind: "reseller", Name: "A"})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, _, err = svc.RegisterCustomer(ctx, registration.CustomerInput{Kind: "individual", Name: "A", Email: "nope"})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, _, err = svc.RegisterVendor(ctx, registration.VendorInput{Name: ""})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, _, err = svc.RegisterVendor(ctx, registration.VendorInput{Name: "X", GSTIN: "123"})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, _, err = svc.RegisterEmployee(ctx, registration.EmployeeInput{Name: ""})
	assert.ErrorIs(t, err, models.ErrValidation)

	n, err := repo.CountCustomers(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	pending, err := repo.ListPendingApprovals(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, pending, "rejected input must not leave an orphan request")
}

func TestIssueReceiptWaitsForApproval(t *testing.T) {
	svc, registry, _ := setup(t, models.EntityCustomer)
	ctx := context.Background()

	c, req, err := svc.RegisterCustomer(ctx, registration.CustomerInput{Kind: "individual", Name: "Kiran"})
	require.NoError(t, err)
	amount := decimal.RequireFromString("2500.50")

	_, err = svc.IssueReceipt(ctx, c.ID, amount, "advance", "cashier")
	assert.ErrorIs(t, err, models.ErrApprovalRequired)

	_, err = registry.Approve(ctx, req.ID, "admin")
	require.NoError(t, err)

	receipt, err := svc.IssueReceipt(ctx, c.ID, amount, "advance", "cashier")
	require.NoError(t, err)
	assert.True(t, receipt.Amount.Equal(amount))
	assert.Equal(t, c.ID, receipt.CustomerID)

	receipts, err := svc.ListReceipts(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	assert.Equal(t, receipt.ID, receipts[0].ID)
}

func TestIssueReceiptRejectedCustomer(t *testing.T) {
	svc, registry, _ := setup(t, models.EntityCustomer)
	ctx := context.Background()

	c, req, err := svc.RegisterCustomer(ctx, registration.CustomerInput{Kind: "individual", Name: "Dev"})
	require.NoError(t, err)
	_, err = registry.Reject(ctx, req.ID, "admin", "incomplete KYC")
	require.NoError(t, err)

	_, err = svc.IssueReceipt(ctx, c.ID, decimal.NewFromInt(10), "", "cashier")
	assert.ErrorIs(t, err, models.ErrApprovalRequired)
}

func TestIssueReceiptValidation(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	c, req, err := svc.RegisterCustomer(ctx, registration.CustomerInput{Kind: "individual", Name: "Sam"})
	require.NoError(t, err)
	assert.Nil(t, req)

	_, err = svc.IssueReceipt(ctx, c.ID, decimal.Zero, "", "cashier")
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = svc.IssueReceipt(ctx, c.ID, decimal.NewFromInt(1), "", " ")
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = svc.IssueReceipt(ctx, uuid.New(), decimal.NewFromInt(1), "", "cashier")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = svc.IssueReceipt(ctx, c.ID, decimal.NewFromInt(1), "", "cashier")
	assert.NoError(t, err)
}

func TestListPagination(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	for _, name := range []string{"A", "B", "C"} {
		_, _, err := svc.RegisterEmployee(ctx, registration.EmployeeInput{Name: name})
		require.NoError(t, err)
	}

	page, err := svc.ListEmployees(ctx, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Items, 1)

	page, err = svc.ListEmployees(ctx, 5, 2)
	require.NoError(t, err)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
}
