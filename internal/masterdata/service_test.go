package masterdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/erp-lite/internal/inventory"
	"github.com/odyssey-erp/erp-lite/internal/shared"
)

type memoryRepo struct {
	mu        sync.Mutex
	clients   map[int64]Client
	suppliers map[int64]Supplier
	products  map[int64]Product
	ledger    *inventory.MemoryStore
	inUse     map[int64]bool
	nextID    int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		clients:   map[int64]Client{},
		suppliers: map[int64]Supplier{},
		products:  map[int64]Product{},
		ledger:    inventory.NewMemoryStore(),
		inUse:     map[int64]bool{},
	}
}

func (r *memoryRepo) ListClients(_ context.Context, filters ListFilters) ([]Client, error) {
	var out []Client
	needle := strings.ToLower(filters.Search)
	for _, c := range r.clients {
		hay := strings.ToLower(c.CompanyName + " " + c.ContactPerson + " " + c.Email + " " + c.Phone)
		if needle == "" || strings.Contains(hay, needle) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompanyName < out[j].CompanyName })
	return out, nil
}

func (r *memoryRepo) GetClient(_ context.Context, id int64) (Client, error) {
	c, ok := r.clients[id]
	if !ok {
		return Client{}, shared.NotFound("client", id)
	}
	return c, nil
}

func (r *memoryRepo) codeTaken(code *string, except int64) bool {
	if code == nil {
		return false
	}
	for id, c := range r.clients {
		if id != except && c.ClientCode != nil && *c.ClientCode == *code {
			return true
		}
	}
	return false
}

func (r *memoryRepo) CreateClient(_ context.Context, c Client) (Client, error) {
	if r.codeTaken(c.ClientCode, 0) {
		return Client{}, ErrDuplicateClientCode
	}
	r.nextID++
	c.ID = r.nextID
	r.clients[c.ID] = c
	return c, nil
}

func (r *memoryRepo) UpdateClient(_ context.Context, c Client) error {
	if _, ok := r.clients[c.ID]; !ok {
		return shared.NotFound("client", c.ID)
	}
	if r.codeTaken(c.ClientCode, c.ID) {
		return ErrDuplicateClientCode
	}
	r.clients[c.ID] = c
	return nil
}

func (r *memoryRepo) DeleteClient(_ context.Context, id int64) error {
	if _, ok := r.clients[id]; !ok {
		return shared.NotFound("client", id)
	}
	if r.inUse[id] {
		return ErrHasDependents
	}
	delete(r.clients, id)
	return nil
}

func (r *memoryRepo) ListSuppliers(context.Context, ListFilters) ([]Supplier, error) {
	var out []Supplier
	for _, s := range r.suppliers {
		out = append(out, s)
	}
	return out, nil
}

func (r *memoryRepo) GetSupplier(_ context.Context, id int64) (Supplier, error) {
	s, ok := r.suppliers[id]
	if !ok {
		return Supplier{}, shared.NotFound("supplier", id)
	}
	return s, nil
}

func (r *memoryRepo) CreateSupplier(_ context.Context, s Supplier) (Supplier, error) {
	r.nextID++
	s.ID = r.nextID
	r.suppliers[s.ID] = s
	return s, nil
}

func (r *memoryRepo) UpdateSupplier(_ context.Context, s Supplier) error {
	if _, ok := r.suppliers[s.ID]; !ok {
		return shared.NotFound("supplier", s.ID)
	}
	r.suppliers[s.ID] = s
	return nil
}

func (r *memoryRepo) DeleteSupplier(_ context.Context, id int64) error {
	delete(r.suppliers, id)
	return nil
}

func (r *memoryRepo) ListProducts(context.Context, ListFilters) ([]Product, error) {
	var out []Product
	for _, p := range r.products {
		p.CurrentStock = r.ledger.Stock(p.ID)
		out = append(out, p)
	}
	return out, nil
}

func (r *memoryRepo) GetProduct(_ context.Context, id int64) (Product, error) {
	p, ok := r.products[id]
	if !ok {
		return Product{}, shared.NotFound("product", id)
	}
	p.CurrentStock = r.ledger.Stock(id)
	return p, nil
}

func (r *memoryRepo) UpdateProduct(_ context.Context, p Product) error {
	old, ok := r.products[p.ID]
	if !ok {
		return shared.NotFound("product", p.ID)
	}
	p.CurrentStock = old.CurrentStock
	r.products[p.ID] = p
	return nil
}

func (r *memoryRepo) DeleteProduct(_ context.Context, id int64) error {
	delete(r.products, id)
	return nil
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(ctx, &memoryTx{repo: r})
}

type memoryTx struct {
	repo *memoryRepo
}

func (tx *memoryTx) InsertProduct(_ context.Context, p Product) (Product, error) {
	for _, existing := range tx.repo.products {
		if existing.SKU == p.SKU {
			return Product{}, ErrDuplicateSKU
		}
	}
	tx.repo.nextID++
	p.ID = tx.repo.nextID
	tx.repo.products[p.ID] = p
	tx.repo.ledger.AddProduct(inventory.ProductStock{ProductID: p.ID, SKU: p.SKU, Name: p.Name, CostPrice: p.CostPrice})
	return p, nil
}

func (tx *memoryTx) Ledger() inventory.TxRepository {
	return tx.repo.ledger.Tx()
}

func newTestService(repo *memoryRepo) *Service {
	ledger := inventory.NewService(repo.ledger, inventory.ServiceConfig{AllowNegativeStock: true}, nil, nil)
	return NewService(repo, ledger, nil, nil)
}

func TestCreateClientRequiresCompanyName(t *testing.T) {
	svc := newTestService(newMemoryRepo())

	_, err := svc.CreateClient(context.Background(), ClientInput{CompanyName: "   ", Email: "ops@abc.example"})
	var verrs shared.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.Equal(t, "is required", verrs["company_name"])
}

func TestCreateClientDefaultsAndDuplicateCode(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	ctx := context.Background()

	client, err := svc.CreateClient(ctx, ClientInput{ClientCode: "ABC", CompanyName: "ABC Corporation", ContactPerson: "Jane Smith"})
	require.NoError(t, err)
	require.Equal(t, "NET30", client.PaymentTerms)
	require.Equal(t, "Active", client.Status)

	_, err = svc.CreateClient(ctx, ClientInput{ClientCode: "ABC", CompanyName: "ABC Holdings"})
	require.ErrorIs(t, err, shared.ErrDuplicateKey)
	require.ErrorContains(t, err, "client code already exists")

	// An empty code is stored as NULL and never collides.
	_, err = svc.CreateClient(ctx, ClientInput{CompanyName: "No Code One"})
	require.NoError(t, err)
	_, err = svc.CreateClient(ctx, ClientInput{CompanyName: "No Code Two"})
	require.NoError(t, err)
}

func TestClientValidationRejectsBadEmailAndCredit(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	ctx := context.Background()

	_, err := svc.CreateClient(ctx, ClientInput{CompanyName: "ABC", Email: "not-an-email"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.CreateClient(ctx, ClientInput{CompanyName: "ABC", CreditLimit: decimal.NewNullDecimal(decimal.NewFromInt(-1))})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestSearchClients(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	ctx := context.Background()
	for _, name := range []string{"Zeta Traders", "ABC Corporation", "Acme Supplies"} {
		_, err := svc.CreateClient(ctx, ClientInput{CompanyName: name})
		require.NoError(t, err)
	}

	clients, err := svc.ListClients(ctx, ListFilters{Search: "a"})
	require.NoError(t, err)
	require.Len(t, clients, 3)
	require.Equal(t, "ABC Corporation", clients[0].CompanyName)

	clients, err = svc.ListClients(ctx, ListFilters{Search: "acme"})
	require.NoError(t, err)
	require.Len(t, clients, 1)
}

func TestDeleteClientWithDependents(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	client, err := svc.CreateClient(ctx, ClientInput{CompanyName: "ABC Corporation"})
	require.NoError(t, err)
	repo.inUse[client.ID] = true

	err = svc.DeleteClient(ctx, client.ID)
	require.ErrorIs(t, err, shared.ErrValidation)
	require.ErrorIs(t, err, ErrHasDependents)

	err = svc.DeleteClient(ctx, 999)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestSupplierLeadTimeMustNotBeNegative(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	negative := -1
	_, err := svc.CreateSupplier(context.Background(), SupplierInput{CompanyName: "Global Supplies Ltd", LeadTimeDays: &negative})
	require.ErrorIs(t, err, shared.ErrValidation)

	fourteen := 14
	supplier, err := svc.CreateSupplier(context.Background(), SupplierInput{CompanyName: "Global Supplies Ltd", LeadTimeDays: &fourteen})
	require.NoError(t, err)
	require.Equal(t, 14, *supplier.LeadTimeDays)
}

func TestCreateProductPostsOpeningStock(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, ProductInput{
		SKU:          "SKU001",
		Name:         "Laptop Pro",
		Category:     "Electronics",
		UnitPrice:    decimal.RequireFromString("1200.00"),
		CostPrice:    decimal.NewNullDecimal(decimal.RequireFromString("900.00")),
		OpeningStock: 100,
	})
	require.NoError(t, err)
	require.Equal(t, DefaultReorderLevel, product.ReorderLevel)
	require.Equal(t, 100, product.CurrentStock)

	ledger := repo.ledger.Ledger()
	require.Len(t, ledger, 1)
	require.Equal(t, inventory.TransactionTypeAdjustment, ledger[0].Type)
	require.Equal(t, 100, ledger[0].QuantityChange)

	_, err = svc.CreateProduct(ctx, ProductInput{SKU: "SKU001", Name: "Clone", UnitPrice: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, shared.ErrDuplicateKey)
}

func TestUpdateProductRejectsStockChange(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, ProductInput{SKU: "SKU002", Name: "Wireless Mouse", UnitPrice: decimal.NewFromInt(25)})
	require.NoError(t, err)

	_, err = svc.UpdateProduct(ctx, product.ID, ProductInput{SKU: "SKU002", Name: "Wireless Mouse", UnitPrice: decimal.NewFromInt(25), OpeningStock: 5})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.UpdateProduct(ctx, product.ID, ProductInput{SKU: "SKU002", Name: "Wireless Mouse", UnitPrice: decimal.NewFromInt(-5)})
	require.ErrorIs(t, err, shared.ErrValidation)

	updated, err := svc.UpdateProduct(ctx, product.ID, ProductInput{SKU: "SKU002", Name: "Wireless Mouse v2", UnitPrice: decimal.RequireFromString("27.499")})
	require.NoError(t, err)
	require.Equal(t, "Wireless Mouse v2", updated.Name)
	require.True(t, updated.UnitPrice.Equal(decimal.RequireFromString("27.50")))
}

func TestHandlerCreateClientValidation(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	r := chi.NewRouter()
	NewHandler(nil, svc).MountRoutes(r)

	req := httptest.NewRequest(http.MethodPost, "/clients", strings.NewReader(`{"company_name":""}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/clients", strings.NewReader(`{"company_name":"ABC Corporation"}`))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/clients/77", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
