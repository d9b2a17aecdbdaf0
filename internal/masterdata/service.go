package masterdata

import (
	"context"
	"log/slog"

	"github.com/odyssey-erp/erp-lite/internal/inventory"
	"github.com/odyssey-erp/erp-lite/internal/shared"
)

// Service implements master data use cases.
type Service struct {
	repo   Repository
	ledger *inventory.Service
	cache  shared.Invalidator
	logger *slog.Logger
}

// NewService creates a new master data service.
func NewService(repo Repository, ledger *inventory.Service, cache shared.Invalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, ledger: ledger, cache: cache, logger: logger}
}

// Client operations

func (s *Service) ListClients(ctx context.Context, filters ListFilters) ([]Client, error) {
	clients, err := s.repo.ListClients(ctx, filters)
	return clients, shared.Internal(err)
}

func (s *Service) GetClient(ctx context.Context, id int64) (Client, error) {
	if id <= 0 {
		return Client{}, shared.Invalid("invalid client ID")
	}
	client, err := s.repo.GetClient(ctx, id)
	return client, shared.Internal(err)
}

func (s *Service) CreateClient(ctx context.Context, input ClientInput) (Client, error) {
	input = input.normalize()
	if err := input.validate(); err != nil {
		return Client{}, err
	}
	client, err := s.repo.CreateClient(ctx, input.toClient())
	if err != nil {
		return Client{}, shared.Internal(err)
	}
	s.logger.Info("client created", slog.Int64("client_id", client.ID), slog.String("company_name", client.CompanyName))
	return client, nil
}

func (s *Service) UpdateClient(ctx context.Context, id int64, input ClientInput) (Client, error) {
	if id <= 0 {
		return Client{}, shared.Invalid("invalid client ID")
	}
	input = input.normalize()
	if err := input.validate(); err != nil {
		return Client{}, err
	}
	client := input.toClient()
	client.ID = id
	if err := s.repo.UpdateClient(ctx, client); err != nil {
		return Client{}, shared.Internal(err)
	}
	shared.BumpQuietly(ctx, s.cache, s.logger)
	return s.GetClient(ctx, id)
}

func (s *Service) DeleteClient(ctx context.Context, id int64) error {
	if id <= 0 {
		return shared.Invalid("invalid client ID")
	}
	if err := s.repo.DeleteClient(ctx, id); err != nil {
		return shared.Internal(err)
	}
	s.logger.Info("client deleted", slog.Int64("client_id", id))
	return nil
}

// Supplier operations

func (s *Service) ListSuppliers(ctx context.Context, filters ListFilters) ([]Supplier, error) {
	suppliers, err := s.repo.ListSuppliers(ctx, filters)
	return suppliers, shared.Internal(err)
}

func (s *Service) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	if id <= 0 {
		return Supplier{}, shared.Invalid("invalid supplier ID")
	}
	supplier, err := s.repo.GetSupplier(ctx, id)
	return supplier, shared.Internal(err)
}

func (s *Service) CreateSupplier(ctx context.Context, input SupplierInput) (Supplier, error) {
	input = input.normalize()
	if err := shared.ValidateStruct(input); err != nil {
		return Supplier{}, err
	}
	supplier, err := s.repo.CreateSupplier(ctx, input.toSupplier())
	return supplier, shared.Internal(err)
}

func (s *Service) UpdateSupplier(ctx context.Context, id int64, input SupplierInput) (Supplier, error) {
	if id <= 0 {
		return Supplier{}, shared.Invalid("invalid supplier ID")
	}
	input = input.normalize()
	if err := shared.ValidateStruct(input); err != nil {
		return Supplier{}, err
	}
	supplier := input.toSupplier()
	supplier.ID = id
	if err := s.repo.UpdateSupplier(ctx, supplier); err != nil {
		return Supplier{}, shared.Internal(err)
	}
	shared.BumpQuietly(ctx, s.cache, s.logger)
	return s.GetSupplier(ctx, id)
}

func (s *Service) DeleteSupplier(ctx context.Context, id int64) error {
	if id <= 0 {
		return shared.Invalid("invalid supplier ID")
	}
	return shared.Internal(s.repo.DeleteSupplier(ctx, id))
}

// Product operations

func (s *Service) ListProducts(ctx context.Context, filters ListFilters) ([]Product, error) {
	products, err := s.repo.ListProducts(ctx, filters)
	return products, shared.Internal(err)
}

func (s *Service) GetProduct(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, shared.Invalid("invalid product ID")
	}
	product, err := s.repo.GetProduct(ctx, id)
	return product, shared.Internal(err)
}

// CreateProduct inserts the product with zero stock and posts any opening stock as an
// Adjustment so the ledger sum always matches current_stock.
func (s *Service) CreateProduct(ctx context.Context, input ProductInput) (Product, error) {
	input = input.normalize()
	if err := input.validate(); err != nil {
		return Product{}, err
	}
	var created Product
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		product, err := tx.InsertProduct(ctx, input.toProduct())
		if err != nil {
			return err
		}
		if input.OpeningStock > 0 {
			entry, err := s.ledger.ApplyInTx(ctx, tx.Ledger(), inventory.ApplyInput{
				ProductID:       product.ID,
				QuantityChange:  input.OpeningStock,
				Type:            inventory.TransactionTypeAdjustment,
				ReferenceNumber: product.SKU,
				Notes:           "Opening stock",
			})
			if err != nil {
				return err
			}
			product.CurrentStock = entry.BalanceAfter
		}
		created = product
		return nil
	})
	if err != nil {
		return Product{}, shared.Internal(err)
	}
	s.logger.Info("product created", slog.Int64("product_id", created.ID), slog.String("sku", created.SKU), slog.Int("opening_stock", created.CurrentStock))
	shared.BumpQuietly(ctx, s.cache, s.logger)
	return created, nil
}

// UpdateProduct changes descriptive and pricing fields; stock moves only through the ledger.
func (s *Service) UpdateProduct(ctx context.Context, id int64, input ProductInput) (Product, error) {
	if id <= 0 {
		return Product{}, shared.Invalid("invalid product ID")
	}
	input = input.normalize()
	if err := input.validate(); err != nil {
		return Product{}, err
	}
	if input.OpeningStock != 0 {
		return Product{}, shared.ValidationErrors{"opening_stock": "stock changes only through inventory transactions"}
	}
	product := input.toProduct()
	product.ID = id
	if err := s.repo.UpdateProduct(ctx, product); err != nil {
		return Product{}, shared.Internal(err)
	}
	shared.BumpQuietly(ctx, s.cache, s.logger)
	return s.GetProduct(ctx, id)
}

func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	if id <= 0 {
		return shared.Invalid("invalid product ID")
	}
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return shared.Internal(err)
	}
	shared.BumpQuietly(ctx, s.cache, s.logger)
	return nil
}
