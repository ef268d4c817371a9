package resources

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/invoica/backend/internal/changefeed"
	"github.com/invoica/backend/internal/models"
	"github.com/invoica/backend/internal/tenantdata"
)

// SourceFactory builds the backing source of each table.
type SourceFactory interface {
	build(reg *Registry, feed changefeed.Feed, logger *zap.Logger) error
}

// GormSources backs every table with PostgreSQL.
type GormSources struct{ DB *gorm.DB }

// MemorySources backs every table with in-memory storage.
type MemorySources struct{}

func addGorm[T any, PT interface {
	*T
	models.Entity
}](reg *Registry, db *gorm.DB, feature string, feed changefeed.Feed, logger *zap.Logger) error {
	src, err := tenantdata.NewGormSource[T, PT](db)
	if err != nil {
		return err
	}
	Add[T, PT](reg, src, feature, feed, logger)
	return nil
}

func (g GormSources) build(reg *Registry, feed changefeed.Feed, logger *zap.Logger) error {
	steps := []func() error{
		func() error { return addGorm[models.Project](reg, g.DB, "projects", feed, logger) },
		func() error { return addGorm[models.Unit](reg, g.DB, "units", feed, logger) },
		func() error { return addGorm[models.Customer](reg, g.DB, "customers", feed, logger) },
		func() error { return addGorm[models.SalesInvoice](reg, g.DB, "invoices", feed, logger) },
		func() error { return addGorm[models.Cheque](reg, g.DB, "cheques", feed, logger) },
		func() error { return addGorm[models.Supplier](reg, g.DB, "suppliers", feed, logger) },
		func() error { return addGorm[models.Purchase](reg, g.DB, "purchases", feed, logger) },
		func() error { return addGorm[models.PurchaseQuotation](reg, g.DB, "purchases", feed, logger) },
		func() error { return addGorm[models.Expense](reg, g.DB, "expenses", feed, logger) },
		func() error { return addGorm[models.Asset](reg, g.DB, "assets", feed, logger) },
		func() error { return addGorm[models.Staff](reg, g.DB, "staff", feed, logger) },
		func() error { return addGorm[models.PayrollContract](reg, g.DB, "payroll", feed, logger) },
		func() error { return addGorm[models.SalaryRegister](reg, g.DB, "payroll", feed, logger) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

func addMemory[T any, PT interface {
	*T
	models.Entity
}](reg *Registry, feature string, feed changefeed.Feed, logger *zap.Logger) {
	Add[T, PT](reg, tenantdata.NewMemorySource[T, PT](), feature, feed, logger)
}

func (MemorySources) build(reg *Registry, feed changefeed.Feed, logger *zap.Logger) error {
	addMemory[models.Project](reg, "projects", feed, logger)
	addMemory[models.Unit](reg, "units", feed, logger)
	addMemory[models.Customer](reg, "customers", feed, logger)
	addMemory[models.SalesInvoice](reg, "invoices", feed, logger)
	addMemory[models.Cheque](reg, "cheques", feed, logger)
	addMemory[models.Supplier](reg, "suppliers", feed, logger)
	addMemory[models.Purchase](reg, "purchases", feed, logger)
	addMemory[models.PurchaseQuotation](reg, "purchases", feed, logger)
	addMemory[models.Expense](reg, "expenses", feed, logger)
	addMemory[models.Asset](reg, "assets", feed, logger)
	addMemory[models.Staff](reg, "staff", feed, logger)
	addMemory[models.PayrollContract](reg, "payroll", feed, logger)
	addMemory[models.SalaryRegister](reg, "payroll", feed, logger)
	return nil
}

// Build registers every tenant table using the given sources.
func Build(sources SourceFactory, feed changefeed.Feed, logger *zap.Logger) (*Registry, error) {
	reg := NewRegistry()
	if err := sources.build(reg, feed, logger); err != nil {
		return nil, err
	}
	return reg, nil
}
