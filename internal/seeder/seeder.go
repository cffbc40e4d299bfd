package seeder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/dialtone/internal/clock"
	"github.com/Additional-Code/dialtone/internal/database"
	"github.com/Additional-Code/dialtone/internal/entity"
)

// Module provides the Seeder to Fx.
var Module = fx.Provide(New)

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	db     *bun.DB
	clock  clock.Clock
	logger *zap.Logger
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, clk clock.Clock, logger *zap.Logger) *Seeder {
	return &Seeder{db: conns.Writer, clock: clk, logger: logger}
}

type planSeed struct {
	product  entity.ProductCode
	country  int64
	areaCode string
	rates    map[string]string
	terms    entity.Terms
}

var products = []entity.Product{
	{Code: entity.ProductDID, Name: "DID"},
	{Code: entity.ProductFreephone, Name: "Freephone"},
	{Code: entity.ProductUnivFreephone, Name: "Universal Freephone"},
	{Code: entity.ProductTwoWayVoice, Name: "Two-Way Voice"},
	{Code: entity.ProductTwoWaySMS, Name: "Two-Way SMS"},
	{Code: entity.ProductMobile, Name: "Mobile"},
}

var plans = []planSeed{
	{product: entity.ProductDID, country: 44, rates: map[string]string{"nrc": "5.00", "mrc": "2.50", "ppm": "0.0120"},
		terms: entity.Terms{BillingPulse: "60/60", ContractTerm: "1 month"}},
	{product: entity.ProductDID, country: 44, areaCode: "20", rates: map[string]string{"nrc": "7.00", "mrc": "3.25", "ppm": "0.0110"},
		terms: entity.Terms{BillingPulse: "60/60", ContractTerm: "1 month"}},
	{product: entity.ProductFreephone, country: 1, rates: map[string]string{"nrc": "10.00", "mrc": "8.00", "ppm_fix": "0.0250", "ppm_mobile": "0.0400", "ppm_payphone": "0.2000"},
		terms: entity.Terms{BillingPulse: "6/6", EstimatedLeadTime: "5 days"}},
	{product: entity.ProductTwoWayVoice, country: 49, rates: map[string]string{"nrc": "3.00", "mrc": "4.50", "incoming_ppm": "0.0050", "outgoing_ppm_fix": "0.0150", "outgoing_ppm_mobile": "0.0600"},
		terms: entity.Terms{DisconnectionNoticeTerm: "30 days"}},
	{product: entity.ProductTwoWaySMS, country: 1, rates: map[string]string{"nrc": "1.00", "mrc": "1.50", "arc": "0.5000", "mo": "0.0040", "mt": "0.0075"}},
	{product: entity.ProductMobile, country: 44, rates: map[string]string{"nrc": "2.00", "mrc": "6.00", "outgoing_ppm_fix": "0.0200", "outgoing_ppm_mobile": "0.0300", "outgoing_sms": "0.0350"},
		terms: entity.Terms{ContractTerm: "12 months"}},
}

// Catalog seeds the product table and a handful of price plans. Rows that
// already exist are left untouched, so the seeder can be rerun.
func (s *Seeder) Catalog(ctx context.Context) error {
	now := s.clock.Now()
	ids := make(map[entity.ProductCode]int64, len(products))

	for _, sample := range products {
		product := sample
		product.CreatedAt = now
		err := s.db.NewSelect().Model(&product).Where("code = ?", product.Code).Limit(1).Scan(ctx)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if _, err := s.db.NewInsert().Model(&product).Exec(ctx); err != nil {
				return fmt.Errorf("seed product %s: %w", product.Code, err)
			}
		case err != nil:
			return err
		}
		ids[product.Code] = product.ID
	}

	inserted := 0
	for _, seed := range plans {
		exists, err := s.db.NewSelect().Model((*entity.PricePlan)(nil)).
			Where("product_id = ?", ids[seed.product]).
			Where("country_id = ?", seed.country).
			Where("area_code = ?", seed.areaCode).
			Exists(ctx)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		plan := &entity.PricePlan{
			ProductID: ids[seed.product],
			CountryID: seed.country,
			AreaCode:  seed.areaCode,
			Rates:     toRates(seed.rates),
			Terms:     seed.terms,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if _, err := s.db.NewInsert().Model(plan).Exec(ctx); err != nil {
			return fmt.Errorf("seed plan %s/%d: %w", seed.product, seed.country, err)
		}
		inserted++
	}

	if s.logger != nil {
		s.logger.Info("seeded catalog", zap.Int("products", len(products)), zap.Int("plans", inserted))
	}
	return nil
}

func toRates(raw map[string]string) entity.Rates {
	out := make(entity.Rates, len(raw))
	for field, value := range raw {
		out[field] = decimal.RequireFromString(value)
	}
	return out
}
