package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// ProductCode identifies a product type and selects its relevant rate fields.
type ProductCode string

const (
	ProductDID           ProductCode = "did"
	ProductFreephone     ProductCode = "freephone"
	ProductUnivFreephone ProductCode = "univ_freephone"
	ProductTwoWayVoice   ProductCode = "two_way_voice"
	ProductTwoWaySMS     ProductCode = "two_way_sms"
	ProductMobile        ProductCode = "mobile"
)

// Product is a sellable number type.
type Product struct {
	bun.BaseModel `bun:"table:products"`

	ID        int64       `bun:",pk,autoincrement" json:"id"`
	Code      ProductCode `bun:"code,notnull,unique" json:"code"`
	Name      string      `bun:"name,notnull" json:"name"`
	CreatedAt time.Time   `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`
}

// PricePlan is the vendor/base rate plan for a product in a country,
// optionally narrowed to one area code. An empty AreaCode covers the country.
type PricePlan struct {
	bun.BaseModel `bun:"table:price_plans"`

	ID        int64  `bun:",pk,autoincrement" json:"id"`
	ProductID int64  `bun:"product_id,notnull" json:"product_id"`
	CountryID int64  `bun:"country_id,notnull" json:"country_id"`
	AreaCode  string `bun:"area_code,notnull,default:''" json:"area_code"`
	VendorID  *int64 `bun:"vendor_id" json:"vendor_id,omitempty"`
	Rates     Rates  `bun:"rates,type:jsonb" json:"rates"`
	Terms
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,nullzero" json:"updated_at"`
}
