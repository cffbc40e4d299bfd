package order_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/Additional-Code/dialtone/internal/entity"
	"github.com/Additional-Code/dialtone/internal/messaging"
	orderrepo "github.com/Additional-Code/dialtone/internal/repository/order"
	"github.com/Additional-Code/dialtone/internal/service/catalog"
	"github.com/Additional-Code/dialtone/internal/service/order"
	"github.com/Additional-Code/dialtone/internal/service/pricing"
	"github.com/Additional-Code/dialtone/internal/service/wallet"
	"github.com/Additional-Code/dialtone/internal/testutil"
	"github.com/Additional-Code/dialtone/pkg/errorbank"
)

const (
	productDID    int64 = 1
	productMobile int64 = 2
	countryUK     int64 = 44
	countryNoPlan int64 = 99
	customerID    int64 = 500
)

type OrderServiceSuite struct {
	suite.Suite
	ctx     context.Context
	env     *testutil.Env
	pricing *pricing.Service
	wallet  *wallet.Service
	svc     *order.Service
}

func TestOrderService(t *testing.T) {
	suite.Run(t, new(OrderServiceSuite))
}

func (s *OrderServiceSuite) SetupTest() {
	s.ctx = context.Background()
	env := testutil.NewEnv(s.T())
	env.Catalog.AddProduct(productDID, entity.ProductDID)
	env.Catalog.AddProduct(productMobile, entity.ProductMobile)
	env.Catalog.AddPlan(entity.PricePlan{
		ProductID: productDID,
		CountryID: countryUK,
		Rates:     entity.Rates{entity.RateMRC: decimal.RequireFromString("2.50")},
		Terms:     entity.Terms{BillingPulse: "60/60"},
	})
	s.env = env

	cat := catalog.NewService(catalog.Params{Store: env.Catalog, Cache: env.Cache, Config: env.Config, Logger: env.Logger})
	s.pricing = pricing.NewService(pricing.Params{
		Store: env.Pricing, Orders: env.Orders, Products: cat,
		Transactor: env.Tx, Locker: env.Locker, Clock: env.Clock, Cache: env.Cache, Logger: env.Logger,
	})
	s.wallet = wallet.NewService(wallet.Params{
		Store: env.Wallet, Transactor: env.Tx, Locker: env.Locker, Clock: env.Clock,
		Publisher: env.Publisher, Config: env.Config, Logger: env.Logger,
	})
	s.svc = order.NewService(order.Params{
		Repository: env.Orders,
		Numbers:    env.Numbers,
		Catalog:    cat,
		Pricing:    s.pricing,
		Wallet:     s.wallet,
		Transactor: env.Tx,
		Locker:     env.Locker,
		Clock:      env.Clock,
		Cache:      env.Cache,
		Config:     env.Config,
		Logger:     env.Logger,
		Publisher:  env.Publisher,
	})
}

func (s *OrderServiceSuite) create(productID, countryID int64, quantity int, desired map[string]string) *entity.Order {
	o, err := s.svc.Create(s.ctx, order.CreateInput{
		CustomerID: customerID,
		ProductID:  productID,
		CountryID:  countryID,
		Quantity:   quantity,
		Desired:    desired,
	})
	s.Require().NoError(err)
	return o
}

func (s *OrderServiceSuite) requireKind(err error, kind errorbank.Kind) {
	s.T().Helper()
	s.Require().Error(err)
	s.Require().Truef(errorbank.Is(err, kind), "want %s, got %v", kind, err)
}

func (s *OrderServiceSuite) TestCreateStartsInProgressWithZeroTotal() {
	o := s.create(productDID, countryUK, 2, nil)

	s.Equal(entity.OrderStatusInProgress, o.Status)
	s.True(o.TotalAmount.IsZero())
	s.Equal(entity.PricingStateAbsent, o.PricingState)
	s.Equal([]string{messaging.EventOrderCreated}, s.env.Publisher.Types())
}

func (s *OrderServiceSuite) TestCreateValidatesInput() {
	_, err := s.svc.Create(s.ctx, order.CreateInput{CustomerID: customerID, ProductID: productDID, Quantity: 1})
	s.requireKind(err, errorbank.KindValidation)

	_, err = s.svc.Create(s.ctx, order.CreateInput{CustomerID: customerID, ProductID: productDID, CountryID: countryUK, Quantity: 0})
	s.requireKind(err, errorbank.KindValidation)

	_, err = s.svc.Create(s.ctx, order.CreateInput{CustomerID: customerID, ProductID: 77, CountryID: countryUK, Quantity: 1})
	s.requireKind(err, errorbank.KindNotFound)
}

func (s *OrderServiceSuite) TestConfirmComputesTotalFromCatalogAndDesired() {
	o := s.create(productDID, countryUK, 3, map[string]string{"nrc": "$5.00", "mrc": "$2.50"})
	s.Equal(entity.PricingStateRecorded, o.PricingState)

	confirmed, err := s.svc.Confirm(s.ctx, o.ID, nil)
	s.Require().NoError(err)

	s.Equal(entity.OrderStatusConfirmed, confirmed.Status)
	s.Equal("22.5", confirmed.TotalAmount.String())
	s.Require().NotNil(confirmed.ConfirmedAt)

	pair, err := s.pricing.Get(s.ctx, o.ID)
	s.Require().NoError(err)
	s.Require().NotNil(pair.Current)
	s.Equal([]string{"mrc", "nrc"}, pair.Current.Rates.Fields())
	s.Equal("60/60", pair.Current.BillingPulse)
}

func (s *OrderServiceSuite) TestConfirmWithoutPlanNeedsOverride() {
	o := s.create(productDID, countryNoPlan, 2, nil)

	_, err := s.svc.Confirm(s.ctx, o.ID, nil)
	s.requireKind(err, errorbank.KindPricingUnavailable)

	stored, err := s.env.Orders.GetByID(s.ctx, o.ID)
	s.Require().NoError(err)
	s.Equal(entity.OrderStatusInProgress, stored.Status)
	s.True(stored.TotalAmount.IsZero())

	confirmed, err := s.svc.Confirm(s.ctx, o.ID, map[string]string{"mrc": "1,000.25", "ppm": "0.01", "arc": "9"})
	s.Require().NoError(err)
	s.Equal("2000.52", confirmed.TotalAmount.String())
}

func (s *OrderServiceSuite) TestConfirmUsesStagedCurrentOverride() {
	o := s.create(productDID, countryUK, 1, nil)
	_, err := s.pricing.Upsert(s.ctx, pricing.UpsertInput{
		OrderID:     o.ID,
		PricingType: entity.PricingCurrent,
		Fields:      map[string]string{"mrc": "3.00"},
	})
	s.Require().NoError(err)

	confirmed, err := s.svc.Confirm(s.ctx, o.ID, nil)
	s.Require().NoError(err)
	s.Equal("3", confirmed.TotalAmount.String())
}

func (s *OrderServiceSuite) TestConcurrentConfirmHasOneWinner() {
	o := s.create(productDID, countryUK, 3, nil)

	const racers = 8
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.svc.Confirm(context.Background(), o.ID, nil)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		s.True(errorbank.Is(err, errorbank.KindInvalidTransition), "unexpected error: %v", err)
	}
	s.Equal(1, succeeded)

	confirmedEvents := 0
	for _, t := range s.env.Publisher.Types() {
		if t == messaging.EventOrderConfirmed {
			confirmedEvents++
		}
	}
	s.Equal(1, confirmedEvents)
}

func (s *OrderServiceSuite) TestTransitionsFollowStateMachine() {
	o := s.create(productDID, countryUK, 1, nil)

	_, err := s.svc.MarkPaid(s.ctx, o.ID)
	s.requireKind(err, errorbank.KindInvalidTransition)
	_, err = s.svc.MarkDelivered(s.ctx, o.ID, true)
	s.requireKind(err, errorbank.KindInvalidTransition)

	confirmed, err := s.svc.Confirm(s.ctx, o.ID, nil)
	s.Require().NoError(err)
	total := confirmed.TotalAmount

	_, err = s.svc.Confirm(s.ctx, o.ID, nil)
	s.requireKind(err, errorbank.KindInvalidTransition)

	paid, err := s.svc.MarkPaid(s.ctx, o.ID)
	s.Require().NoError(err)
	s.Equal(entity.OrderStatusAmountPaid, paid.Status)
	s.True(total.Equal(paid.TotalAmount))

	_, err = s.svc.Cancel(s.ctx, o.ID)
	s.requireKind(err, errorbank.KindInvalidTransition)

	_, err = s.svc.MarkDelivered(s.ctx, o.ID, false)
	s.requireKind(err, errorbank.KindInvalidTransition)

	delivered, err := s.svc.MarkDelivered(s.ctx, o.ID, true)
	s.Require().NoError(err)
	s.Equal(entity.OrderStatusDelivered, delivered.Status)
	s.True(total.Equal(delivered.TotalAmount))
	s.Require().NotNil(delivered.DeliveredAt)
}

func (s *OrderServiceSuite) TestMarkDeliveredAssignsNumbersToCustomer() {
	o := s.create(productDID, countryUK, 2, nil)
	_, err := s.svc.Confirm(s.ctx, o.ID, nil)
	s.Require().NoError(err)
	_, err = s.svc.MarkPaid(s.ctx, o.ID)
	s.Require().NoError(err)

	for _, n := range []string{"+44 20 7946 0000", "+44 20 7946 0001"} {
		s.Require().NoError(s.env.Numbers.Create(s.ctx, &entity.Number{
			OrderID: o.ID, Number: entity.NormalizeNumber(n), Status: entity.NumberActive,
		}))
	}

	_, err = s.svc.MarkDelivered(s.ctx, o.ID, false)
	s.Require().NoError(err)

	numbers, err := s.env.Numbers.ListByOrder(s.ctx, o.ID)
	s.Require().NoError(err)
	s.Require().Len(numbers, 2)
	for _, n := range numbers {
		s.Require().NotNil(n.CustomerID)
		s.Equal(customerID, *n.CustomerID)
	}
}

func (s *OrderServiceSuite) TestCancelIsTerminal() {
	o := s.create(productDID, countryUK, 1, nil)
	cancelled, err := s.svc.Cancel(s.ctx, o.ID)
	s.Require().NoError(err)
	s.Equal(entity.OrderStatusCancelled, cancelled.Status)
	s.True(cancelled.Terminal())

	_, err = s.svc.Confirm(s.ctx, o.ID, nil)
	s.requireKind(err, errorbank.KindInvalidTransition)
	_, err = s.svc.Cancel(s.ctx, o.ID)
	s.requireKind(err, errorbank.KindInvalidTransition)
}

func (s *OrderServiceSuite) TestCheckoutKeepsOrderWhenPricingWriteFails() {
	s.env.Pricing.FailDesired = errors.New("disk full")

	lines, err := s.svc.Checkout(s.ctx, order.CheckoutInput{
		CustomerID: customerID,
		Items: []order.CreateInput{
			{ProductID: productDID, CountryID: countryUK, Quantity: 1, Desired: map[string]string{"mrc": "2"}},
			{ProductID: productMobile, CountryID: countryUK, Quantity: 4, Desired: map[string]string{"mrc": "7"}},
		},
	})
	s.Require().NoError(err)
	s.Require().Len(lines, 2)

	for _, line := range lines {
		s.Require().Error(line.PricingErr)
		stored, err := s.env.Orders.GetByID(s.ctx, line.Order.ID)
		s.Require().NoError(err)
		s.Equal(entity.PricingStateAbsent, stored.PricingState)
		s.Equal(entity.OrderStatusInProgress, stored.Status)
	}

	pair, err := s.pricing.Get(s.ctx, lines[0].Order.ID)
	s.Require().NoError(err)
	s.Nil(pair.Desired)
}

func (s *OrderServiceSuite) TestCheckoutRejectsEmptyCart() {
	_, err := s.svc.Checkout(s.ctx, order.CheckoutInput{CustomerID: customerID})
	s.requireKind(err, errorbank.KindValidation)
}

func (s *OrderServiceSuite) TestPayWithWalletDebitsAndMarksPaid() {
	_, err := s.wallet.Credit(s.ctx, customerID, decimal.NewFromInt(50), "Top-up")
	s.Require().NoError(err)

	o := s.create(productDID, countryUK, 4, nil)
	_, err = s.svc.Confirm(s.ctx, o.ID, nil)
	s.Require().NoError(err)

	paid, err := s.svc.PayWithWallet(s.ctx, o.ID)
	s.Require().NoError(err)
	s.Equal(entity.OrderStatusAmountPaid, paid.Status)

	balance, err := s.wallet.GetBalance(s.ctx, customerID)
	s.Require().NoError(err)
	s.Equal("40", balance.String())
	s.Contains(s.env.Publisher.Types(), messaging.EventWalletEntry)
}

func (s *OrderServiceSuite) TestPayWithWalletInsufficientBalance() {
	o := s.create(productDID, countryUK, 4, nil)
	_, err := s.svc.Confirm(s.ctx, o.ID, nil)
	s.Require().NoError(err)

	_, err = s.svc.PayWithWallet(s.ctx, o.ID)
	s.requireKind(err, errorbank.KindValidation)

	stored, err := s.svc.Get(s.ctx, o.ID)
	s.Require().NoError(err)
	s.Equal(entity.OrderStatusConfirmed, stored.Status)
}

func (s *OrderServiceSuite) TestGetUsesCacheAndTransitionsInvalidate() {
	o := s.create(productDID, countryUK, 1, nil)

	_, err := s.svc.Get(s.ctx, o.ID)
	s.Require().NoError(err)
	s.True(s.env.Cache.Has("orders:1"))

	_, err = s.svc.Confirm(s.ctx, o.ID, nil)
	s.Require().NoError(err)
	s.False(s.env.Cache.Has("orders:1"))

	got, err := s.svc.Get(s.ctx, o.ID)
	s.Require().NoError(err)
	s.Equal(entity.OrderStatusConfirmed, got.Status)

	_, err = s.svc.Get(s.ctx, 404)
	s.requireKind(err, errorbank.KindNotFound)
}

func (s *OrderServiceSuite) TestDesiredUpsertRefreshesCachedPricingState() {
	o := s.create(productDID, countryUK, 1, nil)

	before, err := s.svc.Get(s.ctx, o.ID)
	s.Require().NoError(err)
	s.Equal(entity.PricingStateAbsent, before.PricingState)
	s.True(s.env.Cache.Has(orderrepo.CacheKey(o.ID)))

	_, err = s.pricing.Upsert(s.ctx, pricing.UpsertInput{
		OrderID:     o.ID,
		PricingType: entity.PricingDesired,
		Fields:      map[string]string{"mrc": "$3"},
	})
	s.Require().NoError(err)
	s.False(s.env.Cache.Has(orderrepo.CacheKey(o.ID)))

	after, err := s.svc.Get(s.ctx, o.ID)
	s.Require().NoError(err)
	s.Equal(entity.PricingStateRecorded, after.PricingState)
}

func (s *OrderServiceSuite) TestListFiltersByStatus() {
	first := s.create(productDID, countryUK, 1, nil)
	s.create(productDID, countryUK, 1, nil)
	_, err := s.svc.Confirm(s.ctx, first.ID, nil)
	s.Require().NoError(err)

	confirmed, err := s.svc.List(s.ctx, orderrepo.Filter{Status: entity.OrderStatusConfirmed})
	s.Require().NoError(err)
	s.Require().Len(confirmed, 1)
	s.Equal(first.ID, confirmed[0].ID)
}

func TestOrderTotal(t *testing.T) {
	rates := entity.Rates{
		entity.RateNRC: decimal.RequireFromString("5.00"),
		entity.RateMRC: decimal.RequireFromString("2.50"),
	}
	assert.Equal(t, "22.5", order.OrderTotal(rates, 3).String())
	require.True(t, order.OrderTotal(entity.Rates{}, 10).IsZero())
	assert.Equal(t, "0.3333", order.OrderTotal(entity.Rates{entity.RatePPM: decimal.RequireFromString("0.33333")}, 1).String())
}
