package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"marketplace/internal/domain"
	"marketplace/internal/events"
	"marketplace/internal/utils"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type market struct {
	*fixture
	admin   *utils.Claims
	seller  *domain.User
	buyer   *domain.User
	product *domain.Product
}

func newMarket(t *testing.T, price int64) *market {
	t.Helper()
	f := newFixture(t)
	m := &market{fixture: f}
	m.admin = f.makeAdmin(t, f.register(t, "gandalf"))
	m.seller = f.register(t, "seller")
	m.buyer = f.register(t, "buyer")
	m.product = f.listApproved(t, m.seller, m.admin, "Palantir", price)
	return m
}

func (m *market) reloadProduct(t *testing.T) domain.Product {
	t.Helper()
	var p domain.Product
	require.NoError(t, m.db.First(&p, m.product.ID).Error)
	return p
}

func TestConfirmMovesExactlyThePrice(t *testing.T) {
	m := newMarket(t, 120)
	ctx := context.Background()

	tx, err := m.engine.Initiate(ctx, m.buyer.ID, m.product.ID, "Bag End, Hobbiton")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, tx.Status)
	assert.True(t, tx.Amount.Equal(decimal.NewFromInt(120)))
	assert.True(t, m.reloadProduct(t).Pending)

	done, err := m.engine.Confirm(ctx, claimsOf(m.seller), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, done.Status)

	assert.True(t, m.wallet(t, m.buyer.ID).Equal(decimal.NewFromInt(380)))
	assert.True(t, m.wallet(t, m.seller.ID).Equal(decimal.NewFromInt(620)))

	p := m.reloadProduct(t)
	require.NotNil(t, p.BuyerID)
	assert.Equal(t, m.buyer.ID, *p.BuyerID)
	assert.False(t, p.Pending)
	assert.False(t, p.Available)
	assert.True(t, p.Sold())

	assert.Equal(t, []string{events.TypeTransactionInitiated, events.TypeTransactionConfirmed}, m.events.types())
}

func TestConcurrentConfirmOnlyOneWins(t *testing.T) {
	m := newMarket(t, 100)
	ctx := context.Background()
	tx, err := m.engine.Initiate(ctx, m.buyer.ID, m.product.ID, "")
	require.NoError(t, err)

	const workers = 2
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = m.engine.Confirm(ctx, claimsOf(m.seller), tx.ID)
		}(i)
	}
	wg.Wait()

	var ok, conflict int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrConflict):
			conflict++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflict)
	assert.True(t, m.wallet(t, m.buyer.ID).Equal(decimal.NewFromInt(400)))
	assert.True(t, m.wallet(t, m.seller.ID).Equal(decimal.NewFromInt(600)))
}

func TestConfirmWithInsufficientFundsChangesNothing(t *testing.T) {
	m := newMarket(t, 300)
	ctx := context.Background()
	tx, err := m.engine.Initiate(ctx, m.buyer.ID, m.product.ID, "")
	require.NoError(t, err)
	m.setWallet(t, m.buyer, 299)

	_, err = m.engine.Confirm(ctx, claimsOf(m.seller), tx.ID)
	assert.True(t, errors.Is(err, domain.ErrInsufficientFunds))

	assert.True(t, m.wallet(t, m.buyer.ID).Equal(decimal.NewFromInt(299)))
	assert.True(t, m.wallet(t, m.seller.ID).Equal(decimal.NewFromInt(500)))
	var stored domain.Transaction
	require.NoError(t, m.db.First(&stored, tx.ID).Error)
	assert.Equal(t, domain.StatusPending, stored.Status)
	p := m.reloadProduct(t)
	assert.Nil(t, p.BuyerID)
	assert.True(t, p.Pending)
	assert.True(t, p.Available)
}

func TestDeclineAllowsAFreshInitiate(t *testing.T) {
	m := newMarket(t, 50)
	ctx := context.Background()
	first, err := m.engine.Initiate(ctx, m.buyer.ID, m.product.ID, "")
	require.NoError(t, err)

	declined, err := m.engine.Decline(ctx, claimsOf(m.seller), first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDeclined, declined.Status)
	assert.False(t, m.reloadProduct(t).Pending)
	assert.True(t, m.wallet(t, m.buyer.ID).Equal(decimal.NewFromInt(500)))

	_, err = m.engine.Confirm(ctx, claimsOf(m.seller), first.ID)
	assert.True(t, errors.Is(err, domain.ErrConflict))
	_, err = m.engine.Decline(ctx, claimsOf(m.seller), first.ID)
	assert.True(t, errors.Is(err, domain.ErrConflict))

	second, err := m.engine.Initiate(ctx, m.buyer.ID, m.product.ID, "")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestAmountIsFixedAtInitiation(t *testing.T) {
	m := newMarket(t, 100)
	ctx := context.Background()
	tx, err := m.engine.Initiate(ctx, m.buyer.ID, m.product.ID, "")
	require.NoError(t, err)

	price := decimal.NewFromInt(450)
	_, err = m.products.Update(ctx, m.admin, m.product.ID, ProductPatch{Price: &price})
	require.NoError(t, err)

	_, err = m.engine.Confirm(ctx, claimsOf(m.seller), tx.ID)
	require.NoError(t, err)
	assert.True(t, m.wallet(t, m.buyer.ID).Equal(decimal.NewFromInt(400)))
}

func TestInitiateGuards(t *testing.T) {
	m := newMarket(t, 100)
	ctx := context.Background()
	other := m.register(t, "other")

	_, err := m.engine.Initiate(ctx, m.buyer.ID, 9999, "")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	_, err = m.engine.Initiate(ctx, m.seller.ID, m.product.ID, "")
	assert.True(t, errors.Is(err, domain.ErrInvalidOperation))

	hidden, err := m.products.Create(ctx, claimsOf(m.seller), ProductInput{Name: "Ring", Price: decimal.NewFromInt(1)})
	require.NoError(t, err)
	_, err = m.engine.Initiate(ctx, m.buyer.ID, hidden.ID, "")
	assert.True(t, errors.Is(err, domain.ErrInvalidOperation))

	_, err = m.engine.Initiate(ctx, m.buyer.ID, m.product.ID, "")
	require.NoError(t, err)
	_, err = m.engine.Initiate(ctx, other.ID, m.product.ID, "")
	assert.True(t, errors.Is(err, domain.ErrConflict))
}

func TestSoldProductCannotBeBoughtAgain(t *testing.T) {
	m := newMarket(t, 10)
	ctx := context.Background()
	other := m.register(t, "other")
	tx, err := m.engine.Initiate(ctx, m.buyer.ID, m.product.ID, "")
	require.NoError(t, err)
	_, err = m.engine.Confirm(ctx, claimsOf(m.seller), tx.ID)
	require.NoError(t, err)

	_, err = m.engine.Initiate(ctx, other.ID, m.product.ID, "")
	assert.True(t, errors.Is(err, domain.ErrConflict))
}

func TestConfirmGuards(t *testing.T) {
	m := newMarket(t, 10)
	ctx := context.Background()
	tx, err := m.engine.Initiate(ctx, m.buyer.ID, m.product.ID, "")
	require.NoError(t, err)

	_, err = m.engine.Confirm(ctx, claimsOf(m.seller), 9999)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	_, err = m.engine.Confirm(ctx, claimsOf(m.buyer), tx.ID)
	assert.True(t, errors.Is(err, domain.ErrForbidden))
	_, err = m.engine.Decline(ctx, claimsOf(m.buyer), tx.ID)
	assert.True(t, errors.Is(err, domain.ErrForbidden))
}

func TestTransactionVisibilityAndListing(t *testing.T) {
	m := newMarket(t, 10)
	ctx := context.Background()
	stranger := m.register(t, "stranger")
	tx, err := m.engine.Initiate(ctx, m.buyer.ID, m.product.ID, "")
	require.NoError(t, err)

	for _, c := range []*utils.Claims{claimsOf(m.buyer), claimsOf(m.seller), m.admin} {
		got, err := m.engine.Get(ctx, c, tx.ID)
		require.NoError(t, err)
		assert.Equal(t, tx.ID, got.ID)
	}
	_, err = m.engine.Get(ctx, claimsOf(stranger), tx.ID)
	assert.True(t, errors.Is(err, domain.ErrForbidden))

	page := utils.NewPage(1, 10)
	list, total, err := m.engine.ListForUser(ctx, m.buyer.ID, TransactionFilter{Role: "buyer"}, page)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, list, 1)

	_, total, err = m.engine.ListForUser(ctx, m.buyer.ID, TransactionFilter{Role: "seller"}, page)
	require.NoError(t, err)
	assert.EqualValues(t, 0, total)

	_, total, err = m.engine.ListForUser(ctx, m.seller.ID, TransactionFilter{Status: domain.StatusConfirmed}, page)
	require.NoError(t, err)
	assert.EqualValues(t, 0, total)

	_, _, err = m.engine.ListForUser(ctx, m.seller.ID, TransactionFilter{Role: "thief"}, page)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestAdminCanDeclineButNotConfirm(t *testing.T) {
	m := newMarket(t, 10)
	ctx := context.Background()
	tx, err := m.engine.Initiate(ctx, m.buyer.ID, m.product.ID, "")
	require.NoError(t, err)

	_, err = m.engine.Confirm(ctx, m.admin, tx.ID)
	assert.True(t, errors.Is(err, domain.ErrForbidden))
	_, err = m.engine.Decline(ctx, nil, tx.ID)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))

	declined, err := m.engine.Decline(ctx, m.admin, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDeclined, declined.Status)
	assert.False(t, m.reloadProduct(t).Pending)
}

func TestInitiateRequiresExistingSeller(t *testing.T) {
	m := newMarket(t, 10)
	ctx := context.Background()
	// Remove the row directly, leaving the listing behind
	require.NoError(t, m.db.Delete(&domain.User{}, m.seller.ID).Error)

	_, err := m.engine.Initiate(ctx, m.buyer.ID, m.product.ID, "")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.False(t, m.reloadProduct(t).Pending)
}

func TestDeletingSellerDeclinesPendingAndWithdrawsListings(t *testing.T) {
	m := newMarket(t, 40)
	ctx := context.Background()
	other := m.listApproved(t, m.seller, m.admin, "Seeing stone", 15)
	tx, err := m.engine.Initiate(ctx, m.buyer.ID, m.product.ID, "")
	require.NoError(t, err)

	outcome, err := m.auth.DeleteUser(ctx, m.admin, m.seller.ID)
	require.NoError(t, err)
	assert.Equal(t, Deleted, outcome)

	var stored domain.Transaction
	require.NoError(t, m.db.First(&stored, tx.ID).Error)
	assert.Equal(t, domain.StatusDeclined, stored.Status)
	assert.True(t, m.wallet(t, m.buyer.ID).Equal(decimal.NewFromInt(500)))

	p := m.reloadProduct(t)
	assert.False(t, p.Pending)
	assert.False(t, p.Approved)
	assert.False(t, p.Available)

	got, total, err := m.products.Search(ctx, Viewer{}, ProductFilter{}, utils.NewPage(1, 10))
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, total)

	_, err = m.engine.Initiate(ctx, m.buyer.ID, other.ID, "")
	assert.True(t, errors.Is(err, domain.ErrInvalidOperation))
	assert.Equal(t, []string{events.TypeTransactionInitiated, events.TypeTransactionDeclined}, m.events.types())
}

func TestDeletingBuyerFreesTheProduct(t *testing.T) {
	m := newMarket(t, 40)
	ctx := context.Background()
	other := m.register(t, "other")
	tx, err := m.engine.Initiate(ctx, m.buyer.ID, m.product.ID, "")
	require.NoError(t, err)

	_, err = m.auth.DeleteUser(ctx, m.admin, m.buyer.ID)
	require.NoError(t, err)

	var stored domain.Transaction
	require.NoError(t, m.db.First(&stored, tx.ID).Error)
	assert.Equal(t, domain.StatusDeclined, stored.Status)
	p := m.reloadProduct(t)
	assert.False(t, p.Pending)
	assert.True(t, p.Approved, "the seller's listing stays up")

	_, err = m.engine.Initiate(ctx, other.ID, m.product.ID, "")
	assert.NoError(t, err)
}

func TestDeletingSellerKeepsSoldProducts(t *testing.T) {
	m := newMarket(t, 40)
	ctx := context.Background()
	tx, err := m.engine.Initiate(ctx, m.buyer.ID, m.product.ID, "")
	require.NoError(t, err)
	_, err = m.engine.Confirm(ctx, claimsOf(m.seller), tx.ID)
	require.NoError(t, err)

	_, err = m.auth.DeleteUser(ctx, m.admin, m.seller.ID)
	require.NoError(t, err)

	p := m.reloadProduct(t)
	assert.True(t, p.Approved)
	require.NotNil(t, p.BuyerID)
	assert.Equal(t, m.buyer.ID, *p.BuyerID)
}
