package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"marketplace/internal/db"
	"marketplace/internal/domain"
	"marketplace/internal/events"
	"marketplace/internal/utils"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	testSessionSecret = "session-secret-for-tests"
	testResetSecret   = "reset-secret-for-tests"
)

// sentMail is one message captured by mailRecorder
type sentMail struct {
	To, Subject, Body string
}

type mailRecorder struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *mailRecorder) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

func (m *mailRecorder) messages() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMail(nil), m.sent...)
}

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *eventRecorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

// fixture bundles the services over one fresh in-memory database
type fixture struct {
	db       *gorm.DB
	tokens   *utils.TokenManager
	mail     *mailRecorder
	events   *eventRecorder
	auth     *AuthService
	users    *UserService
	products *ProductService
	engine   *TransactionEngine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1) // One connection keeps the in-memory database alive and writes serialized
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.Migrate(gdb))

	f := &fixture{
		db:     gdb,
		tokens: utils.NewTokenManager(testSessionSecret, testResetSecret, 2*time.Hour, 15*time.Minute),
		mail:   &mailRecorder{},
		events: &eventRecorder{},
	}
	f.auth = &AuthService{
		DB:             gdb,
		Tokens:         f.tokens,
		Mailer:         f.mail,
		Events:         f.events,
		StartingWallet: decimal.NewFromInt(500),
		HashCost:       bcrypt.MinCost,
		ResetURL:       "https://shop.example/restore",
	}
	f.users = &UserService{DB: gdb, HashCost: bcrypt.MinCost}
	f.products = &ProductService{DB: gdb, UploadDir: t.TempDir()}
	f.engine = &TransactionEngine{DB: gdb, Events: f.events}
	return f
}

func (f *fixture) register(t *testing.T, username string) *domain.User {
	t.Helper()
	u, err := f.auth.Register(context.Background(), RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "secret-" + username,
	})
	require.NoError(t, err)
	return u
}

func (f *fixture) makeAdmin(t *testing.T, u *domain.User) *utils.Claims {
	t.Helper()
	require.NoError(t, f.db.Model(&domain.User{}).Where("id = ?", u.ID).Update("admin", true).Error)
	return &utils.Claims{UserID: u.ID, Username: u.Username, Admin: true, Purpose: utils.PurposeSession}
}

func (f *fixture) setWallet(t *testing.T, u *domain.User, amount int64) {
	t.Helper()
	require.NoError(t, f.db.Model(&domain.User{}).Where("id = ?", u.ID).Update("wallet", decimal.NewFromInt(amount)).Error)
}

func (f *fixture) wallet(t *testing.T, id uint) decimal.Decimal {
	t.Helper()
	var u domain.User
	require.NoError(t, f.db.First(&u, id).Error)
	return u.Wallet
}

func claimsOf(u *domain.User) *utils.Claims {
	return &utils.Claims{UserID: u.ID, Username: u.Username, Admin: u.Admin, Purpose: utils.PurposeSession}
}

// listApproved creates a product for seller and approves it
func (f *fixture) listApproved(t *testing.T, seller *domain.User, admin *utils.Claims, name string, price int64) *domain.Product {
	t.Helper()
	ctx := context.Background()
	p, err := f.products.Create(ctx, claimsOf(seller), ProductInput{
		Name:     name,
		Price:    decimal.NewFromInt(price),
		Location: "Berlin",
		Category: "games",
	})
	require.NoError(t, err)
	p, err = f.products.Approve(ctx, admin, p.ID)
	require.NoError(t, err)
	return p
}

func requireKind(t *testing.T, err error, kind domain.Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, domain.KindOf(err), "error: %v", err)
}
