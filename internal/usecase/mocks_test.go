//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/smitsergei/tma-subscription-sub002/internal/domain"
	"github.com/smitsergei/tma-subscription-sub002/internal/domain/model"
	"github.com/smitsergei/tma-subscription-sub002/internal/domain/ports/adapter"
	"github.com/smitsergei/tma-subscription-sub002/internal/domain/ports/repository"
	"github.com/smitsergei/tma-subscription-sub002/internal/usecase"
)

// -----------------------------
// Utilities
// -----------------------------

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// testClock is a settable clock shared by a test's use cases.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(at time.Time) *testClock { return &testClock{now: at} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = at
}

func (c *testClock) Clock() usecase.Clock { return c.Now }

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func mustDecimal(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// =============================
// Transaction manager
// =============================

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func NewMockTxManager() *MockTxManager { return &MockTxManager{} }

// NewSerialTxManager runs one transaction at a time, standing in for row locks.
func NewSerialTxManager() *MockTxManager {
	var mu sync.Mutex
	return &MockTxManager{WithTxFunc: func(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
		mu.Lock()
		defer mu.Unlock()
		return fn(ctx, repository.NoTX)
	}}
}

// WithTx runs fn immediately with NoTX unless WithTxFunc is set.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// =============================
// Adapters
// =============================

type sentMessage struct {
	ChatID int64
	Text   string
}

type MockTelegramBot struct {
	mu   sync.Mutex
	Sent []sentMessage

	SendMessageFunc func(ctx context.Context, chatID int64, text string) error
}

var _ adapter.TelegramBotAdapter = (*MockTelegramBot)(nil)

func (m *MockTelegramBot) SendMessage(ctx context.Context, chatID int64, text string) error {
	if m.SendMessageFunc != nil {
		if err := m.SendMessageFunc(ctx, chatID, text); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, sentMessage{ChatID: chatID, Text: text})
	return nil
}

func (m *MockTelegramBot) SendButtons(ctx context.Context, chatID int64, text string, _ [][]adapter.InlineButton) error {
	return m.SendMessage(ctx, chatID, text)
}

func (m *MockTelegramBot) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}

type MockEvents struct {
	mu     sync.Mutex
	Events []adapter.Event
}

var _ adapter.EventPublisher = (*MockEvents)(nil)

func (m *MockEvents) Publish(_ context.Context, ev adapter.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, ev)
	return nil
}

func (m *MockEvents) CountType(typ string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.Events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

// =============================
// Repositories
// =============================

// ---- Users & admins ----

type MockUserRepo struct {
	mu    sync.RWMutex
	store map[model.TelegramID]*model.User

	UpsertFunc func(ctx context.Context, tx repository.Tx, u *model.User) (*model.User, error)
}

var _ repository.UserRepository = (*MockUserRepo)(nil)

func NewMockUserRepo() *MockUserRepo {
	return &MockUserRepo{store: make(map[model.TelegramID]*model.User)}
}

func (m *MockUserRepo) Upsert(ctx context.Context, tx repository.Tx, u *model.User) (*model.User, error) {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, tx, u)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	if existing, ok := m.store[u.TelegramID]; ok {
		cp.CreatedAt = existing.CreatedAt
	}
	m.store[u.TelegramID] = &cp
	out := cp
	return &out, nil
}

func (m *MockUserRepo) FindByTelegramID(_ context.Context, _ repository.Tx, tgID model.TelegramID) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.store[tgID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MockUserRepo) ListIDs(_ context.Context, _ repository.Tx, afterID model.TelegramID, limit int) ([]model.TelegramID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []model.TelegramID
	for id := range m.store {
		if id > afterID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (m *MockUserRepo) CountUsers(context.Context, repository.Tx) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.store), nil
}

type MockAdminRepo struct {
	mu    sync.RWMutex
	store map[model.TelegramID]*model.Admin
}

var _ repository.AdminRepository = (*MockAdminRepo)(nil)

func NewMockAdminRepo() *MockAdminRepo {
	return &MockAdminRepo{store: make(map[model.TelegramID]*model.Admin)}
}

func (m *MockAdminRepo) Exists(_ context.Context, _ repository.Tx, tgID model.TelegramID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.store[tgID]
	return ok, nil
}

func (m *MockAdminRepo) Add(_ context.Context, _ repository.Tx, a *model.Admin) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[a.TelegramID]; !ok {
		cp := *a
		m.store[a.TelegramID] = &cp
	}
	return nil
}

func (m *MockAdminRepo) Remove(_ context.Context, _ repository.Tx, tgID model.TelegramID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[tgID]; !ok {
		return domain.ErrNotFound
	}
	delete(m.store, tgID)
	return nil
}

func (m *MockAdminRepo) List(context.Context, repository.Tx) ([]*model.Admin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Admin, 0, len(m.store))
	for _, a := range m.store {
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

// ---- Catalog ----

type MockChannelRepo struct {
	mu    sync.RWMutex
	store map[model.TelegramID]*model.Channel
}

var _ repository.ChannelRepository = (*MockChannelRepo)(nil)

func NewMockChannelRepo() *MockChannelRepo {
	return &MockChannelRepo{store: make(map[model.TelegramID]*model.Channel)}
}

func (m *MockChannelRepo) Save(_ context.Context, _ repository.Tx, c *model.Channel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.store[c.ID] = &cp
	return nil
}

func (m *MockChannelRepo) FindByID(_ context.Context, _ repository.Tx, id model.TelegramID) (*model.Channel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MockChannelRepo) List(context.Context, repository.Tx) ([]*model.Channel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Channel, 0, len(m.store))
	for _, c := range m.store {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

type MockProductRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Product
}

var _ repository.ProductRepository = (*MockProductRepo)(nil)

func NewMockProductRepo() *MockProductRepo {
	return &MockProductRepo{store: make(map[string]*model.Product)}
}

func (m *MockProductRepo) Save(_ context.Context, _ repository.Tx, p *model.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *MockProductRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockProductRepo) ListActive(context.Context, repository.Tx) ([]*model.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Product
	for _, p := range m.store {
		if p.IsActive {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ---- Payments ----

type MockPaymentRepo struct {
	mu     sync.RWMutex
	byID   map[string]*model.Payment
	byMemo map[string]string

	InsertFunc func(ctx context.Context, tx repository.Tx, p *model.Payment) error
}

var _ repository.PaymentRepository = (*MockPaymentRepo)(nil)

func NewMockPaymentRepo() *MockPaymentRepo {
	return &MockPaymentRepo{byID: make(map[string]*model.Payment), byMemo: make(map[string]string)}
}

func (m *MockPaymentRepo) Insert(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	if m.InsertFunc != nil {
		if err := m.InsertFunc(ctx, tx, p); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.byMemo[p.Memo]; taken {
		return domain.ErrMemoCollision
	}
	cp := *p
	m.byID[p.ID] = &cp
	m.byMemo[p.Memo] = p.ID
	return nil
}

func (m *MockPaymentRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPaymentRepo) FindByMemo(ctx context.Context, tx repository.Tx, memo string) (*model.Payment, error) {
	m.mu.RLock()
	id, ok := m.byMemo[memo]
	m.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	return m.FindByID(ctx, tx, id)
}

func (m *MockPaymentRepo) Update(_ context.Context, _ repository.Tx, p *model.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[p.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *p
	m.byID[p.ID] = &cp
	return nil
}

func (m *MockPaymentRepo) ListPending(_ context.Context, _ repository.Tx, limit int) ([]*model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Payment
	for _, p := range m.byID {
		if p.Status == model.PaymentStatusPending && len(out) < limit {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockPaymentRepo) FailStalePending(_ context.Context, _ repository.Tx, olderThan, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, p := range m.byID {
		if p.Status == model.PaymentStatusPending && p.CreatedAt.Before(olderThan) {
			p.Status = model.PaymentStatusFailed
			p.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (m *MockPaymentRepo) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}

func (m *MockPaymentRepo) Memos() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.byID))
	for _, p := range m.byID {
		out = append(out, p.Memo)
	}
	return out
}

// ---- Subscriptions ----

type MockSubscriptionRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Subscription
}

var _ repository.SubscriptionRepository = (*MockSubscriptionRepo)(nil)

func NewMockSubscriptionRepo() *MockSubscriptionRepo {
	return &MockSubscriptionRepo{store: make(map[string]*model.Subscription)}
}

func (m *MockSubscriptionRepo) Insert(_ context.Context, _ repository.Tx, s *model.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.PaymentID != nil {
		for _, existing := range m.store {
			if existing.PaymentID != nil && *existing.PaymentID == *s.PaymentID {
				return domain.ErrAlreadyExists
			}
		}
	}
	cp := *s
	m.store[s.ID] = &cp
	return nil
}

func (m *MockSubscriptionRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MockSubscriptionRepo) FindByPaymentID(_ context.Context, _ repository.Tx, paymentID string) (*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.store {
		if s.PaymentID != nil && *s.PaymentID == paymentID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockSubscriptionRepo) UpdateStatus(_ context.Context, _ repository.Tx, id string, status model.SubscriptionStatus, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.Status = status
	s.UpdatedAt = now
	return nil
}

func (m *MockSubscriptionRepo) ListActive(_ context.Context, _ repository.Tx, userID model.TelegramID, now time.Time) ([]*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Subscription
	for _, s := range m.store {
		if s.UserID == userID && s.Status == model.SubscriptionStatusActive && s.ExpiresAt.After(now) {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MockSubscriptionRepo) ListByUser(_ context.Context, _ repository.Tx, userID model.TelegramID) ([]*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Subscription
	for _, s := range m.store {
		if s.UserID == userID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockSubscriptionRepo) ExpireDue(_ context.Context, _ repository.Tx, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, s := range m.store {
		if s.Status == model.SubscriptionStatusActive && !s.ExpiresAt.After(now) {
			s.Status = model.SubscriptionStatusExpired
			s.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (m *MockSubscriptionRepo) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.store)
}

// ---- Demo accesses ----

type MockDemoRepo struct {
	mu    sync.RWMutex
	store map[string]*model.DemoAccess
}

var _ repository.DemoAccessRepository = (*MockDemoRepo)(nil)

func NewMockDemoRepo() *MockDemoRepo {
	return &MockDemoRepo{store: make(map[string]*model.DemoAccess)}
}

// Insert enforces the same rule as the partial unique index in Postgres.
func (m *MockDemoRepo) Insert(_ context.Context, _ repository.Tx, d *model.DemoAccess) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.store {
		if existing.IsActive && existing.UserID == d.UserID && existing.ProductID == d.ProductID {
			return domain.ErrDemoAlreadyGranted
		}
	}
	cp := *d
	m.store[d.ID] = &cp
	return nil
}

func (m *MockDemoRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.DemoAccess, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *MockDemoRepo) FindActiveByUserProduct(_ context.Context, _ repository.Tx, userID model.TelegramID, productID string) (*model.DemoAccess, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.store {
		if d.IsActive && d.UserID == userID && d.ProductID == productID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockDemoRepo) Deactivate(_ context.Context, _ repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	d.IsActive = false
	return nil
}

func (m *MockDemoRepo) ListActive(_ context.Context, _ repository.Tx, userID model.TelegramID, now time.Time) ([]*model.DemoAccess, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.DemoAccess
	for _, d := range m.store {
		if d.UserID == userID && d.IsEffectivelyActive(now) {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockDemoRepo) ClaimReminders(_ context.Context, _ repository.Tx, now, before time.Time, limit int) ([]*model.DemoAccess, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.DemoAccess
	for _, d := range m.store {
		if len(out) >= limit {
			break
		}
		if d.IsEffectivelyActive(now) && !d.ReminderSent && !d.ExpiresAt.After(before) {
			d.ReminderSent = true
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ---- Promo codes ----

type MockPromoRepo struct {
	mu     sync.RWMutex
	store  map[string]*model.PromoCode
	usages []*model.PromoUsage
}

var _ repository.PromoRepository = (*MockPromoRepo)(nil)

func NewMockPromoRepo() *MockPromoRepo {
	return &MockPromoRepo{store: make(map[string]*model.PromoCode)}
}

func (m *MockPromoRepo) Create(_ context.Context, _ repository.Tx, p *model.PromoCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.store {
		if existing.Code == p.Code {
			return domain.ErrAlreadyExists
		}
	}
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *MockPromoRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.PromoCode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPromoRepo) FindByCode(_ context.Context, _ repository.Tx, code string) (*model.PromoCode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.store {
		if p.Code == code {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

// IncrementUses is a compare-and-swap, like the guarded UPDATE in Postgres.
func (m *MockPromoRepo) IncrementUses(_ context.Context, _ repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	if p.CurrentUses >= p.MaxUses {
		return domain.ErrPromoExhausted
	}
	p.CurrentUses++
	return nil
}

func (m *MockPromoRepo) InsertUsage(_ context.Context, _ repository.Tx, u *model.PromoUsage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.usages = append(m.usages, &cp)
	return nil
}

func (m *MockPromoRepo) Usages() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.usages)
}

// ---- Broadcasts ----

type MockBroadcastRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Broadcast
}

var _ repository.BroadcastRepository = (*MockBroadcastRepo)(nil)

func NewMockBroadcastRepo() *MockBroadcastRepo {
	return &MockBroadcastRepo{store: make(map[string]*model.Broadcast)}
}

func (m *MockBroadcastRepo) Save(_ context.Context, _ repository.Tx, b *model.Broadcast) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *b
	m.store[b.ID] = &cp
	return nil
}

func (m *MockBroadcastRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.Broadcast, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

// =============================
// Fixtures
// =============================

type fixture struct {
	clock     *testClock
	users     *MockUserRepo
	admins    *MockAdminRepo
	channels  *MockChannelRepo
	products  *MockProductRepo
	payments  *MockPaymentRepo
	subs      *MockSubscriptionRepo
	demos     *MockDemoRepo
	promos    *MockPromoRepo
	bot       *MockTelegramBot
	events    *MockEvents
	tm        *MockTxManager
	subUC     usecase.SubscriptionUseCase
	notifyUC  usecase.NotificationUseCase
	channelID model.TelegramID
}

func newFixture() *fixture {
	f := &fixture{
		clock:     newTestClock(t0),
		users:     NewMockUserRepo(),
		admins:    NewMockAdminRepo(),
		channels:  NewMockChannelRepo(),
		products:  NewMockProductRepo(),
		payments:  NewMockPaymentRepo(),
		subs:      NewMockSubscriptionRepo(),
		demos:     NewMockDemoRepo(),
		promos:    NewMockPromoRepo(),
		bot:       &MockTelegramBot{},
		events:    &MockEvents{},
		tm:        NewSerialTxManager(),
		channelID: -1001234567890,
	}
	ctx := context.Background()
	_ = f.channels.Save(ctx, nil, &model.Channel{ID: f.channelID, Name: "Signals", CreatedAt: t0})
	f.subUC = usecase.NewSubscriptionUseCase(f.subs, f.products, f.channels, f.users, f.tm, f.events, f.clock.Clock(), newTestLogger())
	f.notifyUC = usecase.NewNotificationUseCase(f.bot, f.demos, "", f.clock.Clock(), newTestLogger())
	return f
}

func (f *fixture) addProduct(id string, mutate func(p *model.Product)) *model.Product {
	p := &model.Product{
		ID: id, ChannelID: f.channelID, Name: "Monthly", Currency: "TON",
		PeriodDays: 30, IsActive: true, CreatedAt: t0, UpdatedAt: t0,
	}
	p.Price = mustDecimal("10")
	if mutate != nil {
		mutate(p)
	}
	_ = f.products.Save(context.Background(), nil, p)
	return p
}

func (f *fixture) addUser(id model.TelegramID) {
	_, _ = f.users.Upsert(context.Background(), nil, &model.User{TelegramID: id, DisplayName: "U", CreatedAt: t0})
}

func (f *fixture) paymentUC(memo usecase.MemoSource) usecase.PaymentUseCase {
	return usecase.NewPaymentUseCase(
		f.payments, f.products, f.promos, f.subUC, f.notifyUC, f.tm, f.events, memo,
		usecase.PaymentOptions{Currency: "TON", MemoLength: 10, MaxAttempts: 5, PendingTTL: 30 * time.Minute},
		f.clock.Clock(), newTestLogger(),
	)
}

var errBoom = errors.New("boom")
