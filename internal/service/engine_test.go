package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/CristianMorenoC/prueba-tecnica/internal/model"
)

// In-memory fakes for the store ports. All balance and status writes are
// conditional, mirroring the pgx repositories.

type memFunds struct {
	funds map[string]model.Fund
}

func (m *memFunds) GetByID(_ context.Context, fundID string) (*model.Fund, error) {
	f, ok := m.funds[fundID]
	if !ok {
		return nil, model.ErrFundNotFound
	}
	return &f, nil
}

func (m *memFunds) List(_ context.Context, limit int, cursor string) ([]model.Fund, string, error) {
	if limit <= 0 {
		limit = 50
	}
	var ids []string
	for id := range m.funds {
		if id > cursor {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	var out []model.Fund
	next := ""
	for i, id := range ids {
		if i == limit {
			next = out[limit-1].FundID
			break
		}
		out = append(out, m.funds[id])
	}
	return out, next, nil
}

type memAccounts struct {
	mu            sync.Mutex
	accounts      map[string]model.Account
	forceConflict int // fail this many UpdateBalance calls with ErrConflict
	updateCalls   int
}

func (m *memAccounts) Get(_ context.Context, userID string) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[userID]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	return &a, nil
}

func (m *memAccounts) Create(_ context.Context, acct *model.Account) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[acct.UserID]; ok {
		return nil, model.ErrDuplicateUser
	}
	m.accounts[acct.UserID] = *acct
	return acct, nil
}

func (m *memAccounts) UpdateBalance(_ context.Context, userID string, expected, newBalance int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++
	if m.forceConflict > 0 {
		m.forceConflict--
		return fmt.Errorf("%w: injected", model.ErrConflict)
	}
	a, ok := m.accounts[userID]
	if !ok {
		return model.ErrUserNotFound
	}
	if a.Balance != expected {
		return fmt.Errorf("%w: balance changed", model.ErrConflict)
	}
	a.Balance = newBalance
	m.accounts[userID] = a
	return nil
}

type memSubs struct {
	mu   sync.Mutex
	subs map[string]model.Subscription
}

func subKey(userID, fundID string) string { return userID + "/" + fundID }

func (m *memSubs) Get(_ context.Context, userID, fundID string) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[subKey(userID, fundID)]
	if !ok {
		return nil, model.ErrSubscriptionNotFound
	}
	return &s, nil
}

func (m *memSubs) Create(_ context.Context, sub *model.Subscription, _ model.Contact) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := subKey(sub.UserID, sub.FundID)
	if existing, ok := m.subs[key]; ok && existing.Status == model.StatusActive {
		return nil, model.ErrDuplicateSubscription
	}
	m.subs[key] = *sub
	return sub, nil
}

func (m *memSubs) CancelActive(_ context.Context, userID, fundID string, at time.Time) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := subKey(userID, fundID)
	s, ok := m.subs[key]
	if !ok {
		return nil, model.ErrSubscriptionNotFound
	}
	if s.Status != model.StatusActive {
		return nil, model.ErrAlreadyCancelled
	}
	s.Status = model.StatusCancelled
	s.CancelledAt = &at
	m.subs[key] = s
	return &s, nil
}

func (m *memSubs) ListByUser(_ context.Context, userID string, status model.SubscriptionStatus) ([]model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Subscription
	for _, s := range m.subs {
		if s.UserID == userID && (status == "" || s.Status == status) {
			out = append(out, s)
		}
	}
	return out, nil
}

type memLedger struct {
	mu  sync.Mutex
	txs []model.Transaction
}

func (m *memLedger) Append(_ context.Context, t *model.Transaction) (*model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = int64(len(m.txs) + 1)
	m.txs = append(m.txs, *t)
	return t, nil
}

func (m *memLedger) List(_ context.Context, query model.TransactionQuery) ([]model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Transaction
	for _, t := range m.txs {
		if query.UserID != "" && t.UserID != query.UserID {
			continue
		}
		if query.FundID != "" && t.FundID != query.FundID {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// memUow restores the stores when the inner function fails, mirroring the
// rollback of the real transaction runner. Units of work are serialized,
// as the row lock on the account serializes them in Postgres.
type memUow struct {
	mu       sync.Mutex
	accounts *memAccounts
	subs     *memSubs
	ledger   *memLedger
}

func (u *memUow) Within(ctx context.Context, fn func(ctx context.Context) error) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.accounts.mu.Lock()
	accSnap := make(map[string]model.Account, len(u.accounts.accounts))
	for k, v := range u.accounts.accounts {
		accSnap[k] = v
	}
	u.accounts.mu.Unlock()

	u.subs.mu.Lock()
	subSnap := make(map[string]model.Subscription, len(u.subs.subs))
	for k, v := range u.subs.subs {
		subSnap[k] = v
	}
	u.subs.mu.Unlock()

	u.ledger.mu.Lock()
	ledgerLen := len(u.ledger.txs)
	u.ledger.mu.Unlock()

	if err := fn(ctx); err != nil {
		u.accounts.mu.Lock()
		u.accounts.accounts = accSnap
		u.accounts.mu.Unlock()
		u.subs.mu.Lock()
		u.subs.subs = subSnap
		u.subs.mu.Unlock()
		u.ledger.mu.Lock()
		u.ledger.txs = u.ledger.txs[:ledgerLen]
		u.ledger.mu.Unlock()
		return err
	}
	return nil
}

type fixture struct {
	engine   *Engine
	funds    *memFunds
	accounts *memAccounts
	subs     *memSubs
	ledger   *memLedger
}

func newFixture() *fixture {
	funds := &memFunds{funds: map[string]model.Fund{
		"f001": {FundID: "f001", Name: "FPV Renta Fija Conservadora", MinAmount: 50000, Category: "FPV"},
	}}
	accounts := &memAccounts{accounts: map[string]model.Account{
		"u001": {UserID: "u001", Name: "Ana", Email: "ana@example.com", Balance: 500000, NotifyChannel: model.ChannelEmail},
	}}
	subs := &memSubs{subs: map[string]model.Subscription{}}
	ledger := &memLedger{}
	uow := &memUow{accounts: accounts, subs: subs, ledger: ledger}

	engine := NewEngine(funds, accounts, subs, ledger, uow)
	engine.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return &fixture{engine: engine, funds: funds, accounts: accounts, subs: subs, ledger: ledger}
}

func subscribeReq(amount int64) model.SubscribeRequest {
	return model.SubscribeRequest{
		UserID:        "u001",
		FundID:        "f001",
		Amount:        amount,
		NotifyChannel: model.ChannelEmail,
	}
}

func TestSubscribe(t *testing.T) {
	f := newFixture()

	sub, err := f.engine.Subscribe(context.Background(), subscribeReq(100000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sub.Status != model.StatusActive || sub.Amount != 100000 {
		t.Errorf("unexpected subscription: %+v", sub)
	}

	acct := f.accounts.accounts["u001"]
	if acct.Balance != 400000 {
		t.Errorf("balance = %d, want 400000", acct.Balance)
	}

	if len(f.ledger.txs) != 1 {
		t.Fatalf("ledger entries = %d, want 1", len(f.ledger.txs))
	}
	tx := f.ledger.txs[0]
	if tx.Type != model.TxOpen || tx.PrevBalance != 500000 || tx.NewBalance != 400000 || tx.Amount != 100000 {
		t.Errorf("unexpected ledger entry: %+v", tx)
	}
}

func TestSubscribeMinAmountBoundary(t *testing.T) {
	f := newFixture()

	if _, err := f.engine.Subscribe(context.Background(), subscribeReq(50000)); err != nil {
		t.Fatalf("amount == min_amount should succeed, got %v", err)
	}

	f = newFixture()
	_, err := f.engine.Subscribe(context.Background(), subscribeReq(49999))
	if !errors.Is(err, model.ErrMinAmount) {
		t.Fatalf("expected ErrMinAmount, got %v", err)
	}
	if !strings.Contains(err.Error(), "FPV Renta Fija Conservadora") {
		t.Errorf("error message must carry the fund name: %v", err)
	}
}

func TestSubscribeInsufficientBalance(t *testing.T) {
	f := newFixture()

	_, err := f.engine.Subscribe(context.Background(), subscribeReq(500001))
	if !errors.Is(err, model.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if !strings.Contains(err.Error(), "FPV Renta Fija Conservadora") {
		t.Errorf("error message must carry the fund name: %v", err)
	}

	if got := f.accounts.accounts["u001"].Balance; got != 500000 {
		t.Errorf("balance mutated to %d on a rejected subscribe", got)
	}
	if len(f.ledger.txs) != 0 {
		t.Errorf("rejected subscribe appended %d ledger entries", len(f.ledger.txs))
	}
	if len(f.subs.subs) != 0 {
		t.Errorf("rejected subscribe stored a subscription")
	}
}

func TestSubscribeValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.engine.Subscribe(ctx, subscribeReq(0)); !errors.Is(err, model.ErrInvalidAmount) {
		t.Errorf("zero amount: got %v", err)
	}

	req := subscribeReq(100000)
	req.NotifyChannel = "pigeon"
	if _, err := f.engine.Subscribe(ctx, req); !errors.Is(err, model.ErrInvalidChannel) {
		t.Errorf("bad channel: got %v", err)
	}

	req = subscribeReq(100000)
	req.FundID = "missing"
	if _, err := f.engine.Subscribe(ctx, req); !errors.Is(err, model.ErrFundNotFound) {
		t.Errorf("missing fund: got %v", err)
	}

	req = subscribeReq(100000)
	req.UserID = "missing"
	if _, err := f.engine.Subscribe(ctx, req); !errors.Is(err, model.ErrUserNotFound) {
		t.Errorf("missing user: got %v", err)
	}
}

func TestSubscribeDuplicateActive(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.engine.Subscribe(ctx, subscribeReq(100000)); err != nil {
		t.Fatalf("first subscribe: %v", err)
	}
	_, err := f.engine.Subscribe(ctx, subscribeReq(100000))
	if !errors.Is(err, model.ErrDuplicateSubscription) {
		t.Fatalf("expected ErrDuplicateSubscription, got %v", err)
	}

	// The balance deduction of the failed attempt must have rolled back.
	if got := f.accounts.accounts["u001"].Balance; got != 400000 {
		t.Errorf("balance = %d after duplicate attempt, want 400000", got)
	}
	if len(f.ledger.txs) != 1 {
		t.Errorf("ledger entries = %d, want 1", len(f.ledger.txs))
	}
}

func TestCancel(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.engine.Subscribe(ctx, subscribeReq(100000)); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	sub, err := f.engine.Cancel(ctx, model.CancelRequest{UserID: "u001", FundID: "f001"})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if sub.Status != model.StatusCancelled || sub.CancelledAt == nil {
		t.Errorf("unexpected cancelled subscription: %+v", sub)
	}

	if got := f.accounts.accounts["u001"].Balance; got != 500000 {
		t.Errorf("balance = %d after refund, want 500000", got)
	}

	if len(f.ledger.txs) != 2 {
		t.Fatalf("ledger entries = %d, want 2", len(f.ledger.txs))
	}
	tx := f.ledger.txs[1]
	if tx.Type != model.TxCancel || tx.PrevBalance != 400000 || tx.NewBalance != 500000 || tx.Amount != 100000 {
		t.Errorf("unexpected cancel ledger entry: %+v", tx)
	}
}

func TestCancelTwice(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.engine.Subscribe(ctx, subscribeReq(100000)); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if _, err := f.engine.Cancel(ctx, model.CancelRequest{UserID: "u001", FundID: "f001"}); err != nil {
		t.Fatalf("first cancel: %v", err)
	}

	_, err := f.engine.Cancel(ctx, model.CancelRequest{UserID: "u001", FundID: "f001"})
	if !errors.Is(err, model.ErrAlreadyCancelled) {
		t.Fatalf("expected ErrAlreadyCancelled, got %v", err)
	}
	if got := f.accounts.accounts["u001"].Balance; got != 500000 {
		t.Errorf("second cancel changed balance to %d", got)
	}
}

func TestCancelWithoutSubscription(t *testing.T) {
	f := newFixture()

	_, err := f.engine.Cancel(context.Background(), model.CancelRequest{UserID: "u001", FundID: "f001"})
	if !errors.Is(err, model.ErrSubscriptionNotFound) {
		t.Fatalf("expected ErrSubscriptionNotFound, got %v", err)
	}
}

func TestResubscribeAfterCancel(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.engine.Subscribe(ctx, subscribeReq(100000)); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if _, err := f.engine.Cancel(ctx, model.CancelRequest{UserID: "u001", FundID: "f001"}); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	sub, err := f.engine.Subscribe(ctx, subscribeReq(60000))
	if err != nil {
		t.Fatalf("re-subscribe after cancel should succeed, got %v", err)
	}
	if sub.Status != model.StatusActive || sub.Amount != 60000 {
		t.Errorf("unexpected reactivated subscription: %+v", sub)
	}
	if got := f.accounts.accounts["u001"].Balance; got != 440000 {
		t.Errorf("balance = %d, want 440000", got)
	}
}

func TestSubscribeRetriesConflicts(t *testing.T) {
	f := newFixture()
	f.accounts.forceConflict = 2

	if _, err := f.engine.Subscribe(context.Background(), subscribeReq(100000)); err != nil {
		t.Fatalf("subscribe should succeed after retried conflicts, got %v", err)
	}
	if f.accounts.updateCalls != 3 {
		t.Errorf("update calls = %d, want 3", f.accounts.updateCalls)
	}
	if got := f.accounts.accounts["u001"].Balance; got != 400000 {
		t.Errorf("balance = %d, want 400000", got)
	}
}

func TestSubscribeConflictExhausted(t *testing.T) {
	f := newFixture()
	f.accounts.forceConflict = 100

	_, err := f.engine.Subscribe(context.Background(), subscribeReq(100000))
	if !errors.Is(err, model.ErrConflict) {
		t.Fatalf("expected ErrConflict after exhausted retries, got %v", err)
	}
	if got := f.accounts.accounts["u001"].Balance; got != 500000 {
		t.Errorf("balance = %d after failed subscribe, want 500000", got)
	}
	if len(f.ledger.txs) != 0 {
		t.Errorf("failed subscribe appended %d ledger entries", len(f.ledger.txs))
	}
}

func TestConcurrentSubscribesNeverOverspend(t *testing.T) {
	f := newFixture()
	f.funds.funds["f002"] = model.Fund{FundID: "f002", Name: "ETF S&P 500 USD", MinAmount: 100000, Category: "ETF"}

	// Balance covers only one of the two 300000 subscriptions.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	reqs := []model.SubscribeRequest{
		{UserID: "u001", FundID: "f001", Amount: 300000, NotifyChannel: model.ChannelEmail},
		{UserID: "u001", FundID: "f002", Amount: 300000, NotifyChannel: model.ChannelEmail},
	}
	for i := range reqs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.engine.Subscribe(context.Background(), reqs[i])
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		} else if !errors.Is(err, model.ErrInsufficientBalance) && !errors.Is(err, model.ErrConflict) {
			t.Errorf("unexpected error class: %v", err)
		}
	}
	if successes != 1 {
		t.Errorf("successes = %d, want exactly 1", successes)
	}
	if got := f.accounts.accounts["u001"].Balance; got < 0 {
		t.Errorf("balance went negative: %d", got)
	}
	if got := f.accounts.accounts["u001"].Balance; got != 200000 {
		t.Errorf("balance = %d, want 200000", got)
	}
}

func TestCreateUser(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	acct, err := f.engine.CreateUser(ctx, model.CreateUserRequest{
		Name:           "Eve",
		Email:          "eve@example.com",
		InitialBalance: 300000,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if len(acct.UserID) != 10 || acct.UserID[0] != 'u' {
		t.Errorf("generated user id %q, want u + 9 digits", acct.UserID)
	}
	if acct.NotifyChannel != model.ChannelEmail {
		t.Errorf("default channel = %q, want email", acct.NotifyChannel)
	}

	_, err = f.engine.CreateUser(ctx, model.CreateUserRequest{UserID: "u001", Email: "dup@example.com"})
	if !errors.Is(err, model.ErrDuplicateUser) {
		t.Errorf("expected ErrDuplicateUser, got %v", err)
	}
}
