package strategy

import (
	"context"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/backfarm/poolbot/backpack/types"
	"github.com/backfarm/poolbot/internal/directory"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func intptr(v int64) *int64 { return &v }

// fakeDirectory serves fixed rows; it never touches sqlite.
type fakeDirectory struct {
	pools     []directory.Pool
	mains     []directory.Account
	subs      map[int64][]directory.Account
	addresses map[int64]string
}

func (d *fakeDirectory) ActivePools(ctx context.Context) ([]directory.Pool, error) {
	return d.pools, nil
}
func (d *fakeDirectory) MainAccounts(ctx context.Context) ([]directory.Account, error) {
	return d.mains, nil
}
func (d *fakeDirectory) SubAccounts(ctx context.Context, mainID int64) ([]directory.Account, error) {
	return d.subs[mainID], nil
}
func (d *fakeDirectory) FindCredential(ctx context.Context, accountID int64) (directory.Credential, error) {
	return directory.Credential{}, nil
}
func (d *fakeDirectory) FindFakeIdentity(ctx context.Context, accountID int64) (*directory.FakeIdentity, error) {
	return nil, nil
}
func (d *fakeDirectory) FindDepositAddress(ctx context.Context, accountID int64, chain string) (string, error) {
	return d.addresses[accountID], nil
}
func (d *fakeDirectory) FindActiveProxy(ctx context.Context, accountID int64) (*directory.Proxy, error) {
	return nil, nil
}
func (d *fakeDirectory) ReleaseProxy(ctx context.Context, proxyID int64) error { return nil }
func (d *fakeDirectory) ClaimFreeProxy(ctx context.Context, accountID int64, preferredCountry string) (*directory.Proxy, error) {
	return nil, directory.ErrNoFreeProxy
}
func (d *fakeDirectory) RotateProxy(ctx context.Context, accountID int64) (*directory.Proxy, error) {
	return nil, directory.ErrNoFreeProxy
}

// fakeExchange records calls and serves canned market data.
type fakeExchange struct {
	positions []types.FuturesPosition
	balances  types.Balances

	closeAllCalls  int
	leverageCalls  []types.AccountSettingsUpdate
	orders         []types.OrderRequest
	withdrawals    []types.WithdrawalRequest
	rejectedOrders int // reject the first N order submissions
}

func (e *fakeExchange) Balances(ctx context.Context) (types.Balances, error) {
	if e.balances == nil {
		return types.Balances{}, nil
	}
	return e.balances, nil
}

func (e *fakeExchange) BorrowLendPositions(ctx context.Context) ([]types.BorrowLendPosition, error) {
	return nil, nil
}

func (e *fakeExchange) Tickers(ctx context.Context) ([]types.Ticker, error) {
	return []types.Ticker{
		{Symbol: "SOL_USDC", LastPrice: "100"},
		{Symbol: "ETH_USDC_PERP", LastPrice: "2000"},
	}, nil
}

func (e *fakeExchange) OrderBookDepth(ctx context.Context, symbol string) (*types.Depth, error) {
	return &types.Depth{
		Bids: []types.BookLevel{{"99.9", "10.00"}},
		Asks: []types.BookLevel{{"100.1", "10.00"}},
	}, nil
}

func (e *fakeExchange) OpenPositions(ctx context.Context) ([]types.FuturesPosition, error) {
	return e.positions, nil
}

func (e *fakeExchange) CloseAllPerpPositions(ctx context.Context) (types.CloseAllResult, error) {
	e.closeAllCalls++
	closed := len(e.positions)
	e.positions = nil
	return types.CloseAllResult{Closed: closed, Total: closed}, nil
}

func (e *fakeExchange) UpdateAccountSettings(ctx context.Context, update types.AccountSettingsUpdate) error {
	e.leverageCalls = append(e.leverageCalls, update)
	return nil
}

func (e *fakeExchange) CreateOrder(ctx context.Context, req types.OrderRequest) (*types.Order, error) {
	e.orders = append(e.orders, req)
	if e.rejectedOrders > 0 {
		e.rejectedOrders--
		return &types.Order{}, nil // accepted-by-transport but not booked
	}
	return &types.Order{ID: "o", CreatedAt: 1700000000000}, nil
}

func (e *fakeExchange) RequestWithdrawal(ctx context.Context, req types.WithdrawalRequest) (*types.Withdrawal, error) {
	e.withdrawals = append(e.withdrawals, req)
	return &types.Withdrawal{Status: "pending"}, nil
}

type fixture struct {
	dir    *fakeDirectory
	main   *fakeExchange
	sub    *fakeExchange
	runner *Runner
}

func newFixture(t *testing.T, sub *fakeExchange) *fixture {
	t.Helper()
	dir := &fakeDirectory{
		pools: []directory.Pool{{ID: 1, Name: "alpha", Active: true}},
		mains: []directory.Account{{ID: 10, Label: "main"}},
		subs: map[int64][]directory.Account{
			10: {{ID: 11, ParentID: intptr(10), Label: "sub"}},
		},
		addresses: map[int64]string{11: "DepositAddr111"},
	}
	main := &fakeExchange{balances: types.Balances{"USDC": {Available: dec("1000")}}}

	factory := func(ctx context.Context, account directory.Account) (Exchange, error) {
		if account.IsMain() {
			return main, nil
		}
		return sub, nil
	}
	runner := NewRunner(dir, factory, DefaultSettings(), rand.New(rand.NewSource(1)))
	return &fixture{dir: dir, main: main, sub: sub, runner: runner}
}

// A sub-account already holding the target position count is left untouched:
// no closes, no orders, no withdrawals.
func TestRunPoolSkipsBalancedAccount(t *testing.T) {
	sub := &fakeExchange{
		positions: []types.FuturesPosition{
			{Symbol: "SOL_USDC_PERP", NetQuantity: dec("1")},
			{Symbol: "ETH_USDC_PERP", NetQuantity: dec("-0.1")},
		},
	}
	f := newFixture(t, sub)

	f.runner.RunPool(context.Background(), f.dir.pools[0])

	if sub.closeAllCalls != 0 {
		t.Errorf("closeAllCalls = %d, want 0", sub.closeAllCalls)
	}
	if len(sub.orders) != 0 {
		t.Errorf("orders placed = %d, want 0", len(sub.orders))
	}
	if len(f.main.withdrawals) != 0 {
		t.Errorf("withdrawals = %d, want 0", len(f.main.withdrawals))
	}
}

// A partial position count is flattened before new positions open.
func TestRunPoolClosesPartialPositions(t *testing.T) {
	sub := &fakeExchange{
		positions: []types.FuturesPosition{
			{Symbol: "SOL_USDC_PERP", NetQuantity: dec("1")},
		},
		balances: types.Balances{"USDC": {Available: dec("50")}},
	}
	f := newFixture(t, sub)

	f.runner.RunPool(context.Background(), f.dir.pools[0])

	if sub.closeAllCalls != 1 {
		t.Errorf("closeAllCalls = %d, want 1", sub.closeAllCalls)
	}
	if len(sub.orders) != 2 {
		t.Errorf("orders placed = %d, want one per symbol", len(sub.orders))
	}
}

// Full pass over an empty low-balance account: leverage applied, exactly one
// top-up withdrawal to the sub's deposit address, then one hedged market
// order per symbol.
func TestRunPoolFullPass(t *testing.T) {
	sub := &fakeExchange{
		balances: types.Balances{"USDC": {Available: dec("0.05")}},
	}
	f := newFixture(t, sub)

	f.runner.RunPool(context.Background(), f.dir.pools[0])

	if got := len(sub.leverageCalls); got != 1 {
		t.Fatalf("leverage updates = %d, want 1", got)
	}
	if sub.leverageCalls[0].LeverageLimit != "50" {
		t.Errorf("leverage = %s, want 50", sub.leverageCalls[0].LeverageLimit)
	}

	if got := len(f.main.withdrawals); got != 1 {
		t.Fatalf("withdrawals = %d, want 1", got)
	}
	w := f.main.withdrawals[0]
	if w.Address != "DepositAddr111" || w.Symbol != "SOL" || w.Blockchain != types.BlockchainSolana {
		t.Errorf("withdrawal = %+v, want SOL over Solana to DepositAddr111", w)
	}

	if got := len(sub.orders); got != 2 {
		t.Fatalf("orders placed = %d, want one per symbol", got)
	}
	for _, order := range sub.orders {
		if order.OrderType != types.OrderTypeMarket {
			t.Errorf("order type = %s, want Market", order.OrderType)
		}
		if !order.AutoBorrow || !order.AutoLendRedeem {
			t.Errorf("order %+v missing auto-leverage flags", order)
		}
	}
	// Two symbols, one flipped: the sides must oppose.
	if sub.orders[0].Side == sub.orders[1].Side {
		t.Errorf("both orders on side %s, want opposing sides", sub.orders[0].Side)
	}
}

// A well-funded account gets no top-up.
func TestRunPoolNoTopUpWhenFunded(t *testing.T) {
	sub := &fakeExchange{
		balances: types.Balances{"USDC": {Available: dec("500")}},
	}
	f := newFixture(t, sub)

	f.runner.RunPool(context.Background(), f.dir.pools[0])

	if len(f.main.withdrawals) != 0 {
		t.Errorf("withdrawals = %d, want 0", len(f.main.withdrawals))
	}
	if len(sub.orders) != 2 {
		t.Errorf("orders placed = %d, want 2", len(sub.orders))
	}
}

// Unbooked orders walk down the ladder until one is accepted.
func TestLadderStepsDownOnRejection(t *testing.T) {
	sub := &fakeExchange{
		balances:       types.Balances{"USDC": {Available: dec("500")}},
		rejectedOrders: 2,
	}
	f := newFixture(t, sub)

	f.runner.RunPool(context.Background(), f.dir.pools[0])

	// First symbol burns two rejected rungs plus its accepted one, second
	// symbol books immediately.
	if got := len(sub.orders); got != 4 {
		t.Fatalf("order submissions = %d, want 4", got)
	}
	first := sub.orders[:3]
	for i := 1; i < len(first); i++ {
		if first[i].Symbol != first[0].Symbol {
			t.Errorf("ladder retries crossed symbols: %s vs %s", first[i].Symbol, first[0].Symbol)
		}
	}
}

// Broken pool settings skip the whole pool without trading.
func TestRunPoolInvalidSettings(t *testing.T) {
	sub := &fakeExchange{}
	f := newFixture(t, sub)
	f.dir.pools[0].Settings = []byte(`{"leverage": "not a number"`)

	f.runner.RunPool(context.Background(), f.dir.pools[0])

	if len(sub.orders) != 0 || sub.closeAllCalls != 0 {
		t.Error("pool with invalid settings must not trade")
	}
}

func TestParseSettingsOverlay(t *testing.T) {
	blob := []byte(`{"symbols":["BTC_USDC_PERP"],"leverage":10,"min_deposit_usd":"2.5","ladder":["1","0.5"]}`)
	s, err := ParseSettings(blob, DefaultSettings())
	if err != nil {
		t.Fatalf("ParseSettings: %v", err)
	}

	if len(s.Symbols) != 1 || s.Symbols[0] != "BTC_USDC_PERP" {
		t.Errorf("Symbols = %v", s.Symbols)
	}
	if s.Leverage != 10 {
		t.Errorf("Leverage = %d, want 10", s.Leverage)
	}
	if !s.MinDepositUSD.Equal(dec("2.5")) {
		t.Errorf("MinDepositUSD = %s, want 2.5", s.MinDepositUSD)
	}
	if len(s.Ladder) != 2 {
		t.Errorf("Ladder = %v, want 2 rungs", s.Ladder)
	}
	// Untouched fields keep their defaults.
	if s.TargetPositions != 2 || s.TopUpSymbol != "SOL" {
		t.Errorf("defaults leaked: %+v", s)
	}
}

func TestParseSettingsEmptyAndInvalid(t *testing.T) {
	s, err := ParseSettings(nil, DefaultSettings())
	if err != nil {
		t.Fatalf("ParseSettings(nil): %v", err)
	}
	if s.Leverage != DefaultSettings().Leverage {
		t.Error("empty blob must yield the defaults")
	}

	if _, err := ParseSettings([]byte(`{bad`), DefaultSettings()); err == nil {
		t.Error("invalid JSON must be an error")
	}
}
