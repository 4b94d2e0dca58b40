// Package strategy runs the per-pool trading loop: for every sub-account it
// inspects open positions, rebalances or tops up, and places sized orders.
//
// The loop's one hard rule is that no single account's failure may stop the
// batch: every stage converts failures into logged skips and the pass moves
// on to the next sub-account and the next pool.
package strategy

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/backfarm/poolbot/backpack/types"
	"github.com/backfarm/poolbot/internal/directory"
	"github.com/backfarm/poolbot/internal/metrics"
	"github.com/backfarm/poolbot/internal/valuation"
)

// Exchange is the slice of the exchange client the strategy drives.
// *client.Client satisfies it; tests substitute fakes.
type Exchange interface {
	Balances(ctx context.Context) (types.Balances, error)
	BorrowLendPositions(ctx context.Context) ([]types.BorrowLendPosition, error)
	Tickers(ctx context.Context) ([]types.Ticker, error)
	OrderBookDepth(ctx context.Context, symbol string) (*types.Depth, error)
	OpenPositions(ctx context.Context) ([]types.FuturesPosition, error)
	CloseAllPerpPositions(ctx context.Context) (types.CloseAllResult, error)
	UpdateAccountSettings(ctx context.Context, update types.AccountSettingsUpdate) error
	CreateOrder(ctx context.Context, req types.OrderRequest) (*types.Order, error)
	RequestWithdrawal(ctx context.Context, req types.WithdrawalRequest) (*types.Withdrawal, error)
}

// ClientFactory builds an Exchange for one account, wired with its
// credential, bound proxy and fake identity.
type ClientFactory func(ctx context.Context, account directory.Account) (Exchange, error)

// Runner evaluates the trading state machine for every pool once per tick.
type Runner struct {
	dir       directory.Directory
	newClient ClientFactory
	defaults  Settings

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRunner wires a Runner. rng may be nil, in which case a time-seeded
// source is used; tests pass a fixed seed.
func NewRunner(dir directory.Directory, factory ClientFactory, defaults Settings, rng *rand.Rand) *Runner {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Runner{
		dir:       dir,
		newClient: factory,
		defaults:  defaults,
		rng:       rng,
	}
}

// RunAll processes every active pool concurrently and waits for the pass to
// finish. Pools own disjoint credentials and proxy bindings, so fanning out
// is safe; accounts within one pool stay sequential.
func (r *Runner) RunAll(ctx context.Context) {
	start := time.Now()
	defer func() { metrics.ObserveCycle(time.Since(start)) }()

	pools, err := r.dir.ActivePools(ctx)
	if err != nil {
		log.WithError(err).Error("loading active pools")
		return
	}

	var wg sync.WaitGroup
	for _, pool := range pools {
		wg.Add(1)
		go func(pool directory.Pool) {
			defer wg.Done()
			r.RunPool(ctx, pool)
		}(pool)
	}
	wg.Wait()
}

// RunPool evaluates one pool: a random main (funding) account and all of its
// sub-accounts in sequence.
func (r *Runner) RunPool(ctx context.Context, pool directory.Pool) {
	poolLog := log.WithField("pool", pool.ID)

	settings, err := ParseSettings(pool.Settings, r.defaults)
	if err != nil {
		metrics.CountError(pool.Name, "validate_settings")
		poolLog.WithError(err).Error("invalid pool settings, skipping pool")
		return
	}

	mains, err := r.dir.MainAccounts(ctx)
	if err != nil {
		metrics.CountError(pool.Name, "load_accounts")
		poolLog.WithError(err).Error("loading main accounts")
		return
	}
	if len(mains) == 0 {
		poolLog.Warn("no main accounts")
		return
	}
	main := mains[r.intn(len(mains))]

	mainClient, err := r.newClient(ctx, main)
	if err != nil {
		metrics.CountError(pool.Name, "main_client")
		poolLog.WithError(err).WithField("account", main.ID).Error("building main client")
		return
	}

	subs, err := r.dir.SubAccounts(ctx, main.ID)
	if err != nil {
		metrics.CountError(pool.Name, "load_accounts")
		poolLog.WithError(err).Error("loading sub accounts")
		return
	}
	if len(subs) == 0 {
		poolLog.WithField("account", main.ID).Warn("main account has no subs")
		return
	}

	for _, sub := range subs {
		r.runSub(ctx, pool, settings, mainClient, sub)
	}
}

// runSub drives one sub-account through the tick's state machine. Panics are
// recovered here so a single account can never take down the pass.
func (r *Runner) runSub(ctx context.Context, pool directory.Pool, settings Settings, mainClient Exchange, sub directory.Account) {
	subLog := log.WithFields(log.Fields{"pool": pool.ID, "account": sub.ID})
	defer func() {
		if rec := recover(); rec != nil {
			metrics.CountError(pool.Name, "panic")
			subLog.Errorf("recovered panic in sub-account pass: %v", rec)
		}
	}()

	subClient, err := r.newClient(ctx, sub)
	if err != nil {
		metrics.CountError(pool.Name, "sub_client")
		subLog.WithError(err).Error("building sub client, skipping")
		return
	}

	positions, err := subClient.OpenPositions(ctx)
	if err != nil {
		metrics.CountError(pool.Name, "positions")
		subLog.WithError(err).Error("fetching open positions, skipping")
		return
	}

	if len(positions) >= settings.TargetPositions {
		subLog.WithField("positions", len(positions)).Info("already holding target positions, skip")
		return
	}

	if len(positions) > 0 {
		// A partial position count is an inconsistent state: flatten and
		// start the account over.
		result, err := subClient.CloseAllPerpPositions(ctx)
		if err != nil {
			metrics.CountError(pool.Name, "close_positions")
			subLog.WithError(err).Error("closing positions, skipping")
			return
		}
		subLog.WithFields(log.Fields{"closed": result.Closed, "failed": len(result.Failed)}).
			Info("closed partial positions")
	}

	if err := subClient.UpdateAccountSettings(ctx, leverageUpdate(settings.Leverage)); err != nil {
		metrics.CountError(pool.Name, "leverage")
		subLog.WithError(err).Warn("applying leverage settings")
	}

	totalUSD, err := r.totalUSD(ctx, subClient)
	if err != nil {
		metrics.CountError(pool.Name, "valuation")
		subLog.WithError(err).Error("computing total USD balance, skipping")
		return
	}
	subLog.WithField("total_usd", totalUSD.String()).Debug("computed total USD balance")

	if totalUSD.LessThan(settings.MinDepositUSD) {
		r.topUp(ctx, pool, settings, mainClient, sub, subLog)
	}

	r.openPositions(ctx, pool, settings, subClient, totalUSD, subLog)
}

// totalUSD aggregates spot balances, lending exposure and live ticker prices
// into one USD figure.
func (r *Runner) totalUSD(ctx context.Context, ex Exchange) (decimal.Decimal, error) {
	balances, err := ex.Balances(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	positions, err := ex.BorrowLendPositions(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	tickers, err := ex.Tickers(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return valuation.TotalUSDBalance(balances, positions, valuation.PriceMap(tickers)), nil
}

// topUp withdraws the configured funding asset from the main account to the
// sub's deposit address. Any failure aborts only the top-up, never the tick.
func (r *Runner) topUp(ctx context.Context, pool directory.Pool, settings Settings, mainClient Exchange, sub directory.Account, subLog *log.Entry) {
	address, err := r.dir.FindDepositAddress(ctx, sub.ID, settings.TopUpChain)
	if err != nil || address == "" {
		metrics.CountError(pool.Name, "deposit_address")
		subLog.WithError(err).WithField("chain", settings.TopUpChain).
			Error("no deposit address, cannot top up")
		return
	}

	depth, err := mainClient.OrderBookDepth(ctx, settings.FundingPair)
	if err != nil {
		metrics.CountError(pool.Name, "top_up_book")
		subLog.WithError(err).WithField("symbol", settings.FundingPair).
			Error("fetching funding pair book, top-up aborted")
		return
	}

	quantity, err := valuation.SizeOrder(depth.Asks, settings.MinDepositUSD)
	if err != nil {
		metrics.CountError(pool.Name, "top_up_sizing")
		subLog.WithError(err).Error("sizing top-up, aborted")
		return
	}

	withdrawal, err := mainClient.RequestWithdrawal(ctx, types.WithdrawalRequest{
		Address:    address,
		Blockchain: types.Blockchain(settings.TopUpChain),
		Symbol:     settings.TopUpSymbol,
		Quantity:   quantity.String(),
	})
	if err != nil {
		metrics.CountError(pool.Name, "top_up")
		subLog.WithError(err).Error("top-up withdrawal failed")
		return
	}
	subLog.WithFields(log.Fields{
		"quantity": quantity.String(),
		"symbol":   settings.TopUpSymbol,
		"status":   withdrawal.Status,
	}).Info("top-up withdrawal submitted")
}

// openPositions opens one market position per configured symbol. Sides are
// randomized per tick with one symbol flipped to the opposite direction, so
// the pool shows no detectable directional bias. Each symbol walks the
// notional ladder until an order is accepted.
func (r *Runner) openPositions(ctx context.Context, pool directory.Pool, settings Settings, ex Exchange, totalUSD decimal.Decimal, subLog *log.Entry) {
	if len(settings.Symbols) == 0 {
		return
	}

	alloc := totalUSD.Div(decimal.NewFromInt(int64(len(settings.Symbols))))
	primary, opposite := r.pickSides()
	flipped := r.intn(len(settings.Symbols))
	leverage := decimal.NewFromInt(int64(settings.Leverage))

	for idx, symbol := range settings.Symbols {
		side := primary
		if idx == flipped {
			side = opposite
		}

		for _, fraction := range settings.Ladder {
			notional := alloc.Mul(leverage).Mul(fraction)
			order, err := r.placeMarketOrder(ctx, ex, symbol, side, notional)
			if err != nil {
				metrics.CountError(pool.Name, "order")
				subLog.WithError(err).WithFields(log.Fields{"symbol": symbol, "side": side}).
					Warn("order attempt failed, stepping down ladder")
				continue
			}
			if order.Accepted() {
				metrics.CountOrder(pool.Name, "open")
				subLog.WithFields(log.Fields{
					"symbol":   symbol,
					"side":     side,
					"quantity": order.Quantity.String(),
					"notional": notional.String(),
				}).Info("position opened")
				break
			}
			subLog.WithFields(log.Fields{"symbol": symbol, "side": side}).
				Warn("order not booked, stepping down ladder")
		}
	}
}

// placeMarketOrder sizes a market order against the side of the book it
// fills on and submits it with the auto-leverage flags set.
func (r *Runner) placeMarketOrder(ctx context.Context, ex Exchange, symbol string, side types.Side, notional decimal.Decimal) (*types.Order, error) {
	depth, err := ex.OrderBookDepth(ctx, symbol)
	if err != nil {
		return nil, err
	}
	quantity, err := valuation.SizeOrder(depth.SideLevels(side), notional)
	if err != nil {
		return nil, err
	}

	return ex.CreateOrder(ctx, types.OrderRequest{
		Symbol:          symbol,
		Side:            side,
		OrderType:       types.OrderTypeMarket,
		Quantity:        quantity.String(),
		AutoBorrow:      true,
		AutoBorrowRepay: true,
		AutoLend:        true,
		AutoLendRedeem:  true,
	})
}

// pickSides chooses the tick's primary direction at random.
func (r *Runner) pickSides() (types.Side, types.Side) {
	if r.intn(2) == 0 {
		return types.SideBid, types.SideAsk
	}
	return types.SideAsk, types.SideBid
}

// intn serializes access to the shared random source; pools run concurrently.
func (r *Runner) intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Intn(n)
}

func leverageUpdate(leverage int) types.AccountSettingsUpdate {
	return types.AccountSettingsUpdate{
		AutoBorrowSettlements: true,
		AutoLend:              true,
		AutoRepayBorrows:      true,
		LeverageLimit:         strconv.Itoa(leverage),
	}
}
