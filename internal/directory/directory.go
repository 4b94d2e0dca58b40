// Package directory is the account/proxy directory: credentials, proxy
// bindings, fake identities, deposit addresses and pools. The trading core
// consumes it through the Directory interface; the sqlite store is the
// production implementation and tests substitute in-memory fakes.
package directory

import (
	"context"
	"errors"
	"fmt"

	bptypes "github.com/backfarm/poolbot/backpack/types"
)

// ErrNoFreeProxy is returned by claim/rotate when the directory has no
// unused proxy left. Non-fatal: the caller continues without a proxy or
// skips the account's cycle.
var ErrNoFreeProxy = errors.New("no free proxy available")

// Account is one trading account. Sub-accounts reference their main account
// via ParentID; main accounts have none.
type Account struct {
	ID       int64
	ParentID *int64
	Label    string
	Wallet   string
	APIKey   string
	Country  string
}

// IsMain reports whether the account is a main (funding) account.
func (a Account) IsMain() bool { return a.ParentID == nil }

// Credential is the immutable API keypair owned by exactly one account.
type Credential struct {
	APIKey    string
	APISecret string // base64 Ed25519 seed
}

// Proxy is one SOCKS5 proxy row. At most one proxy is in use per account at
// any time; the store enforces that inside its rotation transaction.
type Proxy struct {
	ID        int64
	AccountID *int64
	Host      string
	Port      int
	Login     string
	Password  string
	Country   string
	InUse     bool
}

// URL renders the socks5 URL the transport expects.
func (p Proxy) URL() string {
	return fmt.Sprintf("socks5://%s:%s@%s:%d", p.Login, p.Password, p.Host, p.Port)
}

// FakeIdentity is an account's anti-fingerprinting headers and cookies.
// Maps are never nil, possibly empty.
type FakeIdentity struct {
	Headers map[string]string
	Cookies map[string]string
}

// DepositAddress is an account's on-chain deposit address for one chain.
type DepositAddress struct {
	AccountID int64
	Chain     string
	Address   string
}

// Pool is one trading pool; Settings holds the pool's JSON policy blob.
type Pool struct {
	ID       int64
	Name     string
	Active   bool
	Settings []byte
}

// Directory is the lookup/rotation surface the trading core depends on.
type Directory interface {
	ActivePools(ctx context.Context) ([]Pool, error)
	MainAccounts(ctx context.Context) ([]Account, error)
	SubAccounts(ctx context.Context, mainID int64) ([]Account, error)

	FindCredential(ctx context.Context, accountID int64) (Credential, error)
	FindFakeIdentity(ctx context.Context, accountID int64) (*FakeIdentity, error)
	FindDepositAddress(ctx context.Context, accountID int64, chain string) (string, error)

	FindActiveProxy(ctx context.Context, accountID int64) (*Proxy, error)
	ReleaseProxy(ctx context.Context, proxyID int64) error
	ClaimFreeProxy(ctx context.Context, accountID int64, preferredCountry string) (*Proxy, error)

	// RotateProxy atomically releases the account's bound proxy and claims a
	// fresh one preferring the same country. When nothing is claimable the
	// release still commits and ErrNoFreeProxy is returned.
	RotateProxy(ctx context.Context, accountID int64) (*Proxy, error)
}

// Rotator adapts the Directory to the exchange client's ProxyRotator.
type Rotator struct {
	Dir       Directory
	AccountID int64
}

// Rotate implements client.ProxyRotator.
func (r Rotator) Rotate(ctx context.Context) (string, error) {
	proxy, err := r.Dir.RotateProxy(ctx, r.AccountID)
	if err != nil {
		if errors.Is(err, ErrNoFreeProxy) {
			return "", bptypes.NewError(bptypes.KindNoFreeProxy,
				"account %d: %v", r.AccountID, err)
		}
		return "", err
	}
	return proxy.URL(), nil
}
