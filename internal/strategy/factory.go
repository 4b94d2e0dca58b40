package strategy

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/backfarm/poolbot/backpack/client"
	"github.com/backfarm/poolbot/internal/directory"
)

// FactoryConfig carries the transport settings shared by every account
// client built from the directory.
type FactoryConfig struct {
	BaseURL string
	Window  int64
}

// NewDirectoryFactory returns a ClientFactory that assembles a signed,
// proxy-bound exchange client from an account's directory rows: credential,
// currently bound proxy and fake identity. The rotator wires proxy failover
// back into the same directory.
func NewDirectoryFactory(dir directory.Directory, cfg FactoryConfig) ClientFactory {
	return func(ctx context.Context, account directory.Account) (Exchange, error) {
		cred, err := dir.FindCredential(ctx, account.ID)
		if err != nil {
			return nil, err
		}

		clientCfg := client.Config{
			BaseURL:   cfg.BaseURL,
			APIKey:    cred.APIKey,
			APISecret: cred.APISecret,
			Window:    cfg.Window,
			Rotator:   directory.Rotator{Dir: dir, AccountID: account.ID},
			Log:       log.WithField("account", account.ID),
		}

		if proxy, err := dir.FindActiveProxy(ctx, account.ID); err != nil {
			return nil, err
		} else if proxy != nil {
			clientCfg.ProxyURL = proxy.URL()
		}

		if identity, err := dir.FindFakeIdentity(ctx, account.ID); err != nil {
			return nil, err
		} else if identity != nil {
			clientCfg.FakeHeaders = identity.Headers
			clientCfg.Cookies = identity.Cookies
		}

		return client.New(clientCfg)
	}
}
