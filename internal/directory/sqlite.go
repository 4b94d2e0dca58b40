package directory

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// Store is the sqlite-backed Directory.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the directory database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open directory db")
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA foreign_keys=ON;`,
		`
CREATE TABLE IF NOT EXISTS accounts (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  parent_id INTEGER REFERENCES accounts(id),
  label TEXT NOT NULL DEFAULT '',
  wallet TEXT NOT NULL DEFAULT '',
  api_key TEXT NOT NULL,
  api_secret TEXT NOT NULL,
  country TEXT NOT NULL DEFAULT ''
);`,
		`
CREATE TABLE IF NOT EXISTS proxies (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  account_id INTEGER REFERENCES accounts(id),
  host TEXT NOT NULL,
  port INTEGER NOT NULL,
  login TEXT NOT NULL DEFAULT '',
  password TEXT NOT NULL DEFAULT '',
  country TEXT NOT NULL DEFAULT '',
  in_use INTEGER NOT NULL DEFAULT 0
);`,
		`
CREATE TABLE IF NOT EXISTS fake_identities (
  account_id INTEGER PRIMARY KEY REFERENCES accounts(id),
  headers TEXT NOT NULL DEFAULT '{}',
  cookies TEXT NOT NULL DEFAULT '{}'
);`,
		`
CREATE TABLE IF NOT EXISTS deposit_addresses (
  account_id INTEGER NOT NULL REFERENCES accounts(id),
  chain TEXT NOT NULL,
  address TEXT NOT NULL,
  PRIMARY KEY (account_id, chain)
);`,
		`
CREATE TABLE IF NOT EXISTS pools (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL,
  active INTEGER NOT NULL DEFAULT 1,
  settings TEXT NOT NULL DEFAULT '{}'
);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return errors.Wrapf(err, "migrate: %.40s", stmt)
		}
	}
	return nil
}

func (s *Store) ActivePools(ctx context.Context) ([]Pool, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, name, active, settings FROM pools WHERE active=1 ORDER BY id
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Pool
	for rows.Next() {
		var p Pool
		var settings string
		if err := rows.Scan(&p.ID, &p.Name, &p.Active, &settings); err != nil {
			return nil, err
		}
		p.Settings = []byte(settings)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) MainAccounts(ctx context.Context) ([]Account, error) {
	return s.queryAccounts(ctx, `
SELECT id, parent_id, label, wallet, api_key, country
FROM accounts WHERE parent_id IS NULL ORDER BY id
`)
}

func (s *Store) SubAccounts(ctx context.Context, mainID int64) ([]Account, error) {
	return s.queryAccounts(ctx, `
SELECT id, parent_id, label, wallet, api_key, country
FROM accounts WHERE parent_id=? ORDER BY id
`, mainID)
}

func (s *Store) queryAccounts(ctx context.Context, query string, args ...any) ([]Account, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Account
	for rows.Next() {
		var a Account
		var parent sql.NullInt64
		if err := rows.Scan(&a.ID, &parent, &a.Label, &a.Wallet, &a.APIKey, &a.Country); err != nil {
			return nil, err
		}
		if parent.Valid {
			a.ParentID = &parent.Int64
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) FindCredential(ctx context.Context, accountID int64) (Credential, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT api_key, api_secret FROM accounts WHERE id=?
`, accountID)
	var c Credential
	if err := row.Scan(&c.APIKey, &c.APISecret); err != nil {
		return Credential{}, errors.Wrapf(err, "credential for account %d", accountID)
	}
	return c, nil
}

func (s *Store) FindFakeIdentity(ctx context.Context, accountID int64) (*FakeIdentity, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT headers, cookies FROM fake_identities WHERE account_id=?
`, accountID)
	var headers, cookies string
	if err := row.Scan(&headers, &cookies); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	identity := &FakeIdentity{
		Headers: map[string]string{},
		Cookies: map[string]string{},
	}
	if err := json.Unmarshal([]byte(headers), &identity.Headers); err != nil {
		return nil, errors.Wrapf(err, "fake headers for account %d", accountID)
	}
	if err := json.Unmarshal([]byte(cookies), &identity.Cookies); err != nil {
		return nil, errors.Wrapf(err, "fake cookies for account %d", accountID)
	}
	return identity, nil
}

func (s *Store) FindDepositAddress(ctx context.Context, accountID int64, chain string) (string, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT address FROM deposit_addresses WHERE account_id=? AND chain=?
`, accountID, chain)
	var address string
	if err := row.Scan(&address); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return address, nil
}

func (s *Store) FindActiveProxy(ctx context.Context, accountID int64) (*Proxy, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, account_id, host, port, login, password, country, in_use
FROM proxies WHERE account_id=? AND in_use=1
`, accountID)
	proxy, err := scanProxy(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return proxy, nil
}

func (s *Store) ReleaseProxy(ctx context.Context, proxyID int64) error {
	_, err := s.db.ExecContext(ctx, `
UPDATE proxies SET in_use=0, account_id=NULL WHERE id=?
`, proxyID)
	return err
}

func (s *Store) ClaimFreeProxy(ctx context.Context, accountID int64, preferredCountry string) (*Proxy, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	proxy, err := claimInTx(ctx, tx, accountID, preferredCountry, 0)
	if err != nil {
		return nil, err
	}
	return proxy, tx.Commit()
}

// RotateProxy releases the account's bound proxy and claims a fresh one in a
// single transaction, so no reader ever observes two proxies in use for one
// account. The released proxy is never re-claimed in the same rotation; with
// nothing else claimable the release still commits and the caller gets
// ErrNoFreeProxy.
func (s *Store) RotateProxy(ctx context.Context, accountID int64) (*Proxy, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var country string
	if err := tx.QueryRowContext(ctx,
		`SELECT country FROM accounts WHERE id=?`, accountID,
	).Scan(&country); err != nil {
		return nil, errors.Wrapf(err, "rotate proxy: account %d", accountID)
	}

	var oldID int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM proxies WHERE account_id=? AND in_use=1`, accountID,
	).Scan(&oldID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
UPDATE proxies SET in_use=0, account_id=NULL WHERE account_id=? AND in_use=1
`, accountID); err != nil {
		return nil, err
	}

	proxy, err := claimInTx(ctx, tx, accountID, country, oldID)
	if err != nil {
		if errors.Is(err, ErrNoFreeProxy) {
			// Release-but-don't-claim: keep the freed proxy visible.
			if commitErr := tx.Commit(); commitErr != nil {
				return nil, commitErr
			}
		}
		return nil, err
	}
	return proxy, tx.Commit()
}

// claimInTx picks the best free proxy, preferring the account's country.
// excludeID keeps a just-released proxy out of the candidate set; zero means
// no exclusion.
func claimInTx(ctx context.Context, tx *sql.Tx, accountID int64, preferredCountry string, excludeID int64) (*Proxy, error) {
	row := tx.QueryRowContext(ctx, `
SELECT id, account_id, host, port, login, password, country, in_use
FROM proxies
WHERE in_use=0 AND account_id IS NULL AND id != ?
ORDER BY CASE WHEN country=? THEN 0 ELSE 1 END, id
LIMIT 1
`, excludeID, preferredCountry)
	proxy, err := scanProxy(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoFreeProxy
		}
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
UPDATE proxies SET in_use=1, account_id=? WHERE id=?
`, accountID, proxy.ID); err != nil {
		return nil, err
	}
	proxy.InUse = true
	proxy.AccountID = &accountID
	return proxy, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProxy(row rowScanner) (*Proxy, error) {
	var p Proxy
	var account sql.NullInt64
	if err := row.Scan(&p.ID, &account, &p.Host, &p.Port, &p.Login, &p.Password, &p.Country, &p.InUse); err != nil {
		return nil, err
	}
	if account.Valid {
		p.AccountID = &account.Int64
	}
	return &p, nil
}
