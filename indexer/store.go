/*
Package indexer replays Identity Registry notifications into a local SQLite
database and serves queries which are not available on chain, leaderboard
first of all.

Notifications are applied block by block in chain order. Every block is
applied atomically together with the sync cursor, so the database always
reflects some prefix of the chain and can be safely resumed after restart.
*/
package indexer

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/nspcc-dev/idrep-contract/contracts/registry/registryconst"
	"github.com/nspcc-dev/idrep-contract/rpc/registry"
	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/util"
)

const (
	dirPermissions = 0750

	msPerSecond = 1000

	connectionTimeout = 5 * time.Second
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var (
	// ErrHeightGap is returned by ApplyBlock when the block is not the next one
	// after the last applied block.
	ErrHeightGap = errors.New("block height gap")

	// ErrInconsistent is returned by CheckConsistency when indexed data
	// violates registry invariants.
	ErrInconsistent = errors.New("inconsistent registry state")

	// ErrInvalidLimit is returned by Leaderboard for non-positive limits.
	ErrInvalidLimit = errors.New("invalid leaderboard limit")

	errOverflow = errors.New("reputation overflow")
)

// Config contains indexer database options.
type Config struct {
	// Path to the SQLite database file. Parent directory is created if needed.
	Path string
	// WALMode enables Write-Ahead Logging.
	WALMode bool
	// BusyTimeout is the time to wait for a database lock in seconds.
	BusyTimeout int
}

// Profile is an indexed registry profile.
type Profile struct {
	Account     util.Uint160
	Registered  bool
	MetadataURI string
	Reputation  int64
}

// Store is the SQLite-backed registry state replayed from notifications.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the database at cfg.Path and migrates
// its schema to the latest version.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), dirPermissions); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_busy_timeout=%d", cfg.Path, cfg.BusyTimeout*msPerSecond)
	if cfg.WALMode {
		connStr += "&_journal_mode=WAL&_synchronous=NORMAL"
	}

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite supports only one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("verify database connection: %w", err)
	}

	if err := migrateUp(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("init migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}

	// m.Close() is not called since it closes the database shared with Store.
	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// Height returns the number of blocks applied to the store, i.e. the index of
// the next block to apply.
func (s *Store) Height(ctx context.Context) (uint32, error) {
	return height(ctx, s.db)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func height(ctx context.Context, q queryer) (uint32, error) {
	var h int64
	err := q.QueryRowContext(ctx, "SELECT next_block FROM sync_cursor WHERE id = 0").Scan(&h)
	if err != nil {
		return 0, fmt.Errorf("read sync cursor: %w", err)
	}
	return uint32(h), nil
}

// ApplyBlock applies registry events of the block with the given index. Events
// must be passed in the order of their emission. The whole block is applied in
// a single database transaction. Blocks that are already applied are skipped,
// applying a block after a missing one results in ErrHeightGap. It returns true
// if the block has been applied.
func (s *Store) ApplyBlock(ctx context.Context, index uint32, events []registry.Event) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	next, err := height(ctx, tx)
	if err != nil {
		return false, err
	}

	switch {
	case index < next:
		return false, nil
	case index > next:
		return false, fmt.Errorf("%w: expected block %d, got %d", ErrHeightGap, next, index)
	}

	for i := range events {
		if err := applyEvent(ctx, tx, events[i]); err != nil {
			return false, fmt.Errorf("block %d, event #%d: %w", index, i, err)
		}
	}

	_, err = tx.ExecContext(ctx, "UPDATE sync_cursor SET next_block = ? WHERE id = 0", int64(index)+1)
	if err != nil {
		return false, fmt.Errorf("update sync cursor: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit block %d: %w", index, err)
	}

	return true, nil
}

func applyEvent(ctx context.Context, tx *sql.Tx, e registry.Event) error {
	switch ev := e.(type) {
	case *registry.RegisteredEvent:
		return setMetadata(ctx, tx, ev.Account, ev.MetadataURI)
	case *registry.MetadataUpdatedEvent:
		return setMetadata(ctx, tx, ev.Account, ev.MetadataURI)
	case *registry.ReputationGivenEvent:
		if ev.Amount == nil || !ev.Amount.IsInt64() ||
			ev.Amount.Int64() < registryconst.MinAmount || ev.Amount.Int64() > registryconst.MaxAmount {
			return fmt.Errorf("invalid reputation amount %v", ev.Amount)
		}
		return addReputation(ctx, tx, ev.From, ev.To, ev.Amount.Int64())
	default:
		return fmt.Errorf("unexpected event type %T", e)
	}
}

func setMetadata(ctx context.Context, tx *sql.Tx, acc util.Uint160, uri string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO profiles (account, registered, metadata_uri) VALUES (?, 1, ?)
ON CONFLICT (account) DO UPDATE SET registered = 1, metadata_uri = excluded.metadata_uri`,
		address.Uint160ToString(acc), uri)
	if err != nil {
		return fmt.Errorf("write profile: %w", err)
	}
	return nil
}

func addReputation(ctx context.Context, tx *sql.Tx, from, to util.Uint160, amount int64) error {
	toAddr := address.Uint160ToString(to)

	var rep int64
	err := tx.QueryRowContext(ctx, "SELECT reputation FROM profiles WHERE account = ?", toAddr).Scan(&rep)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read profile: %w", err)
	}
	if rep > math.MaxInt64-amount {
		return errOverflow
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO transfers (giver, recipient, given) VALUES (?, ?, ?)
ON CONFLICT (giver, recipient) DO UPDATE SET given = given + excluded.given`,
		address.Uint160ToString(from), toAddr, amount)
	if err != nil {
		return fmt.Errorf("write transfer: %w", err)
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO profiles (account, reputation) VALUES (?, ?)
ON CONFLICT (account) DO UPDATE SET reputation = reputation + excluded.reputation`,
		toAddr, amount)
	if err != nil {
		return fmt.Errorf("write profile: %w", err)
	}

	return nil
}

// Profile returns indexed profile of the account. Unknown accounts get zero
// profile.
func (s *Store) Profile(ctx context.Context, acc util.Uint160) (Profile, error) {
	p := Profile{Account: acc}

	err := s.db.QueryRowContext(ctx,
		"SELECT registered, metadata_uri, reputation FROM profiles WHERE account = ?",
		address.Uint160ToString(acc),
	).Scan(&p.Registered, &p.MetadataURI, &p.Reputation)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Profile{}, fmt.Errorf("read profile: %w", err)
	}

	return p, nil
}

// Given returns total amount of reputation given by one account to another.
func (s *Store) Given(ctx context.Context, from, to util.Uint160) (int64, error) {
	var given int64

	err := s.db.QueryRowContext(ctx,
		"SELECT given FROM transfers WHERE giver = ? AND recipient = ?",
		address.Uint160ToString(from), address.Uint160ToString(to),
	).Scan(&given)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("read transfer: %w", err)
	}

	return given, nil
}

// Leaderboard returns at most limit profiles with the highest reputation.
// Profiles with equal reputation are ordered by account address. Limit must be
// positive, ErrInvalidLimit is returned otherwise.
func (s *Store) Leaderboard(ctx context.Context, limit int) ([]Profile, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT account, registered, metadata_uri, reputation
FROM profiles ORDER BY reputation DESC, account ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	var res []Profile
	for rows.Next() {
		var (
			p    Profile
			addr string
		)

		if err := rows.Scan(&addr, &p.Registered, &p.MetadataURI, &p.Reputation); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}

		p.Account, err = address.StringToUint160(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid account %s: %w", addr, err)
		}

		res = append(res, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leaderboard: %w", err)
	}

	return res, nil
}

// CheckConsistency verifies that reputation of every indexed account equals
// the sum of reputation given to it and that no pair exceeds the cap.
func (s *Store) CheckConsistency(ctx context.Context) error {
	var broken string

	err := s.db.QueryRowContext(ctx, `SELECT p.account FROM profiles p
LEFT JOIN (SELECT recipient, SUM(given) AS total FROM transfers GROUP BY recipient) t
ON t.recipient = p.account
WHERE p.reputation != COALESCE(t.total, 0)
LIMIT 1`).Scan(&broken)
	switch {
	case err == nil:
		return fmt.Errorf("%w: reputation of %s differs from the sum of transfers", ErrInconsistent, broken)
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("check reputation: %w", err)
	}

	var orphans int
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transfers t
LEFT JOIN profiles p ON p.account = t.recipient WHERE p.account IS NULL`).Scan(&orphans)
	if err != nil {
		return fmt.Errorf("check transfers: %w", err)
	}
	if orphans != 0 {
		return fmt.Errorf("%w: %d transfers to unknown accounts", ErrInconsistent, orphans)
	}

	var overCap int
	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transfers WHERE given > ?",
		registryconst.MaxPerPair).Scan(&overCap)
	if err != nil {
		return fmt.Errorf("check transfer cap: %w", err)
	}
	if overCap != 0 {
		return fmt.Errorf("%w: %d transfers exceed the cap", ErrInconsistent, overCap)
	}

	return nil
}
