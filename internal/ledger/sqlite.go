package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/gagliardetto/solana-go"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `create table if not exists accounts(
	key text primary key,
	data blob not null,
	slot integer not null
);`

// SQLite persists accounts in one table keyed by the base58 account key.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("ledger: open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: ping %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: init schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Get(ctx context.Context, key solana.PublicKey) (Account, error) {
	var (
		data []byte
		slot int64
	)
	err := s.db.QueryRowContext(ctx, `select data, slot from accounts where key = ?`, EncodeKey(key)).Scan(&data, &slot)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, fmt.Errorf("ledger: get %s: %w", key, err)
	}
	return Account{Key: key, Data: data, Slot: uint64(slot)}, nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLite) Put(ctx context.Context, acc Account) error {
	return put(ctx, s.db, acc)
}

func (s *SQLite) Delete(ctx context.Context, key solana.PublicKey) error {
	return del(ctx, s.db, key)
}

// Apply runs the batch in one transaction.
func (s *SQLite) Apply(ctx context.Context, b Batch) (err error) {
	if b.Empty() {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ledger: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for _, acc := range b.Puts {
		if err = put(ctx, tx, acc); err != nil {
			return err
		}
	}
	for _, key := range b.Deletes {
		if err = del(ctx, tx, key); err != nil {
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("ledger: commit: %w", err)
	}
	return nil
}

func put(ctx context.Context, db execer, acc Account) error {
	if acc.Slot > math.MaxInt64 {
		return fmt.Errorf("ledger: slot %d out of range", acc.Slot)
	}
	data := acc.Data
	if data == nil {
		data = []byte{}
	}
	_, err := db.ExecContext(ctx, `insert into accounts (key, data, slot) values (?, ?, ?)
		on conflict(key) do update set data = excluded.data, slot = excluded.slot`,
		EncodeKey(acc.Key), data, int64(acc.Slot))
	if err != nil {
		return fmt.Errorf("ledger: put %s: %w", acc.Key, err)
	}
	return nil
}

func del(ctx context.Context, db execer, key solana.PublicKey) error {
	if _, err := db.ExecContext(ctx, `delete from accounts where key = ?`, EncodeKey(key)); err != nil {
		return fmt.Errorf("ledger: delete %s: %w", key, err)
	}
	return nil
}

func (s *SQLite) List(ctx context.Context) ([]Account, error) {
	rows, err := s.db.QueryContext(ctx, `select key, data, slot from accounts`)
	if err != nil {
		return nil, fmt.Errorf("ledger: list: %w", err)
	}
	defer rows.Close()

	var out []Account
	for rows.Next() {
		var (
			text string
			acc  Account
			slot int64
		)
		if err := rows.Scan(&text, &acc.Data, &slot); err != nil {
			return nil, fmt.Errorf("ledger: list: %w", err)
		}
		if acc.Key, err = DecodeKey(text); err != nil {
			return nil, err
		}
		acc.Slot = uint64(slot)
		out = append(out, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: list: %w", err)
	}
	sortAccounts(out)
	return out, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
