// Package sqlite backs the chain, keys, paid, derived-view cache, and
// contact-directory stores with a single SQLite database (SPEC_FULL.md
// §3 domain stack: "Persistence engine | github.com/mattn/go-sqlite3
// (bill/keys/cache stores)"), grounded on the pack's database/sql +
// go-sqlite3 usage in `certenIO-certen-validator/accumulate-lite-client-2/
// liteclient/storage/sqlite`. Contacts are included here rather than left
// memory-only so that eventbus's contact-based inbound authorization
// survives a process restart.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	_ "github.com/mattn/go-sqlite3"

	"github.com/bitcredit/ebill/bill"
	"github.com/bitcredit/ebill/block"
	"github.com/bitcredit/ebill/chain"
	"github.com/bitcredit/ebill/crypto"
	"github.com/bitcredit/ebill/derivedview"
	"github.com/bitcredit/ebill/store"
)

var (
	_ store.ChainStore   = (*chainStore)(nil)
	_ store.KeysStore    = (*keysStore)(nil)
	_ store.PaidStore    = (*paidStore)(nil)
	_ store.CacheStore   = (*cacheStore)(nil)
	_ store.ContactStore = (*contactStore)(nil)
)

const schema = `
CREATE TABLE IF NOT EXISTS blocks (
	bill_id TEXT NOT NULL,
	block_id INTEGER NOT NULL,
	data BLOB NOT NULL,
	PRIMARY KEY (bill_id, block_id)
);
CREATE TABLE IF NOT EXISTS bill_keys (
	bill_id TEXT PRIMARY KEY,
	private_key BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS bill_paid (
	bill_id TEXT PRIMARY KEY,
	payment_address TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS bill_cache (
	bill_id TEXT PRIMARY KEY,
	result_json TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS contacts (
	node_id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	type INTEGER NOT NULL
);
`

// DB wraps a SQLite connection backing all five stores.
type DB struct {
	conn *sql.DB
}

// Open opens (creating if needed) the SQLite database at path and
// applies the schema.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode = WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

func (db *DB) Close() error { return db.conn.Close() }

// ChainStore returns the chain.Chain persistence backed by this DB.
func (db *DB) ChainStore() store.ChainStore { return (*chainStore)(db) }

// KeysStore returns the bill-keypair persistence backed by this DB.
func (db *DB) KeysStore() store.KeysStore { return (*keysStore)(db) }

// PaidStore returns the paid-marker persistence backed by this DB.
func (db *DB) PaidStore() store.PaidStore { return (*paidStore)(db) }

// CacheStore returns the derived-view cache persistence backed by this DB.
func (db *DB) CacheStore() store.CacheStore { return (*cacheStore)(db) }

// ContactStore returns the contact-directory persistence backed by this DB.
func (db *DB) ContactStore() store.ContactStore { return (*contactStore)(db) }

type chainStore DB

func (s *chainStore) Load(ctx context.Context, billID string) (*chain.Chain, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT data FROM blocks WHERE bill_id = ? ORDER BY block_id ASC`, billID)
	if err != nil {
		return nil, fmt.Errorf("query blocks: %w", err)
	}
	defer rows.Close()

	var blocks []*block.Block
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		var b block.Block
		if err := rlp.DecodeBytes(data, &b); err != nil {
			return nil, fmt.Errorf("decode block: %w", err)
		}
		blocks = append(blocks, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, store.ErrNotFound
	}
	return chain.NewFromBlocks(blocks)
}

func (s *chainStore) Save(ctx context.Context, billID string, c *chain.Chain) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM blocks WHERE bill_id = ?`, billID); err != nil {
		return fmt.Errorf("clear blocks: %w", err)
	}
	for _, b := range c.Blocks() {
		data, err := rlp.EncodeToBytes(b)
		if err != nil {
			return fmt.Errorf("encode block: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO blocks (bill_id, block_id, data) VALUES (?, ?, ?)`,
			billID, b.ID(), data); err != nil {
			return fmt.Errorf("insert block: %w", err)
		}
	}
	return tx.Commit()
}

func (s *chainStore) AllBillIDs(ctx context.Context) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT DISTINCT bill_id FROM blocks`)
	if err != nil {
		return nil, fmt.Errorf("query bill ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type keysStore DB

func (s *keysStore) Save(ctx context.Context, billID string, keys *crypto.Keys) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO bill_keys (bill_id, private_key) VALUES (?, ?)
		 ON CONFLICT(bill_id) DO UPDATE SET private_key = excluded.private_key`,
		billID, keys.PrivateKeyBytes())
	if err != nil {
		return fmt.Errorf("save bill keys: %w", err)
	}
	return nil
}

func (s *keysStore) Load(ctx context.Context, billID string) (*crypto.Keys, error) {
	var priv []byte
	err := s.conn.QueryRowContext(ctx, `SELECT private_key FROM bill_keys WHERE bill_id = ?`, billID).Scan(&priv)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load bill keys: %w", err)
	}
	return crypto.KeysFromPrivateKeyBytes(priv)
}

type paidStore DB

func (s *paidStore) MarkPaid(ctx context.Context, billID, paymentAddress string) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO bill_paid (bill_id, payment_address) VALUES (?, ?)
		 ON CONFLICT(bill_id) DO UPDATE SET payment_address = excluded.payment_address`,
		billID, paymentAddress)
	if err != nil {
		return fmt.Errorf("mark bill paid: %w", err)
	}
	return nil
}

func (s *paidStore) IsPaid(ctx context.Context, billID string) (string, bool, error) {
	var addr string
	err := s.conn.QueryRowContext(ctx, `SELECT payment_address FROM bill_paid WHERE bill_id = ?`, billID).Scan(&addr)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query bill paid: %w", err)
	}
	return addr, true, nil
}

type cacheStore DB

func (s *cacheStore) Load(ctx context.Context, billID string) (*derivedview.Result, bool, error) {
	var raw string
	err := s.conn.QueryRowContext(ctx, `SELECT result_json FROM bill_cache WHERE bill_id = ?`, billID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query bill cache: %w", err)
	}
	var result derivedview.Result
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, false, fmt.Errorf("decode bill cache: %w", err)
	}
	return &result, true, nil
}

func (s *cacheStore) Save(ctx context.Context, billID string, result *derivedview.Result) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode bill cache: %w", err)
	}
	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO bill_cache (bill_id, result_json) VALUES (?, ?)
		 ON CONFLICT(bill_id) DO UPDATE SET result_json = excluded.result_json`,
		billID, string(raw))
	if err != nil {
		return fmt.Errorf("save bill cache: %w", err)
	}
	return nil
}

type contactStore DB

func (s *contactStore) Upsert(ctx context.Context, c store.Contact) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO contacts (node_id, name, type) VALUES (?, ?, ?)
		 ON CONFLICT(node_id) DO UPDATE SET name = excluded.name, type = excluded.type`,
		string(c.NodeID), c.Name, int(c.Type))
	if err != nil {
		return fmt.Errorf("upsert contact: %w", err)
	}
	return nil
}

func (s *contactStore) Get(ctx context.Context, nodeID crypto.NodeID) (*store.Contact, error) {
	var name string
	var typ int
	err := s.conn.QueryRowContext(ctx, `SELECT name, type FROM contacts WHERE node_id = ?`, string(nodeID)).Scan(&name, &typ)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load contact: %w", err)
	}
	return &store.Contact{NodeID: nodeID, Name: name, Type: bill.ContactType(typ)}, nil
}

func (s *contactStore) List(ctx context.Context) ([]store.Contact, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT node_id, name, type FROM contacts`)
	if err != nil {
		return nil, fmt.Errorf("query contacts: %w", err)
	}
	defer rows.Close()

	var contacts []store.Contact
	for rows.Next() {
		var nodeID, name string
		var typ int
		if err := rows.Scan(&nodeID, &name, &typ); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		contacts = append(contacts, store.Contact{NodeID: crypto.NodeID(nodeID), Name: name, Type: bill.ContactType(typ)})
	}
	return contacts, rows.Err()
}

func (s *contactStore) Delete(ctx context.Context, nodeID crypto.NodeID) error {
	_, err := s.conn.ExecContext(ctx, `DELETE FROM contacts WHERE node_id = ?`, string(nodeID))
	if err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}
	return nil
}

