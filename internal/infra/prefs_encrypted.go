package infra

import (
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sqlcipher "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/eliteGoblin/focusd/scrolloff/internal/domain"
)

// Ensure sqlcipher driver is registered.
var _ = sqlcipher.ErrBusy

// EncryptedPrefs stores preferences in a SQLCipher encrypted SQLite database,
// with the same key/value contract as FilePrefs.
type EncryptedPrefs struct {
	db     *sql.DB
	dbPath string
}

// NewEncryptedPrefs opens (or creates) the encrypted store at dbPath.
// The key is used as the SQLCipher passphrase via PRAGMA key.
func NewEncryptedPrefs(dbPath string, key []byte) (*EncryptedPrefs, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	keyHex := hex.EncodeToString(key)
	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, keyHex)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open encrypted database: %w", err)
	}

	// A wrong key only surfaces on first access.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to encrypted database: %w", err)
	}

	p := &EncryptedPrefs{db: db, dbPath: dbPath}
	if err := p.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return p, nil
}

func (p *EncryptedPrefs) createTables() error {
	_, err := p.db.Exec(`
	CREATE TABLE IF NOT EXISTS prefs (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);`)
	return err
}

// Location returns the database file path.
func (p *EncryptedPrefs) Location() string {
	return p.dbPath
}

// Load reads the blocked set; a missing or malformed value yields the empty set.
func (p *EncryptedPrefs) Load() (domain.BlockedSet, error) {
	raw, err := p.Get(BlockedAppsKey)
	if err != nil {
		return domain.BlockedSet{}, err
	}
	return DecodeBlockedSet(raw), nil
}

// Save replaces the blocked set.
func (p *EncryptedPrefs) Save(set domain.BlockedSet) error {
	return p.Set(BlockedAppsKey, EncodeBlockedSet(set))
}

// Get returns the raw JSON value for key, or nil if unset.
func (p *EncryptedPrefs) Get(key string) (json.RawMessage, error) {
	var value string
	err := p.db.QueryRow(`SELECT value FROM prefs WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return json.RawMessage(value), nil
}

// Set stores a raw JSON value for key.
func (p *EncryptedPrefs) Set(key string, value json.RawMessage) error {
	_, err := p.db.Exec(`INSERT OR REPLACE INTO prefs (key, value, updated_at) VALUES (?, ?, ?)`,
		key, string(value), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Close releases the database connection.
func (p *EncryptedPrefs) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// Ensure EncryptedPrefs implements domain.BlockedSetStore.
var _ domain.BlockedSetStore = (*EncryptedPrefs)(nil)
