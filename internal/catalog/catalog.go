// Package catalog persists module scan results in SQLite so repeated
// invocations can list installed modules without re-parsing every conf
// file. Rows are keyed by module name and carry a BLAKE3 digest of the
// conf file; a digest mismatch means the module changed on disk and
// the row is stale.
//
// The default build uses the pure Go SQLite driver; building with
// -tags cgo_sqlite selects mattn/go-sqlite3 instead.
package catalog

import (
	"database/sql"
	"encoding/hex"
	"os"
	"strings"
	"time"

	"github.com/zeebo/blake3"

	"github.com/FocuswithJustin/swordshelf/core/conf"
	swerrors "github.com/FocuswithJustin/swordshelf/core/errors"
	"github.com/FocuswithJustin/swordshelf/internal/logging"
)

// DriverType identifies the SQLite implementation compiled in,
// "purego" or "cgo".
func DriverType() string { return driverType }

const schema = `
CREATE TABLE IF NOT EXISTS modules (
	name         TEXT PRIMARY KEY,
	abbrev       TEXT NOT NULL,
	conf_path    TEXT NOT NULL,
	driver       TEXT NOT NULL,
	category     TEXT NOT NULL,
	language     TEXT NOT NULL,
	features     TEXT NOT NULL,
	install_size INTEGER NOT NULL,
	conf_digest  TEXT NOT NULL,
	scanned_at   INTEGER NOT NULL
);
`

// Record is one cataloged module.
type Record struct {
	Name        string
	Abbrev      string
	ConfPath    string
	Driver      string
	Category    string
	Language    string
	Features    []string
	InstallSize int
	ConfDigest  string
	ScannedAt   time.Time
}

// Catalog is an open catalog database.
type Catalog struct {
	db *sql.DB
}

// Open opens (creating if needed) the catalog database at path.
func Open(path string) (*Catalog, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, swerrors.Wrapf(err, "failed to open catalog %s", path)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, swerrors.Wrap(err, "failed to create catalog schema")
	}
	return &Catalog{db: db}, nil
}

// Close closes the underlying database.
func (c *Catalog) Close() error { return c.db.Close() }

// RecordFor builds a catalog record from a parsed configuration,
// reading the conf file to digest it.
func RecordFor(cfg *conf.ModuleConfig) (Record, error) {
	data, err := os.ReadFile(cfg.ConfPath)
	if err != nil {
		return Record{}, swerrors.NewMissingFile(cfg.Name, cfg.ConfPath, err)
	}
	return Record{
		Name:        cfg.Name,
		Abbrev:      cfg.Abbrev,
		ConfPath:    cfg.ConfPath,
		Driver:      cfg.Driver.String(),
		Category:    cfg.Category.String(),
		Language:    cfg.Language(),
		Features:    cfg.Features(),
		InstallSize: cfg.InstallSize(),
		ConfDigest:  digest(data),
		ScannedAt:   time.Now(),
	}, nil
}

func digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Save upserts scan records in one transaction.
func (c *Catalog) Save(records []Record) error {
	tx, err := c.db.Begin()
	if err != nil {
		return swerrors.Wrap(err, "failed to begin catalog transaction")
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO modules
			(name, abbrev, conf_path, driver, category, language,
			 features, install_size, conf_digest, scanned_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			abbrev = excluded.abbrev,
			conf_path = excluded.conf_path,
			driver = excluded.driver,
			category = excluded.category,
			language = excluded.language,
			features = excluded.features,
			install_size = excluded.install_size,
			conf_digest = excluded.conf_digest,
			scanned_at = excluded.scanned_at`)
	if err != nil {
		return swerrors.Wrap(err, "failed to prepare catalog upsert")
	}
	defer stmt.Close()

	for _, r := range records {
		_, err := stmt.Exec(r.Name, r.Abbrev, r.ConfPath, r.Driver,
			r.Category, r.Language, strings.Join(r.Features, ","),
			r.InstallSize, r.ConfDigest, r.ScannedAt.Unix())
		if err != nil {
			return swerrors.Wrapf(err, "failed to save catalog row for %s", r.Name)
		}
	}
	return tx.Commit()
}

// Load returns every cataloged record, ordered by name.
func (c *Catalog) Load() ([]Record, error) {
	rows, err := c.db.Query(`
		SELECT name, abbrev, conf_path, driver, category, language,
		       features, install_size, conf_digest, scanned_at
		FROM modules ORDER BY name`)
	if err != nil {
		return nil, swerrors.Wrap(err, "failed to query catalog")
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var features string
		var scannedAt int64
		err := rows.Scan(&r.Name, &r.Abbrev, &r.ConfPath, &r.Driver,
			&r.Category, &r.Language, &features, &r.InstallSize,
			&r.ConfDigest, &scannedAt)
		if err != nil {
			return nil, swerrors.Wrap(err, "failed to scan catalog row")
		}
		if features != "" {
			r.Features = strings.Split(features, ",")
		}
		r.ScannedAt = time.Unix(scannedAt, 0)
		records = append(records, r)
	}
	return records, rows.Err()
}

// Get returns one cataloged record by module name.
func (c *Catalog) Get(name string) (Record, error) {
	row := c.db.QueryRow(`
		SELECT name, abbrev, conf_path, driver, category, language,
		       features, install_size, conf_digest, scanned_at
		FROM modules WHERE name = ?`, name)

	var r Record
	var features string
	var scannedAt int64
	err := row.Scan(&r.Name, &r.Abbrev, &r.ConfPath, &r.Driver,
		&r.Category, &r.Language, &features, &r.InstallSize,
		&r.ConfDigest, &scannedAt)
	if err == sql.ErrNoRows {
		return Record{}, swerrors.NewNotFound("catalog record", name, nil)
	}
	if err != nil {
		return Record{}, swerrors.Wrap(err, "failed to read catalog row")
	}
	if features != "" {
		r.Features = strings.Split(features, ",")
	}
	r.ScannedAt = time.Unix(scannedAt, 0)
	return r, nil
}

// Invalidate re-digests every cataloged conf file and deletes the rows
// whose file changed or disappeared. It returns the names removed.
func (c *Catalog) Invalidate() ([]string, error) {
	records, err := c.Load()
	if err != nil {
		return nil, err
	}

	var stale []string
	for _, r := range records {
		data, err := os.ReadFile(r.ConfPath)
		if err != nil || digest(data) != r.ConfDigest {
			stale = append(stale, r.Name)
		}
	}
	for _, name := range stale {
		if _, err := c.db.Exec(`DELETE FROM modules WHERE name = ?`, name); err != nil {
			return nil, swerrors.Wrapf(err, "failed to remove stale catalog row %s", name)
		}
	}
	if len(stale) > 0 {
		logging.Info("removed stale catalog rows", "count", len(stale))
	}
	return stale, nil
}
