// Package snapshot indexes EVERef market order snapshots in SQLite so scans
// can run without hitting ESI for every system.
package snapshot

import (
	"compress/bzip2"
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"eve-hullscout/internal/logger"
)

// ErrUnavailable is matched by errors.Is for every *UnavailableError.
var ErrUnavailable = errors.New("snapshot unavailable")

// UnavailableError reports why the snapshot cannot answer queries.
type UnavailableError struct {
	Reason string
}

func (e *UnavailableError) Error() string { return "snapshot unavailable: " + e.Reason }

func (e *UnavailableError) Is(target error) bool { return target == ErrUnavailable }

// Order is one indexed market order.
type Order struct {
	OrderID      int64
	TypeID       int32
	LocationID   int64
	SystemID     int32
	RegionID     int32
	Price        decimal.Decimal
	VolumeRemain int32
	IsBuyOrder   bool
}

// Status describes the currently indexed snapshot.
type Status struct {
	Rows       int64
	Source     string
	TakenAt    time.Time
	ImportedAt time.Time
}

// Store is the SQLite-backed snapshot index.
type Store struct {
	sql    *sql.DB
	maxAge time.Duration
	now    func() time.Time

	mu     sync.RWMutex
	status Status
}

// Open opens (or creates) the snapshot database at path. maxAge bounds how
// old a snapshot may be before queries report it unavailable; 0 disables
// the bound.
func Open(path string, maxAge time.Duration) (*Store, error) {
	sqlDB, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open snapshot db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping snapshot db: %w", err)
	}
	s := &Store{sql: sqlDB, maxAge: maxAge, now: time.Now}
	if err := s.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate snapshot db: %w", err)
	}
	if err := s.loadStatus(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.sql.Close()
}

// schemaVersion returns 0 for a database that has never been migrated.
func (s *Store) schemaVersion() (int, error) {
	var version int
	err := s.sql.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)
	switch {
	case err == nil:
		return version, nil
	case errors.Is(err, sql.ErrNoRows), strings.Contains(err.Error(), "no such table"):
		return 0, nil
	}
	return 0, fmt.Errorf("read schema version: %w", err)
}

func (s *Store) migrate() error {
	version, err := s.schemaVersion()
	if err != nil {
		return err
	}

	if version < 1 {
		_, err := s.sql.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

			CREATE TABLE IF NOT EXISTS market_orders (
				order_id      INTEGER PRIMARY KEY,
				type_id       INTEGER NOT NULL,
				location_id   INTEGER NOT NULL DEFAULT 0,
				system_id     INTEGER NOT NULL,
				region_id     INTEGER NOT NULL DEFAULT 0,
				price         TEXT    NOT NULL,
				volume_remain INTEGER NOT NULL DEFAULT 0,
				is_buy_order  INTEGER NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_orders_type_system ON market_orders(type_id, system_id);

			CREATE TABLE IF NOT EXISTS snapshot_meta (
				id          INTEGER PRIMARY KEY CHECK (id = 1),
				source      TEXT    NOT NULL,
				rows        INTEGER NOT NULL,
				taken_at    TEXT    NOT NULL,
				imported_at TEXT    NOT NULL
			);

			INSERT OR IGNORE INTO schema_version (version) VALUES (1);
		`)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) loadStatus() error {
	var st Status
	var taken, imported string
	err := s.sql.QueryRow("SELECT source, rows, taken_at, imported_at FROM snapshot_meta WHERE id = 1").
		Scan(&st.Source, &st.Rows, &taken, &imported)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read snapshot meta: %w", err)
	}
	st.TakenAt, _ = time.Parse(time.RFC3339, taken)
	st.ImportedAt, _ = time.Parse(time.RFC3339, imported)
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
	return nil
}

// Status returns the metadata of the indexed snapshot. The zero Status
// means nothing has been imported.
func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Ready returns nil when the snapshot can serve queries.
func (s *Store) Ready() error {
	if s == nil {
		return &UnavailableError{Reason: "no snapshot store configured"}
	}
	st := s.Status()
	if st.ImportedAt.IsZero() {
		return &UnavailableError{Reason: "no snapshot imported"}
	}
	if s.maxAge > 0 {
		if age := s.now().Sub(st.TakenAt); age > s.maxAge {
			return &UnavailableError{Reason: fmt.Sprintf("snapshot is %s old (max %s)", age.Round(time.Second), s.maxAge)}
		}
	}
	return nil
}

// SellListings returns the sell orders of one type in one system. No rows
// is an empty result, not an error.
func (s *Store) SellListings(ctx context.Context, typeID, systemID int32) ([]Order, error) {
	if err := s.Ready(); err != nil {
		return nil, err
	}
	rows, err := s.sql.QueryContext(ctx, `
		SELECT order_id, type_id, location_id, system_id, region_id, price, volume_remain
		FROM market_orders
		WHERE type_id = ? AND system_id = ? AND is_buy_order = 0`, typeID, systemID)
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	defer rows.Close()

	out := []Order{}
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.OrderID, &o.TypeID, &o.LocationID, &o.SystemID, &o.RegionID, &o.Price, &o.VolumeRemain); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// ImportFile imports a snapshot CSV from disk, transparently decompressing
// .bz2 files. The file's modification time is recorded as the snapshot time.
func (s *Store) ImportFile(ctx context.Context, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}

	var r io.Reader = f
	if strings.HasSuffix(path, ".bz2") {
		r = bzip2.NewReader(f)
	}
	return s.ImportCSV(ctx, r, path, info.ModTime())
}

var requiredColumns = []string{"order_id", "type_id", "system_id", "price", "is_buy_order"} //nolint:gochecknoglobals

// ImportCSV replaces the indexed orders with the rows of an EVERef
// market-orders CSV. Columns are located by header name. Malformed rows are
// skipped and counted; the import is all-or-nothing otherwise.
func (s *Store) ImportCSV(ctx context.Context, r io.Reader, source string, takenAt time.Time) (int64, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	header, err := cr.Read()
	if err != nil {
		return 0, fmt.Errorf("read csv header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(strings.ToLower(h))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := col[name]; !ok {
			return 0, fmt.Errorf("csv missing column %q", name)
		}
	}

	tx, err := s.sql.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM market_orders"); err != nil {
		return 0, fmt.Errorf("clear orders: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO market_orders
		(order_id, type_id, location_id, system_id, region_id, price, volume_remain, is_buy_order)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	var imported, skipped int64
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				skipped++
				continue
			}
			return 0, fmt.Errorf("read csv: %w", err)
		}
		if line%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
		o, ok := parseOrder(rec, col)
		if !ok {
			skipped++
			continue
		}
		if _, err := stmt.ExecContext(ctx, o.OrderID, o.TypeID, o.LocationID, o.SystemID, o.RegionID,
			o.Price, o.VolumeRemain, o.IsBuyOrder); err != nil {
			return 0, fmt.Errorf("insert order %d: %w", o.OrderID, err)
		}
		imported++
	}

	st := Status{Rows: imported, Source: source, TakenAt: takenAt.UTC(), ImportedAt: s.now().UTC()}
	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO snapshot_meta (id, source, rows, taken_at, imported_at)
		VALUES (1, ?, ?, ?, ?)`, st.Source, st.Rows, st.TakenAt.Format(time.RFC3339), st.ImportedAt.Format(time.RFC3339)); err != nil {
		return 0, fmt.Errorf("write snapshot meta: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.status = st
	s.mu.Unlock()

	if skipped > 0 {
		logger.Warn("SNAPSHOT", fmt.Sprintf("Skipped %d malformed rows", skipped))
	}
	logger.Success("SNAPSHOT", fmt.Sprintf("Indexed %d orders from %s", imported, source))
	return imported, nil
}

func parseOrder(rec []string, col map[string]int) (Order, bool) {
	field := func(name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}
	intField := func(name string, bits int) (int64, bool) {
		v := field(name)
		if v == "" {
			return 0, true
		}
		n, err := strconv.ParseInt(v, 10, bits)
		return n, err == nil
	}

	var o Order
	orderID, ok1 := intField("order_id", 64)
	typeID, ok2 := intField("type_id", 32)
	systemID, ok3 := intField("system_id", 32)
	locationID, ok4 := intField("location_id", 64)
	regionID, ok5 := intField("region_id", 32)
	volume, ok6 := intField("volume_remain", 32)
	if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6) || orderID == 0 || typeID == 0 || systemID == 0 {
		return o, false
	}
	price, err := decimal.NewFromString(field("price"))
	if err != nil || price.IsNegative() {
		return o, false
	}
	buy, err := strconv.ParseBool(field("is_buy_order"))
	if err != nil {
		return o, false
	}
	return Order{
		OrderID:      orderID,
		TypeID:       int32(typeID),
		LocationID:   locationID,
		SystemID:     int32(systemID),
		RegionID:     int32(regionID),
		Price:        price,
		VolumeRemain: int32(volume),
		IsBuyOrder:   buy,
	}, true
}
