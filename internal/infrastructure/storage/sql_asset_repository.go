package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // драйвер pgx
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"asset-scan/internal/domain/entity"
	"asset-scan/internal/domain/port"
)

// Поддерживаемые драйверы database/sql
const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS assets (
  code          TEXT PRIMARY KEY,
  status        TEXT NOT NULL DEFAULT '',
  location_id   TEXT NOT NULL DEFAULT '',
  customer_id   TEXT,
  customer_name TEXT,
  updated_at    DATETIME
);
CREATE TABLE IF NOT EXISTS asset_status_history (
  id          INTEGER PRIMARY KEY,
  code        TEXT NOT NULL,
  status      TEXT NOT NULL,
  location_id TEXT NOT NULL,
  changed_at  DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_history_code ON asset_status_history(code, changed_at);
`

const schemaPostgres = `
create table if not exists assets (
  code          text primary key,
  status        text not null default '',
  location_id   text not null default '',
  customer_id   text,
  customer_name text,
  updated_at    timestamptz
);
create table if not exists asset_status_history (
  id          bigserial primary key,
  code        text not null,
  status      text not null,
  location_id text not null,
  changed_at  timestamptz not null
);
create index if not exists idx_history_code on asset_status_history(code, changed_at);
`

// OpenDB открывает базу для указанного драйвера и проверяет соединение
func OpenDB(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	switch driver {
	case DriverPostgres:
	case DriverSQLite:
		if !strings.Contains(dsn, "_pragma") && dsn != ":memory:" {
			sep := "?"
			if strings.Contains(dsn, "?") {
				sep = "&"
			}
			dsn += sep + "_pragma=busy_timeout(5000)"
		}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	if driver == DriverSQLite && inMemory(dsn) {
		// у каждого соединения своя :memory: база, схема живёт только в одном
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return db, nil
}

func inMemory(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
}

// SQLAssetRepository справочник активов поверх database/sql (Postgres или SQLite)
type SQLAssetRepository struct {
	DB     *sql.DB
	driver string
	log    logrus.FieldLogger
}

// NewSQLAssetRepository создаёт репозиторий. driver определяет синтаксис плейсхолдеров.
func NewSQLAssetRepository(db *sql.DB, driver string, log logrus.FieldLogger) *SQLAssetRepository {
	return &SQLAssetRepository{DB: db, driver: driver, log: log}
}

// Migrate создаёт схему, если её нет
func (r *SQLAssetRepository) Migrate(ctx context.Context) error {
	schema := schemaSQLite
	if r.driver == DriverPostgres {
		schema = schemaPostgres
	}
	if _, err := r.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate %s: %w", r.driver, err)
	}
	return nil
}

// Lookup возвращает актив по коду
func (r *SQLAssetRepository) Lookup(ctx context.Context, code string) (*entity.Asset, error) {
	q := r.rebind(`select code, status, location_id, customer_id, customer_name, updated_at
	               from assets where code = ?`)
	var (
		a            entity.Asset
		custID, name sql.NullString
		updated      sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx, q, code).Scan(&a.Code, &a.Status, &a.LocationID, &custID, &name, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrAssetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup asset %s: %w", code, err)
	}
	a.CustomerID = custID.String
	a.CustomerName = name.String
	a.UpdatedAt = updated.Time
	return &a, nil
}

// UpdateStatus меняет статус и локацию актива. Ошибка записи журнала только логируется.
func (r *SQLAssetRepository) UpdateStatus(ctx context.Context, code string, status entity.StatusTarget, locationID string) error {
	now := time.Now().UTC()

	res, err := r.DB.ExecContext(ctx,
		r.rebind(`update assets set status = ?, location_id = ?, updated_at = ? where code = ?`),
		string(status), locationID, now, code)
	if err != nil {
		return fmt.Errorf("update asset %s: %w", code, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update asset %s: %w", code, err)
	}
	if n == 0 {
		return port.ErrAssetNotFound
	}

	if _, err := r.DB.ExecContext(ctx,
		r.rebind(`insert into asset_status_history(code, status, location_id, changed_at) values (?, ?, ?, ?)`),
		code, string(status), locationID, now); err != nil {
		r.log.WithError(err).WithField("code", code).Warn("status history is not written")
	}
	return nil
}

// Upsert добавляет или обновляет карточку актива
func (r *SQLAssetRepository) Upsert(ctx context.Context, a entity.Asset) error {
	q := r.rebind(`insert into assets(code, status, location_id, customer_id, customer_name, updated_at)
values (?, ?, ?, ?, ?, ?)
on conflict (code) do update set status = excluded.status, location_id = excluded.location_id,
  customer_id = excluded.customer_id, customer_name = excluded.customer_name, updated_at = excluded.updated_at`)
	updated := a.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}
	_, err := r.DB.ExecContext(ctx, q, a.Code, a.Status, a.LocationID, nullIfEmpty(a.CustomerID), nullIfEmpty(a.CustomerName), updated)
	if err != nil {
		return fmt.Errorf("upsert asset %s: %w", a.Code, err)
	}
	return nil
}

// HistoryCount количество записей журнала по коду
func (r *SQLAssetRepository) HistoryCount(ctx context.Context, code string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, r.rebind(`select count(*) from asset_status_history where code = ?`), code).Scan(&n)
	return n, err
}

// rebind переводит плейсхолдеры ? в $N для Postgres
func (r *SQLAssetRepository) rebind(q string) string {
	if r.driver != DriverPostgres {
		return q
	}
	var sb strings.Builder
	n := 0
	for _, ch := range q {
		if ch == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(ch)
	}
	return sb.String()
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

var _ port.AssetRepository = (*SQLAssetRepository)(nil)
