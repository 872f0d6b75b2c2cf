package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // SQLite driver registration.

	"market_bot/internal/model"
	"market_bot/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db  *sqlx.DB
	now func() time.Time
}

// OpenSQLite opens a SQLite database at dsn with the connection settings the
// store relies on. It does not touch the schema.
func OpenSQLite(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps ":memory:" databases intact and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	return db, nil
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := OpenSQLite(dsn)
	if err != nil {
		return nil, err
	}

	if _, err := migrations.Run(context.Background(), db.DB); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

type watchRow struct {
	ID        int64           `db:"id"`
	ChatID    int64           `db:"chat_id"`
	Keyword   string          `db:"keyword"`
	Platform  string          `db:"platform"`
	MaxPrice  sql.NullFloat64 `db:"max_price"`
	Filters   string          `db:"filters"`
	CreatedAt string          `db:"created_at"`
}

func (r watchRow) toModel() model.Watch {
	w := model.Watch{
		ID:       r.ID,
		ChatID:   r.ChatID,
		Keyword:  r.Keyword,
		Platform: r.Platform,
		Filters:  r.Filters,
	}
	if r.MaxPrice.Valid {
		v := r.MaxPrice.Float64
		w.MaxPrice = &v
	}
	w.CreatedAt, _ = time.Parse(timeLayout, r.CreatedAt)
	return w
}

func toModels(rows []watchRow) []model.Watch {
	out := make([]model.Watch, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out
}

const watchColumns = `id, chat_id, keyword, platform, max_price, filters, created_at`

// AddWatch inserts a watch unless the owner already has the same keyword on the same platform.
func (s *SQLite) AddWatch(ctx context.Context, w *model.Watch) (bool, error) {
	now := s.now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO watches (chat_id, keyword, platform, max_price, filters, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		w.ChatID, w.Keyword, w.Platform, nullFloat(w.MaxPrice), w.Filters, now,
	)
	if err != nil {
		return false, fmt.Errorf("insert watch: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		err := s.db.GetContext(ctx, &w.ID,
			`SELECT id FROM watches WHERE chat_id = ? AND keyword = ? AND platform = ?`,
			w.ChatID, w.Keyword, w.Platform,
		)
		if err != nil {
			return false, fmt.Errorf("get existing watch: %w", err)
		}
		return false, nil
	}

	id, err := res.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("last insert id: %w", err)
	}
	w.ID = id
	w.CreatedAt, _ = time.Parse(timeLayout, now)
	return true, nil
}

// RemoveWatch deletes matching watches and returns how many were removed.
func (s *SQLite) RemoveWatch(ctx context.Context, chatID int64, keyword, platform string) (int64, error) {
	query := `DELETE FROM watches WHERE chat_id = ? AND keyword = ?`
	args := []any{chatID, keyword}
	if platform != "" {
		query += ` AND platform = ?`
		args = append(args, platform)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete watch: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// GetWatch returns a watch by ID if it belongs to chatID.
func (s *SQLite) GetWatch(ctx context.Context, id, chatID int64) (*model.Watch, error) {
	var row watchRow
	err := s.db.GetContext(ctx, &row,
		`SELECT `+watchColumns+` FROM watches WHERE id = ? AND chat_id = ?`, id, chatID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get watch: %w", err)
	}
	w := row.toModel()
	return &w, nil
}

// ListWatches returns the watches of one owner in creation order.
func (s *SQLite) ListWatches(ctx context.Context, chatID int64) ([]model.Watch, error) {
	var rows []watchRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT `+watchColumns+` FROM watches WHERE chat_id = ? ORDER BY id`, chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("query watches: %w", err)
	}
	return toModels(rows), nil
}

// ListActiveWatches returns the watches of all owners that are not paused.
func (s *SQLite) ListActiveWatches(ctx context.Context) ([]model.Watch, error) {
	var rows []watchRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT w.id, w.chat_id, w.keyword, w.platform, w.max_price, w.filters, w.created_at
		 FROM watches w
		 LEFT JOIN user_settings u ON u.chat_id = w.chat_id
		 WHERE COALESCE(u.paused, 0) = 0
		 ORDER BY w.id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query active watches: %w", err)
	}
	return toModels(rows), nil
}

// CountWatches returns how many watches an owner has.
func (s *SQLite) CountWatches(ctx context.Context, chatID int64) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM watches WHERE chat_id = ?`, chatID); err != nil {
		return 0, fmt.Errorf("count watches: %w", err)
	}
	return n, nil
}

// SetFilters replaces the filter blob of a watch.
func (s *SQLite) SetFilters(ctx context.Context, id int64, filters string) error {
	return s.updateWatch(ctx, `UPDATE watches SET filters = ? WHERE id = ?`, filters, id)
}

// SetMaxPrice sets or clears (nil) the price ceiling of a watch.
func (s *SQLite) SetMaxPrice(ctx context.Context, id int64, maxPrice *float64) error {
	return s.updateWatch(ctx, `UPDATE watches SET max_price = ? WHERE id = ?`, nullFloat(maxPrice), id)
}

func (s *SQLite) updateWatch(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update watch: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetPaused stores the pause flag of an owner.
func (s *SQLite) SetPaused(ctx context.Context, chatID int64, paused bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_settings (chat_id, paused) VALUES (?, ?)
		 ON CONFLICT(chat_id) DO UPDATE SET paused = excluded.paused`,
		chatID, boolToInt(paused),
	)
	if err != nil {
		return fmt.Errorf("set paused: %w", err)
	}
	return nil
}

// IsPaused reports whether an owner paused notifications.
func (s *SQLite) IsPaused(ctx context.Context, chatID int64) (bool, error) {
	var paused int
	err := s.db.GetContext(ctx, &paused, `SELECT paused FROM user_settings WHERE chat_id = ?`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get paused: %w", err)
	}
	return paused == 1, nil
}

// IsSeen checks whether a listing was already recorded for the key.
func (s *SQLite) IsSeen(ctx context.Context, key model.SeenKey) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM seen_listings
		 WHERE listing_id = ? AND keyword = ? AND chat_id = ? AND platform = ?`,
		key.ListingID, key.Keyword, key.ChatID, key.Platform,
	)
	if err != nil {
		return false, fmt.Errorf("check seen: %w", err)
	}
	return count > 0, nil
}

// MarkSeen records a listing in the ledger. Existing entries are left untouched.
func (s *SQLite) MarkSeen(ctx context.Context, rec model.SeenRecord) error {
	firstSeen := rec.FirstSeenAt
	if firstSeen.IsZero() {
		firstSeen = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO seen_listings
		 (listing_id, keyword, chat_id, platform, title, price, url, first_seen_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ListingID, rec.Keyword, rec.ChatID, rec.Platform,
		rec.Title, rec.Price, rec.URL, firstSeen.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("mark seen: %w", err)
	}
	return nil
}

// LastPrice returns the price stored with a seen listing.
func (s *SQLite) LastPrice(ctx context.Context, key model.SeenKey) (string, bool, error) {
	var price string
	err := s.db.GetContext(ctx, &price,
		`SELECT price FROM seen_listings
		 WHERE listing_id = ? AND keyword = ? AND chat_id = ? AND platform = ?`,
		key.ListingID, key.Keyword, key.ChatID, key.Platform,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get seen price: %w", err)
	}
	return price, true, nil
}

// UpdatePrice overwrites the stored price of a seen listing.
func (s *SQLite) UpdatePrice(ctx context.Context, key model.SeenKey, price string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE seen_listings SET price = ?
		 WHERE listing_id = ? AND keyword = ? AND chat_id = ? AND platform = ?`,
		price, key.ListingID, key.Keyword, key.ChatID, key.Platform,
	)
	if err != nil {
		return fmt.Errorf("update seen price: %w", err)
	}
	return nil
}

// PurgeSeen deletes ledger entries first seen before olderThan.
func (s *SQLite) PurgeSeen(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM seen_listings WHERE first_seen_at < ?`, olderThan.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("purge seen: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
