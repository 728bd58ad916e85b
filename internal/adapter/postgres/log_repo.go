package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"namaz/internal/domain"
)

var (
	_ domain.LogRepository  = (*DB)(nil)
	_ domain.KazaRepository = (*DB)(nil)
)

const logColumns = "day, sabah, ogle, ikindi, aksam, yatsi, vitr, note, updated_at"

type logRow struct {
	Day       string         `db:"day"`
	Sabah     int            `db:"sabah"`
	Ogle      int            `db:"ogle"`
	Ikindi    int            `db:"ikindi"`
	Aksam     int            `db:"aksam"`
	Yatsi     int            `db:"yatsi"`
	Vitr      int            `db:"vitr"`
	Note      sql.NullString `db:"note"`
	UpdatedAt time.Time      `db:"updated_at"`
}

func (r logRow) toDomain(userID int64) domain.DailyLog {
	l := domain.DailyLog{
		UserID:    userID,
		Date:      r.Day,
		Counts:    domain.Counts{r.Sabah, r.Ogle, r.Ikindi, r.Aksam, r.Yatsi, r.Vitr},
		UpdatedAt: r.UpdatedAt,
	}
	if r.Note.Valid {
		n := r.Note.String
		l.Note = &n
	}
	return l
}

func nullNote(note *string) sql.NullString {
	if note == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *note, Valid: true}
}

// ListLogs returns the user's logs with startKey <= day <= endKey, ascending.
// Keys are zero-padded so text comparison is date comparison.
func (d *DB) ListLogs(ctx context.Context, userID int64, startKey, endKey string) ([]domain.DailyLog, error) {
	var rows []logRow
	err := d.sql.SelectContext(ctx, &rows,
		"SELECT "+logColumns+" FROM prayer_logs WHERE user_id = $1 AND day >= $2 AND day <= $3 ORDER BY day;",
		userID, startKey, endKey)
	if err != nil {
		return nil, err
	}
	out := make([]domain.DailyLog, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain(userID))
	}
	return out, nil
}

// UpsertLog replaces every slot of the day's log. A nil note keeps the stored
// one. updated_at only moves when the stored values change.
func (d *DB) UpsertLog(ctx context.Context, userID int64, dateKey string, counts domain.Counts, note *string) (*domain.DailyLog, error) {
	var r logRow
	err := d.sql.GetContext(ctx, &r, `
		INSERT INTO prayer_logs (user_id, day, sabah, ogle, ikindi, aksam, yatsi, vitr, note, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id, day) DO UPDATE SET
			sabah = EXCLUDED.sabah, ogle = EXCLUDED.ogle, ikindi = EXCLUDED.ikindi,
			aksam = EXCLUDED.aksam, yatsi = EXCLUDED.yatsi, vitr = EXCLUDED.vitr,
			note = COALESCE(EXCLUDED.note, prayer_logs.note),
			updated_at = CASE
				WHEN (prayer_logs.sabah, prayer_logs.ogle, prayer_logs.ikindi,
					prayer_logs.aksam, prayer_logs.yatsi, prayer_logs.vitr, prayer_logs.note)
					IS DISTINCT FROM
					(EXCLUDED.sabah, EXCLUDED.ogle, EXCLUDED.ikindi,
					EXCLUDED.aksam, EXCLUDED.yatsi, EXCLUDED.vitr, COALESCE(EXCLUDED.note, prayer_logs.note))
				THEN EXCLUDED.updated_at
				ELSE prayer_logs.updated_at
			END
		RETURNING `+logColumns+";",
		userID, dateKey,
		counts[domain.Sabah], counts[domain.Ogle], counts[domain.Ikindi],
		counts[domain.Aksam], counts[domain.Yatsi], counts[domain.Vitr],
		nullNote(note), time.Now().UTC(),
	)
	if err != nil {
		return nil, err
	}
	l := r.toDomain(userID)
	return &l, nil
}

// ApplyKaza adds deltas to the kaza totals and to the day's log in one transaction.
func (d *DB) ApplyKaza(ctx context.Context, userID int64, dateKey string, deltas domain.Counts, note *string) (domain.Counts, *domain.DailyLog, error) {
	tx, err := d.sql.BeginTxx(ctx, nil)
	if err != nil {
		return domain.Counts{}, nil, err
	}
	defer tx.Rollback() //nolint:errcheck

	totals, err := addKazaTotals(ctx, tx, userID, deltas)
	if err != nil {
		return domain.Counts{}, nil, fmt.Errorf("kaza totals: %w", err)
	}

	var r logRow
	err = tx.GetContext(ctx, &r, `
		INSERT INTO prayer_logs (user_id, day, sabah, ogle, ikindi, aksam, yatsi, vitr, note, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, $9)
		ON CONFLICT (user_id, day) DO UPDATE SET
			sabah = prayer_logs.sabah + EXCLUDED.sabah,
			ogle = prayer_logs.ogle + EXCLUDED.ogle,
			ikindi = prayer_logs.ikindi + EXCLUDED.ikindi,
			aksam = prayer_logs.aksam + EXCLUDED.aksam,
			yatsi = prayer_logs.yatsi + EXCLUDED.yatsi,
			note = COALESCE(EXCLUDED.note, prayer_logs.note),
			updated_at = EXCLUDED.updated_at
		RETURNING `+logColumns+";",
		userID, dateKey,
		deltas[domain.Sabah], deltas[domain.Ogle], deltas[domain.Ikindi],
		deltas[domain.Aksam], deltas[domain.Yatsi],
		nullNote(note), time.Now().UTC(),
	)
	if err != nil {
		return domain.Counts{}, nil, fmt.Errorf("kaza log: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Counts{}, nil, err
	}
	l := r.toDomain(userID)
	return totals, &l, nil
}

func addKazaTotals(ctx context.Context, tx *sqlx.Tx, userID int64, deltas domain.Counts) (domain.Counts, error) {
	var k kazaRow
	err := tx.GetContext(ctx, &k, `
		INSERT INTO profiles (user_id, kaza_sabah, kaza_ogle, kaza_ikindi, kaza_aksam, kaza_yatsi)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			kaza_sabah = profiles.kaza_sabah + EXCLUDED.kaza_sabah,
			kaza_ogle = profiles.kaza_ogle + EXCLUDED.kaza_ogle,
			kaza_ikindi = profiles.kaza_ikindi + EXCLUDED.kaza_ikindi,
			kaza_aksam = profiles.kaza_aksam + EXCLUDED.kaza_aksam,
			kaza_yatsi = profiles.kaza_yatsi + EXCLUDED.kaza_yatsi
		RETURNING `+kazaColumns+";",
		userID,
		deltas[domain.Sabah], deltas[domain.Ogle], deltas[domain.Ikindi],
		deltas[domain.Aksam], deltas[domain.Yatsi],
	)
	if err != nil {
		return domain.Counts{}, err
	}
	return k.counts(), nil
}
