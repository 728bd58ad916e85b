package postgres

import (
	"context"
	"database/sql"
	"errors"

	"namaz/internal/domain"
)

var _ domain.ProfileRepository = (*DB)(nil)

const kazaColumns = "kaza_sabah, kaza_ogle, kaza_ikindi, kaza_aksam, kaza_yatsi"

type kazaRow struct {
	Sabah  int `db:"kaza_sabah"`
	Ogle   int `db:"kaza_ogle"`
	Ikindi int `db:"kaza_ikindi"`
	Aksam  int `db:"kaza_aksam"`
	Yatsi  int `db:"kaza_yatsi"`
}

func (k kazaRow) counts() domain.Counts {
	return domain.Counts{k.Sabah, k.Ogle, k.Ikindi, k.Aksam, k.Yatsi, 0}
}

type profileRow struct {
	MukellefSince   sql.NullString `db:"mukellef_since"`
	StartedPrayerAt sql.NullString `db:"started_prayer_at"`
	kazaRow
}

// GetProfile returns the user's profile; a user without a row gets an empty profile.
func (d *DB) GetProfile(ctx context.Context, userID int64) (*domain.Profile, error) {
	var r profileRow
	err := d.sql.GetContext(ctx, &r,
		"SELECT mukellef_since, started_prayer_at, "+kazaColumns+" FROM profiles WHERE user_id = $1;", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.Profile{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &domain.Profile{
		MukellefSince:   r.MukellefSince.String,
		StartedPrayerAt: r.StartedPrayerAt.String,
		KazaTotals:      r.counts(),
	}, nil
}

// UpdateProfileDates writes the provided dates. A nil field is left as stored and
// an empty string clears it.
func (d *DB) UpdateProfileDates(ctx context.Context, userID int64, dates domain.ProfileDates) error {
	since, setSince := dateArg(dates.MukellefSince)
	started, setStarted := dateArg(dates.StartedPrayerAt)
	_, err := d.sql.ExecContext(ctx, `
		INSERT INTO profiles (user_id, mukellef_since, started_prayer_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			mukellef_since = CASE WHEN $4 THEN EXCLUDED.mukellef_since ELSE profiles.mukellef_since END,
			started_prayer_at = CASE WHEN $5 THEN EXCLUDED.started_prayer_at ELSE profiles.started_prayer_at END;`,
		userID, since, started, setSince, setStarted,
	)
	return err
}

func dateArg(v *string) (sql.NullString, bool) {
	if v == nil {
		return sql.NullString{}, false
	}
	return sql.NullString{String: *v, Valid: *v != ""}, true
}
