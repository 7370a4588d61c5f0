package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/buildhub/internal/domain/banner"
	"github.com/geocoder89/buildhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const bannerColumns = `id, image, is_active, created_at, updated_at`

type BannersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewBannersRepo(pool *pgxpool.Pool, prom *observability.Prom) *BannersRepo {
	return &BannersRepo{pool: pool, prom: prom}
}

func (r *BannersRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func scanBanner(row pgx.Row) (banner.Banner, error) {
	var b banner.Banner

	err := row.Scan(&b.ID, &b.Image, &b.IsActive, &b.CreatedAt, &b.UpdatedAt)

	return b, err
}

func (r *BannersRepo) GetActive(ctx context.Context) (banner.Banner, error) {
	var b banner.Banner

	err := r.observe("banners.get_active", func() error {
		var err error
		b, err = scanBanner(r.pool.QueryRow(ctx,
			`SELECT `+bannerColumns+`
			FROM banners
			WHERE is_active
			ORDER BY created_at DESC
			LIMIT 1`))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return banner.Banner{}, banner.ErrNoActive
		}

		return banner.Banner{}, err
	}

	return b, nil
}

func (r *BannersRepo) List(ctx context.Context) ([]banner.Banner, error) {
	var out []banner.Banner

	err := r.observe("banners.list", func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT `+bannerColumns+` FROM banners ORDER BY created_at DESC`)

		if err != nil {
			return err
		}

		defer rows.Close()

		out = make([]banner.Banner, 0)

		for rows.Next() {
			b, err := scanBanner(rows)

			if err != nil {
				return err
			}

			out = append(out, b)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	return out, nil
}

// Create inserts the new banner as the active one. The deactivation of
// every other row happens in the same transaction, so two concurrent
// uploads serialize on the row locks and at most one banner stays active.
func (r *BannersRepo) Create(ctx context.Context, b banner.Banner) (banner.Banner, error) {
	err := r.observe("banners.create", func() error {
		tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})

		if err != nil {
			return err
		}

		defer func() { _ = tx.Rollback(ctx) }()

		_, err = tx.Exec(ctx,
			`UPDATE banners SET is_active = FALSE, updated_at = NOW() WHERE is_active`)

		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO banners (id, image, is_active, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5)`,
			b.ID, b.Image, b.IsActive, b.CreatedAt, b.UpdatedAt,
		)

		if err != nil {
			return err
		}

		return tx.Commit(ctx)
	})

	if err != nil {
		return banner.Banner{}, err
	}

	return b, nil
}

// SetActive flips a banner's active flag. Activation deactivates every
// other banner inside the same transaction; deactivation touches only the
// target row.
func (r *BannersRepo) SetActive(ctx context.Context, id string, active bool) (banner.Banner, error) {
	var b banner.Banner

	err := r.observe("banners.set_active", func() error {
		tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})

		if err != nil {
			return err
		}

		defer func() { _ = tx.Rollback(ctx) }()

		if active {
			_, err = tx.Exec(ctx,
				`UPDATE banners SET is_active = FALSE, updated_at = NOW()
				WHERE is_active AND id <> $1`, id)

			if err != nil {
				return err
			}
		}

		b, err = scanBanner(tx.QueryRow(ctx,
			`UPDATE banners
				SET is_active = $2, updated_at = NOW()
			WHERE id = $1
			RETURNING `+bannerColumns,
			id, active,
		))

		if err != nil {
			return err
		}

		return tx.Commit(ctx)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return banner.Banner{}, banner.ErrNotFound
		}

		return banner.Banner{}, err
	}

	return b, nil
}

// Delete removes the row and, when the deleted banner was the active one,
// promotes the newest survivor in the same transaction. Returns the
// removed banner so the caller can delete its backing file.
func (r *BannersRepo) Delete(ctx context.Context, id string) (banner.Banner, error) {
	var b banner.Banner

	err := r.observe("banners.delete", func() error {
		tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})

		if err != nil {
			return err
		}

		defer func() { _ = tx.Rollback(ctx) }()

		b, err = scanBanner(tx.QueryRow(ctx,
			`DELETE FROM banners WHERE id = $1 RETURNING `+bannerColumns, id))

		if err != nil {
			return err
		}

		if b.IsActive {
			_, err = tx.Exec(ctx,
				`UPDATE banners
					SET is_active = TRUE, updated_at = NOW()
				WHERE id = (SELECT id FROM banners ORDER BY created_at DESC LIMIT 1)`)

			if err != nil {
				return err
			}
		}

		return tx.Commit(ctx)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return banner.Banner{}, banner.ErrNotFound
		}

		return banner.Banner{}, err
	}

	return b, nil
}
