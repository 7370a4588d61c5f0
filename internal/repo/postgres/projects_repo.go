package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/buildhub/internal/domain/project"
	"github.com/geocoder89/buildhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const projectColumns = `id, title, description, image, status, last_update, created_at, updated_at`

type ProjectsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewProjectsRepo(pool *pgxpool.Pool, prom *observability.Prom) *ProjectsRepo {
	return &ProjectsRepo{pool: pool, prom: prom}
}

func (r *ProjectsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func scanProject(row pgx.Row) (project.Project, error) {
	var p project.Project

	err := row.Scan(
		&p.ID,
		&p.Title,
		&p.Description,
		&p.Image,
		&p.Status,
		&p.LastUpdate,
		&p.CreatedAt,
		&p.UpdatedAt,
	)

	return p, err
}

func (r *ProjectsRepo) Create(ctx context.Context, p project.Project) (project.Project, error) {
	err := r.observe("projects.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO projects (id, title, description, image, status, last_update, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			p.ID, p.Title, p.Description, p.Image, p.Status, p.LastUpdate, p.CreatedAt, p.UpdatedAt,
		)
		return err
	})

	if err != nil {
		return project.Project{}, err
	}

	return p, nil
}

// List returns every project, newest first. The catalog is small; there is
// no pagination, matching the public site's needs.
func (r *ProjectsRepo) List(ctx context.Context) ([]project.Project, error) {
	var out []project.Project

	err := r.observe("projects.list", func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT `+projectColumns+` FROM projects ORDER BY created_at DESC`)

		if err != nil {
			return err
		}

		defer rows.Close()

		out = make([]project.Project, 0)

		for rows.Next() {
			p, err := scanProject(rows)

			if err != nil {
				return err
			}

			out = append(out, p)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	return out, nil
}

func (r *ProjectsRepo) GetByID(ctx context.Context, id string) (project.Project, error) {
	var p project.Project

	err := r.observe("projects.get_by_id", func() error {
		var err error
		p, err = scanProject(r.pool.QueryRow(ctx,
			`SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return project.Project{}, project.ErrNotFound
		}

		return project.Project{}, err
	}

	return p, nil
}

// Update replaces only the supplied fields; empty strings leave the stored
// values in place. A valid status also bumps last_update. The image is
// replaced when newImage is non-empty; the caller deletes the old file.
func (r *ProjectsRepo) Update(ctx context.Context, id string, req project.UpdateProjectRequest, newImage string) (project.Project, error) {
	var p project.Project

	statusChange := project.ValidStatus(req.Status)

	err := r.observe("projects.update", func() error {
		var err error
		p, err = scanProject(r.pool.QueryRow(ctx,
			`UPDATE projects
				SET title = COALESCE(NULLIF($2, ''), title),
					description = COALESCE(NULLIF($3, ''), description),
					status = CASE WHEN $4 THEN $5 ELSE status END,
					last_update = CASE WHEN $4 THEN NOW() ELSE last_update END,
					image = COALESCE(NULLIF($6, ''), image),
					updated_at = NOW()
			WHERE id = $1
			RETURNING `+projectColumns,
			id, req.Title, req.Description, statusChange, req.Status, newImage,
		))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return project.Project{}, project.ErrNotFound
		}

		return project.Project{}, err
	}

	return p, nil
}

func (r *ProjectsRepo) UpdateStatus(ctx context.Context, id, status string) (project.Project, error) {
	var p project.Project

	err := r.observe("projects.update_status", func() error {
		var err error
		p, err = scanProject(r.pool.QueryRow(ctx,
			`UPDATE projects
				SET status = $2, last_update = NOW(), updated_at = NOW()
			WHERE id = $1
			RETURNING `+projectColumns,
			id, status,
		))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return project.Project{}, project.ErrNotFound
		}

		return project.Project{}, err
	}

	return p, nil
}

func (r *ProjectsRepo) UpdateDate(ctx context.Context, id string, date time.Time) (project.Project, error) {
	var p project.Project

	err := r.observe("projects.update_date", func() error {
		var err error
		p, err = scanProject(r.pool.QueryRow(ctx,
			`UPDATE projects
				SET last_update = $2, updated_at = NOW()
			WHERE id = $1
			RETURNING `+projectColumns,
			id, date,
		))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return project.Project{}, project.ErrNotFound
		}

		return project.Project{}, err
	}

	return p, nil
}

// Delete removes the row and reports the image path the record owned so
// the caller can remove the backing file.
func (r *ProjectsRepo) Delete(ctx context.Context, id string) (string, error) {
	var image string

	err := r.observe("projects.delete", func() error {
		return r.pool.QueryRow(ctx,
			`DELETE FROM projects WHERE id = $1 RETURNING image`, id).Scan(&image)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", project.ErrNotFound
		}

		return "", err
	}

	return image, nil
}
