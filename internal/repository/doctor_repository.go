package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/iliyamo/doctors-appointment/internal/model"
)

// DoctorRepo manages the doctor roster.
type DoctorRepo struct {
	db *sql.DB
}

func NewDoctorRepo(db *sql.DB) *DoctorRepo { return &DoctorRepo{db: db} }

// List returns all doctors ordered by name.
func (r *DoctorRepo) List(ctx context.Context) ([]model.Doctor, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, email, specialty, image FROM doctors ORDER BY name, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Doctor{}
	for rows.Next() {
		var d model.Doctor
		if err := rows.Scan(&d.ID, &d.Name, &d.Email, &d.Specialty, &d.Image); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Create inserts d and sets its generated id.
func (r *DoctorRepo) Create(ctx context.Context, d *model.Doctor) error {
	d.ID = uuid.NewString()
	d.Email = normalizeEmail(d.Email)
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO doctors (id, name, email, specialty, image) VALUES (?, ?, ?, ?, ?)",
		d.ID, d.Name, d.Email, d.Specialty, d.Image)
	return err
}

// Delete removes a doctor by id.  Returns ErrDoctorNotFound if nothing matched.
func (r *DoctorRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM doctors WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrDoctorNotFound
	}
	return nil
}
