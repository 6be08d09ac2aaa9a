package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/doctors-appointment/internal/model"
)

// TreatmentRepo reads the treatment catalog.  A treatment's slots live in
// treatment_slots, ordered by slot_order; every read returns them in that
// order.  The catalog is written only by the seed command.
type TreatmentRepo struct {
	db *sql.DB
}

// NewTreatmentRepo returns a TreatmentRepo bound to the given database.
func NewTreatmentRepo(db *sql.DB) *TreatmentRepo { return &TreatmentRepo{db: db} }

// List returns every treatment with its full slot list, ordered by name.
func (r *TreatmentRepo) List(ctx context.Context) ([]model.Treatment, error) {
	const q = `SELECT t.id, t.name, t.price_cents, s.label
		FROM treatments t
		LEFT JOIN treatment_slots s ON s.treatment_id = t.id
		ORDER BY t.name, s.slot_order`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return groupTreatments(rows)
}

// ListAvailable returns every treatment with the slots still free on date,
// computed in a single statement: the slot join carries an anti-join against
// bookings of the same treatment, date and slot.  A nil date compares
// against NULL, which matches no booking, so every slot is returned.
func (r *TreatmentRepo) ListAvailable(ctx context.Context, date *string) ([]model.Treatment, error) {
	const q = `SELECT t.id, t.name, t.price_cents, s.label
		FROM treatments t
		LEFT JOIN treatment_slots s
			ON s.treatment_id = t.id
			AND NOT EXISTS (
				SELECT 1 FROM bookings b
				WHERE b.treatment_name = t.name
				AND b.appointment_date = ?
				AND b.slot = s.label
			)
		ORDER BY t.name, s.slot_order`
	rows, err := r.db.QueryContext(ctx, q, nullable(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return groupTreatments(rows)
}

// ListNames returns the treatment names only, ordered by name.
func (r *TreatmentRepo) ListNames(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT name FROM treatments ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	names := []string{}
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// Upsert creates the treatment or, when the name already exists, replaces
// its price and slot list.  t.ID is set to the stored id.
func (r *TreatmentRepo) Upsert(ctx context.Context, t *model.Treatment) error {
	t.Name = strings.TrimSpace(t.Name)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var id string
	err = tx.QueryRowContext(ctx, "SELECT id FROM treatments WHERE name = ?", t.Name).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		id = uuid.NewString()
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO treatments (id, name, price_cents) VALUES (?, ?, ?)",
			id, t.Name, t.Price); err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		if _, err := tx.ExecContext(ctx,
			"UPDATE treatments SET price_cents = ? WHERE id = ?", t.Price, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM treatment_slots WHERE treatment_id = ?", id); err != nil {
			return err
		}
	}

	for i, label := range t.Slots {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO treatment_slots (treatment_id, slot_order, label) VALUES (?, ?, ?)",
			id, i, label); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	t.ID = id
	return nil
}

// groupTreatments folds (treatment, slot) rows into treatments.  Rows must
// arrive grouped by treatment.  A NULL label contributes no slot, so a
// treatment with nothing left still appears with an empty slot list.
func groupTreatments(rows *sql.Rows) ([]model.Treatment, error) {
	out := []model.Treatment{}
	for rows.Next() {
		var (
			id, name string
			price    int64
			label    sql.NullString
		)
		if err := rows.Scan(&id, &name, &price, &label); err != nil {
			return nil, err
		}
		if n := len(out); n == 0 || out[n-1].ID != id {
			out = append(out, model.Treatment{ID: id, Name: name, Price: price, Slots: []string{}})
		}
		if label.Valid {
			last := &out[len(out)-1]
			last.Slots = append(last.Slots, label.String)
		}
	}
	return out, rows.Err()
}

// nullable turns a nil *string into SQL NULL.
func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
