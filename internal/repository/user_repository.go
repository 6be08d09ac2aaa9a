package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/doctors-appointment/internal/model"
)

// UserRepo persists portal users.  Users register with an email only; the
// role column is changed solely by promotion.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// PromoteResult mirrors an update acknowledgement: how many users matched,
// how many actually changed role, and the id of a user created because the
// target did not exist.
type PromoteResult struct {
	MatchedCount  int64  `json:"matchedCount"`
	ModifiedCount int64  `json:"modifiedCount"`
	UpsertedID    string `json:"upsertedId,omitempty"`
}

// Create inserts a user with no role and returns its id.
func (r *UserRepo) Create(ctx context.Context, name, email string) (string, error) {
	email = normalizeEmail(email)
	id := uuid.NewString()
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (id, name, email, role) VALUES (?,?,?,?)",
		id, name, email, model.RoleNone)
	if err != nil {
		if isUniqueViolation(err) {
			return "", ErrEmailExists
		}
		return "", err
	}
	return id, nil
}

// Register creates the user unless the email is already registered.  It
// returns the user's id and whether it already existed.
func (r *UserRepo) Register(ctx context.Context, name, email string) (id string, existing bool, err error) {
	id, err = r.Create(ctx, name, email)
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, ErrEmailExists) {
		return "", false, err
	}
	u, err := r.GetByEmail(ctx, email)
	if err != nil {
		return "", false, err
	}
	return u.ID, true, nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = normalizeEmail(email)
	var (
		u          model.User
		name, mail sql.NullString
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,name,email,role FROM users WHERE email=? LIMIT 1",
		email).Scan(&u.ID, &name, &mail, &u.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrUserNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	u.Name, u.Email = name.String, mail.String
	return u, nil
}

// IsAdmin reports whether email belongs to an admin.  An unknown email is
// simply not an admin.
func (r *UserRepo) IsAdmin(ctx context.Context, email string) (bool, error) {
	u, err := r.GetByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return u.IsAdmin(), nil
}

// List returns every user ordered by email.  Users created by promoting an
// unknown id have no email and sort first.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT id,name,email,role FROM users ORDER BY email, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.User{}
	for rows.Next() {
		var (
			u          model.User
			name, mail sql.NullString
		)
		if err := rows.Scan(&u.ID, &name, &mail, &u.Role); err != nil {
			return nil, err
		}
		u.Name, u.Email = name.String, mail.String
		out = append(out, u)
	}
	return out, rows.Err()
}

// PromoteTx gives the user with the given id the admin role inside tx.
// ErrUserNotFound is returned when no user has that id.  Promoting an
// existing admin matches without modifying.
func (r *UserRepo) PromoteTx(ctx context.Context, tx *sql.Tx, id string) (PromoteResult, error) {
	var role string
	err := tx.QueryRowContext(ctx, "SELECT role FROM users WHERE id=? LIMIT 1", id).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return PromoteResult{}, ErrUserNotFound
	}
	if err != nil {
		return PromoteResult{}, err
	}
	if role == model.RoleAdmin {
		return PromoteResult{MatchedCount: 1}, nil
	}
	if _, err := tx.ExecContext(ctx, "UPDATE users SET role=? WHERE id=?", model.RoleAdmin, id); err != nil {
		return PromoteResult{}, err
	}
	return PromoteResult{MatchedCount: 1, ModifiedCount: 1}, nil
}

// InsertAdminTx creates a bare admin user carrying only an id.  It backs
// the upsert-on-miss promotion policy.
func (r *UserRepo) InsertAdminTx(ctx context.Context, tx *sql.Tx, id string) error {
	_, err := tx.ExecContext(ctx, "INSERT INTO users (id, role) VALUES (?, ?)", id, model.RoleAdmin)
	return err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
