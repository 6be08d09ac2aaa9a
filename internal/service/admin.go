package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/doctors-appointment/internal/repository"
)

// ErrNotAdmin is returned when the requester of an admin-only action does
// not hold the admin role.
var ErrNotAdmin = errors.New("requester is not an admin")

// AdminService promotes users to admin.
type AdminService struct {
	db           *sql.DB
	users        *repository.UserRepo
	upsertOnMiss bool
}

func NewAdminService(db *sql.DB, users *repository.UserRepo, upsertOnMiss bool) *AdminService {
	return &AdminService{db: db, users: users, upsertOnMiss: upsertOnMiss}
}

// PromoteToAdmin gives targetID the admin role on behalf of requester.  The
// requester must already be an admin.  A missing target is
// repository.ErrUserNotFound unless upsert-on-miss is enabled, in which
// case a bare admin record is created under targetID.
func (s *AdminService) PromoteToAdmin(ctx context.Context, requester, targetID string) (repository.PromoteResult, error) {
	targetID = strings.TrimSpace(targetID)
	if targetID == "" {
		return repository.PromoteResult{}, fmt.Errorf("%w: target id required", repository.ErrUserNotFound)
	}

	ok, err := s.users.IsAdmin(ctx, requester)
	if err != nil {
		return repository.PromoteResult{}, fmt.Errorf("check requester: %w", err)
	}
	if !ok {
		return repository.PromoteResult{}, ErrNotAdmin
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return repository.PromoteResult{}, fmt.Errorf("begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := s.users.PromoteTx(ctx, tx, targetID)
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		if !s.upsertOnMiss {
			return repository.PromoteResult{}, err
		}
		if err := s.users.InsertAdminTx(ctx, tx, targetID); err != nil {
			return repository.PromoteResult{}, fmt.Errorf("upsert admin: %w", err)
		}
		res = repository.PromoteResult{UpsertedID: targetID}
	case err != nil:
		return repository.PromoteResult{}, fmt.Errorf("promote: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return repository.PromoteResult{}, fmt.Errorf("commit: %w", err)
	}
	committed = true
	return res, nil
}
