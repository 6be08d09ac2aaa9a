package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/doctors-appointment/internal/model"
	"github.com/iliyamo/doctors-appointment/internal/testutil"
)

func seedTreatments(t *testing.T, repo *TreatmentRepo, ts ...model.Treatment) {
	t.Helper()
	for i := range ts {
		require.NoError(t, repo.Upsert(context.Background(), &ts[i]))
	}
}

func strptr(s string) *string { return &s }

func TestTreatmentRepo_UpsertAndList(t *testing.T) {
	db := testutil.OpenSQLite(t)
	repo := NewTreatmentRepo(db)
	ctx := context.Background()

	seedTreatments(t, repo,
		model.Treatment{Name: "Dental", Slots: []string{"09:00", "10:00"}, Price: 4000},
		model.Treatment{Name: "Cardiology", Slots: []string{"08:00", "08:30", "09:00"}, Price: 9900},
	)

	// Re-seeding replaces slots and price but keeps the id.
	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	dentalID := list[1].ID

	again := model.Treatment{Name: "Dental", Slots: []string{"11:00"}, Price: 4500}
	require.NoError(t, repo.Upsert(ctx, &again))
	assert.Equal(t, dentalID, again.ID)

	list, err = repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Cardiology", list[0].Name)
	assert.Equal(t, []string{"08:00", "08:30", "09:00"}, list[0].Slots)
	assert.Equal(t, "Dental", list[1].Name)
	assert.Equal(t, []string{"11:00"}, list[1].Slots)
	assert.Equal(t, int64(4500), list[1].Price)

	names, err := repo.ListNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Cardiology", "Dental"}, names)
}

func TestTreatmentRepo_ListAvailable(t *testing.T) {
	db := testutil.OpenSQLite(t)
	treatments := NewTreatmentRepo(db)
	bookings := NewBookingRepo(db)
	ctx := context.Background()

	seedTreatments(t, treatments,
		model.Treatment{Name: "Cardiology", Slots: []string{"08:00", "08:30", "09:00"}},
		model.Treatment{Name: "Eye Care", Slots: []string{"10:00"}},
		model.Treatment{Name: "Empty", Slots: nil},
	)
	for _, b := range []model.Booking{
		{Treatment: "Cardiology", AppointmentDate: "2024-01-01", Slot: "08:30", Email: "a@x.com"},
		{Treatment: "Cardiology", AppointmentDate: "2024-01-02", Slot: "09:00", Email: "a@x.com"},
		{Treatment: "Eye Care", AppointmentDate: "2024-01-01", Slot: "10:00", Email: "b@x.com"},
	} {
		b := b
		require.NoError(t, bookings.Create(ctx, &b))
	}

	got, err := treatments.ListAvailable(ctx, strptr("2024-01-01"))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"08:00", "09:00"}, got[0].Slots)
	assert.Equal(t, "Empty", got[1].Name)
	assert.NotNil(t, got[1].Slots)
	assert.Empty(t, got[1].Slots)
	assert.Equal(t, "Eye Care", got[2].Name)
	assert.NotNil(t, got[2].Slots)
	assert.Empty(t, got[2].Slots)

	// No date excludes nothing.
	got, err = treatments.ListAvailable(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"08:00", "08:30", "09:00"}, got[0].Slots)
	assert.Equal(t, []string{"10:00"}, got[2].Slots)
}

func TestBookingRepo_CreateRejectsDuplicate(t *testing.T) {
	db := testutil.OpenSQLite(t)
	repo := NewBookingRepo(db)
	ctx := context.Background()

	first := model.Booking{Treatment: "Cardiology", AppointmentDate: "2024-01-01", Slot: "08:00", Email: "a@x.com"}
	require.NoError(t, repo.Create(ctx, &first))
	assert.NotEmpty(t, first.ID)

	dup := model.Booking{Treatment: "Cardiology", AppointmentDate: "2024-01-01", Slot: "09:00", Email: "A@x.com "}
	assert.ErrorIs(t, repo.Create(ctx, &dup), ErrDuplicateBooking)

	byDate, err := repo.ListByDate(ctx, strptr("2024-01-01"))
	require.NoError(t, err)
	assert.Len(t, byDate, 1)

	byDate, err = repo.ListByDate(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, byDate)
}

func TestBookingRepo_MarkPaidAndBareInsert(t *testing.T) {
	db := testutil.OpenSQLite(t)
	repo := NewBookingRepo(db)
	ctx := context.Background()

	b := model.Booking{Treatment: "Dental", AppointmentDate: "2024-02-02", Slot: "09:00", Email: "c@x.com", Price: 4000}
	require.NoError(t, repo.Create(ctx, &b))

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	found, err := repo.MarkPaidTx(ctx, tx, b.ID)
	require.NoError(t, err)
	assert.True(t, found)
	found, err = repo.MarkPaidTx(ctx, tx, "missing")
	require.NoError(t, err)
	assert.False(t, found)
	require.NoError(t, repo.InsertPaidTx(ctx, tx, "bare-1"))
	require.NoError(t, tx.Commit())

	got, err := repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, got.Paid)
	assert.Equal(t, int64(4000), got.Price)

	bare, err := repo.GetByID(ctx, "bare-1")
	require.NoError(t, err)
	assert.True(t, bare.Paid)
	assert.Empty(t, bare.Treatment)

	_, err = repo.GetByID(ctx, "nope")
	assert.ErrorIs(t, err, ErrBookingNotFound)

	mine, err := repo.ListByEmail(ctx, "C@X.com")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, b.ID, mine[0].ID)
}

func TestBookingRepo_CreateMapsMySQLDuplicate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO bookings").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	mock.ExpectExec("INSERT INTO bookings").
		WillReturnError(&mysql.MySQLError{Number: 1213, Message: "Deadlock found"})

	repo := NewBookingRepo(db)
	b := model.Booking{Treatment: "Dental", AppointmentDate: "d", Slot: "s", Email: "e@x.com"}
	assert.ErrorIs(t, repo.Create(context.Background(), &b), ErrDuplicateBooking)

	b2 := model.Booking{Treatment: "Dental", AppointmentDate: "d", Slot: "s", Email: "e@x.com"}
	err = repo.Create(context.Background(), &b2)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrDuplicateBooking))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_RegisterPromote(t *testing.T) {
	db := testutil.OpenSQLite(t)
	repo := NewUserRepo(db)
	ctx := context.Background()

	id, existing, err := repo.Register(ctx, "Ann", "Ann@x.com")
	require.NoError(t, err)
	assert.False(t, existing)

	again, existing, err := repo.Register(ctx, "Ann B", "ann@x.com")
	require.NoError(t, err)
	assert.True(t, existing)
	assert.Equal(t, id, again)

	isAdmin, err := repo.IsAdmin(ctx, "ann@x.com")
	require.NoError(t, err)
	assert.False(t, isAdmin)

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	res, err := repo.PromoteTx(ctx, tx, id)
	require.NoError(t, err)
	assert.Equal(t, PromoteResult{MatchedCount: 1, ModifiedCount: 1}, res)
	res, err = repo.PromoteTx(ctx, tx, id)
	require.NoError(t, err)
	assert.Equal(t, PromoteResult{MatchedCount: 1}, res)
	_, err = repo.PromoteTx(ctx, tx, "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
	require.NoError(t, repo.InsertAdminTx(ctx, tx, "ghost"))
	require.NoError(t, tx.Commit())

	isAdmin, err = repo.IsAdmin(ctx, "ann@x.com")
	require.NoError(t, err)
	assert.True(t, isAdmin)

	isAdmin, err = repo.IsAdmin(ctx, "nobody@x.com")
	require.NoError(t, err)
	assert.False(t, isAdmin)

	users, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "ghost", users[0].ID)
	assert.True(t, users[0].IsAdmin())
	assert.Equal(t, "ann@x.com", users[1].Email)
}

func TestDoctorRepo_CRUD(t *testing.T) {
	db := testutil.OpenSQLite(t)
	repo := NewDoctorRepo(db)
	ctx := context.Background()

	d := model.Doctor{Name: "Dr. Who", Email: "who@x.com", Specialty: "Cardiology"}
	require.NoError(t, repo.Create(ctx, &d))

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, d, list[0])

	require.NoError(t, repo.Delete(ctx, d.ID))
	assert.ErrorIs(t, repo.Delete(ctx, d.ID), ErrDoctorNotFound)
}

func TestPaymentRepo_CreateTx(t *testing.T) {
	db := testutil.OpenSQLite(t)
	repo := NewPaymentRepo(db)
	ctx := context.Background()

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	p := model.Payment{BookingID: "b1", Amount: 4000, Currency: "usd", TransactionID: "pi_1", Email: "a@x.com"}
	require.NoError(t, repo.CreateTx(ctx, tx, &p))
	require.NoError(t, tx.Commit())

	got, err := repo.ListByBooking(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, p, got[0])
}
