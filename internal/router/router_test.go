package router

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/doctors-appointment/internal/availability"
	"github.com/iliyamo/doctors-appointment/internal/config"
	"github.com/iliyamo/doctors-appointment/internal/handler"
	"github.com/iliyamo/doctors-appointment/internal/metrics"
	"github.com/iliyamo/doctors-appointment/internal/middleware"
	"github.com/iliyamo/doctors-appointment/internal/model"
	"github.com/iliyamo/doctors-appointment/internal/payment"
	"github.com/iliyamo/doctors-appointment/internal/repository"
	"github.com/iliyamo/doctors-appointment/internal/service"
	"github.com/iliyamo/doctors-appointment/internal/testutil"
	"github.com/iliyamo/doctors-appointment/internal/utils"
)

type app struct {
	e      *echo.Echo
	db     *sql.DB
	tokens *utils.TokenService
	svc    *service.BookingService
}

// newApp wires the full router over a fresh SQLite store.  A non-nil rdb
// enables the availability cache.
func newApp(t *testing.T, rdb *redis.Client) *app {
	t.Helper()
	db := testutil.OpenSQLite(t)
	log := zerolog.Nop()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	treatments := repository.NewTreatmentRepo(db)
	bookings := repository.NewBookingRepo(db)
	payments := repository.NewPaymentRepo(db)
	users := repository.NewUserRepo(db)
	doctors := repository.NewDoctorRepo(db)
	tokens := utils.NewTokenService("test-secret", 60)

	var cache *middleware.ResponseCache
	if rdb != nil {
		cache = middleware.NewResponseCache(config.CacheConfig{
			Enabled:      true,
			Methods:      map[string]bool{http.MethodGet: true},
			TTL:          time.Minute,
			Prefix:       "cache",
			MaxBodyBytes: 1 << 20,
		}, rdb, log)
	}

	svc := service.NewBookingService(db, bookings, payments, service.BookingOptions{
		Cache:   cache,
		Metrics: m,
		Logger:  log,
	})

	ctx := context.Background()
	for _, tr := range []model.Treatment{
		{Name: "Cardiology", Slots: []string{"08:00", "09:00", "10:00"}, Price: 5000},
		{Name: "Dental", Slots: []string{"11:00"}, Price: 3000},
	} {
		tr := tr
		require.NoError(t, treatments.Upsert(ctx, &tr))
	}

	e := New(Deps{
		Logger:   log,
		Registry: reg,
		Metrics:  m,
		Cache:    cache,
		Tokens:   tokens,
		Admins:   users,

		Appointments: &handler.AppointmentHandler{
			Engine:     availability.NewEngine(treatments, bookings),
			Treatments: treatments,
		},
		Bookings: &handler.BookingHandler{Bookings: bookings, Service: svc},
		Payments: &handler.PaymentHandler{Bridge: payment.NewDryRun(log), Service: svc, Currency: "usd"},
		Users: &handler.UserHandler{
			Users:  users,
			Admin:  service.NewAdminService(db, users, false),
			Tokens: tokens,
		},
		Doctors: &handler.DoctorHandler{Doctors: doctors},
	})
	return &app{e: e, db: db, tokens: tokens, svc: svc}
}

func (a *app) do(t *testing.T, method, target, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

// register creates a user through the API and returns a token for it.
func (a *app) register(t *testing.T, email string) string {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/users", `{"name":"u","email":"`+email+`"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	tok, err := a.tokens.Issue(email)
	require.NoError(t, err)
	return tok.Token
}

func (a *app) makeAdmin(t *testing.T, email string) {
	t.Helper()
	_, err := a.db.Exec("UPDATE users SET role = ? WHERE email = ?", model.RoleAdmin, email)
	require.NoError(t, err)
}

func (a *app) book(t *testing.T, treatment, date, slot, email string) map[string]any {
	t.Helper()
	body := `{"treatment":"` + treatment + `","appointmentDate":"` + date +
		`","slot":"` + slot + `","patient":"P","email":"` + email + `","price":5000}`
	rec := a.do(t, http.MethodPost, "/bookings", body, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[map[string]any](t, rec)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func slotsByName(ts []model.Treatment) map[string][]string {
	out := map[string][]string{}
	for _, tr := range ts {
		out[tr.Name] = tr.Slots
	}
	return out
}

func TestOperationalRoutes(t *testing.T) {
	a := newApp(t, nil)

	rec := a.do(t, http.MethodGet, "/", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Doctors server is running", rec.Body.String())

	rec = a.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, "ok", rec.Body.String())

	rec = a.do(t, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "doctors_http_requests_total")
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestAvailability_MissingDateListsEverySlot(t *testing.T) {
	a := newApp(t, nil)
	a.book(t, "Cardiology", "2024-01-01", "09:00", "p@x.com")

	for _, path := range []string{"/appointmentOptions", "/v2/appointmentOptions"} {
		rec := a.do(t, http.MethodGet, path, "", "")
		require.Equal(t, http.StatusOK, rec.Code, path)
		got := slotsByName(decode[[]model.Treatment](t, rec))
		assert.Equal(t, []string{"08:00", "09:00", "10:00"}, got["Cardiology"], path)
		assert.Equal(t, []string{"11:00"}, got["Dental"], path)
	}
}

func TestAvailability_BothStrategiesAgree(t *testing.T) {
	a := newApp(t, nil)
	a.book(t, "Cardiology", "2024-01-01", "09:00", "p@x.com")
	a.book(t, "Dental", "2024-01-01", "11:00", "q@x.com")
	a.book(t, "Cardiology", "2024-01-02", "08:00", "r@x.com")

	v1 := a.do(t, http.MethodGet, "/appointmentOptions?date=2024-01-01", "", "")
	v2 := a.do(t, http.MethodGet, "/v2/appointmentOptions?date=2024-01-01", "", "")
	require.Equal(t, http.StatusOK, v1.Code)
	require.Equal(t, http.StatusOK, v2.Code)

	got := slotsByName(decode[[]model.Treatment](t, v1))
	assert.Equal(t, []string{"08:00", "10:00"}, got["Cardiology"])
	assert.Equal(t, []string{}, got["Dental"])
	assert.Equal(t, decode[[]model.Treatment](t, v1), decode[[]model.Treatment](t, v2))
}

func TestAvailability_CacheInvalidatedByBooking(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	a := newApp(t, rdb)

	first := a.do(t, http.MethodGet, "/v2/appointmentOptions?date=2024-01-01", "", "")
	require.Equal(t, http.StatusOK, first.Code)
	assert.NotEmpty(t, cachedResponses(mr), "first answer is cached")

	a.book(t, "Dental", "2024-01-01", "11:00", "p@x.com")
	assert.Empty(t, cachedResponses(mr), "booking drops cached availability")

	after := a.do(t, http.MethodGet, "/v2/appointmentOptions?date=2024-01-01", "", "")
	assert.Equal(t, "MISS", after.Header().Get("X-Cache"))
	assert.Equal(t, []string{}, slotsByName(decode[[]model.Treatment](t, after))["Dental"])
}

// cachedResponses lists stored response bodies, leaving out generation counters.
func cachedResponses(mr *miniredis.Miniredis) []string {
	var keys []string
	for _, k := range mr.Keys() {
		if strings.HasPrefix(k, "cache:route:") {
			keys = append(keys, k)
		}
	}
	return keys
}

func TestCreateBooking_DuplicateIsSoftRejected(t *testing.T) {
	a := newApp(t, nil)

	res := a.book(t, "Cardiology", "2024-01-01", "08:00", "p@x.com")
	assert.Equal(t, true, res["acknowledged"])
	assert.NotEmpty(t, res["insertedId"])

	res = a.book(t, "Cardiology", "2024-01-01", "10:00", "p@x.com")
	assert.Equal(t, false, res["acknowledged"])
	assert.Equal(t, "Already booked an appointment on 2024-01-01", res["message"])

	// Emails differing only in case belong to the same patient.
	assert.Equal(t, false, a.book(t, "Cardiology", "2024-01-01", "10:00", "P@X.com")["acknowledged"])

	// Changing any one of treatment, date or email makes it a new booking.
	assert.Equal(t, true, a.book(t, "Dental", "2024-01-01", "11:00", "p@x.com")["acknowledged"])
	assert.Equal(t, true, a.book(t, "Cardiology", "2024-01-02", "08:00", "p@x.com")["acknowledged"])
	assert.Equal(t, true, a.book(t, "Cardiology", "2024-01-01", "09:00", "q@x.com")["acknowledged"])

	var n int
	require.NoError(t, a.db.QueryRow(
		"SELECT COUNT(*) FROM bookings WHERE treatment_name = 'Cardiology' AND appointment_date = '2024-01-01' AND email = 'p@x.com'").Scan(&n))
	assert.Equal(t, 1, n)
}

func TestCreateBooking_Validation(t *testing.T) {
	a := newApp(t, nil)

	rec := a.do(t, http.MethodPost, "/bookings", `{"treatment":"Cardiology"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPost, "/bookings", `{not json`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetBooking(t *testing.T) {
	a := newApp(t, nil)
	id := a.book(t, "Cardiology", "2024-01-01", "08:00", "p@x.com")["insertedId"].(string)

	rec := a.do(t, http.MethodGet, "/bookings/"+id, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	b := decode[model.Booking](t, rec)
	assert.Equal(t, "08:00", b.Slot)
	assert.False(t, b.Paid)

	rec = a.do(t, http.MethodGet, "/bookings/does-not-exist", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListBookings_OnlyForSelf(t *testing.T) {
	a := newApp(t, nil)
	tokA := a.register(t, "a@x.com")
	tokB := a.register(t, "b@x.com")
	a.book(t, "Cardiology", "2024-01-01", "08:00", "a@x.com")
	a.book(t, "Dental", "2024-01-01", "11:00", "b@x.com")

	rec := a.do(t, http.MethodGet, "/bookings?email=a@x.com", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(t, http.MethodGet, "/bookings?email=a@x.com", "", "garbage")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(t, http.MethodGet, "/bookings?email=a@x.com", "", tokB)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden access", decode[map[string]string](t, rec)["error"])

	rec = a.do(t, http.MethodGet, "/bookings?email=a@x.com", "", tokA)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]model.Booking](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "a@x.com", list[0].Email)
}

func TestDoctors_AdminOnly(t *testing.T) {
	a := newApp(t, nil)
	user := a.register(t, "user@x.com")
	admin := a.register(t, "admin@x.com")
	a.makeAdmin(t, "admin@x.com")

	body := `{"name":"Dr. Who","email":"who@x.com","specialty":"Cardiology"}`
	rec := a.do(t, http.MethodPost, "/doctors", body, user)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(t, http.MethodPost, "/doctors", body, admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	id := decode[map[string]any](t, rec)["insertedId"].(string)

	rec = a.do(t, http.MethodGet, "/doctors", "", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	docs := decode[[]model.Doctor](t, rec)
	require.Len(t, docs, 1)
	assert.Equal(t, "Dr. Who", docs[0].Name)

	rec = a.do(t, http.MethodPost, "/doctors", `{"name":"No Email"}`, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodDelete, "/doctors/"+id, "", admin)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = a.do(t, http.MethodDelete, "/doctors/"+id, "", admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSpecialities_AdminOnly(t *testing.T) {
	a := newApp(t, nil)
	admin := a.register(t, "admin@x.com")

	rec := a.do(t, http.MethodGet, "/speciality", "", admin)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	a.makeAdmin(t, "admin@x.com")
	rec = a.do(t, http.MethodGet, "/speciality", "", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"name":"Cardiology"},{"name":"Dental"}]`, rec.Body.String())
}

func TestPayments_MarkBookingPaid(t *testing.T) {
	a := newApp(t, nil)
	id := a.book(t, "Cardiology", "2024-01-01", "08:00", "p@x.com")["insertedId"].(string)

	rec := a.do(t, http.MethodPost, "/payments",
		`{"bookingId":"`+id+`","transactionId":"pi_123","price":5000,"email":"p@x.com"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[map[string]any](t, rec)
	assert.Equal(t, true, res["acknowledged"])
	assert.Equal(t, id, res["bookingId"])
	assert.Equal(t, false, res["upserted"])

	rec = a.do(t, http.MethodGet, "/bookings/"+id, "", "")
	assert.True(t, decode[model.Booking](t, rec).Paid)

	var ref string
	require.NoError(t, a.db.QueryRow("SELECT booking_id FROM payments WHERE transaction_id = 'pi_123'").Scan(&ref))
	assert.Equal(t, id, ref)

	rec = a.do(t, http.MethodPost, "/payments", `{"bookingId":"missing","transactionId":"pi_9"}`, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, http.MethodPost, "/payments", `{"bookingId":"`+id+`"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreatePaymentIntent(t *testing.T) {
	a := newApp(t, nil)

	rec := a.do(t, http.MethodPost, "/create-payment-intent", `{"price":49.99}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(decode[map[string]string](t, rec)["clientSecret"], "pi_dryrun_"))

	rec = a.do(t, http.MethodPost, "/create-payment-intent", `{"price":0}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUsers_RegisterTokenAndPromote(t *testing.T) {
	a := newApp(t, nil)

	// A role in the body is ignored.
	rec := a.do(t, http.MethodPost, "/users", `{"name":"B","email":"b@x.com","role":"admin"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	created := decode[map[string]any](t, rec)
	bID := created["insertedId"].(string)

	rec = a.do(t, http.MethodPost, "/users", `{"name":"B","email":"B@x.com"}`, "")
	again := decode[map[string]any](t, rec)
	assert.Equal(t, true, again["existing"])
	assert.Equal(t, bID, again["id"])

	rec = a.do(t, http.MethodGet, "/users/admin/b@x.com", "", "")
	assert.JSONEq(t, `{"isAdmin":false}`, rec.Body.String())

	rec = a.do(t, http.MethodGet, "/jwt?email=b@x.com", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decode[map[string]string](t, rec)["accessToken"])

	rec = a.do(t, http.MethodGet, "/jwt?email=nobody@x.com", "", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"accessToken":null}`, rec.Body.String())

	admin := a.register(t, "admin@x.com")
	a.makeAdmin(t, "admin@x.com")

	rec = a.do(t, http.MethodPatch, "/make-admin?id="+bID, "", admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"matchedCount":1,"modifiedCount":1}`, rec.Body.String())

	rec = a.do(t, http.MethodGet, "/users/admin/b@x.com", "", "")
	assert.JSONEq(t, `{"isAdmin":true}`, rec.Body.String())

	rec = a.do(t, http.MethodPatch, "/make-admin?id=unknown", "", admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, http.MethodGet, "/users", "", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.User](t, rec), 2)
}
