package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mahmut0ff/Modern-HandShakeMeApp-sub006/internal/auth"
	"github.com/mahmut0ff/Modern-HandShakeMeApp-sub006/internal/catalog"
)

type testEnv struct {
	svc      Service
	repo     *memRepo
	catalog  *mockCatalog
	payments *mockPayments
	notifier *mockNotifier
	clock    *fakeClock
}

// newTestEnv wires the service against an in-memory repository. Service
// "auto" confirms on creation, "manual" waits for the master.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	e := &testEnv{
		repo:     newMemRepo(),
		catalog:  &mockCatalog{},
		payments: &mockPayments{},
		notifier: &mockNotifier{},
		clock:    &fakeClock{now: testNow},
	}

	e.catalog.On("GetMaster", mock.Anything, "master-1").Return(&catalog.Master{ID: "master-1", Name: "Aibek"}, nil).Maybe()
	e.catalog.On("GetMaster", mock.Anything, "ghost").Return(nil, catalog.ErrMasterNotFound).Maybe()
	e.catalog.On("GetServiceInfo", mock.Anything, "auto", "master-1").Return(testServiceInfo("auto", true), nil).Maybe()
	e.catalog.On("GetServiceInfo", mock.Anything, "manual", "master-1").Return(testServiceInfo("manual", false), nil).Maybe()
	e.catalog.On("GetServiceInfo", mock.Anything, "missing", "master-1").Return(nil, catalog.ErrServiceNotFound).Maybe()
	offline := testServiceInfo("offline", true)
	offline.Active = false
	e.catalog.On("GetServiceInfo", mock.Anything, "offline", "master-1").Return(offline, nil).Maybe()

	e.svc = NewService(e.repo, e.catalog, e.payments, e.notifier, DefaultPolicy(time.UTC), WithClock(e.clock.Now))
	return e
}

func testServiceInfo(id string, autoConfirm bool) *catalog.ServiceInfo {
	return &catalog.ServiceInfo{
		ID:              id,
		MasterID:        "master-1",
		Name:            "Haircut " + id,
		BasePrice:       1000,
		DurationMinutes: 60,
		InstantBooking:  true,
		AutoConfirm:     autoConfirm,
		Active:          true,
	}
}

// allowSideEffects lets every payment and notification call succeed.
func (e *testEnv) allowSideEffects() {
	e.payments.On("Capture", mock.Anything, mock.Anything).Return(nil).Maybe()
	for _, method := range []string{"Refund", "AdditionalCharge", "PartialRefund", "Payout"} {
		e.payments.On(method, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	}
	e.notifier.On("Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
}

func (e *testEnv) create(t *testing.T, serviceID string, start time.Time) *Booking {
	t.Helper()
	res, err := e.svc.Create(context.Background(), clientActor, CreateRequest{
		ServiceID:      serviceID,
		MasterID:       "master-1",
		ScheduledStart: start,
	})
	require.NoError(t, err)
	return res.Booking
}

func (e *testEnv) stored(t *testing.T, id string) Booking {
	t.Helper()
	b, err := e.repo.GetBooking(context.Background(), id)
	require.NoError(t, err)
	return *b
}

func tomorrowAt(hour, minute int) time.Time {
	return time.Date(2026, 3, 11, hour, minute, 0, 0, time.UTC)
}

func TestCreate_AutoConfirmedBooking(t *testing.T) {
	e := newTestEnv(t)
	e.allowSideEffects()

	res, err := e.svc.Create(context.Background(), clientActor, CreateRequest{
		ServiceID:      "auto",
		MasterID:       "master-1",
		ScheduledStart: tomorrowAt(10, 0),
		Notes:          "second floor",
	})
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)

	b := res.Booking
	assert.NotEmpty(t, b.ID)
	assert.Equal(t, StatusConfirmed, b.Status)
	assert.True(t, b.AutoConfirmed)
	assert.Nil(t, b.ExpiresAt)
	assert.Equal(t, "client-1", b.ClientID)
	assert.Equal(t, "Haircut auto", b.ServiceName)
	assert.Equal(t, 60, b.DurationMinutes)
	assert.Equal(t, b.ScheduledStart.Add(time.Hour), b.ScheduledEnd)
	assert.False(t, b.UrgentBooking)
	assert.Equal(t, int64(1000), b.BaseAmount)
	assert.Equal(t, int64(0), b.UrgentFee)
	assert.Equal(t, int64(1000), b.TotalAmount)
	assert.Equal(t, int64(50), b.PlatformFee)

	assert.Equal(t, *b, e.stored(t, b.ID))
	e.payments.AssertNumberOfCalls(t, "Capture", 1)
	e.notifier.AssertCalled(t, "Notify", mock.Anything, "client-1", mock.Anything, NotifyNewBooking)
	e.notifier.AssertCalled(t, "Notify", mock.Anything, "master-1", mock.Anything, NotifyNewBooking)
}

func TestCreate_PendingBookingHasDeadline(t *testing.T) {
	e := newTestEnv(t)
	e.allowSideEffects()

	b := e.create(t, "manual", tomorrowAt(10, 0))

	assert.Equal(t, StatusPending, b.Status)
	require.NotNil(t, b.ExpiresAt)
	assert.Equal(t, testNow.Add(30*time.Minute), *b.ExpiresAt)
	e.payments.AssertNotCalled(t, "Capture", mock.Anything, mock.Anything)
}

func TestCreate_UrgentPricing(t *testing.T) {
	e := newTestEnv(t)
	e.allowSideEffects()

	b := e.create(t, "auto", testNow.Add(90*time.Minute))

	assert.True(t, b.UrgentBooking)
	assert.Equal(t, int64(250), b.UrgentFee)
	assert.Equal(t, int64(1250), b.TotalAmount)
	assert.Equal(t, b.BaseAmount+b.UrgentFee, b.TotalAmount)
}

func TestCreate_RejectsInvalidTime(t *testing.T) {
	tests := []struct {
		name     string
		start    time.Time
		duration int
	}{
		{"in the past", testNow.Add(-time.Hour), 60},
		{"too little lead", testNow.Add(5 * time.Minute), 60},
		{"too far ahead", testNow.AddDate(0, 0, 31), 60},
		{"before business hours", tomorrowAt(5, 0), 60},
		{"after business hours", tomorrowAt(22, 30), 60},
		{"too short", tomorrowAt(10, 0), 10},
		{"too long", tomorrowAt(10, 0), 600},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)

			_, err := e.svc.Create(context.Background(), clientActor, CreateRequest{
				ServiceID:       "auto",
				MasterID:        "master-1",
				ScheduledStart:  tt.start,
				DurationMinutes: tt.duration,
			})

			assert.ErrorIs(t, err, ErrValidation)
			assert.Empty(t, e.repo.bookings)
			e.catalog.AssertNotCalled(t, "GetServiceInfo", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestCreate_LookupFailures(t *testing.T) {
	tests := []struct {
		name      string
		masterID  string
		serviceID string
		want      error
	}{
		{"unknown master", "ghost", "auto", ErrMasterNotFound},
		{"unknown service", "master-1", "missing", ErrServiceNotFound},
		{"inactive service", "master-1", "offline", ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)

			_, err := e.svc.Create(context.Background(), clientActor, CreateRequest{
				ServiceID:      tt.serviceID,
				MasterID:       tt.masterID,
				ScheduledStart: tomorrowAt(10, 0),
			})

			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, e.repo.bookings)
		})
	}
}

func TestCreate_ActorRules(t *testing.T) {
	e := newTestEnv(t)
	e.allowSideEffects()
	req := CreateRequest{ServiceID: "auto", MasterID: "master-1", ScheduledStart: tomorrowAt(10, 0)}

	_, err := e.svc.Create(context.Background(), masterActor, req)
	assert.ErrorIs(t, err, ErrPermission)

	onBehalf := req
	onBehalf.ClientID = "client-2"
	_, err = e.svc.Create(context.Background(), clientActor, onBehalf)
	assert.ErrorIs(t, err, ErrPermission)

	_, err = e.svc.Create(context.Background(), adminActor, req)
	assert.ErrorIs(t, err, ErrValidation)

	res, err := e.svc.Create(context.Background(), adminActor, onBehalf)
	require.NoError(t, err)
	assert.Equal(t, "client-2", res.Booking.ClientID)
}

func TestEndToEnd_ConflictThenCancellation(t *testing.T) {
	e := newTestEnv(t)
	e.allowSideEffects()
	// 30 hours before tomorrow 10:00.
	e.clock.Set(tomorrowAt(10, 0).Add(-30 * time.Hour))

	first := e.create(t, "auto", tomorrowAt(10, 0))
	assert.Equal(t, tomorrowAt(11, 0), first.ScheduledEnd)
	assert.Equal(t, int64(1000), first.TotalAmount)
	assert.False(t, first.UrgentBooking)

	_, err := e.svc.Create(context.Background(), otherClient, CreateRequest{
		ServiceID:      "auto",
		MasterID:       "master-1",
		ScheduledStart: tomorrowAt(10, 30),
	})
	assert.ErrorIs(t, err, ErrConflict)
	assert.Len(t, e.repo.bookings, 1)

	res, err := e.svc.Manage(context.Background(), clientActor, first.ID, ManageRequest{Action: ActionCancel})
	require.NoError(t, err)

	assert.Equal(t, StatusCancelled, res.Booking.Status)
	assert.Equal(t, int64(0), *res.Booking.CancellationFee)
	assert.Equal(t, int64(1000), *res.Booking.RefundAmount)
	e.payments.AssertCalled(t, "Refund", mock.Anything, mock.Anything, int64(1000))
	e.notifier.AssertCalled(t, "Notify", mock.Anything, "master-1", mock.Anything, NotifyCancelled)
}

func TestCreate_ConcurrentRequestsForOneSlot(t *testing.T) {
	e := newTestEnv(t)
	e.allowSideEffects()

	const n = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.svc.Create(context.Background(), clientActor, CreateRequest{
				ServiceID:      "auto",
				MasterID:       "master-1",
				ScheduledStart: tomorrowAt(10, 0),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, n-1, conflicts)
}

func TestManage_ConfirmCapturesPayment(t *testing.T) {
	e := newTestEnv(t)
	e.allowSideEffects()
	b := e.create(t, "manual", tomorrowAt(10, 0))

	res, err := e.svc.Manage(context.Background(), masterActor, b.ID, ManageRequest{Action: ActionConfirm})
	require.NoError(t, err)

	assert.Equal(t, StatusConfirmed, res.Booking.Status)
	assert.Nil(t, res.Booking.ExpiresAt)
	assert.Equal(t, testNow, *res.Booking.ConfirmedAt)
	e.payments.AssertNumberOfCalls(t, "Capture", 1)
	e.notifier.AssertCalled(t, "Notify", mock.Anything, "client-1", mock.Anything, NotifyConfirmed)
	e.notifier.AssertNotCalled(t, "Notify", mock.Anything, "master-1", mock.Anything, NotifyConfirmed)
}

func TestManage_ConfirmAfterDeadlineExpiresBooking(t *testing.T) {
	e := newTestEnv(t)
	e.allowSideEffects()
	b := e.create(t, "manual", tomorrowAt(10, 0))

	e.clock.Advance(31 * time.Minute)

	_, err := e.svc.Manage(context.Background(), masterActor, b.ID, ManageRequest{Action: ActionConfirm})
	assert.ErrorIs(t, err, ErrExpired)

	got, err := e.svc.Get(context.Background(), clientActor, b.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, got.Status)
	require.NotNil(t, got.ExpiredAt)
	assert.Equal(t, StatusExpired, e.stored(t, b.ID).Status)
	e.payments.AssertNotCalled(t, "Capture", mock.Anything, mock.Anything)
}

func TestManage_ConfirmRechecksCalendar(t *testing.T) {
	e := newTestEnv(t)
	e.allowSideEffects()

	first := e.create(t, "manual", tomorrowAt(10, 0))
	second := e.create(t, "manual", tomorrowAt(10, 30))

	_, err := e.svc.Manage(context.Background(), masterActor, first.ID, ManageRequest{Action: ActionConfirm})
	require.NoError(t, err)

	_, err = e.svc.Manage(context.Background(), masterActor, second.ID, ManageRequest{Action: ActionConfirm})
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, StatusPending, e.stored(t, second.ID).Status)
}

func TestManage_CancelRefundsOnlyCapturedPayments(t *testing.T) {
	t.Run("pending booking", func(t *testing.T) {
		e := newTestEnv(t)
		e.allowSideEffects()
		b := e.create(t, "manual", tomorrowAt(10, 0))

		res, err := e.svc.Manage(context.Background(), clientActor, b.ID, ManageRequest{Action: ActionCancel})
		require.NoError(t, err)

		assert.Equal(t, int64(0), *res.Booking.CancellationFee)
		assert.Equal(t, int64(1000), *res.Booking.RefundAmount)
		e.payments.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("confirmed booking inside 24h", func(t *testing.T) {
		e := newTestEnv(t)
		e.allowSideEffects()
		b := e.create(t, "auto", testNow.Add(10*time.Hour))

		res, err := e.svc.Manage(context.Background(), masterActor, b.ID, ManageRequest{Action: ActionCancel})
		require.NoError(t, err)

		assert.Equal(t, int64(250), *res.Booking.CancellationFee)
		assert.Equal(t, int64(750), *res.Booking.RefundAmount)
		e.payments.AssertCalled(t, "Refund", mock.Anything, mock.Anything, int64(750))
		e.notifier.AssertCalled(t, "Notify", mock.Anything, "client-1", mock.Anything, NotifyCancelled)
	})
}

func TestManage_RescheduleIntoUrgentWindowCharges(t *testing.T) {
	e := newTestEnv(t)
	e.allowSideEffects()
	b := e.create(t, "auto", tomorrowAt(10, 0))
	newStart := testNow.Add(time.Hour)

	res, err := e.svc.Manage(context.Background(), clientActor, b.ID, ManageRequest{
		Action:         ActionReschedule,
		ScheduledStart: &newStart,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusConfirmed, res.Booking.Status)
	assert.Equal(t, newStart, res.Booking.ScheduledStart)
	assert.True(t, res.Booking.UrgentBooking)
	assert.Equal(t, int64(1250), res.Booking.TotalAmount)
	e.payments.AssertCalled(t, "AdditionalCharge", mock.Anything, mock.Anything, int64(250))
	e.notifier.AssertCalled(t, "Notify", mock.Anything, "master-1", mock.Anything, NotifyRescheduled)
}

func TestManage_RescheduleOutOfUrgentWindowRefunds(t *testing.T) {
	e := newTestEnv(t)
	e.allowSideEffects()
	b := e.create(t, "auto", testNow.Add(time.Hour))
	newStart := tomorrowAt(15, 0)

	_, err := e.svc.Manage(context.Background(), clientActor, b.ID, ManageRequest{
		Action:         ActionReschedule,
		ScheduledStart: &newStart,
	})
	require.NoError(t, err)

	e.payments.AssertCalled(t, "PartialRefund", mock.Anything, mock.Anything, int64(250))
}

func TestManage_RescheduleConflictLeavesBookingUntouched(t *testing.T) {
	e := newTestEnv(t)
	e.allowSideEffects()
	b := e.create(t, "auto", tomorrowAt(10, 0))
	e.create(t, "auto", tomorrowAt(12, 0))
	before := e.stored(t, b.ID)

	clash := tomorrowAt(11, 30)
	_, err := e.svc.Manage(context.Background(), clientActor, b.ID, ManageRequest{
		Action:         ActionReschedule,
		ScheduledStart: &clash,
	})

	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, before, e.stored(t, b.ID))
}

func TestManage_RescheduleRequiresStart(t *testing.T) {
	e := newTestEnv(t)
	e.allowSideEffects()
	b := e.create(t, "auto", tomorrowAt(10, 0))

	_, err := e.svc.Manage(context.Background(), clientActor, b.ID, ManageRequest{Action: ActionReschedule})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestManage_StartAndCompletePaysOut(t *testing.T) {
	e := newTestEnv(t)
	e.allowSideEffects()
	b := e.create(t, "auto", testNow.Add(30*time.Minute))
	require.Equal(t, int64(1250), b.TotalAmount)
	require.Equal(t, int64(63), b.PlatformFee)

	e.clock.Advance(25 * time.Minute)
	res, err := e.svc.Manage(context.Background(), masterActor, b.ID, ManageRequest{Action: ActionStart})
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, res.Booking.Status)

	e.clock.Advance(time.Hour)
	res, err = e.svc.Manage(context.Background(), masterActor, b.ID, ManageRequest{Action: ActionComplete})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, res.Booking.Status)
	require.NotNil(t, res.Booking.CompletedAt)
	e.payments.AssertCalled(t, "Payout", mock.Anything, mock.Anything, int64(1187))
	e.notifier.AssertCalled(t, "Notify", mock.Anything, "client-1", mock.Anything, NotifyCompleted)
}

func TestManage_CompleteOnPendingFails(t *testing.T) {
	e := newTestEnv(t)
	e.allowSideEffects()
	b := e.create(t, "manual", tomorrowAt(10, 0))
	before := e.stored(t, b.ID)

	_, err := e.svc.Manage(context.Background(), masterActor, b.ID, ManageRequest{Action: ActionComplete})

	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, before, e.stored(t, b.ID))
	e.payments.AssertNotCalled(t, "Payout", mock.Anything, mock.Anything, mock.Anything)
}

func TestManage_SideEffectFailuresBecomeWarnings(t *testing.T) {
	e := newTestEnv(t)
	e.payments.On("Capture", mock.Anything, mock.Anything).Return(errors.New("card declined"))
	e.notifier.On("Notify", mock.Anything, "client-1", mock.Anything, mock.Anything).Return(errors.New("broker down"))
	e.allowSideEffects()
	b := e.create(t, "manual", tomorrowAt(10, 0))

	res, err := e.svc.Manage(context.Background(), masterActor, b.ID, ManageRequest{Action: ActionConfirm})
	require.NoError(t, err)

	assert.Equal(t, StatusConfirmed, res.Booking.Status)
	assert.Equal(t, StatusConfirmed, e.stored(t, b.ID).Status)
	assert.Equal(t, []string{"capture failed", "notification to client-1 failed"}, res.Warnings)
}

func TestManage_Errors(t *testing.T) {
	e := newTestEnv(t)
	e.allowSideEffects()
	b := e.create(t, "auto", tomorrowAt(10, 0))

	_, err := e.svc.Manage(context.Background(), clientActor, "nope", ManageRequest{Action: ActionCancel})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = e.svc.Manage(context.Background(), otherClient, b.ID, ManageRequest{Action: ActionCancel})
	assert.ErrorIs(t, err, ErrPermission)

	_, err = e.svc.Manage(context.Background(), clientActor, b.ID, ManageRequest{Action: "teleport"})
	assert.ErrorIs(t, err, ErrValidation)

	assert.Equal(t, StatusConfirmed, e.stored(t, b.ID).Status)
}

func TestGet_ChecksParticipants(t *testing.T) {
	e := newTestEnv(t)
	e.allowSideEffects()
	b := e.create(t, "auto", tomorrowAt(10, 0))

	for _, actor := range []auth.Identity{clientActor, masterActor, adminActor} {
		got, err := e.svc.Get(context.Background(), actor, b.ID)
		require.NoError(t, err)
		assert.Equal(t, b.ID, got.ID)
	}

	_, err := e.svc.Get(context.Background(), otherMaster, b.ID)
	assert.ErrorIs(t, err, ErrPermission)
}

func TestList_ScopesToActor(t *testing.T) {
	e := newTestEnv(t)
	e.allowSideEffects()
	mine := e.create(t, "auto", tomorrowAt(10, 0))
	res, err := e.svc.Create(context.Background(), otherClient, CreateRequest{
		ServiceID: "manual", MasterID: "master-1", ScheduledStart: tomorrowAt(14, 0),
	})
	require.NoError(t, err)
	theirs := res.Booking

	page, err := e.svc.List(context.Background(), clientActor, ListFilter{ClientID: "client-2"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, mine.ID, page.Items[0].ID)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, defaultPageSize, page.PageSize)

	page, err = e.svc.List(context.Background(), masterActor, ListFilter{Status: StatusPending})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, theirs.ID, page.Items[0].ID)

	page, err = e.svc.List(context.Background(), adminActor, ListFilter{Search: "manual"})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	_, err = e.svc.List(context.Background(), adminActor, ListFilter{Status: "LOST"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAvailableSlots(t *testing.T) {
	e := newTestEnv(t)
	e.allowSideEffects()
	e.catalog.On("GetMasterAvailability", mock.Anything, "master-1", time.Wednesday).
		Return([]catalog.WorkWindow{{MasterID: "master-1", DayOfWeek: time.Wednesday, StartTime: "09:00", EndTime: "13:00"}}, nil)
	e.create(t, "auto", tomorrowAt(10, 0))

	slots, err := e.svc.AvailableSlots(context.Background(), SlotsRequest{
		MasterID:  "master-1",
		ServiceID: "auto",
		Date:      time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	var starts []time.Time
	for _, s := range slots {
		starts = append(starts, s.Start)
		assert.Equal(t, int64(1000), s.Price)
		assert.False(t, s.IsUrgent)
	}
	assert.Equal(t, []time.Time{tomorrowAt(9, 0), tomorrowAt(11, 0), tomorrowAt(11, 30), tomorrowAt(12, 0)}, starts)
}

func TestAvailableSlots_UnknownService(t *testing.T) {
	e := newTestEnv(t)

	_, err := e.svc.AvailableSlots(context.Background(), SlotsRequest{
		MasterID:  "master-1",
		ServiceID: "missing",
		Date:      time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
	})
	assert.ErrorIs(t, err, ErrNotFound)
}
