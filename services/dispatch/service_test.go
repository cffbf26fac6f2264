package dispatch

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"scrap-pickup/apperrors"
	"scrap-pickup/constants"
	"scrap-pickup/database"
	bookingModel "scrap-pickup/models/booking"
	collectorModel "scrap-pickup/models/collector"
	materialModel "scrap-pickup/models/material"
	"scrap-pickup/models/user"
	bookingSvc "scrap-pickup/services/booking"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Booking pickup point used throughout; collectors are placed relative to it
// by shifting latitude (1 degree of latitude is ~111.19 km).
const (
	pickupLat = 23.7800
	pickupLng = 90.4000

	kmPerLatDegree = 111.19
)

func latOffsetKm(km float64) float64 {
	return pickupLat + km/kmPerLatDegree
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.MigrateForTest(db))
	return db
}

func newServices(t *testing.T) (*gorm.DB, *bookingSvc.Service, *Service) {
	t.Helper()
	db := newTestDB(t)
	bookings := bookingSvc.NewService(db, nil, nil)
	return db, bookings, NewService(db, bookings)
}

func seedCollector(t *testing.T, db *gorm.DB, capacity int, rating *float64, distanceKm float64, sampledAt time.Time) user.User {
	t.Helper()
	u := user.User{
		Uuid:  uuid.NewString(),
		Name:  "Collector",
		Phone: uuid.NewString()[:12],
		Role:  constants.RoleCollector,
	}
	require.NoError(t, db.Create(&u).Error)

	prof := collectorModel.Collector{
		UserID:           u.ID,
		IsActive:         true,
		IsVerified:       true,
		Rating:           rating,
		MaxDailyCapacity: capacity,
	}
	require.NoError(t, db.Create(&prof).Error)

	sample := collectorModel.LocationSample{
		ID:          uuid.NewString(),
		CollectorID: u.ID,
		Latitude:    latOffsetKm(distanceKm),
		Longitude:   pickupLng,
		Status:      collectorModel.LocationStatusAvailable,
		SampledAt:   sampledAt,
	}
	require.NoError(t, db.Create(&sample).Error)
	return u
}

func seedPendingBooking(t *testing.T, db *gorm.DB, bookings *bookingSvc.Service) *bookingModel.Booking {
	t.Helper()
	customer := user.User{
		Uuid:  uuid.NewString(),
		Name:  "Customer",
		Phone: uuid.NewString()[:12],
		Role:  constants.RoleCustomer,
	}
	require.NoError(t, db.Create(&customer).Error)

	mat := materialModel.Material{
		Name: "Copper " + uuid.NewString()[:8], Category: "metal", PricePerKg: 10, IsActive: true,
	}
	require.NoError(t, db.Create(&mat).Error)

	b, err := bookings.Create(bookingSvc.CreateInput{
		CustomerID:    customer.ID,
		PickupAddress: "12 Recycling Lane",
		Latitude:      pickupLat,
		Longitude:     pickupLng,
		ScheduledAt:   time.Now().Add(24 * time.Hour),
		Materials:     []bookingSvc.MaterialLineInput{{MaterialID: mat.ID, Quantity: 2}},
	})
	require.NoError(t, err)
	return b
}

func rating(v float64) *float64 { return &v }

func TestScoreWeighsDistanceOverRating(t *testing.T) {
	db, _, svc := newServices(t)

	near := seedCollector(t, db, 10, rating(4.5), 2, time.Now())
	far := seedCollector(t, db, 10, rating(5.0), 5, time.Now())

	candidates, err := svc.FindNearby(pickupLat, pickupLng, svc.SearchRadiusKm)
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	for i := range candidates {
		avail, err := svc.CollectorAvailability(candidates[i].Profile.UserID,
			candidates[i].Profile.MaxDailyCapacity, time.Now())
		require.NoError(t, err)
		candidates[i].Availability = avail
		candidates[i].Score = svc.score(&candidates[i], svc.SearchRadiusKm)
	}
	rank(candidates)

	// Near, lower-rated collector:
	//   distance (1-2/15)*0.40 + capacity 1.0*0.30 + rating (4.5/5)*0.20
	//   + responsiveness (1-4/60)*0.10 = 0.920
	// Far, top-rated collector:
	//   (1-5/15)*0.40 + 0.30 + 0.20 + (1-10/60)*0.10 = 0.850
	assert.Equal(t, near.ID, candidates[0].Profile.UserID)
	assert.InDelta(t, 0.920, candidates[0].Score, 0.005)
	assert.Equal(t, far.ID, candidates[1].Profile.UserID)
	assert.InDelta(t, 0.850, candidates[1].Score, 0.005)
}

func TestFindNearbyExcludesStaleSamples(t *testing.T) {
	db, _, svc := newServices(t)

	fresh := seedCollector(t, db, 10, nil, 3, time.Now())
	seedCollector(t, db, 10, nil, 1, time.Now().Add(-2*time.Hour))

	candidates, err := svc.FindNearby(pickupLat, pickupLng, svc.SearchRadiusKm)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, fresh.ID, candidates[0].Profile.UserID)
}

func TestFindNearbyExcludesBusyAndUnverified(t *testing.T) {
	db, _, svc := newServices(t)

	busy := seedCollector(t, db, 10, nil, 2, time.Now())
	require.NoError(t, db.Model(&collectorModel.LocationSample{}).
		Where("collector_id = ?", busy.ID).
		Update("status", collectorModel.LocationStatusBusy).Error)

	unverified := seedCollector(t, db, 10, nil, 2, time.Now())
	require.NoError(t, db.Model(&collectorModel.Collector{}).
		Where("user_id = ?", unverified.ID).
		Update("is_verified", false).Error)

	candidates, err := svc.FindNearby(pickupLat, pickupLng, svc.SearchRadiusKm)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestAutoAssignPicksBestCandidate(t *testing.T) {
	db, bookings, svc := newServices(t)

	best := seedCollector(t, db, 10, rating(4.5), 2, time.Now())
	seedCollector(t, db, 10, rating(5.0), 5, time.Now())
	b := seedPendingBooking(t, db, bookings)

	result, err := svc.AutoAssign(b.ID)
	require.NoError(t, err)
	assert.Equal(t, best.ID, result.CollectorUserID)
	assert.Equal(t, 1, result.Rounds)
	assert.Equal(t, bookingModel.BookingStatusAssigned, result.Booking.Status)

	history, err := bookings.GetHistory(b.ID, bookingSvc.SystemActor)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, constants.RoleSystem, history[1].ChangedByRole)
}

func TestAutoAssignExpandsRadiusOnce(t *testing.T) {
	db, bookings, svc := newServices(t)

	// Outside the 15km default, inside the doubled 30km radius.
	far := seedCollector(t, db, 10, nil, 20, time.Now())
	b := seedPendingBooking(t, db, bookings)

	result, err := svc.AutoAssign(b.ID)
	require.NoError(t, err)
	assert.Equal(t, far.ID, result.CollectorUserID)
}

func TestAutoAssignNoCandidates(t *testing.T) {
	db, bookings, svc := newServices(t)

	// Beyond even the doubled radius.
	seedCollector(t, db, 10, nil, 40, time.Now())
	b := seedPendingBooking(t, db, bookings)

	_, err := svc.AutoAssign(b.ID)
	assert.True(t, apperrors.IsNoCandidate(err))

	reloaded, err := bookings.GetByID(b.ID)
	require.NoError(t, err)
	assert.Equal(t, bookingModel.BookingStatusPending, reloaded.Status)
}

func TestAutoAssignSkipsFullCollector(t *testing.T) {
	db, bookings, svc := newServices(t)

	full := seedCollector(t, db, 1, rating(5.0), 1, time.Now())
	fallback := seedCollector(t, db, 10, nil, 8, time.Now())

	first := seedPendingBooking(t, db, bookings)
	_, err := bookings.AssignCollector(first.ID, full.ID, bookingSvc.SystemActor, "")
	require.NoError(t, err)

	second := seedPendingBooking(t, db, bookings)
	result, err := svc.AutoAssign(second.ID)
	require.NoError(t, err)
	assert.Equal(t, fallback.ID, result.CollectorUserID)
}

func TestConcurrentAutoAssignRespectsCapacity(t *testing.T) {
	db, bookings, svc := newServices(t)

	winner := seedCollector(t, db, 2, nil, 2, time.Now())

	const competing = 4
	ids := make([]string, competing)
	for i := range ids {
		ids[i] = seedPendingBooking(t, db, bookings).ID
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		exhausted int
	)
	for _, id := range ids {
		wg.Add(1)
		go func(bookingID string) {
			defer wg.Done()
			_, err := svc.AutoAssign(bookingID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case apperrors.IsNoCandidate(err):
				exhausted++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 2, succeeded)
	assert.Equal(t, 2, exhausted)

	var assignedCount int64
	require.NoError(t, db.Model(&bookingModel.Booking{}).
		Where("collector_id = ? AND status = ?", winner.ID, bookingModel.BookingStatusAssigned).
		Count(&assignedCount).Error)
	assert.EqualValues(t, 2, assignedCount)
}

func TestUpdateLocationLastWriteWinsByEventTime(t *testing.T) {
	db, _, svc := newServices(t)
	collector := seedCollector(t, db, 10, nil, 2, time.Now().Add(-10*time.Minute))

	base := time.Now()
	sample, applied, err := svc.UpdateLocation(collector.ID, 23.80, 90.41,
		collectorModel.LocationStatusAvailable, base)
	require.NoError(t, err)
	assert.True(t, applied)

	// An older sample arriving late must not overwrite the newer one.
	sample, applied, err = svc.UpdateLocation(collector.ID, 10.0, 10.0,
		collectorModel.LocationStatusBusy, base.Add(-5*time.Minute))
	require.NoError(t, err)
	assert.False(t, applied)
	assert.InDelta(t, 23.80, sample.Latitude, 1e-9)
	assert.Equal(t, collectorModel.LocationStatusAvailable, sample.Status)

	sample, applied, err = svc.UpdateLocation(collector.ID, 23.85, 90.42,
		collectorModel.LocationStatusBusy, base.Add(5*time.Minute))
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, collectorModel.LocationStatusBusy, sample.Status)

	var stored int64
	require.NoError(t, db.Model(&collectorModel.LocationSample{}).
		Where("collector_id = ?", collector.ID).Count(&stored).Error)
	assert.EqualValues(t, 1, stored)
}

func TestUpdateLocationRejectsBadInput(t *testing.T) {
	db, _, svc := newServices(t)
	collector := seedCollector(t, db, 10, nil, 2, time.Now())

	_, _, err := svc.UpdateLocation(collector.ID, 120, 90.4,
		collectorModel.LocationStatusAvailable, time.Now())
	var verr *apperrors.ValidationError
	require.ErrorAs(t, err, &verr)

	_, _, err = svc.UpdateLocation(collector.ID, 23.7, 90.4,
		collectorModel.LocationStatus("sleeping"), time.Now())
	require.ErrorAs(t, err, &verr)
}

func TestCollectorPerformance(t *testing.T) {
	db, bookings, svc := newServices(t)
	collector := seedCollector(t, db, 10, rating(4.2), 2, time.Now())

	actor := bookingSvc.Actor{ID: collector.ID, Role: constants.RoleCollector}
	for i := 0; i < 2; i++ {
		b := seedPendingBooking(t, db, bookings)
		_, err := bookings.AssignCollector(b.ID, collector.ID, bookingSvc.SystemActor, "")
		require.NoError(t, err)
		_, err = bookings.Transition(b.ID, bookingModel.BookingStatusAssigned,
			bookingModel.BookingStatusInProgress, actor, "")
		require.NoError(t, err)

		loaded, err := bookings.GetByID(b.ID)
		require.NoError(t, err)
		_, err = bookings.Complete(b.ID, actor,
			[]bookingSvc.ActualWeight{{MaterialID: loaded.Materials[0].MaterialID, Quantity: 1}}, nil)
		require.NoError(t, err)
	}

	cancelled := seedPendingBooking(t, db, bookings)
	_, err := bookings.AssignCollector(cancelled.ID, collector.ID, bookingSvc.SystemActor, "")
	require.NoError(t, err)
	_, err = bookings.Cancel(cancelled.ID, bookingSvc.SystemActor, "customer unavailable")
	require.NoError(t, err)

	perf, err := svc.CollectorPerformance(collector.ID, 30)
	require.NoError(t, err)
	assert.EqualValues(t, 3, perf.TotalBookings)
	assert.EqualValues(t, 2, perf.CompletedBookings)
	assert.EqualValues(t, 1, perf.CancelledBookings)
	assert.InDelta(t, 66.67, perf.CompletionRate, 0.01)
	require.NotNil(t, perf.Rating)
	assert.InDelta(t, 4.2, *perf.Rating, 1e-9)
}
