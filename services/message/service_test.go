package message

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
	messageModel "scrap-pickup/models/message"
	"scrap-pickup/models/user"
	bookingSvc "scrap-pickup/services/booking"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type fixture struct {
	db        *gorm.DB
	bookings  *bookingSvc.Service
	messages  *Service
	broadcast *stubBroadcaster
	customer  user.User
	collector user.User
	booking   *bookingModel.Booking
}

type stubBroadcaster struct {
	mu     sync.Mutex
	toUser []uint
	rooms  []string
}

func (sb *stubBroadcaster) BroadcastToBooking(bookingID string, event string, data interface{}) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.rooms = append(sb.rooms, bookingID)
}

func (sb *stubBroadcaster) SendToUser(userID uint, event string, data interface{}) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.toUser = append(sb.toUser, userID)
}

func newFixture(t *testing.T) *fixture {
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

	customer := user.User{Uuid: uuid.NewString(), Name: "Customer", Phone: uuid.NewString()[:12], Role: constants.RoleCustomer}
	require.NoError(t, db.Create(&customer).Error)
	collectorUser := user.User{Uuid: uuid.NewString(), Name: "Collector", Phone: uuid.NewString()[:12], Role: constants.RoleCollector}
	require.NoError(t, db.Create(&collectorUser).Error)
	require.NoError(t, db.Create(&collectorModel.Collector{
		UserID: collectorUser.ID, IsActive: true, IsVerified: true, MaxDailyCapacity: 10,
	}).Error)

	mat := materialModel.Material{Name: "Copper", Category: "metal", PricePerKg: 10, IsActive: true}
	require.NoError(t, db.Create(&mat).Error)

	bookings := bookingSvc.NewService(db, nil, nil)
	b, err := bookings.Create(bookingSvc.CreateInput{
		CustomerID:    customer.ID,
		PickupAddress: "12 Recycling Lane",
		Latitude:      23.78,
		Longitude:     90.40,
		ScheduledAt:   time.Now().Add(24 * time.Hour),
		Materials:     []bookingSvc.MaterialLineInput{{MaterialID: mat.ID, Quantity: 1}},
	})
	require.NoError(t, err)
	b, err = bookings.AssignCollector(b.ID, collectorUser.ID, bookingSvc.SystemActor, "")
	require.NoError(t, err)

	broadcast := &stubBroadcaster{}
	return &fixture{
		db:        db,
		bookings:  bookings,
		messages:  NewService(db, bookings, broadcast),
		broadcast: broadcast,
		customer:  customer,
		collector: collectorUser,
		booking:   b,
	}
}

func TestSendPersistsAndBroadcasts(t *testing.T) {
	f := newFixture(t)
	actor := bookingSvc.Actor{ID: f.customer.ID, Role: constants.RoleCustomer}

	msg, err := f.messages.Send(actor, SendInput{
		BookingID:  f.booking.ID,
		ReceiverID: f.collector.ID,
		Body:       "please ring the bell",
	})
	require.NoError(t, err)
	assert.Equal(t, messageModel.MessageTypeText, msg.Type)
	assert.False(t, msg.IsRead)

	f.broadcast.mu.Lock()
	defer f.broadcast.mu.Unlock()
	assert.Equal(t, []uint{f.collector.ID}, f.broadcast.toUser)
	assert.Equal(t, []string{f.booking.ID}, f.broadcast.rooms)
}

func TestSendRejectsNonPartySender(t *testing.T) {
	f := newFixture(t)
	stranger := user.User{Uuid: uuid.NewString(), Name: "Stranger", Phone: uuid.NewString()[:12], Role: constants.RoleCustomer}
	require.NoError(t, f.db.Create(&stranger).Error)

	_, err := f.messages.Send(bookingSvc.Actor{ID: stranger.ID, Role: constants.RoleCustomer}, SendInput{
		BookingID:  f.booking.ID,
		ReceiverID: f.collector.ID,
		Body:       "hello",
	})
	var perr *apperrors.PermissionError
	require.ErrorAs(t, err, &perr)
}

func TestSendRejectsNonPartyReceiver(t *testing.T) {
	f := newFixture(t)
	stranger := user.User{Uuid: uuid.NewString(), Name: "Stranger", Phone: uuid.NewString()[:12], Role: constants.RoleCustomer}
	require.NoError(t, f.db.Create(&stranger).Error)

	_, err := f.messages.Send(bookingSvc.Actor{ID: f.customer.ID, Role: constants.RoleCustomer}, SendInput{
		BookingID:  f.booking.ID,
		ReceiverID: stranger.ID,
		Body:       "hello",
	})
	var verr *apperrors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "receiver_id", verr.Field)
}

func TestListOrdersOldestFirst(t *testing.T) {
	f := newFixture(t)
	customerActor := bookingSvc.Actor{ID: f.customer.ID, Role: constants.RoleCustomer}
	collectorActor := bookingSvc.Actor{ID: f.collector.ID, Role: constants.RoleCollector}

	for i, body := range []string{"first", "second", "third"} {
		actor, receiver := customerActor, f.collector.ID
		if i%2 == 1 {
			actor, receiver = collectorActor, f.customer.ID
		}
		_, err := f.messages.Send(actor, SendInput{
			BookingID:  f.booking.ID,
			ReceiverID: receiver,
			Body:       body,
		})
		require.NoError(t, err)
	}

	msgs, err := f.messages.List(customerActor, f.booking.ID, 20, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "first", msgs[0].Body)
	assert.Equal(t, "third", msgs[2].Body)
}

func TestMarkReadFlipsOnlyOwnUnread(t *testing.T) {
	f := newFixture(t)
	customerActor := bookingSvc.Actor{ID: f.customer.ID, Role: constants.RoleCustomer}
	collectorActor := bookingSvc.Actor{ID: f.collector.ID, Role: constants.RoleCollector}

	_, err := f.messages.Send(customerActor, SendInput{
		BookingID: f.booking.ID, ReceiverID: f.collector.ID, Body: "one",
	})
	require.NoError(t, err)
	_, err = f.messages.Send(customerActor, SendInput{
		BookingID: f.booking.ID, ReceiverID: f.collector.ID, Body: "two",
	})
	require.NoError(t, err)
	_, err = f.messages.Send(collectorActor, SendInput{
		BookingID: f.booking.ID, ReceiverID: f.customer.ID, Body: "reply",
	})
	require.NoError(t, err)

	updated, err := f.messages.MarkRead(collectorActor, f.booking.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, updated)

	// The collector's own outgoing message stays unread for the customer.
	var unread int64
	require.NoError(t, f.db.Model(&messageModel.Message{}).
		Where("booking_id = ? AND is_read = ?", f.booking.ID, false).
		Count(&unread).Error)
	assert.EqualValues(t, 1, unread)

	// Second pass is a no-op.
	updated, err = f.messages.MarkRead(collectorActor, f.booking.ID)
	require.NoError(t, err)
	assert.Zero(t, updated)
}
