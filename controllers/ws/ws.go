package ws

import (
	"encoding/json"
	"time"

	"scrap-pickup/constants"
	"scrap-pickup/logger"
	bookingModel "scrap-pickup/models/booking"
	collectorModel "scrap-pickup/models/collector"
	messageModel "scrap-pickup/models/message"
	"scrap-pickup/realtime"
	bookingSvc "scrap-pickup/services/booking"
	dispatchSvc "scrap-pickup/services/dispatch"
	messageSvc "scrap-pickup/services/message"
	"scrap-pickup/utils"

	"github.com/gofiber/websocket/v2"
)

// WSController owns the websocket session loop. Each connection is one
// registered client; inbound frames are commands that delegate to the same
// services the HTTP handlers use.
type WSController struct {
	Hub      *realtime.Hub
	Bookings *bookingSvc.Service
	Dispatch *dispatchSvc.Service
	Messages *messageSvc.Service
}

func NewWSController(hub *realtime.Hub, bookings *bookingSvc.Service, dispatch *dispatchSvc.Service, messages *messageSvc.Service) *WSController {
	return &WSController{Hub: hub, Bookings: bookings, Dispatch: dispatch, Messages: messages}
}

// Handle runs the session for one upgraded connection. Identity comes from
// the auth middleware that ran before the upgrade.
func (wc *WSController) Handle(conn *websocket.Conn) {
	userID, ok := conn.Locals("userID").(uint)
	if !ok || userID == 0 {
		conn.Close()
		return
	}
	role, _ := conn.Locals("role").(string)

	client := realtime.NewClient(conn, userID, role, wc.Hub.NextClientID())
	wc.Hub.Register(client)
	go client.WritePump()
	defer wc.Hub.Unregister(client)

	wc.Hub.SendToClient(client, realtime.EventAuthenticated, "", map[string]interface{}{
		"user_id": userID,
		"role":    role,
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var cmd realtime.Command
		if err := json.Unmarshal(raw, &cmd); err != nil {
			wc.sendError(client, "", "malformed frame")
			continue
		}
		wc.dispatchCommand(client, cmd)
	}
}

func (wc *WSController) dispatchCommand(client *realtime.Client, cmd realtime.Command) {
	switch cmd.Type {
	case realtime.CommandJoinBooking:
		wc.handleJoin(client, cmd)
	case realtime.CommandLeaveBooking:
		wc.Hub.LeaveBooking(client, cmd.BookingID)
		wc.Hub.SendToClient(client, realtime.EventLeftBooking, cmd.BookingID, nil)
	case realtime.CommandLocationUpdate:
		wc.handleLocation(client, cmd)
	case realtime.CommandStatusUpdate:
		wc.handleStatus(client, cmd)
	case realtime.CommandSendMessage:
		wc.handleMessage(client, cmd)
	default:
		wc.sendError(client, cmd.BookingID, "unknown command type")
	}
}

// handleJoin admits a client to a booking room after verifying it is party
// to the booking.
func (wc *WSController) handleJoin(client *realtime.Client, cmd realtime.Command) {
	actor := bookingSvc.Actor{ID: client.UserID, Role: client.Role}
	if _, err := wc.Bookings.GetForActor(cmd.BookingID, actor); err != nil {
		wc.sendError(client, cmd.BookingID, err.Error())
		return
	}
	wc.Hub.JoinBooking(client, cmd.BookingID)
	wc.Hub.SendToClient(client, realtime.EventJoinedBooking, cmd.BookingID, nil)
}

// handleLocation ingests a collector position sample. Stale samples are
// acknowledged but never applied; fresh ones are shared with the booking
// room when the command names a booking.
func (wc *WSController) handleLocation(client *realtime.Client, cmd realtime.Command) {
	if client.Role != constants.RoleCollector {
		wc.sendError(client, cmd.BookingID, "only collectors report locations")
		return
	}

	status := collectorModel.LocationStatusAvailable
	if cmd.Status != "" {
		status = collectorModel.LocationStatus(cmd.Status)
	}
	sampledAt := time.Now()
	if cmd.SampledAt != "" {
		parsed, err := time.Parse(time.RFC3339, cmd.SampledAt)
		if err != nil {
			wc.sendError(client, cmd.BookingID, "sampled_at must be RFC3339")
			return
		}
		sampledAt = parsed
	}

	sample, applied, err := wc.Dispatch.UpdateLocation(client.UserID, cmd.Latitude, cmd.Longitude, status, sampledAt)
	if err != nil {
		wc.sendError(client, cmd.BookingID, err.Error())
		return
	}

	if !applied {
		wc.Hub.SendToClient(client, realtime.EventLocationDiscarded, cmd.BookingID, map[string]interface{}{
			"stored_sampled_at": sample.SampledAt,
		})
		return
	}

	wc.Hub.SendToClient(client, realtime.EventLocationAccepted, cmd.BookingID, sample)
	if cmd.BookingID != "" {
		wc.Hub.BroadcastToBooking(cmd.BookingID, realtime.EventCollectorLocationUpdate, map[string]interface{}{
			"collector_id": client.UserID,
			"latitude":     sample.Latitude,
			"longitude":    sample.Longitude,
			"status":       sample.Status,
			"sampled_at":   sample.SampledAt,
		})
	}
}

// handleStatus applies a lifecycle transition over the socket. The stored
// status at read time is the optimistic guard, same as the HTTP path.
func (wc *WSController) handleStatus(client *realtime.Client, cmd realtime.Command) {
	actor := bookingSvc.Actor{ID: client.UserID, Role: client.Role}
	current, err := wc.Bookings.GetForActor(cmd.BookingID, actor)
	if err != nil {
		wc.sendError(client, cmd.BookingID, err.Error())
		return
	}

	_, err = wc.Bookings.Transition(current.ID, current.Status,
		bookingModel.BookingStatus(cmd.TargetStatus), actor, cmd.Notes)
	if err != nil {
		wc.sendError(client, cmd.BookingID, err.Error())
		return
	}
	// The committed transition broadcast reaches this client through the
	// booking room, no direct ack needed.
}

func (wc *WSController) handleMessage(client *realtime.Client, cmd realtime.Command) {
	actor := bookingSvc.Actor{ID: client.UserID, Role: client.Role}

	msgType := messageModel.MessageTypeText
	if cmd.MessageType != "" {
		msgType = messageModel.MessageType(cmd.MessageType)
	}

	_, err := wc.Messages.Send(actor, messageSvc.SendInput{
		BookingID:  cmd.BookingID,
		ReceiverID: cmd.ReceiverID,
		Body:       cmd.Body,
		Type:       msgType,
	})
	if err != nil {
		wc.sendError(client, cmd.BookingID, err.Error())
	}
}

func (wc *WSController) sendError(client *realtime.Client, bookingID, message string) {
	logger.Warning("WS error for user " + utils.FormatActorID(client.UserID) + ": " + message)
	wc.Hub.SendToClient(client, realtime.EventError, bookingID, map[string]interface{}{
		"message": message,
	})
}
