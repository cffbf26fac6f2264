package message

import (
	"scrap-pickup/apperrors"
	"scrap-pickup/middleware"
	messageModel "scrap-pickup/models/message"
	bookingSvc "scrap-pickup/services/booking"
	messageSvc "scrap-pickup/services/message"
	"scrap-pickup/types"
	"scrap-pickup/utils"

	"github.com/gofiber/fiber/v2"
)

// MessageController exposes per-booking chat over HTTP. The websocket path
// shares the same service, so both entry points persist and broadcast the
// same way.
type MessageController struct {
	Messages *messageSvc.Service
}

func NewMessageController(messages *messageSvc.Service) *MessageController {
	return &MessageController{Messages: messages}
}

func actorFromCtx(c *fiber.Ctx) bookingSvc.Actor {
	return bookingSvc.Actor{ID: middleware.CurrentUserID(c), Role: middleware.CurrentRole(c)}
}

// Send persists a message for a booking the caller is party to.
func (mc *MessageController) Send(c *fiber.Ctx) error {
	var req types.SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, &apperrors.ValidationError{Reason: "malformed request body"})
	}
	if err := types.Validate(req); err != nil {
		return utils.ErrorResponse(c, err)
	}

	msgType := messageModel.MessageTypeText
	if req.MessageType != "" {
		msgType = messageModel.MessageType(req.MessageType)
	}

	msg, err := mc.Messages.Send(actorFromCtx(c), messageSvc.SendInput{
		BookingID:  req.BookingID,
		ReceiverID: req.ReceiverID,
		Body:       req.Message,
		Type:       msgType,
	})
	if err != nil {
		return utils.ErrorResponse(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(types.ApiResponse{
		Message: "Message sent successfully",
		Status:  fiber.StatusCreated,
		Data:    msg,
	})
}

// Index lists a booking's messages oldest first.
func (mc *MessageController) Index(c *fiber.Ctx) error {
	limit, offset := utils.ParseLimitOffset(c)
	messages, err := mc.Messages.List(actorFromCtx(c), c.Params("id"), limit, offset)
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Message: "Messages fetched successfully",
		Status:  fiber.StatusOK,
		Data:    fiber.Map{"messages": messages, "limit": limit, "offset": offset},
	})
}

// MarkRead flips every unread message addressed to the caller in a booking.
func (mc *MessageController) MarkRead(c *fiber.Ctx) error {
	updated, err := mc.Messages.MarkRead(actorFromCtx(c), c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Message: "Messages marked as read",
		Status:  fiber.StatusOK,
		Data:    fiber.Map{"updated": updated},
	})
}
