package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/yourorg/institute-portal/internal/config"
	"github.com/yourorg/institute-portal/internal/events"
	"github.com/yourorg/institute-portal/internal/models"
	"github.com/yourorg/institute-portal/internal/presence"
	"github.com/yourorg/institute-portal/internal/profile"
	"github.com/yourorg/institute-portal/internal/realtime"
	"github.com/yourorg/institute-portal/internal/repository"
	"github.com/yourorg/institute-portal/internal/sync"
	wshub "github.com/yourorg/institute-portal/internal/ws"
)

type SyncHandler struct {
	cfg      *config.Config
	repo     repository.Store
	bus      realtime.Bus
	broker   presence.Broker
	producer *events.Producer
	profiles *profile.Cache
	receipts *sync.ReceiptTracker
	hub      *wshub.Hub
	log      *zap.SugaredLogger
}

func NewSyncHandler(
	cfg *config.Config,
	repo repository.Store,
	bus realtime.Bus,
	broker presence.Broker,
	producer *events.Producer,
	profiles *profile.Cache,
	hub *wshub.Hub,
	log *zap.SugaredLogger,
) *SyncHandler {
	return &SyncHandler{
		cfg:      cfg,
		repo:     repo,
		bus:      bus,
		broker:   broker,
		producer: producer,
		profiles: profiles,
		receipts: sync.NewReceiptTracker(repo, bus, log),
		hub:      hub,
		log:      log,
	}
}

func (h *SyncHandler) requestCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), h.cfg.RequestTimeout)
}

func actor(c *fiber.Ctx) (string, models.Role) {
	userID, _ := c.Locals("user_id").(string)
	role, _ := c.Locals("role").(models.Role)
	return userID, role
}

// roomResponse annotates a visible room with its live viewer count.
type roomResponse struct {
	sync.RoomView
	Viewers int `json:"viewers"`
}

// ListRooms returns the rooms visible to the caller, with display names
// and how many clients currently hold each room open.
func (h *SyncHandler) ListRooms(c *fiber.Ctx) error {
	userID, role := actor(c)
	ctx, cancel := h.requestCtx()
	defer cancel()

	catalog, err := h.repo.ListRooms(ctx)
	if err != nil {
		h.log.Errorw("list rooms", "err", err)
		return fiber.ErrInternalServerError
	}
	// a missing profile only disables scoped-room correlation
	self, err := h.profiles.Get(ctx, userID)
	if err != nil {
		self = nil
	}
	views := sync.VisibleRooms(ctx, self, role, catalog, h.profiles)
	out := make([]roomResponse, 0, len(views))
	for _, v := range views {
		out = append(out, roomResponse{RoomView: v, Viewers: h.hub.Viewers(v.Room.ID)})
	}
	return c.JSON(out)
}

// GetMessages returns the room's full history, sender-enriched.
func (h *SyncHandler) GetMessages(c *fiber.Ctx) error {
	roomID := c.Params("id")
	ctx, cancel := h.requestCtx()
	defer cancel()

	st := sync.NewMessageStore(h.repo, h.profiles)
	st.Reset(roomID)
	if err := st.LoadHistory(ctx); err != nil {
		h.log.Errorw("load history", "room_id", roomID, "err", err)
		return fiber.ErrInternalServerError
	}
	return c.JSON(st.Messages())
}

// SendMessage persists a message and fans it out on the change feed.
func (h *SyncHandler) SendMessage(c *fiber.Ctx) error {
	userID, _ := actor(c)
	roomID := c.Params("id")

	var body struct {
		Message string `json:"message"`
	}
	if err := c.BodyParser(&body); err != nil {
		return fiber.ErrBadRequest
	}
	text := strings.TrimSpace(body.Message)
	if text == "" {
		return fiber.NewError(fiber.StatusBadRequest, "message empty")
	}

	ctx, cancel := h.requestCtx()
	defer cancel()
	msg, err := h.send(ctx, roomID, userID, text)
	if err != nil {
		h.log.Errorw("send message", "room_id", roomID, "err", err)
		return fiber.ErrInternalServerError
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

func (h *SyncHandler) send(ctx context.Context, roomID, senderID, text string) (*models.Message, error) {
	msg := &models.Message{RoomID: roomID, SenderID: senderID, Body: text}
	if err := h.repo.InsertMessage(ctx, msg); err != nil {
		return nil, err
	}
	if err := h.bus.Publish(ctx, realtime.NewMessageEvent(realtime.EventInsert, msg)); err != nil {
		h.log.Warnw("message event publish failed", "message_id", msg.ID, "err", err)
	}
	if h.producer != nil {
		if err := h.producer.PublishMessageSent(ctx, msg); err != nil {
			h.log.Warnw("kafka publish failed", "message_id", msg.ID, "err", err)
		}
	}
	return msg, nil
}

// MarkRoomRead records the caller as a reader of every unread message in
// the room.
func (h *SyncHandler) MarkRoomRead(c *fiber.Ctx) error {
	userID, _ := actor(c)
	roomID := c.Params("id")
	ctx, cancel := h.requestCtx()
	defer cancel()
	if err := h.receipts.MarkRoomRead(ctx, roomID, userID); err != nil {
		h.log.Errorw("mark room read", "room_id", roomID, "err", err)
		return fiber.ErrInternalServerError
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (h *SyncHandler) center(userID string) *sync.Center {
	return sync.NewCenter(h.repo, h.bus, userID, h.log)
}

// publishNotificationChange nudges the user's live badge streams after a
// read-state change; the payload is empty because subscribers recompute
// from the store.
func (h *SyncHandler) publishNotificationChange(ctx context.Context, userID string) {
	ev := realtime.Event{Type: realtime.EventUpdate, Table: realtime.TableNotifications, UserID: userID}
	if err := h.bus.Publish(ctx, ev); err != nil {
		h.log.Warnw("notification change publish failed", "user_id", userID, "err", err)
	}
}

// ListNotifications returns the bell list, newest first.
func (h *SyncHandler) ListNotifications(c *fiber.Ctx) error {
	userID, _ := actor(c)
	ctx, cancel := h.requestCtx()
	defer cancel()
	items, err := h.center(userID).Recent(ctx, h.cfg.Sync.NotificationListLimit)
	if err != nil {
		h.log.Errorw("list notifications", "err", err)
		return fiber.ErrInternalServerError
	}
	if items == nil {
		items = []models.Notification{}
	}
	return c.JSON(items)
}

// NotificationCounts returns the per-category unread counts.
func (h *SyncHandler) NotificationCounts(c *fiber.Ctx) error {
	userID, _ := actor(c)
	ctx, cancel := h.requestCtx()
	defer cancel()
	center := h.center(userID)
	if err := center.Refresh(ctx); err != nil {
		h.log.Errorw("notification counts", "err", err)
		return fiber.ErrInternalServerError
	}
	return c.JSON(center.Counts())
}

// MarkCategoryRead clears one badge category for the caller.
func (h *SyncHandler) MarkCategoryRead(c *fiber.Ctx) error {
	userID, _ := actor(c)
	cat := models.NotificationCategory(c.Params("category"))
	ctx, cancel := h.requestCtx()
	defer cancel()
	if err := h.center(userID).MarkCategoryRead(ctx, cat); err != nil {
		h.log.Errorw("mark category read", "category", cat, "err", err)
		return fiber.ErrInternalServerError
	}
	h.publishNotificationChange(ctx, userID)
	return c.JSON(fiber.Map{"status": "ok"})
}

// MarkAllNotificationsRead clears every badge for the caller.
func (h *SyncHandler) MarkAllNotificationsRead(c *fiber.Ctx) error {
	userID, _ := actor(c)
	ctx, cancel := h.requestCtx()
	defer cancel()
	if err := h.center(userID).MarkAllRead(ctx); err != nil {
		h.log.Errorw("mark all read", "err", err)
		return fiber.ErrInternalServerError
	}
	h.publishNotificationChange(ctx, userID)
	return c.JSON(fiber.Map{"status": "ok"})
}

// CreateNotification lets admins push a notification row; the change feed
// carries it to the target user's live badge.
func (h *SyncHandler) CreateNotification(c *fiber.Ctx) error {
	_, role := actor(c)
	if role != models.RoleAdmin {
		return fiber.ErrForbidden
	}
	var n models.Notification
	if err := c.BodyParser(&n); err != nil {
		return fiber.ErrBadRequest
	}
	if n.UserID == "" || n.Category == "" {
		return fiber.NewError(fiber.StatusBadRequest, "user_id and type required")
	}
	ctx, cancel := h.requestCtx()
	defer cancel()
	if err := h.repo.InsertNotification(ctx, &n); err != nil {
		h.log.Errorw("insert notification", "err", err)
		return fiber.ErrInternalServerError
	}
	if err := h.bus.Publish(ctx, realtime.NewNotificationEvent(realtime.EventInsert, &n)); err != nil {
		h.log.Warnw("notification event publish failed", "id", n.ID, "err", err)
	}
	return c.Status(fiber.StatusCreated).JSON(n)
}

// wire frames exchanged with the SPA over the websocket

type outboundFrame struct {
	Type    string            `json:"type"`
	Message *models.Message   `json:"message,omitempty"`
	History []*models.Message `json:"history,omitempty"`
	Typing  []string          `json:"typing,omitempty"`
	Counts  sync.Counts       `json:"counts,omitempty"`
}

type inboundFrame struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Text    string `json:"text,omitempty"`
}

// Stream upgrades to a websocket and runs one synchronizer session for the
// connected client: history on open, live inserts/updates as they land,
// typing relayed both ways.
func (h *SyncHandler) Stream() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		roomID := conn.Params("room_id")
		userID, _ := conn.Locals("user_id").(string)

		client := wshub.NewClient(userID, conn)
		st := sync.NewMessageStore(h.repo, h.profiles)
		sess := sync.NewSession(sync.SessionConfig{
			Self:       userID,
			Store:      st,
			Receipts:   h.receipts,
			Feed:       h.bus,
			Broker:     h.broker,
			TypingIdle: h.cfg.TypingIdle,
			Log:        h.log,
			Notify: func(kind realtime.EventType, m *models.Message) {
				client.Send(outboundFrame{Type: string(kind), Message: m})
			},
		})

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := sess.Activate(ctx, roomID)
		cancel()
		if err != nil {
			h.log.Errorw("session activate", "room_id", roomID, "err", err)
			_ = conn.Close()
			return
		}

		h.hub.Register(roomID, client)
		defer func() {
			h.hub.Unregister(roomID, client)
			sess.Close()
			client.CloseSend()
		}()

		client.Send(outboundFrame{Type: "history", History: st.Messages()})
		go client.WritePump()

		for {
			var in inboundFrame
			if err := conn.ReadJSON(&in); err != nil {
				return
			}
			rctx, rcancel := h.requestCtx()
			switch in.Type {
			case "message":
				text := strings.TrimSpace(in.Message)
				if text != "" {
					if _, err := h.send(rctx, roomID, userID, text); err != nil {
						h.log.Warnw("ws send failed", "room_id", roomID, "err", err)
						client.Send(outboundFrame{Type: "error"})
					}
				}
			case "typing":
				if t := sess.Typing(); t != nil {
					t.SetInput(rctx, in.Text)
					if peers, err := t.Peers(rctx); err == nil {
						client.Send(outboundFrame{Type: "typing", Typing: peers})
					}
				}
			case "read":
				if err := h.receipts.MarkRoomRead(rctx, roomID, userID); err != nil {
					h.log.Warnw("ws mark read failed", "room_id", roomID, "err", err)
				}
			}
			rcancel()
		}
	})
}

// runBadgeStream starts live badge recomputation for userID: the current
// counts are pushed immediately, then a fresh set after every notification
// change event. The returned stop releases the feed subscription and
// drains the refresh loop.
func (h *SyncHandler) runBadgeStream(ctx context.Context, userID string, push func(sync.Counts)) (func(), error) {
	center := h.center(userID)
	if err := center.Start(ctx, push); err != nil {
		return nil, err
	}
	push(center.Counts())
	return center.Stop, nil
}

// StreamNotifications upgrades to a websocket carrying the caller's badge
// counts: one frame on open, one whenever a notification of theirs changes
// state.
func (h *SyncHandler) StreamNotifications() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userID, _ := conn.Locals("user_id").(string)

		client := wshub.NewClient(userID, conn)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		stop, err := h.runBadgeStream(ctx, userID, func(counts sync.Counts) {
			client.Send(outboundFrame{Type: "counts", Counts: counts})
		})
		cancel()
		if err != nil {
			h.log.Errorw("badge stream start", "user_id", userID, "err", err)
			_ = conn.Close()
			return
		}

		streamID := "notifications:" + userID
		h.hub.Register(streamID, client)
		defer func() {
			h.hub.Unregister(streamID, client)
			stop()
			client.CloseSend()
		}()

		go client.WritePump()

		// the read loop exists only to observe the disconnect
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
}
