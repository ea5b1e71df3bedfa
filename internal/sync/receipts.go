package sync

import (
	"context"

	"go.uber.org/zap"

	"github.com/yourorg/institute-portal/internal/models"
	"github.com/yourorg/institute-portal/internal/realtime"
	"github.com/yourorg/institute-portal/internal/repository"
)

// ReceiptTracker owns read-receipt writes. Every successful write is
// republished on the change feed as an update event so other live clients
// patch their read_by sets without a reload.
type ReceiptTracker struct {
	repo repository.MessageStore
	bus  realtime.Publisher
	log  *zap.SugaredLogger
}

func NewReceiptTracker(repo repository.MessageStore, bus realtime.Publisher, log *zap.SugaredLogger) *ReceiptTracker {
	return &ReceiptTracker{repo: repo, bus: bus, log: log}
}

// MarkMessageRead adds reader to one message's read_by set. Idempotent:
// marking an already-read message, or one the reader sent, does nothing.
func (t *ReceiptTracker) MarkMessageRead(ctx context.Context, messageID, reader string) error {
	m, err := t.repo.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if m.SenderID == reader || m.ReadByContains(reader) {
		return nil
	}
	if err := t.repo.AddReader(ctx, messageID, reader); err != nil {
		return err
	}
	m.ReadBy = append(m.ReadBy, reader)
	t.publishUpdate(ctx, m)
	return nil
}

// MarkRoomRead catches the reader up on every unread message in the room,
// one write per message; the underlying store has no bulk read_by update.
// A failed write stops the catch-up; the remaining messages stay unread
// until the next mark.
func (t *ReceiptTracker) MarkRoomRead(ctx context.Context, roomID, reader string) error {
	msgs, err := t.repo.ListMessages(ctx, roomID)
	if err != nil {
		return err
	}
	for i := range msgs {
		m := &msgs[i]
		if !m.UnreadBy(reader) {
			continue
		}
		if err := t.repo.AddReader(ctx, m.ID, reader); err != nil {
			return err
		}
		m.ReadBy = append(m.ReadBy, reader)
		t.publishUpdate(ctx, m)
	}
	return nil
}

func (t *ReceiptTracker) publishUpdate(ctx context.Context, m *models.Message) {
	if err := t.bus.Publish(ctx, realtime.NewMessageEvent(realtime.EventUpdate, m)); err != nil {
		t.log.Warnw("receipt update publish failed", "message_id", m.ID, "err", err)
	}
}
