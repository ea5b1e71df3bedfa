package models

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// RoomCategory mirrors the chat_rooms.type column.
type RoomCategory string

const (
	// CategoryAdminAllUsers is the broadcast room admins and users share.
	CategoryAdminAllUsers RoomCategory = "admin_all_users"
	// CategoryAllUsers is the user-only broadcast room; admins never see it.
	CategoryAllUsers RoomCategory = "all_users"
	// CategoryUserAdmin is a per-user room scoped to one user and the admins.
	CategoryUserAdmin RoomCategory = "user_admin"
)

type Room struct {
	ID        string       `bson:"_id,omitempty" json:"id"`
	Name      string       `bson:"name" json:"name"`
	Category  RoomCategory `bson:"type" json:"type"`
	CreatedAt time.Time    `bson:"created_at" json:"created_at"`
}

type Message struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	RoomID    string    `bson:"room_id" json:"room_id"`
	SenderID  string    `bson:"sender_id" json:"sender_id"`
	Body      string    `bson:"message" json:"message"`
	ReadBy    []string  `bson:"read_by" json:"read_by"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`

	// Sender is resolved from the profiles table after load; never stored.
	Sender *Profile `bson:"-" json:"sender,omitempty"`
}

// ReadByContains reports whether reader already appears in the read_by set.
func (m *Message) ReadByContains(reader string) bool {
	for _, r := range m.ReadBy {
		if r == reader {
			return true
		}
	}
	return false
}

// UnreadBy reports whether the message counts as unread for the given user:
// the user is not the sender and has not been recorded in read_by.
func (m *Message) UnreadBy(user string) bool {
	return m.SenderID != user && !m.ReadByContains(user)
}

type Profile struct {
	ID       string `bson:"_id,omitempty" json:"id"`
	FullName string `bson:"full_name" json:"full_name"`
	Email    string `bson:"email" json:"email"`
}

// DisplayName prefers the full name, falling back to email.
func (p *Profile) DisplayName() string {
	if p == nil {
		return "Unknown"
	}
	if p.FullName != "" {
		return p.FullName
	}
	return p.Email
}

type NotificationCategory string

const (
	CategoryAssignment  NotificationCategory = "assignment"
	CategoryComplaint   NotificationCategory = "complaint"
	CategoryEmergency   NotificationCategory = "emergency"
	CategoryGrade       NotificationCategory = "grade"
	CategoryApplication NotificationCategory = "application"
)

// Categories lists every badge category in display order.
func Categories() []NotificationCategory {
	return []NotificationCategory{
		CategoryAssignment,
		CategoryComplaint,
		CategoryEmergency,
		CategoryGrade,
		CategoryApplication,
	}
}

type Notification struct {
	ID        string               `bson:"_id,omitempty" json:"id"`
	UserID    string               `bson:"user_id" json:"user_id"`
	Category  NotificationCategory `bson:"type" json:"type"`
	Title     string               `bson:"title" json:"title"`
	Message   string               `bson:"message" json:"message"`
	Link      string               `bson:"link,omitempty" json:"link,omitempty"`
	Read      bool                 `bson:"read" json:"read"`
	CreatedAt time.Time            `bson:"created_at" json:"created_at"`
}
