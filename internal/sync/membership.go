package sync

import (
	"context"
	"sort"
	"strings"

	"github.com/yourorg/institute-portal/internal/models"
	"github.com/yourorg/institute-portal/internal/profile"
)

// RoomView is a room paired with the name the UI should show for it.
type RoomView struct {
	Room        models.Room `json:"room"`
	DisplayName string      `json:"display_name"`
}

// scopedRoomPrefix is the naming convention for per-user rooms:
// "admin_<email>".
const scopedRoomPrefix = "admin_"

// VisibleRooms computes the rooms the actor may see, ordered by creation
// time ascending.
//
// Admins see every room except the user-only broadcast. Users see the
// broadcast rooms plus the one scoped room correlated to them. Correlation
// is by name containment of the actor's email or full name; emails are
// unique so the email check runs first, but a user whose email is a
// substring of another user's display name can still produce a false
// positive. An explicit owner reference on the room would remove this.
func VisibleRooms(ctx context.Context, actor *models.Profile, role models.Role, catalog []models.Room, profiles *profile.Cache) []RoomView {
	rooms := make([]models.Room, len(catalog))
	copy(rooms, catalog)
	sort.SliceStable(rooms, func(i, j int) bool {
		return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
	})

	var out []RoomView
	for _, r := range rooms {
		switch role {
		case models.RoleAdmin:
			if r.Category == models.CategoryAllUsers {
				continue
			}
			out = append(out, RoomView{Room: r, DisplayName: adminDisplayName(ctx, r, profiles)})
		default:
			if !visibleToUser(actor, r) {
				continue
			}
			out = append(out, RoomView{Room: r, DisplayName: userDisplayName(r)})
		}
	}
	return out
}

func visibleToUser(actor *models.Profile, r models.Room) bool {
	switch r.Category {
	case models.CategoryAdminAllUsers, models.CategoryAllUsers:
		return true
	case models.CategoryUserAdmin:
		if actor == nil {
			return false
		}
		if actor.Email != "" && strings.Contains(r.Name, actor.Email) {
			return true
		}
		return actor.FullName != "" && strings.Contains(r.Name, actor.FullName)
	}
	return false
}

func adminDisplayName(ctx context.Context, r models.Room, profiles *profile.Cache) string {
	switch r.Category {
	case models.CategoryAdminAllUsers:
		return "Admin & All Users"
	case models.CategoryUserAdmin:
		email := strings.TrimPrefix(r.Name, scopedRoomPrefix)
		p, err := profiles.GetByEmail(ctx, email)
		if err != nil {
			// profile lookup failing must not fail the whole list
			return r.Name
		}
		return "Chat with User: " + p.DisplayName()
	}
	return r.Name
}

func userDisplayName(r models.Room) string {
	if r.Category == models.CategoryUserAdmin {
		return "Chat with Admin"
	}
	return r.Name
}
