package gateway

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/studysignal/studyroomd/pkg/store"
)

type userRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// roomView is a room with creator and member identities resolved.
type roomView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedBy userRef   `json:"createdBy"`
	Members   []userRef `json:"members"`
	CreatedAt time.Time `json:"createdAt"`
}

func (g *Gateway) createRoom(c echo.Context) error {
	identity := identityFrom(c)

	var req struct {
		Name string `json:"name"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errResponse{Error: "malformed request body"})
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return c.JSON(http.StatusBadRequest, errResponse{Error: "room name required"})
	}

	room := store.Room{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedBy: identity.UserID,
		Members:   []string{identity.UserID},
		CreatedAt: time.Now().UTC(),
	}
	if err := g.store.CreateRoom(c.Request().Context(), room); err != nil {
		return g.internalError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"room": room})
}

// joinRoom records membership in the room directory. Signaling
// membership is separate: the relay tracks live connections, the
// directory remembers who belongs to a room.
func (g *Gateway) joinRoom(c echo.Context) error {
	identity := identityFrom(c)
	roomID := c.Param("id")
	if err := g.store.AddMember(c.Request().Context(), roomID, identity.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, errResponse{Error: "room not found"})
		}
		return g.internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"roomId": roomID})
}

func (g *Gateway) listRooms(c echo.Context) error {
	ctx := c.Request().Context()
	rooms, err := g.store.ListRooms(ctx)
	if err != nil {
		return g.internalError(c, err)
	}

	idSet := make(map[string]struct{})
	for _, r := range rooms {
		idSet[r.CreatedBy] = struct{}{}
		for _, m := range r.Members {
			idSet[m] = struct{}{}
		}
	}
	ids := make([]string, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}

	users, err := g.store.UsersByID(ctx, ids)
	if err != nil {
		return g.internalError(c, err)
	}

	views := make([]roomView, 0, len(rooms))
	for _, r := range rooms {
		view := roomView{
			ID:        r.ID,
			Name:      r.Name,
			CreatedBy: resolveUser(users, r.CreatedBy),
			Members:   make([]userRef, 0, len(r.Members)),
			CreatedAt: r.CreatedAt,
		}
		for _, m := range r.Members {
			view.Members = append(view.Members, resolveUser(users, m))
		}
		views = append(views, view)
	}
	return c.JSON(http.StatusOK, views)
}

// resolveUser falls back to the bare ID for users that have since been
// deleted.
func resolveUser(users map[string]store.User, id string) userRef {
	if u, ok := users[id]; ok {
		return userRef{ID: u.ID, Name: u.Name}
	}
	return userRef{ID: id}
}
