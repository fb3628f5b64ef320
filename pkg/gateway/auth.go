package gateway

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/studysignal/studyroomd/pkg/store"
	"github.com/studysignal/studyroomd/pkg/token"
)

const minPasswordLen = 8

type authResponse struct {
	Token string     `json:"token"`
	User  store.User `json:"user"`
}

func (g *Gateway) register(c echo.Context) error {
	var req struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errResponse{Error: "malformed request body"})
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	name := strings.TrimSpace(req.Name)
	switch {
	case email == "":
		return c.JSON(http.StatusBadRequest, errResponse{Error: "email required"})
	case name == "":
		return c.JSON(http.StatusBadRequest, errResponse{Error: "name required"})
	case len(req.Password) < minPasswordLen:
		return c.JSON(http.StatusBadRequest, errResponse{Error: "password too short"})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return g.internalError(c, errors.Wrap(err, "Hash password"))
	}

	u := store.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := g.store.CreateUser(c.Request().Context(), u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return c.JSON(http.StatusConflict, errResponse{Error: "email already registered"})
		}
		return g.internalError(c, err)
	}

	tok, err := g.tokens.Issue(token.Identity{UserID: u.ID, Name: u.Name})
	if err != nil {
		return g.internalError(c, errors.Wrap(err, "Issue token"))
	}
	return c.JSON(http.StatusCreated, authResponse{Token: tok, User: u})
}

func (g *Gateway) login(c echo.Context) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errResponse{Error: "malformed request body"})
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	u, err := g.store.UserByEmail(c.Request().Context(), email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, errResponse{Error: "invalid credentials"})
		}
		return g.internalError(c, err)
	}
	if bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(req.Password)) != nil {
		return c.JSON(http.StatusUnauthorized, errResponse{Error: "invalid credentials"})
	}

	tok, err := g.tokens.Issue(token.Identity{UserID: u.ID, Name: u.Name})
	if err != nil {
		return g.internalError(c, errors.Wrap(err, "Issue token"))
	}
	return c.JSON(http.StatusOK, authResponse{Token: tok, User: u})
}
