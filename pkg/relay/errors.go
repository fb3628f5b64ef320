package relay

import "github.com/pkg/errors"

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrConnExists      = errors.New("connection already admitted")
	ErrConnNotFound    = errors.New("connection not found")
	ErrNotAMember      = errors.New("not a member of room")
)
