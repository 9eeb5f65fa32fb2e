package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Junaidchm/DevHuddle-Client-sub001/internal/realtime"
)

// ErrNoToken is returned when neither a token nor a token file is configured,
// or the token file is empty.
var ErrNoToken = errors.New("auth: no bearer token")

// Credentials identify the user on the notification socket.
type Credentials struct {
	Token     string // Bearer token sent in the auth frame
	SubjectID string // Authenticated user id
}

// Session converts the credentials into a realtime session.
func (c *Credentials) Session() realtime.Session {
	return realtime.Session{Token: c.Token, SubjectID: c.SubjectID}
}

// Equal reports whether both credentials carry the same token and subject.
func (c *Credentials) Equal(o *Credentials) bool {
	if c == nil || o == nil {
		return c == o
	}
	return c.Token == o.Token && c.SubjectID == o.SubjectID
}

// LoadCredentials builds credentials from a token literal or a token file.
// The literal wins when both are set.
func LoadCredentials(token, tokenPath, subjectID string) (*Credentials, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		if tokenPath == "" {
			return nil, ErrNoToken
		}
		var err error
		token, err = ReadToken(tokenPath)
		if err != nil {
			return nil, fmt.Errorf("load token: %w", err)
		}
	}

	return &Credentials{
		Token:     token,
		SubjectID: subjectID,
	}, nil
}

// ReadToken reads a bearer token from path, trimming surrounding whitespace.
func ReadToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("%s: %w", path, ErrNoToken)
	}
	return token, nil
}
