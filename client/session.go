package client

import (
	"fmt"
	"strconv"
	"strings"
)

// LoginBySessionID adopts an existing sessionid cookie taken from a logged
// in app or browser. The user id is embedded in the cookie before the first
// separator.
func (c *Client) LoginBySessionID(sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return fmt.Errorf("empty session id")
	}

	idPart := sessionID
	for _, sep := range []string{"%3A", ":"} {
		if i := strings.Index(idPart, sep); i >= 0 {
			idPart = idPart[:i]
			break
		}
	}
	if _, err := strconv.ParseInt(idPart, 10, 64); err != nil {
		return fmt.Errorf("malformed session id: %w", err)
	}

	c.mu.Lock()
	c.SessionID = sessionID
	c.Cookies["sessionid"] = sessionID
	c.Cookies["ds_user_id"] = idPart
	c.restoreCookies()
	c.mu.Unlock()

	return nil
}
