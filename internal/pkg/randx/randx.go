/*
Package randx provides functions for generating unique identifiers.

Connection identifiers and message identifiers are standard UUID v4 strings. A connection
identifier doubles as the token of the identity registered on that connection and as the
address used for private messages.
*/
package randx

import (
	"github.com/google/uuid"
)

// ConnectionID generates the identifier assigned to a new transport connection.
func ConnectionID() string {
	return uuid.New().String()
}

// MessageID generates a standard UUID v4 string to serve as a unique identifier for a message.
func MessageID() string {
	return uuid.New().String()
}
