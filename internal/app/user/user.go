/*
Package user contains the identity attached to a chat connection.

Identities are supplied by clients and trusted as-is; the server only stamps the token
with the identifier of the connection that registered it.
*/
package user

// Identity is the user-facing profile attached to a connection after registration.
// Fields use JSON tags for serialization in WebSocket events.
type Identity struct {
	// Name is the display name shown in rosters and attached to logged messages.
	Name string `json:"name"`

	// Token equals the identifier of the owning connection once registered.
	Token string `json:"token,omitempty"`

	// Avatar is an optional profile picture URL, passed through untouched.
	Avatar string `json:"avatar,omitempty"`
}

// IsZero reports whether the identity carries no user-supplied information.
func (i Identity) IsZero() bool {
	return i.Name == "" && i.Avatar == ""
}

// WithToken returns a copy of the identity bound to connID.
func (i Identity) WithToken(connID string) Identity {
	i.Token = connID
	return i
}
