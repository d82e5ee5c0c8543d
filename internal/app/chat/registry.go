package chat

import "growchat/internal/app/user"

// ConnectionRegistry maps each live connection to the identity it registered.
// It is owned by the Router's run loop and is not safe for concurrent use.
type ConnectionRegistry struct {
	identities map[string]user.Identity
}

// NewConnectionRegistry creates an empty registry.
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		identities: make(map[string]user.Identity),
	}
}

// Register stores identity for connID with its token set to connID.
// A connection that is already registered keeps its first identity; Register then reports false.
func (r *ConnectionRegistry) Register(connID string, identity user.Identity) bool {
	if _, ok := r.identities[connID]; ok {
		return false
	}

	r.identities[connID] = identity.WithToken(connID)
	return true
}

// Unregister removes connID if present.
func (r *ConnectionRegistry) Unregister(connID string) {
	delete(r.identities, connID)
}

// Lookup returns the identity registered for connID.
func (r *ConnectionRegistry) Lookup(connID string) (user.Identity, bool) {
	identity, ok := r.identities[connID]
	return identity, ok
}

// ListForRoom resolves member ids into identities, in member order.
// Members without an entry are skipped.
func (r *ConnectionRegistry) ListForRoom(members []string) []user.Identity {
	identities := make([]user.Identity, 0, len(members))

	for _, connID := range members {
		if identity, ok := r.identities[connID]; ok {
			identities = append(identities, identity)
		}
	}

	return identities
}

// Len returns the number of registered connections.
func (r *ConnectionRegistry) Len() int {
	return len(r.identities)
}
