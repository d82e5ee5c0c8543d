/*
Package errs provides custom error types and application-level error code constants.

These error codes are used to clearly identify specific business or system errors
both internally within the server and in communication with clients, over HTTP
responses and WebSocket error events alike.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrInvalidJSONFormat indicates that the request body or event payload is not valid JSON
	// for the expected shape.
	ErrInvalidJSONFormat = 1003

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1007

	// ErrUnsupportedEvent indicates that the client sent an event name the server does not handle.
	ErrUnsupportedEvent = 1008
)

// 2xxx: Room and Content Business Logic Errors
const (
	// ErrMessageContentTooLong indicates that the user's message content exceeded the maximum length limit.
	ErrMessageContentTooLong = 2201

	// ErrRecipientNotFound indicates that a private message targeted a connection that is not live.
	ErrRecipientNotFound = 2301
)

// 4xxx: Collaborator Errors
const (
	// ErrHistoryUnavailable indicates that the history backend failed to answer a query.
	ErrHistoryUnavailable = 4001
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000
)
