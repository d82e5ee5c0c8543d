/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to the CustomError struct, used to standardize
HTTP responses, WebSocket error events, and internal error handling.
*/
package errs

import "net/http"

// errorMap stores the detailed CustomError struct corresponding to every application error code.
// The key is the error code (int), and the value contains the user message and HTTP status code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:     {Code: ErrInvalidParams, Message: "Invalid request parameters."},
	ErrInvalidJSONFormat: {Code: ErrInvalidJSONFormat, Message: "Unsupported request format."},
	ErrRateLimitExceeded: {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},
	ErrUnsupportedEvent:  {Code: ErrUnsupportedEvent, Message: "Unsupported event: %s."},

	// 2xxx: Room and Content Business Logic Errors
	ErrMessageContentTooLong: {Code: ErrMessageContentTooLong, Message: "Message is too long (max %d bytes)."},
	ErrRecipientNotFound:     {Code: ErrRecipientNotFound, Message: "That user is no longer connected."},

	// 4xxx: Collaborator Errors
	ErrHistoryUnavailable: {Code: ErrHistoryUnavailable, Message: "Room history is unavailable. Please try again later.", Status: http.StatusBadGateway},

	// 5xxx: Internal System Errors
	ErrUnknown: {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
}
