/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to the CustomError struct, used to standardize
HTTP responses, chat notices, and internal error handling.
*/
package errs

import "net/http"

// errorMap stores the detailed CustomError struct corresponding to every application error code.
// The key is the error code (int), and the value contains the user message and HTTP status code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:        {Code: ErrInvalidParams, Message: "Invalid request parameters."},
	ErrUnsupportedMediaType: {Code: ErrUnsupportedMediaType, Message: "Unsupported request format."},
	ErrInvalidJSONFormat:    {Code: ErrInvalidJSONFormat, Message: "Unsupported request format."},
	ErrExtraContentInBody:   {Code: ErrExtraContentInBody, Message: "Request contains unexpected data."},

	// 2xxx: Chat Business Logic Errors
	ErrNicknameTaken:   {Code: ErrNicknameTaken, Message: "Nickname %s is already in use."},
	ErrGuestRestricted: {Code: ErrGuestRestricted, Message: "Command %s is not available to guest users."},

	// 3xxx: Account and Authentication Errors
	ErrLoginDenied:       {Code: ErrLoginDenied, Message: "Login denied."},
	ErrLoginTimedOut:     {Code: ErrLoginTimedOut, Message: "Login failed: directory service timeout."},
	ErrInvalidUsername:   {Code: ErrInvalidUsername, Message: "Invalid username."},
	ErrInvalidPassword:   {Code: ErrInvalidPassword, Message: "Invalid password."},
	ErrUserAlreadyExists: {Code: ErrUserAlreadyExists, Message: "Username is already taken.", Status: http.StatusConflict},
	ErrUserNotFound:      {Code: ErrUserNotFound, Message: "Account not found.", Status: http.StatusNotFound},

	// 5xxx: Internal System Errors
	ErrUnknown: {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
}
