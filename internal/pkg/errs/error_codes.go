/*
Package errs provides custom error types and application-level error code constants.

These error codes are used to clearly identify specific business or system errors
both internally within the server and in communication with clients.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON format is incorrect (e.g., syntax error).
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained extra content after valid JSON data.
	ErrExtraContentInBody = 1004
)

// 2xxx: Chat Business Logic Errors
const (
	// ErrNicknameTaken indicates that the requested nickname is already held by another session.
	ErrNicknameTaken = 2101

	// ErrGuestRestricted indicates that the guest pseudo-user attempted a privileged command.
	ErrGuestRestricted = 2102
)

// 3xxx: Account and Authentication Errors
const (
	// ErrLoginDenied indicates that the directory service refused the supplied credentials.
	ErrLoginDenied = 3001

	// ErrLoginTimedOut indicates that the directory service did not answer a log-on
	// request within the configured deadline.
	ErrLoginTimedOut = 3002

	// ErrInvalidUsername indicates that the supplied user name failed validation.
	ErrInvalidUsername = 3101

	// ErrInvalidPassword indicates that the supplied password failed validation.
	ErrInvalidPassword = 3102

	// ErrUserAlreadyExists indicates an attempt to create an account whose user name is taken.
	ErrUserAlreadyExists = 3103

	// ErrUserNotFound indicates that the named account does not exist in the directory.
	ErrUserNotFound = 3104
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000
)
