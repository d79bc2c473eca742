/*
Package handler provides HTTP handler functions for out-of-band account management.

Accounts can also be created in-band with the /create chat command; this endpoint
exists so clients can register before connecting, and unlike the chat command it
reports the outcome.
*/
package handler

import (
	"errors"
	"net/http"
	"regexp"
	"unicode/utf8"

	"linechat/internal/app/directory"
	"linechat/internal/pkg/errs"
	"linechat/internal/pkg/logx"
	"linechat/internal/pkg/req"
	"linechat/internal/pkg/resp"
)

var usernameRegex = regexp.MustCompile(`^[A-Za-z0-9_]{2,32}$`)

// CreateAccountInput is the JSON body of POST /api/accounts. Password is
// optional: an account created without one accepts any password until it is
// set.
type CreateAccountInput struct {
	Username string `json:"username"`
	Password string `json:"password,omitempty"`
}

// HandleCreateAccount processes the request to create a new directory account.
func HandleCreateAccount(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input CreateAccountInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if !usernameRegex.MatchString(input.Username) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidUsername))
			return
		}

		hasPassword := input.Password != ""
		if hasPassword {
			passwordLen := utf8.RuneCountInString(input.Password)
			if passwordLen < 6 || passwordLen > 50 {
				resp.RespondError(w, r, errs.NewError(errs.ErrInvalidPassword))
				return
			}
		}

		err := deps.Store.Create(r.Context(), input.Username, input.Password, hasPassword)
		if err != nil {
			if errors.Is(err, directory.ErrAccountExists) {
				logx.Warn("registration conflict: username already exists", "username", input.Username)
				resp.RespondError(w, r, errs.NewError(errs.ErrUserAlreadyExists))
				return
			}

			logx.Error(err, "failed to create account in directory store")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"username":    input.Username,
			"hasPassword": hasPassword,
		})
	}
}
