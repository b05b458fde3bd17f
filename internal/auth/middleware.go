package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type contextKey int

const identityContextKey contextKey = iota

// ContextWithIdentity returns a new context carrying the given identity.
func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// IdentityFromContext extracts the identity from the context, or nil if not present.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityContextKey).(*Identity)
	return id
}

// SessionMiddleware returns middleware that authenticates requests using a
// bearer session token. A missing or malformed credential and an invalid or
// expired one are reported as distinct error codes so clients can tell
// "log in" apart from "log in again". On success the identity is injected
// into the request context.
//
// onFailure, if non-nil, is invoked with the failure reason for metrics.
func SessionMiddleware(sessions SessionLookup, onFailure func(reason string)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				if onFailure != nil {
					onFailure("missing")
				}
				writeAuthError(w, "unauthorized", "missing or malformed authorization header")
				return
			}

			id, err := sessions.LookupSession(r.Context(), token)
			if err != nil || id == nil {
				if onFailure != nil {
					onFailure("invalid")
				}
				writeAuthError(w, "invalid_credential", "invalid or expired session")
				return
			}

			ctx := ContextWithIdentity(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TokenFromRequest extracts the session token from the Authorization header,
// falling back to the "token" query parameter. The fallback exists for the
// websocket endpoint, where browser clients cannot set headers.
func TokenFromRequest(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeAuthError(w http.ResponseWriter, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error: errorBody{
			Code:    code,
			Message: message,
		},
	})
}
