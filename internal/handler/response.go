// Package handler holds the HTTP plumbing shared by the API handlers:
// the response envelope, error mapping and per-request collectors for
// notifications and navigation.
package handler

import (
	"encoding/json"
	"net/http"
	"slices"

	"github.com/dukerupert/gyan/internal/middleware"
	"github.com/dukerupert/gyan/internal/notify"
)

// envelope wraps every JSON response. Notifications and the redirect
// target are whatever the services reported while handling the request.
type envelope struct {
	Data          any              `json:"data,omitempty"`
	Error         *errorBody       `json:"error,omitempty"`
	Notifications []notify.Message `json:"notifications"`
	Redirect      notify.Page      `json:"redirect,omitempty"`
}

// Collect attaches a fresh notification recorder and navigation recorder
// to each request so that responses can report them.
func Collect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := notify.WithRecorder(r.Context(), notify.NewRecorder())
		ctx = notify.WithNavRecorder(ctx, notify.NewNavRecorder())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// JSON writes data with status inside the response envelope.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeEnvelope(w, r, status, envelope{Data: data})
}

func writeEnvelope(w http.ResponseWriter, r *http.Request, status int, env envelope) {
	env.Notifications = []notify.Message{}
	if rec := notify.RecorderFromContext(r.Context()); rec != nil {
		env.Notifications = rec.Messages()
	}
	if nav := notify.NavRecorderFromContext(r.Context()); nav != nil {
		env.Redirect = nav.Last()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		middleware.GetLogger(r.Context()).Error("failed to encode response", "error", err)
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
