package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/crm-backend/api/responses"
	pkgerrors "github.com/angelmondragon/crm-backend/pkg/errors"
	"github.com/angelmondragon/crm-backend/pkg/logger"
)

// Recoverer turns a panicking handler into a 500 envelope. It sits outside
// RequestID and Actor, so it reads both ids back from the response and
// request headers to tie the panic to the caller.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				err, ok := rec.(error)
				if !ok {
					err = fmt.Errorf("panic: %v", rec)
				} else {
					err = fmt.Errorf("panic: %w", err)
				}

				ctx := r.Context()
				if logg != nil {
					ctx = logg.WithFields(ctx, panicFields(w, r, rec))
					logg.Error(ctx, "panic.recovered", err)
				}
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "panic"))
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func panicFields(w http.ResponseWriter, r *http.Request, rec any) map[string]any {
	fields := map[string]any{
		"panic":  fmt.Sprint(rec),
		"method": r.Method,
		"path":   r.URL.Path,
	}
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			fields["route"] = pattern
		}
	}
	reqID := w.Header().Get(requestIDHeader)
	if reqID == "" {
		reqID = r.Header.Get(requestIDHeader)
	}
	if reqID != "" {
		fields["request_id"] = reqID
	}
	if actorID := strings.TrimSpace(r.Header.Get(actorIDHeader)); actorID != "" {
		fields["actor_id"] = actorID
	}
	var typed *pkgerrors.Error
	if err, ok := rec.(error); ok && errors.As(err, &typed) {
		fields["error_code"] = string(typed.Code())
	}
	return fields
}
