package service

import (
	"io"
	"net/http"
)

// ControlPath is the health and shutdown route every Host serves.
const ControlPath = "/service-control"

// Control-plane response bodies.
const (
	ControlOK  = "ok"
	ControlBye = "bye!"
	controlErr = "err"
)

// ControlHandler answers GET with "ok" and DELETE with "bye!", calling
// shutdown after the DELETE response is written. Other methods get 405.
func ControlHandler(shutdown func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		switch r.Method {
		case http.MethodGet:
			_, _ = io.WriteString(w, ControlOK)
		case http.MethodDelete:
			_, _ = io.WriteString(w, ControlBye)
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
			shutdown()
		default:
			w.Header().Set("Allow", "GET, DELETE")
			w.WriteHeader(http.StatusMethodNotAllowed)
			_, _ = io.WriteString(w, controlErr)
		}
	})
}
