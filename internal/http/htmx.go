package httpx

import (
	"encoding/json"
	"net/http"
	"strings"

	domainauth "github.com/gpchangipur/portal/internal/domain/auth"
)

// ToastEvent is the client-side event name the layout listens on for notifications.
const ToastEvent = "showToast"

// IsHTMX reports whether the request was initiated by htmx (Hx-Request: true).
func IsHTMX(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Hx-Request"), "true")
}

// SetHXRedirect instructs htmx to redirect the browser to the given URL.
func SetHXRedirect(w http.ResponseWriter, url string) { w.Header().Set("Hx-Redirect", url) }

// SetHXTrigger triggers a client-side event after swap with optional payload.
// It sets the Hx-Trigger response header as a JSON object: {"<event>": <payload>}.
// If payload is nil, the value true is used for the event.
func SetHXTrigger(w http.ResponseWriter, event string, payload any) {
	var value any = true
	if payload != nil {
		value = payload
	}
	b, err := json.Marshal(map[string]any{event: value})
	if err != nil {
		w.Header().Set("Hx-Trigger", "{\""+event+"\":true}")
		return
	}
	w.Header().Set("Hx-Trigger", string(b))
}

// SetToasts attaches drained notifications to an htmx response. Nothing is set
// when the list is empty.
func SetToasts(w http.ResponseWriter, toasts []domainauth.Notification) {
	if len(toasts) == 0 {
		return
	}
	SetHXTrigger(w, ToastEvent, toasts)
}
