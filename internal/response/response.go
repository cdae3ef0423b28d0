package response

import (
	"net/http"

	"github.com/goccy/go-json"

	"questlog/internal/apierror"
)

// SyncSourceHeader tells the caller whether the payload came from the
// cache or a live upstream fetch.
const SyncSourceHeader = "X-Sync-Source"

// JSON writes the payload as-is with the given status code.
func JSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	_ = json.NewEncoder(w).Encode(payload)
}

// OK writes a 200 response.
func OK(w http.ResponseWriter, payload interface{}) {
	JSON(w, http.StatusOK, payload)
}

// Error writes the structured error envelope. Anything that is not an
// *apierror.Error becomes a generic 500.
func Error(w http.ResponseWriter, err error) {
	apiErr, ok := err.(*apierror.Error)
	if !ok {
		apiErr = apierror.InternalError("")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.StatusCode)
	_, _ = w.Write(apiErr.ToJSON())
}
