package httputil

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/platinummonkey/shopdesk/pkg/apperror"
)

// ParseJSON decodes JSON from the request body into dest. Failures are VALIDATION_ERROR.
func ParseJSON(r *http.Request, dest interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return apperror.Validation("invalid JSON body").Wrap(err)
	}
	return nil
}

// ParseJSONOrError decodes JSON and writes an error envelope on failure
func ParseJSONOrError(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := ParseJSON(r, dest); err != nil {
		WriteAppError(w, r, err)
		return false
	}
	return true
}

// ParseQueryString extracts a trimmed query parameter or returns defaultVal
func ParseQueryString(r *http.Request, key, defaultVal string) string {
	if v := strings.TrimSpace(r.URL.Query().Get(key)); v != "" {
		return v
	}
	return defaultVal
}
