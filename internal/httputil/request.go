package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"convtree/internal/domain"
)

// maxBodyBytes bounds request bodies; message content is the largest field
const maxBodyBytes = 2 << 20

// ParseJSON decodes the request body into dest. Decode failures are
// ValidationErrors so handlers can pass them straight to the error mapper.
// An empty body leaves dest untouched.
func ParseJSON(w http.ResponseWriter, r *http.Request, dest any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return domain.NewValidation("invalid JSON", err)
	}
	return nil
}

// QueryBool reads a boolean query parameter; absent or malformed values are false
func QueryBool(r *http.Request, name string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	return err == nil && v
}

// QueryOptional returns a pointer to the query parameter when present
func QueryOptional(r *http.Request, name string) *string {
	q := r.URL.Query()
	if !q.Has(name) {
		return nil
	}
	v := q.Get(name)
	return &v
}

// RequirePathValue returns a path wildcard or a ValidationError when it is empty
func RequirePathValue(r *http.Request, name string) (string, error) {
	v := r.PathValue(name)
	if v == "" {
		return "", domain.NewValidation(fmt.Sprintf("%s is required", name), nil)
	}
	return v, nil
}
