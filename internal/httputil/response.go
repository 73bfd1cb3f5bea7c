package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"convtree/internal/domain"
)

// RespondJSON writes data as JSON. The payload is marshaled before any header
// is written, so an encoding failure still yields a clean 500.
func RespondJSON(w http.ResponseWriter, status int, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		RespondError(w, http.StatusInternalServerError, "failed to encode response")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(payload)
}

// ProblemDetail is an RFC 7807 problem response
type ProblemDetail struct {
	Type     string         `json:"type"`
	Title    string         `json:"title"`
	Status   int            `json:"status"`
	Detail   string         `json:"detail,omitempty"`
	Instance string         `json:"instance,omitempty"`
	Extra    map[string]any `json:"-"`
}

// MarshalJSON flattens Extra into the top-level object
func (p ProblemDetail) MarshalJSON() ([]byte, error) {
	m := map[string]any{
		"type":   p.Type,
		"title":  p.Title,
		"status": p.Status,
	}
	if p.Detail != "" {
		m["detail"] = p.Detail
	}
	if p.Instance != "" {
		m["instance"] = p.Instance
	}
	for k, v := range p.Extra {
		m[k] = v
	}
	return json.Marshal(m)
}

// RespondError writes an RFC 7807 problem
func RespondError(w http.ResponseWriter, status int, detail string) {
	RespondErrorWithExtras(w, status, detail, nil)
}

// RespondErrorWithExtras writes an RFC 7807 problem with additional members
func RespondErrorWithExtras(w http.ResponseWriter, status int, detail string, extras map[string]any) {
	payload, err := json.Marshal(ProblemDetail{
		Type:   errorTypeFromStatus(status),
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
		Extra:  extras,
	})
	if err != nil {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("internal server error"))
		return
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	w.Write(payload)
}

// RespondDomainError maps err through the domain taxonomy. Resource ids of
// not-found, conflict and structural errors are added as problem members.
func RespondDomainError(w http.ResponseWriter, err error) {
	status := domain.StatusCode(err)
	extras := map[string]any{}

	var notFound *domain.NotFoundError
	var conflict *domain.ConflictError
	var structural *domain.StructuralError
	switch {
	case errors.As(err, &structural):
		extras["folder_id"] = structural.FolderID
	case errors.As(err, &notFound):
		extras["resource"] = notFound.Resource
		extras["resource_id"] = notFound.ID
	case errors.As(err, &conflict):
		extras["resource"] = conflict.ResourceType
		extras["resource_id"] = conflict.ResourceID
	}

	detail := err.Error()
	if status == http.StatusInternalServerError {
		detail = "internal server error"
	}
	if len(extras) == 0 {
		extras = nil
	}
	RespondErrorWithExtras(w, status, detail, extras)
}

func errorTypeFromStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "https://datatracker.ietf.org/doc/html/rfc7231#section-6.5.1"
	case http.StatusUnauthorized:
		return "https://datatracker.ietf.org/doc/html/rfc7235#section-3.1"
	case http.StatusForbidden:
		return "https://datatracker.ietf.org/doc/html/rfc7231#section-6.5.3"
	case http.StatusNotFound:
		return "https://datatracker.ietf.org/doc/html/rfc7231#section-6.5.4"
	case http.StatusConflict:
		return "https://datatracker.ietf.org/doc/html/rfc7231#section-6.5.8"
	case http.StatusUnprocessableEntity:
		return "https://datatracker.ietf.org/doc/html/rfc4918#section-11.2"
	case http.StatusInternalServerError:
		return "https://datatracker.ietf.org/doc/html/rfc7231#section-6.6.1"
	case http.StatusServiceUnavailable:
		return "https://datatracker.ietf.org/doc/html/rfc7231#section-6.6.4"
	default:
		return "about:blank"
	}
}
