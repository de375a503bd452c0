package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/DukeRupert/talentgate/internal/domain"
	"github.com/google/uuid"
)

// maxBodyBytes caps request bodies for every form and JSON endpoint.
const maxBodyBytes = 1 << 20

// readInput returns the request fields whether they were posted as a form or
// as a flat JSON object. JSON numbers and booleans are stringified so both
// encodings are read the same way.
func readInput(w http.ResponseWriter, r *http.Request) (url.Values, error) {
	const op = "handler.readInput"

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		if err := r.ParseForm(); err != nil {
			return nil, domain.Invalid(op, "Invalid form submission.")
		}
		return r.Form, nil
	}

	var raw map[string]any
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil && err != io.EOF {
		return nil, domain.Invalid(op, "Request body must be a JSON object.")
	}

	values := make(url.Values, len(raw))
	for k, v := range raw {
		switch t := v.(type) {
		case nil:
		case string:
			values.Set(k, t)
		case json.Number:
			values.Set(k, t.String())
		case bool:
			values.Set(k, strconv.FormatBool(t))
		default:
			return nil, domain.Invalid(op, fmt.Sprintf("Field %q must be a scalar.", k))
		}
	}
	return values, nil
}

// pathID parses a uuid path value.
func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, domain.Invalid("handler.pathID", "Invalid "+name+".")
	}
	return id, nil
}

// trimmed returns the named field with surrounding whitespace removed.
func trimmed(values url.Values, key string) string {
	return strings.TrimSpace(values.Get(key))
}
