package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/0x360x36/miauhome.cl/pkg/errors"
)

// ParseID parses a positive numeric identifier taken from the path.
func ParseID(raw, field string) (int64, error) {
	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || value <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "identifier must be a positive integer").WithDetails(map[string]any{"field": field})
	}
	return value, nil
}

// ParseOptionalQueryID reads an optional positive identifier from the query string.
func ParseOptionalQueryID(r *http.Request, key string) (*int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	value, err := ParseID(raw, key)
	if err != nil {
		return nil, err
	}
	return &value, nil
}
