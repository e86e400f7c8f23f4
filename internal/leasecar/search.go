package leasecar

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedSearch marks a search body without a usable items list.
var ErrMalformedSearch = errors.New("malformed search response")

type searchBody struct {
	Items []struct {
		LeasecarID ID `json:"leasecarId"`
	} `json:"items"`
}

// ParseSearch returns the identifiers listed by a search response in
// response order. Duplicates and empty identifiers are dropped; a body
// without items yields an empty list.
func ParseSearch(body []byte) ([]string, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: body is not a JSON object", ErrMalformedSearch)
	}
	var parsed searchBody
	if err := json.Unmarshal(trimmed, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedSearch, err)
	}
	seen := make(map[ID]struct{}, len(parsed.Items))
	ids := make([]string, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item.LeasecarID == "" {
			continue
		}
		if _, dup := seen[item.LeasecarID]; dup {
			continue
		}
		seen[item.LeasecarID] = struct{}{}
		ids = append(ids, string(item.LeasecarID))
	}
	return ids, nil
}
