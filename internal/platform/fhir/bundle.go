package fhir

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Bundle represents a FHIR searchset Bundle.
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	Type         string        `json:"type"`
	Total        *int          `json:"total,omitempty"`
	Link         []BundleLink  `json:"link,omitempty"`
	Entry        []BundleEntry `json:"entry,omitempty"`
	Timestamp    *time.Time    `json:"timestamp,omitempty"`
}

type BundleLink struct {
	Relation string `json:"relation"`
	URL      string `json:"url"`
}

type BundleEntry struct {
	FullURL  string          `json:"fullUrl,omitempty"`
	Resource json.RawMessage `json:"resource,omitempty"`
}

// NewSearchBundle creates a searchset Bundle from a list of resources.
func NewSearchBundle(resources []interface{}, baseURL string, now time.Time) *Bundle {
	entries := make([]BundleEntry, len(resources))
	for i, r := range resources {
		raw, _ := json.Marshal(r)
		entries[i] = BundleEntry{
			FullURL:  extractFullURL(raw, baseURL),
			Resource: raw,
		}
	}
	total := len(resources)
	ts := now.UTC()
	return &Bundle{
		ResourceType: "Bundle",
		Type:         "searchset",
		Total:        &total,
		Timestamp:    &ts,
		Link:         []BundleLink{{Relation: "self", URL: baseURL}},
		Entry:        entries,
	}
}

// DecodeEntries unmarshals every entry resource of b into a new T.
func DecodeEntries[T any](b *Bundle) ([]T, error) {
	out := make([]T, 0, len(b.Entry))
	for i, e := range b.Entry {
		var v T
		if err := json.Unmarshal(e.Resource, &v); err != nil {
			return nil, fmt.Errorf("decode bundle entry %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func extractFullURL(raw json.RawMessage, baseURL string) string {
	var r struct {
		ResourceType string `json:"resourceType"`
		ID           string `json:"id"`
	}
	if err := json.Unmarshal(raw, &r); err != nil || r.ID == "" {
		return ""
	}
	return strings.TrimSuffix(baseURL, "/") + "/" + r.ID
}

// FormatReference creates a FHIR reference string.
func FormatReference(resourceType, id string) string {
	return fmt.Sprintf("%s/%s", resourceType, id)
}

// ParseReference splits "Type/id" into its parts.
func ParseReference(ref string) (resourceType, id string, ok bool) {
	parts := strings.SplitN(ref, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
