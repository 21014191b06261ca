package cache

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/scancat/scancat/pkg/checksum"
	"github.com/scancat/scancat/pkg/storage"
)

// Mismatch is one manifest entry that failed verification.
type Mismatch struct {
	ID     string
	Field  string
	Want   storage.Digest
	Got    storage.Digest // empty when nothing is cached for the key
	Reason string
}

func (m Mismatch) String() string {
	return m.ID + "/" + m.Field + ": " + m.Reason
}

// VerifyManifest re-checks every manifest entry against the cache: the
// index entry must exist, point at the recorded digest, and the blob
// must still hash to it. Mismatches are returned sorted by key; an empty
// slice means the cache matches the manifest.
func VerifyManifest(ctx context.Context, index Store, blobs *storage.Store, m *checksum.Manifest) ([]Mismatch, error) {
	var out []Mismatch
	for key, want := range m.Entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id, field, ok := strings.Cut(key, "/")
		if !ok {
			out = append(out, Mismatch{ID: key, Want: want, Reason: "malformed manifest key"})
			continue
		}
		mis := Mismatch{ID: id, Field: field, Want: want}

		raw, found, err := index.Get(ctx, Key(m.Dataset, id, field))
		if err != nil {
			return nil, err
		}
		if !found {
			mis.Reason = "not cached"
			out = append(out, mis)
			continue
		}
		var e entry
		if err := json.Unmarshal(raw, &e); err != nil {
			mis.Reason = "corrupt index entry"
			out = append(out, mis)
			continue
		}
		if e.Digest != want {
			mis.Got = e.Digest
			mis.Reason = "cached digest " + e.Digest.Short() + " does not match manifest " + want.Short()
			out = append(out, mis)
			continue
		}
		if err := blobs.Verify(e.Digest); err != nil {
			mis.Got = e.Digest
			mis.Reason = "blob failed verification: " + err.Error()
			out = append(out, mis)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ID != out[j].ID {
			return out[i].ID < out[j].ID
		}
		return out[i].Field < out[j].Field
	})
	return out, nil
}
