package compliance

import (
	"bytes"

	"github.com/ukydev/fleet-compliance/internal/models"
)

// LatestDocument selects the authoritative document for one series out of a
// vehicle's full history: the match with the most recent upload timestamp,
// ties broken by the most recently assigned identifier so repeated calls on
// the same snapshot always return the same winner. It returns nil when no
// document of the series was ever uploaded, which is distinct from a document
// that exists but has no expiry date.
func LatestDocument(docs []models.Document, typ models.DocumentType, customName string) *models.Document {
	key := models.TypeKey{Type: typ}
	if typ == models.DocTypeOther {
		key.CustomName = customName
	}

	var latest *models.Document
	for i := range docs {
		d := &docs[i]
		if d.SeriesKey() != key {
			continue
		}
		if latest == nil || newerThan(d, latest) {
			latest = d
		}
	}
	if latest == nil {
		return nil
	}
	out := *latest
	return &out
}

// LatestByKey is LatestDocument addressed by a series key.
func LatestByKey(docs []models.Document, key models.TypeKey) *models.Document {
	return LatestDocument(docs, key.Type, key.CustomName)
}

// SeriesKeys enumerates the distinct series present in a document history, in
// first-seen order.
func SeriesKeys(docs []models.Document) []models.TypeKey {
	seen := make(map[models.TypeKey]bool, len(docs))
	var keys []models.TypeKey
	for i := range docs {
		key := docs[i].SeriesKey()
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	return keys
}

func newerThan(a, b *models.Document) bool {
	if !a.UploadedAt.Equal(b.UploadedAt) {
		return a.UploadedAt.After(b.UploadedAt)
	}
	// Equal upload timestamps: ObjectIDs are assigned in insertion order, so
	// the larger one is the later append.
	return bytes.Compare(a.ID[:], b.ID[:]) > 0
}
