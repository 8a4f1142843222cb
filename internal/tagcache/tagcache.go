// Package tagcache provides bulk read/write access to per-instance
// cached DICOM tag values, with an optional read-through cache in front
// of the catalog database for repeated lookups of the same instance.
package tagcache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/otcheredev/dicom-catalog-indexer/internal/cache"
	"github.com/otcheredev/dicom-catalog-indexer/internal/database"
	"github.com/otcheredev/dicom-catalog-indexer/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const cacheTTL = 10 * time.Minute

// Store reads and writes CachedTag rows, keyed by (SOPInstanceUID, tagKey).
type Store struct {
	cache cache.Cache
}

// NewStore creates a tag cache store backed by the catalog database,
// with an optional read-through cache (may be nil to disable).
func NewStore(c cache.Cache) *Store {
	return &Store{cache: c}
}

// GetTagsForInstance returns every cached tag for one instance as a
// tag-key -> value map. Absent tags are simply absent from the map; the
// catalog guarantees every required tag was written at insert time.
func (s *Store) GetTagsForInstance(ctx context.Context, sopInstanceUID string) (map[string]string, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, cacheKey(sopInstanceUID)); err == nil {
			return decode(raw), nil
		}
	}

	var rows []models.CachedTag
	if err := database.DB.WithContext(ctx).
		Where("sop_instance_uid = ?", sopInstanceUID).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load cached tags for %s: %w", sopInstanceUID, err)
	}

	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.TagKey] = r.Value
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, cacheKey(sopInstanceUID), encode(out), cacheTTL)
	}

	return out, nil
}

// PutTagsForInstance bulk-upserts every tag in tags for one instance,
// invalidating any cached read-through entry for that instance. Upsert
// is required, not just insert: re-indexing a previously-seen instance
// (updated mtime) writes the same (SOPInstanceUID, TagKey) primary keys
// again, which a plain insert would reject as a conflict.
func (s *Store) PutTagsForInstance(ctx context.Context, tx *gorm.DB, sopInstanceUID string, tags map[string]string) error {
	rows := make([]models.CachedTag, 0, len(tags))
	for k, v := range tags {
		rows = append(rows, models.CachedTag{SOPInstanceUID: sopInstanceUID, TagKey: k, Value: v})
	}
	if len(rows) == 0 {
		return nil
	}
	onConflict := clause.OnConflict{
		Columns:   []clause.Column{{Name: "sop_instance_uid"}, {Name: "tag_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}
	if err := tx.Clauses(onConflict).CreateInBatches(rows, 100).Error; err != nil {
		return fmt.Errorf("failed to write cached tags for %s: %w", sopInstanceUID, err)
	}
	if s.cache != nil {
		_ = s.cache.Delete(ctx, cacheKey(sopInstanceUID))
	}
	return nil
}

func cacheKey(sopInstanceUID string) string {
	return cache.CacheKey("tagcache", sopInstanceUID)
}

// encode/decode use a simple "gggg,eeee=value" newline-joined wire
// format for the cache entry; tag keys never contain newlines or "=".
func encode(tags map[string]string) []byte {
	var b strings.Builder
	for k, v := range tags {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(v)
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

func decode(raw []byte) map[string]string {
	out := map[string]string{}
	for _, line := range strings.Split(string(raw), "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		out[parts[0]] = parts[1]
	}
	return out
}
