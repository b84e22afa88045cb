// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file backs the property catalog: the messaging core
// reads listings to learn their owners, and the seeder writes them.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/homefinder-messaging/internal/domain"
)

// GetProperty fetches a listing by ID, or ErrNotFound.
func GetProperty(ctx context.Context, db *gorm.DB, id string) (*domain.Property, error) {
	var p domain.Property
	if err := db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertProperty inserts p or, when the ID exists, replaces owner and title.
func UpsertProperty(ctx context.Context, db *gorm.DB, p *domain.Property) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"owner_id", "title", "updated_at"}),
		}).
		Create(p).Error
}

// PropertyTitles returns the titles of the given listings keyed by ID.
// Unknown IDs are simply absent from the result.
func PropertyTitles(ctx context.Context, db *gorm.DB, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []domain.Property
	if err := db.WithContext(ctx).Select("id", "title").Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, p := range rows {
		out[p.ID] = p.Title
	}
	return out, nil
}

// Catalog serves listings from the properties table. It satisfies the
// services' PropertyCatalog contract.
type Catalog struct {
	DB *gorm.DB
}

// GetProperty proxies GetProperty on the catalog's handle.
func (c Catalog) GetProperty(ctx context.Context, id string) (*domain.Property, error) {
	return GetProperty(ctx, c.DB, id)
}
