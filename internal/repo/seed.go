package repo

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/tbourn/homefinder-messaging/internal/domain"
)

// catalogFile is the on-disk shape of a catalog seed:
//
//	properties:
//	  - id: P123
//	    ownerId: owner1
//	    title: Two-bed flat near the park
type catalogFile struct {
	Properties []struct {
		ID      string `yaml:"id"`
		OwnerID string `yaml:"ownerId"`
		Title   string `yaml:"title"`
	} `yaml:"properties"`
}

// SeedProperties upserts every listing from the YAML file at path and returns
// how many were written. Entries without id or ownerId are rejected.
func SeedProperties(ctx context.Context, db *gorm.DB, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read catalog seed: %w", err)
	}
	var cf catalogFile
	if err := yaml.Unmarshal(raw, &cf); err != nil {
		return 0, fmt.Errorf("parse catalog seed: %w", err)
	}
	for i, p := range cf.Properties {
		if strings.TrimSpace(p.ID) == "" || strings.TrimSpace(p.OwnerID) == "" {
			return 0, fmt.Errorf("catalog seed entry %d: id and ownerId are required", i)
		}
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, p := range cf.Properties {
			prop := &domain.Property{
				ID:      strings.TrimSpace(p.ID),
				OwnerID: strings.TrimSpace(p.OwnerID),
				Title:   strings.TrimSpace(p.Title),
			}
			if err := UpsertProperty(ctx, tx, prop); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(cf.Properties), nil
}
