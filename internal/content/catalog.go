package content

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// CatalogCard is the row shape of the catalog_cards table.
type CatalogCard struct {
	ID         string `gorm:"primaryKey;size:64"`
	Theme      string `gorm:"index;size:32;not null"`
	DisplayURL string `gorm:"not null"`
	AltText    string
}

func (CatalogCard) TableName() string { return "catalog_cards" }

// Catalog reads cards from a Postgres card catalog.
type Catalog struct {
	db *gorm.DB
}

// OpenCatalog connects to Postgres. The connection is not verified until the
// first query so a server can boot while the database is still coming up.
func OpenCatalog(dsn string) (*Catalog, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableAutomaticPing: true,
		Logger:               logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	return NewCatalog(db), nil
}

func NewCatalog(db *gorm.DB) *Catalog {
	return &Catalog{db: db}
}

// Migrate creates or updates the catalog table.
func (c *Catalog) Migrate(ctx context.Context) error {
	if err := c.db.WithContext(ctx).AutoMigrate(&CatalogCard{}); err != nil {
		return fmt.Errorf("migrate catalog: %w", err)
	}
	return nil
}

// Add inserts cards for a theme, ignoring rows whose id already exists.
func (c *Catalog) Add(ctx context.Context, theme Theme, cards []Card) error {
	if len(cards) == 0 {
		return nil
	}
	rows := make([]CatalogCard, 0, len(cards))
	for _, card := range cards {
		rows = append(rows, CatalogCard{
			ID:         card.ID,
			Theme:      string(theme),
			DisplayURL: card.DisplayURL,
			AltText:    card.AltText,
		})
	}
	err := c.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
	if err != nil {
		return fmt.Errorf("add catalog cards: %w", err)
	}
	return nil
}

func (c *Catalog) Fetch(ctx context.Context, count int, theme Theme) ([]Card, error) {
	if count <= 0 {
		return nil, nil
	}
	var rows []CatalogCard
	err := c.db.WithContext(ctx).
		Where("theme = ?", string(theme)).
		Order("random()").
		Limit(count).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}

	cards := make([]Card, 0, len(rows))
	for _, r := range rows {
		cards = append(cards, Card{ID: r.ID, DisplayURL: r.DisplayURL, AltText: r.AltText})
	}
	return cards, nil
}
