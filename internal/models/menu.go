package models

import "time"

// MenuCategory groups menu items for display ordering.
type MenuCategory struct {
	ID       string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Name     string `gorm:"not null" json:"name"`
	Sequence int    `gorm:"default:0" json:"sequence"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false" json:"updated_at"`
}

// TableName specifies the table name for MenuCategory model
func (MenuCategory) TableName() string { return "menu_categories" }

func (c *MenuCategory) GetDocumentID() string   { return c.ID }
func (c *MenuCategory) GetCollection() string   { return CollectionMenuCategories }
func (c *MenuCategory) GetUpdatedAt() time.Time { return c.UpdatedAt }

func (c *MenuCategory) Validate() error {
	if c.ID == "" {
		return &ValidationError{Collection: CollectionMenuCategories, Field: "id", Reason: "must not be empty"}
	}
	if c.Name == "" {
		return &ValidationError{Collection: CollectionMenuCategories, Field: "name", Reason: "must not be empty"}
	}
	return nil
}

// MenuItem is a sellable product replicated from the remote authority.
// Inactive items stay in the store so historic orders keep resolving names.
type MenuItem struct {
	ID         string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	CategoryID string `gorm:"type:varchar(64);index" json:"category_id"`
	Name       string `gorm:"not null" json:"name"`
	PriceCents int64  `gorm:"not null" json:"price_cents"`
	Active     bool   `gorm:"default:true" json:"active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false" json:"updated_at"`
}

// TableName specifies the table name for MenuItem model
func (MenuItem) TableName() string { return "menu_items" }

func (m *MenuItem) GetDocumentID() string   { return m.ID }
func (m *MenuItem) GetCollection() string   { return CollectionMenuItems }
func (m *MenuItem) GetUpdatedAt() time.Time { return m.UpdatedAt }

func (m *MenuItem) Validate() error {
	if m.ID == "" {
		return &ValidationError{Collection: CollectionMenuItems, Field: "id", Reason: "must not be empty"}
	}
	if m.Name == "" {
		return &ValidationError{Collection: CollectionMenuItems, Field: "name", Reason: "must not be empty"}
	}
	if m.PriceCents < 0 {
		return &ValidationError{Collection: CollectionMenuItems, Field: "price_cents", Reason: "must not be negative"}
	}
	return nil
}
