package model

import "time"

// LineItem is a single priced row on a quote
type LineItem struct {
	ID       string  `json:"id" bson:"id"`
	Name     string  `json:"name" bson:"name"`
	Unit     string  `json:"unit" bson:"unit"` // e.g. "sq ft", "hour", "yard"
	Cost     float64 `json:"cost" bson:"cost"` // Unit cost
	Quantity float64 `json:"quantity" bson:"quantity"`
}

// Quote is the externally owned quote document. The analysis path only reads it.
type Quote struct {
	ID         string     `json:"id" bson:"_id,omitempty"`
	UserID     string     `json:"userId" bson:"userId"`
	Name       string     `json:"name" bson:"name"`
	LineItems  []LineItem `json:"lineItems" bson:"lineItems"`
	Subtotal   float64    `json:"subtotal" bson:"subtotal"`
	TaxRate    float64    `json:"taxRate" bson:"taxRate"`       // Percent, 8.25 means 8.25%
	MarkupRate float64    `json:"markupRate" bson:"markupRate"` // Percent
	Notes      string     `json:"notes" bson:"notes"`
	IsTemplate bool       `json:"isTemplate" bson:"isTemplate"`
	Total      float64    `json:"total" bson:"total"`
	CreatedAt  time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt" bson:"updatedAt"`
}

// LibraryItem is a reusable item a user saved for future quotes
type LibraryItem struct {
	ID     string  `json:"id" bson:"_id,omitempty"`
	UserID string  `json:"userId" bson:"userId"`
	Name   string  `json:"name" bson:"name"`
	Unit   string  `json:"unit" bson:"unit"`
	Cost   float64 `json:"cost" bson:"cost"`
}
