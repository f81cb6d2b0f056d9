package models

// Location is a (city, state, country) triple shared by many markers.
// The triple is the natural key and carries a unique constraint; absent
// components are stored as empty strings so key equality stays exact.
type Location struct {
	ID      string `db:"id" json:"id"`
	City    string `db:"city" json:"city,omitempty"`
	State   string `db:"state" json:"state,omitempty"`
	Country string `db:"country" json:"country,omitempty"`
}

// Category classifies markers. Categories are seeded by administrators;
// submission only references an existing one.
type Category struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Tag is a free-form label, globally unique by name.
type Tag struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Organization is a group associated with markers, globally unique by name.
type Organization struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}
