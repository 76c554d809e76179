package entity

import "time"

// Tag counts the live posts carrying a hashtag. A tag never persists with Count <= 0.
type Tag struct {
	Name      string
	Count     int
	CreatedAt time.Time
}

func (t *Tag) DocumentID() string { return t.Name }

func (t *Tag) Clone() *Tag {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
