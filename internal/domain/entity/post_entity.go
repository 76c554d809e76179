package entity

import "time"

// Post is a feed entry. OwnerID is empty for seeded content that no user owns.
// Username is the author's display name captured at creation and never refreshed.
type Post struct {
	ID           string
	Text         string
	ImageURL     string
	CreatedAt    time.Time
	OwnerID      string
	Username     string
	Tags         []string
	Likes        []string
	LikeCount    int
	Comments     []Comment
	CommentCount int
}

// Comment is embedded in a post and only ever appended.
type Comment struct {
	ID        string    `json:"_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
	OwnerID   string    `json:"ownerId"`
	Username  string    `json:"username"`
}

func (p *Post) DocumentID() string { return p.ID }

// LikedBy reports whether userID is in the likes set.
func (p *Post) LikedBy(userID string) bool {
	for _, id := range p.Likes {
		if id == userID {
			return true
		}
	}
	return false
}

// HasTag reports whether tag occurs in the post's tag list.
func (p *Post) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

func (p *Post) Clone() *Post {
	if p == nil {
		return nil
	}
	c := *p
	c.Tags = append([]string(nil), p.Tags...)
	c.Likes = append([]string(nil), p.Likes...)
	c.Comments = append([]Comment(nil), p.Comments...)
	return &c
}
