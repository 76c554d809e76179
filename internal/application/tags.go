package application

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-social-sync/internal/domain/repository"
)

var hashtagPattern = regexp.MustCompile(`#(\w+)`)

// ExtractHashtags returns every #word in text, lowercased, in order of appearance.
// Repeats are kept so tag counts move once per occurrence.
func ExtractHashtags(text string) []string {
	matches := hashtagPattern.FindAllStringSubmatch(text, -1)
	tags := make([]string, 0, len(matches))
	for _, m := range matches {
		tags = append(tags, strings.ToLower(m[1]))
	}
	return tags
}

// TagDelta is the direction of a tag counter adjustment.
type TagDelta int

const (
	TagIncrement TagDelta = 1
	TagDecrement TagDelta = -1
)

// TagCounter keeps the tag collection's counts in step with live posts.
type TagCounter struct {
	Tags   repository.TagRepository
	Logger *logrus.Logger
}

func NewTagCounter(tags repository.TagRepository, logger *logrus.Logger) *TagCounter {
	return &TagCounter{Tags: tags, Logger: logger}
}

// Apply moves the count of each tag by one per occurrence. Empty names are skipped;
// decrementing a tag that does not exist is a no-op.
func (c *TagCounter) Apply(ctx context.Context, tags []string, delta TagDelta) error {
	for _, name := range tags {
		if name == "" {
			continue
		}
		switch delta {
		case TagIncrement:
			if _, err := c.Tags.Increment(ctx, name); err != nil {
				return err
			}
		case TagDecrement:
			_, deleted, err := c.Tags.Decrement(ctx, name)
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if deleted && c.Logger != nil {
				c.Logger.WithField("tag", name).Debug("tag removed")
			}
		}
	}
	return nil
}
