// Package search keeps the Elasticsearch user directory used by /api/users/search.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/oksasatya/go-social-sync/internal/domain/entity"
)

const (
	defaultSize = 10
	maxSize     = 50
	esTimeout   = 3 * time.Second
)

type UserIndex struct {
	ES    *elasticsearch.Client
	Index string
}

func NewUserIndex(es *elasticsearch.Client, index string) *UserIndex {
	return &UserIndex{ES: es, Index: index}
}

// userDocument is the indexed shape of a user. It never carries the password hash.
func userDocument(u *entity.User) map[string]any {
	doc := map[string]any{
		"id":          u.ID,
		"username":    u.Username,
		"name":        u.Profile.Name,
		"avatar_url":  u.Profile.Avatar,
		"is_verified": u.Profile.IsVerified,
		"created_at":  u.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at":  u.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if e := u.PrimaryEmail(); e != nil {
		doc["email"] = e.Address
	}
	return doc
}

func searchQuery(q string, size int) map[string]any {
	if size <= 0 || size > maxSize {
		size = defaultSize
	}
	return map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  q,
				"fields": []string{"username^2", "email^2", "name"},
			},
		},
		"size": size,
	}
}

func (x *UserIndex) IndexUser(ctx context.Context, u *entity.User) error {
	if x.ES == nil || x.Index == "" {
		return nil
	}
	b, err := json.Marshal(userDocument(u))
	if err != nil {
		return err
	}
	req := esapi.IndexRequest{Index: x.Index, DocumentID: u.ID, Body: bytes.NewReader(b), Refresh: "false"}
	c, cancel := context.WithTimeout(ctx, esTimeout)
	defer cancel()
	res, err := req.Do(c, x.ES)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return fmt.Errorf("es index: %s", res.Status())
	}
	return nil
}

// SearchUsers runs a multi_match over username, email and name.
func (x *UserIndex) SearchUsers(ctx context.Context, q string, size int) ([]map[string]any, error) {
	if x.ES == nil || x.Index == "" {
		return []map[string]any{}, nil
	}
	b, err := json.Marshal(searchQuery(q, size))
	if err != nil {
		return nil, err
	}

	c, cancel := context.WithTimeout(ctx, esTimeout)
	defer cancel()

	res, err := x.ES.Search(x.ES.Search.WithContext(c), x.ES.Search.WithIndex(x.Index), x.ES.Search.WithBody(bytes.NewReader(b)))
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return nil, fmt.Errorf("es search: %s", res.Status())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID     string         `json:"_id"`
				Source map[string]any `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}
