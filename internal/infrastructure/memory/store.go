// Package memory is an in-process document store implementing the repository
// interfaces. Every call copies documents in and out, so callers never share state
// with the store, and every mutation holds the store lock for its whole read-modify-write.
package memory

import (
	"sync"

	"github.com/oksasatya/go-social-sync/internal/domain/entity"
)

type Store struct {
	mu           sync.RWMutex
	users        map[string]*entity.User
	posts        map[string]*entity.Post
	tags         map[string]*entity.Tag
	messages     map[string]*entity.Message
	transactions map[string]*entity.Transaction
}

func NewStore() *Store {
	return &Store{
		users:        map[string]*entity.User{},
		posts:        map[string]*entity.Post{},
		tags:         map[string]*entity.Tag{},
		messages:     map[string]*entity.Message{},
		transactions: map[string]*entity.Transaction{},
	}
}

func (s *Store) Users() *UserRepository               { return &UserRepository{s: s} }
func (s *Store) Posts() *PostRepository               { return &PostRepository{s: s} }
func (s *Store) Tags() *TagRepository                 { return &TagRepository{s: s} }
func (s *Store) Messages() *MessageRepository         { return &MessageRepository{s: s} }
func (s *Store) Transactions() *TransactionRepository { return &TransactionRepository{s: s} }
