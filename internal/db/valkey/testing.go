package valkey

import "github.com/redis/rueidis"

// NewStoreForTest creates a Store on top of an existing rueidis client, such as rueidis/mock.
func NewStoreForTest(c rueidis.Client) *Store {
	return &Store{client: c}
}
