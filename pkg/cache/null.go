package cache

import "context"

// NullStore is a no-op index that never stores anything.
// Useful for testing or when caching should be disabled.
type NullStore struct{}

// NewNullStore creates a null index.
func NewNullStore() *NullStore { return &NullStore{} }

// Get always reports a miss.
func (s *NullStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, nil
}

// Set does nothing.
func (s *NullStore) Set(ctx context.Context, key string, data []byte) error { return nil }

// Delete does nothing.
func (s *NullStore) Delete(ctx context.Context, key string) error { return nil }

// Close does nothing.
func (s *NullStore) Close() error { return nil }

var _ Store = (*NullStore)(nil)
