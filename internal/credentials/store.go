package credentials

import (
	"context"
	"strings"
	"sync"

	"outputrocks-nodes/internal/common/errors"
)

// Store persists credential values by type and id.
type Store interface {
	Get(ctx context.Context, credentialType, id string) (Data, error)
	Save(ctx context.Context, credentialType, id string, data Data) error
	Delete(ctx context.Context, credentialType, id string) error
}

// ErrCredentialNotFound matches any CREDENTIAL_NOT_FOUND error via errors.Is.
var ErrCredentialNotFound = &errors.StandardError{Code: errors.ErrCodeCredentialNotFound}

// validate runs the type's checks; unknown types are rejected.
func validate(credentialType string, data Data) error {
	t, ok := Lookup(credentialType)
	if !ok {
		return errors.NewCredentialInvalidError(credentialType, "unknown credential type")
	}
	return t.Validate(data)
}

func copyData(data Data) Data {
	out := make(Data, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}

// MemoryStore keeps credentials in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]Data
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]Data)}
}

func memoryKey(credentialType, id string) string {
	return credentialType + "/" + id
}

func (s *MemoryStore) Get(_ context.Context, credentialType, id string) (Data, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.items[memoryKey(credentialType, id)]
	if !ok {
		return nil, errors.NewCredentialNotFoundError(credentialType, id)
	}
	return copyData(data), nil
}

func (s *MemoryStore) Save(_ context.Context, credentialType, id string, data Data) error {
	if err := validate(credentialType, data); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[memoryKey(credentialType, id)] = copyData(data)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, credentialType, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, memoryKey(credentialType, id))
	return nil
}

// Seed saves every credential from a type -> id -> data map. Type and
// property names are matched case-insensitively and ids are stored
// lowercased, because configuration keys arrive lowercased.
func Seed(ctx context.Context, store Store, seed map[string]map[string]map[string]string) error {
	for credentialType, byID := range seed {
		t, ok := lookupFold(credentialType)
		if !ok {
			return errors.NewCredentialInvalidError(credentialType, "unknown credential type")
		}
		for id, data := range byID {
			if err := store.Save(ctx, t.Name(), strings.ToLower(id), canonicalData(t, data)); err != nil {
				return err
			}
		}
	}
	return nil
}

func lookupFold(name string) (Type, bool) {
	for _, t := range Types() {
		if strings.EqualFold(t.Name(), name) {
			return t, true
		}
	}
	return nil, false
}

func canonicalData(t Type, data map[string]string) Data {
	out := make(Data, len(data))
	for key, value := range data {
		for _, p := range t.Description().Properties {
			if strings.EqualFold(p.Name, key) {
				key = p.Name
				break
			}
		}
		out[key] = value
	}
	return out
}
