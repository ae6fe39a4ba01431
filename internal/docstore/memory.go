package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore implements Store with an in-process map. It backs unit tests
// and non-persistent contexts where an embedded database is unavailable.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]Document
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]map[string]Document)}
}

func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) Get(_ context.Context, collection, key string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.collections[collection][SanitizeKey(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return &doc, nil
}

func (s *MemoryStore) GetAll(_ context.Context, collection string) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]Document, 0, len(s.collections[collection]))
	for _, doc := range s.collections[collection] {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Key < docs[j].Key })

	return docs, nil
}

func (s *MemoryStore) Set(_ context.Context, collection, key string, data any) error {
	encoded, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.collections[collection] == nil {
		s.collections[collection] = make(map[string]Document)
	}

	key = SanitizeKey(key)
	s.collections[collection][key] = Document{
		Key:       key,
		Data:      json.RawMessage(encoded),
		UpdatedAt: time.Now(),
	}

	return nil
}

func (s *MemoryStore) Update(ctx context.Context, collection, key string, partial map[string]any) error {
	doc, err := s.Get(ctx, collection, key)
	if err != nil {
		return err
	}

	var merged map[string]any
	if err := json.Unmarshal(doc.Data, &merged); err != nil {
		return fmt.Errorf("failed to unmarshal document: %w", err)
	}
	for k, v := range partial {
		merged[k] = v
	}

	return s.Set(ctx, collection, key, merged)
}

func (s *MemoryStore) Delete(_ context.Context, collection, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key = SanitizeKey(key)
	if _, ok := s.collections[collection][key]; !ok {
		return ErrNotFound
	}
	delete(s.collections[collection], key)

	return nil
}

func (s *MemoryStore) QueryByField(_ context.Context, collection, field, op string, value any) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var docs []Document
	for _, doc := range s.collections[collection] {
		var fields map[string]any
		if err := json.Unmarshal(doc.Data, &fields); err != nil {
			return nil, fmt.Errorf("failed to unmarshal document: %w", err)
		}

		match, err := compareField(fields[field], op, value)
		if err != nil {
			return nil, err
		}
		if match {
			docs = append(docs, doc)
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Key < docs[j].Key })

	return docs, nil
}

func compareField(field any, op string, value any) (bool, error) {
	// JSON numbers decode as float64; compare numerically when both sides
	// are numbers, otherwise compare string forms.
	fn, fok := toFloat(field)
	vn, vok := toFloat(value)

	switch op {
	case OpEqual:
		if fok && vok {
			return fn == vn, nil
		}
		return fmt.Sprint(field) == fmt.Sprint(value), nil
	case OpNotEqual:
		if fok && vok {
			return fn != vn, nil
		}
		return fmt.Sprint(field) != fmt.Sprint(value), nil
	case OpGreater, OpGreaterEqual, OpLess, OpLessEqual:
		if fok && vok {
			switch op {
			case OpGreater:
				return fn > vn, nil
			case OpGreaterEqual:
				return fn >= vn, nil
			case OpLess:
				return fn < vn, nil
			default:
				return fn <= vn, nil
			}
		}
		fs, vs := fmt.Sprint(field), fmt.Sprint(value)
		switch op {
		case OpGreater:
			return fs > vs, nil
		case OpGreaterEqual:
			return fs >= vs, nil
		case OpLess:
			return fs < vs, nil
		default:
			return fs <= vs, nil
		}
	default:
		return false, fmt.Errorf("unsupported query operator: %q", op)
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
