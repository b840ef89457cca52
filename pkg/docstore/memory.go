package docstore

import (
	"context"
	"sync"
)

// MemoryStore implements Store in process memory.
type MemoryStore struct {
	mutex sync.RWMutex
	data  map[string]map[string]map[string]string // collection -> id -> fields
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]map[string]map[string]string)}
}

func (ms *MemoryStore) Upsert(_ context.Context, collection, id string, fields map[string]any) error {
	set, del, err := split(fields)
	if err != nil {
		return err
	}
	ms.mutex.Lock()
	defer ms.mutex.Unlock()
	ms.apply(collection, id, set, del)
	return nil
}

func (ms *MemoryStore) Batch(_ context.Context, collection string, docs []Document) error {
	type prepared struct {
		id  string
		set map[string]string
		del []string
	}
	ready := make([]prepared, 0, len(docs))
	for _, d := range docs {
		set, del, err := split(d.Fields)
		if err != nil {
			return err
		}
		ready = append(ready, prepared{id: d.ID, set: set, del: del})
	}

	ms.mutex.Lock()
	defer ms.mutex.Unlock()
	for _, p := range ready {
		ms.apply(collection, p.id, p.set, p.del)
	}
	return nil
}

func (ms *MemoryStore) apply(collection, id string, set map[string]string, del []string) {
	coll, ok := ms.data[collection]
	if !ok {
		coll = make(map[string]map[string]string)
		ms.data[collection] = coll
	}
	doc, ok := coll[id]
	if !ok {
		doc = make(map[string]string, len(set))
		coll[id] = doc
	}
	for k, v := range set {
		doc[k] = v
	}
	for _, k := range del {
		delete(doc, k)
	}
}

func (ms *MemoryStore) Delete(_ context.Context, collection, id string) error {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()
	if coll, ok := ms.data[collection]; ok {
		delete(coll, id)
	}
	return nil
}

func (ms *MemoryStore) Get(_ context.Context, collection, id string) (map[string]string, error) {
	ms.mutex.RLock()
	defer ms.mutex.RUnlock()
	doc, ok := ms.data[collection][id]
	if !ok || len(doc) == 0 {
		return nil, ErrNotFound
	}
	return copyFields(doc), nil
}

func (ms *MemoryStore) List(_ context.Context, collection string) (map[string]map[string]string, error) {
	ms.mutex.RLock()
	defer ms.mutex.RUnlock()
	out := make(map[string]map[string]string, len(ms.data[collection]))
	for id, doc := range ms.data[collection] {
		if len(doc) > 0 {
			out[id] = copyFields(doc)
		}
	}
	return out, nil
}

func (ms *MemoryStore) Ping(context.Context) error { return nil }

func (ms *MemoryStore) Close() error { return nil }

func copyFields(doc map[string]string) map[string]string {
	out := make(map[string]string, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}

var _ Store = (*MemoryStore)(nil)
