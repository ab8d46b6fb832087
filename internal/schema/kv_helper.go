package schema

import (
	"encoding/json"

	"github.com/epicenterhq/epicenter-go/internal/crdt"
	"github.com/epicenterhq/epicenter-go/internal/kv"
)

// kvKey is the single implicit key a KvHelper stores its value under.
const kvKey = "value"

// KvHelper is a schema-validated accessor over a single named value,
// backed by one key of a YKeyValueLww[json.RawMessage].
type KvHelper[T any] struct {
	store *kv.YKeyValueLww[json.RawMessage]
	def   ValueDefinition[T]
}

// NewKvHelper creates a KvHelper over a fresh LWW KV on doc.
func NewKvHelper[T any](doc *crdt.Document, clock *kv.Clock, def ValueDefinition[T]) *KvHelper[T] {
	return &KvHelper[T]{store: kv.NewYKeyValueLww[json.RawMessage](doc, clock), def: def}
}

// Get returns the tagged Result for the single value.
func (kh *KvHelper[T]) Get() Result[T] {
	raw, ok := kh.store.Get(kvKey)
	if !ok {
		return Result[T]{Status: StatusNotFound}
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Result[T]{Status: StatusInvalid, Errors: []FieldError{{Message: err.Error()}}}
	}
	return decode(fields, kh.def)
}

// Set validates and writes the value.
func (kh *KvHelper[T]) Set(v T) error {
	if kh.def.Validate != nil {
		if errs := kh.def.Validate(v); len(errs) > 0 {
			return &ValidationError{Fields: errs}
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	kh.store.Set(kvKey, data)
	return nil
}

// Delete removes the value.
func (kh *KvHelper[T]) Delete() {
	kh.store.Delete(kvKey)
}

// State returns the value's encodable state.
func (kh *KvHelper[T]) State() (kv.State, error) {
	return kh.store.State()
}

// ApplyState merges remote or restored state into the value's store.
func (kh *KvHelper[T]) ApplyState(st kv.State) error {
	return kh.store.ApplyState(st)
}

// ObserveRaw registers fn on the value's untyped change stream.
func (kh *KvHelper[T]) ObserveRaw(fn func([]kv.RawChange)) int {
	return kh.store.ObserveRaw(fn)
}

// UnobserveRaw removes a previously registered raw observer.
func (kh *KvHelper[T]) UnobserveRaw(handle int) {
	kh.store.UnobserveRaw(handle)
}

// Observe registers fn to be called once per transaction that changes the
// value.
func (kh *KvHelper[T]) Observe(fn func()) int {
	return kh.store.Observe(func(changes map[string]kv.Change[json.RawMessage]) {
		fn()
	})
}

// Unobserve removes a previously registered observer.
func (kh *KvHelper[T]) Unobserve(handle int) {
	kh.store.Unobserve(handle)
}
