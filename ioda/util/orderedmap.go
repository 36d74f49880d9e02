package util

import (
	"errors"
	"iter"
	"slices"
)

// OrderedMap keeps insertion order. Hidden keys stay retrievable with Get but
// are left out of Keys and All, which is how attributes that were created but
// not yet written, or codec bookkeeping attributes, stay out of listings.
type OrderedMap[V any] struct {
	keys        []string
	values      map[string]V
	visibleKeys []string
	hiddenKeys  map[string]bool
}

var (
	ErrorKeysDontMatchValues = errors.New("keys don't match values")
)

func NewOrderedMap[V any](keys []string, values map[string]V) (*OrderedMap[V], error) {
	if len(keys) != len(values) {
		return nil, ErrorKeysDontMatchValues
	}
	for _, k := range keys {
		if _, has := values[k]; !has {
			return nil, ErrorKeysDontMatchValues
		}
	}
	if values == nil {
		values = map[string]V{}
	}
	om := &OrderedMap[V]{values: values, hiddenKeys: map[string]bool{}}
	if len(keys) > 0 {
		om.keys = slices.Clone(keys)
		om.visibleKeys = slices.Clone(keys)
	}
	return om, nil
}

// Add inserts or replaces name. A new key goes to the end of the order; a
// replaced key keeps its place and its visibility.
func (om *OrderedMap[V]) Add(name string, val V) {
	if _, has := om.values[name]; !has {
		om.keys = append(om.keys, name)
		if !om.hiddenKeys[name] {
			om.visibleKeys = append(om.visibleKeys, name)
		}
	}
	om.values[name] = val
}

func (om *OrderedMap[V]) Get(key string) (val V, has bool) {
	val, has = om.values[key]
	return
}

// Has reports whether key is present, hidden or not.
func (om *OrderedMap[V]) Has(key string) bool {
	_, has := om.values[key]
	return has
}

// Hidden reports whether key is present but hidden.
func (om *OrderedMap[V]) Hidden(key string) bool {
	return om.Has(key) && om.hiddenKeys[key]
}

func (om *OrderedMap[V]) Hide(hiddenKey string) {
	om.hiddenKeys[hiddenKey] = true
	om.recompute()
}

// Show undoes Hide.
func (om *OrderedMap[V]) Show(key string) {
	if !om.hiddenKeys[key] {
		return
	}
	delete(om.hiddenKeys, key)
	om.recompute()
}

// Delete removes key entirely.
func (om *OrderedMap[V]) Delete(key string) {
	if _, has := om.values[key]; !has {
		return
	}
	delete(om.values, key)
	delete(om.hiddenKeys, key)
	om.keys = slices.DeleteFunc(om.keys, func(k string) bool { return k == key })
	om.recompute()
}

func (om *OrderedMap[V]) recompute() {
	var visibleKeys []string
	for _, key := range om.keys {
		if om.hiddenKeys[key] {
			continue
		}
		visibleKeys = append(visibleKeys, key)
	}
	om.visibleKeys = visibleKeys
}

// Keys returns the visible keys in order, or nil when there are none.
func (om *OrderedMap[V]) Keys() []string {
	return slices.Clone(om.visibleKeys)
}

// Len is the number of visible keys.
func (om *OrderedMap[V]) Len() int {
	return len(om.visibleKeys)
}

// All yields the visible entries in order.
func (om *OrderedMap[V]) All() iter.Seq2[string, V] {
	return func(yield func(string, V) bool) {
		for _, k := range slices.Clone(om.visibleKeys) {
			if !yield(k, om.values[k]) {
				return
			}
		}
	}
}
