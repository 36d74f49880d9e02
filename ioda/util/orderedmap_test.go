package util

import (
	"testing"
)

func TestNil(t *testing.T) {
	_, err := NewOrderedMap[any](nil, nil)
	if err != nil {
		t.Error(err)
		return
	}
	_, err = NewOrderedMap(nil, map[string]any{})
	if err != nil {
		t.Error(err)
		return
	}
	om, err := NewOrderedMap[int]([]string{}, nil)
	if err != nil {
		t.Error(err)
		return
	}
	om.Add("a", 1)
	if om.Len() != 1 {
		t.Error("Add() on a nil map failed")
	}
}

func TestMismatchedLength(t *testing.T) {
	_, err := NewOrderedMap([]string{"a", "b"},
		map[string]any{"a": nil})
	if err != ErrorKeysDontMatchValues {
		t.Error("Should have returned an error")
		return
	}
}

func TestMismatchedKeys(t *testing.T) {
	_, err := NewOrderedMap([]string{"a", "b"},
		map[string]any{"a": nil, "c": nil})
	if err != ErrorKeysDontMatchValues {
		t.Error("Should have returned an error")
		return
	}
}

func TestHidden(t *testing.T) {
	om, err := NewOrderedMap([]string{"a", "b"},
		map[string]any{"a": nil, "b": nil})
	if err != nil {
		t.Error(err)
		return
	}
	om.Hide("a")
	keys := om.Keys()
	if len(keys) != 1 || keys[0] != "b" {
		t.Error("Hide() failed")
		return
	}
	om.Add("a", 1)
	keys = om.Keys()
	if len(keys) != 1 || keys[0] != "b" {
		t.Error("Hide() failed")
		return
	}
	if v, has := om.Get("a"); !has || v.(int) != 1 {
		t.Error("hidden key should still be retrievable")
	}
	om.Hide("c")
	om.Add("c", 2)
	if len(om.Keys()) != 1 {
		t.Error("key hidden before it was added should stay hidden", om.Keys())
	}
	om.Show("a")
	keys = om.Keys()
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Error("Show() failed", keys)
	}
}

func TestOrder(t *testing.T) {
	myMap := map[string]any{"a": nil, "b": nil, "c": nil}
	om, err := NewOrderedMap([]string{"c", "b", "a"}, myMap)
	if err != nil {
		t.Error(err)
		return
	}
	keys := om.Keys()
	if keys[0] != "c" || keys[1] != "b" || keys[2] != "a" {
		t.Error("Incorrect key order:", keys)
	}
	om.Add("b", 5)
	keys = om.Keys()
	if len(keys) != 3 || keys[1] != "b" {
		t.Error("replacing a key should keep its place:", keys)
	}
}

func TestAdd(t *testing.T) {
	om, err := NewOrderedMap[int](nil, nil)
	if err != nil {
		t.Error(err)
		return
	}
	om.Add("a", 1)
	val, has := om.Get("a")
	if !has {
		t.Error("Did not find expected key")
		return
	}
	if val != 1 {
		t.Error("Did not get expected value back")
		return
	}
}

func TestDelete(t *testing.T) {
	om, _ := NewOrderedMap[int](nil, nil)
	om.Add("a", 1)
	om.Add("b", 2)
	om.Delete("a")
	om.Delete("zz")
	if om.Has("a") || om.Len() != 1 || om.Keys()[0] != "b" {
		t.Error("Delete() failed", om.Keys())
	}
}

func TestAll(t *testing.T) {
	om, _ := NewOrderedMap[int](nil, nil)
	for i, k := range []string{"x", "y", "z"} {
		om.Add(k, i)
	}
	om.Hide("y")
	var got []string
	for k, v := range om.All() {
		got = append(got, k)
		if k == "z" && v != 2 {
			t.Error("wrong value", v)
		}
	}
	if len(got) != 2 || got[0] != "x" || got[1] != "z" {
		t.Error("All() failed", got)
	}
	n := 0
	for range om.All() {
		n++
		break
	}
	if n != 1 {
		t.Error("early break failed")
	}
}

func TestHiddenShow(t *testing.T) {
	om, err := NewOrderedMap[int](nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if om.Keys() != nil {
		t.Error("empty map should have nil keys", om.Keys())
	}
	om.Add("a", 1)
	om.Hide("a")
	if !om.Hidden("a") || om.Hidden("b") {
		t.Error("Hidden() wrong before Show")
	}
	if om.Keys() != nil {
		t.Error("all keys hidden, want nil", om.Keys())
	}
	om.Show("a")
	if om.Hidden("a") || om.Len() != 1 {
		t.Error("Show() failed")
	}
}
