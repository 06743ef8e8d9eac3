package codec

import (
	"fmt"
	"reflect"
)

// errCyclic is wrapped into the returned error when a cyclic reference is
// detected in a value passed to Encode. Neither encoding/json nor
// msgpack detect this on their own — a genuinely cyclic map/slice/pointer
// graph recurses until the goroutine stack overflows — so codecs in this
// package walk the value first and fail cleanly instead.
var errCyclic = fmt.Errorf("codec: cyclic reference detected")

// checkAcyclic walks v (maps, slices, pointers, interfaces, structs) and
// returns errCyclic if it finds a reference cycle.
func checkAcyclic(v any) error {
	seen := make(map[uintptr]bool)
	return walk(reflect.ValueOf(v), seen)
}

func walk(v reflect.Value, seen map[uintptr]bool) error {
	if !v.IsValid() {
		return nil
	}

	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice:
		if v.IsNil() {
			return nil
		}
		ptr := v.Pointer()
		if seen[ptr] {
			return errCyclic
		}
		seen[ptr] = true
		defer delete(seen, ptr)
	}

	switch v.Kind() {
	case reflect.Ptr, reflect.Interface:
		return walk(v.Elem(), seen)
	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			if err := walk(iter.Value(), seen); err != nil {
				return err
			}
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if err := walk(v.Index(i), seen); err != nil {
				return err
			}
		}
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if !v.Field(i).CanInterface() {
				continue
			}
			if err := walk(v.Field(i), seen); err != nil {
				return err
			}
		}
	}
	return nil
}
