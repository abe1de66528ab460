package raw

import "errors"

// ErrNoCatalog is returned when the trailer does not lead to a document catalog.
var ErrNoCatalog = errors.New("raw: document has no catalog")

// Resolve follows an indirect reference to its target object. Non-reference
// objects are returned unchanged. A dangling reference resolves to nil.
func (d *Document) Resolve(obj Object) Object {
	for depth := 0; depth < 32; depth++ {
		ref, ok := obj.(Reference)
		if !ok {
			return obj
		}
		obj, ok = d.Objects[ref.Ref()]
		if !ok {
			return nil
		}
	}
	return nil
}

// Catalog resolves the trailer's /Root dictionary.
func (d *Document) Catalog() (Dictionary, error) {
	if d.Trailer == nil {
		return nil, ErrNoCatalog
	}
	rootObj, ok := d.Trailer.Get("Root")
	if !ok {
		return nil, ErrNoCatalog
	}
	dict, ok := d.Resolve(rootObj).(Dictionary)
	if !ok {
		return nil, ErrNoCatalog
	}
	return dict, nil
}

// Info resolves the trailer's /Info dictionary, or nil when absent.
func (d *Document) Info() Dictionary {
	if d.Trailer == nil {
		return nil
	}
	infoObj, ok := d.Trailer.Get("Info")
	if !ok {
		return nil
	}
	dict, _ := d.Resolve(infoObj).(Dictionary)
	return dict
}

// DictDict resolves a dictionary-valued entry.
func (d *Document) DictDict(dict Dictionary, key string) (Dictionary, bool) {
	if dict == nil {
		return nil, false
	}
	obj, ok := dict.Get(key)
	if !ok {
		return nil, false
	}
	v, ok := d.Resolve(obj).(Dictionary)
	return v, ok
}

// DictArray resolves an array-valued entry.
func (d *Document) DictArray(dict Dictionary, key string) (Array, bool) {
	if dict == nil {
		return nil, false
	}
	obj, ok := dict.Get(key)
	if !ok {
		return nil, false
	}
	v, ok := d.Resolve(obj).(Array)
	return v, ok
}

// DictStream resolves a stream-valued entry.
func (d *Document) DictStream(dict Dictionary, key string) (Stream, bool) {
	if dict == nil {
		return nil, false
	}
	obj, ok := dict.Get(key)
	if !ok {
		return nil, false
	}
	v, ok := d.Resolve(obj).(Stream)
	return v, ok
}

// DictInt resolves an integer-valued entry.
func (d *Document) DictInt(dict Dictionary, key string) (int, bool) {
	if dict == nil {
		return 0, false
	}
	obj, ok := dict.Get(key)
	if !ok {
		return 0, false
	}
	n, ok := d.Resolve(obj).(Number)
	if !ok {
		return 0, false
	}
	return int(n.Int()), true
}

// DictName resolves a name-valued entry.
func (d *Document) DictName(dict Dictionary, key string) (string, bool) {
	if dict == nil {
		return "", false
	}
	obj, ok := dict.Get(key)
	if !ok {
		return "", false
	}
	n, ok := d.Resolve(obj).(Name)
	if !ok {
		return "", false
	}
	return n.Value(), true
}
