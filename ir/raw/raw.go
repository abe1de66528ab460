// Package raw defines the low-level PDF object model shared by the parser,
// the image pipeline and the writer. Objects are held exactly as parsed;
// stream payloads stay encoded until a filter pipeline decodes them.
package raw

import "fmt"

// ObjectRef uniquely identifies an indirect PDF object.
type ObjectRef struct {
	Num int
	Gen int
}

func (r ObjectRef) String() string { return fmt.Sprintf("%d %d R", r.Num, r.Gen) }

// Object is the base interface for all raw PDF objects.
type Object interface {
	Type() string
	IsIndirect() bool
}

// Name represents a PDF name object.
type Name interface {
	Object
	Value() string
}

// Number represents a PDF numeric value.
type Number interface {
	Object
	Int() int64
	Float() float64
	IsInteger() bool
}

// String represents a PDF string (literal or hex).
type String interface {
	Object
	Value() []byte
}

// Boolean represents a PDF boolean.
type Boolean interface {
	Object
	Value() bool
}

// Null represents the PDF null object. The marker method keeps the interface
// from matching every Object in type switches.
type Null interface {
	Object
	isNull()
}

// Array represents a PDF array object.
type Array interface {
	Object
	Get(index int) (Object, bool)
	Len() int
	Append(obj Object)
}

// Dictionary represents a PDF dictionary object.
type Dictionary interface {
	Object
	Get(key string) (Object, bool)
	Set(key string, value Object)
	Delete(key string)
	Keys() []string
	Len() int
}

// Stream represents a raw (still encoded) PDF stream.
type Stream interface {
	Object
	Dictionary() Dictionary
	RawData() []byte
	SetRawData(data []byte)
	Length() int64
}

// Reference represents an indirect object reference.
type Reference interface {
	Object
	Ref() ObjectRef
}

// Document is the root container for raw PDF objects.
type Document struct {
	Objects map[ObjectRef]Object
	Trailer Dictionary
	Version string // header version, e.g. "1.7"
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{Objects: make(map[ObjectRef]Object)}
}
