package dispatch

import (
	"reflect"
	"strings"
)

// ResultKind is the declared result shape of a member.
type ResultKind int

const (
	ResultVoid ResultKind = iota
	ResultValue
	ResultFuture
)

func (k ResultKind) String() string {
	switch k {
	case ResultValue:
		return "value"
	case ResultFuture:
		return "future"
	default:
		return "void"
	}
}

// ValueKind says whether a parameter is passed as a scalar, a struct value or
// a reference (pointer, slice, map, interface).
type ValueKind int

const (
	ValueScalar ValueKind = iota
	ValueStruct
	ValueReference
)

func (k ValueKind) String() string {
	switch k {
	case ValueStruct:
		return "struct"
	case ValueReference:
		return "reference"
	default:
		return "scalar"
	}
}

// ParameterDescriptor describes one positional parameter of a member.
type ParameterDescriptor struct {
	Name      string
	Position  int
	Type      reflect.Type
	Kind      ValueKind
	IsContext bool
}

// MemberDescriptor describes one forwarded member. Index is its position in
// the owning InterfaceDescriptor and is how dispatchers find it.
type MemberDescriptor struct {
	Index  int
	Owner  string
	Name   string
	Params []ParameterDescriptor
	Kind   ResultKind

	// Result is the value type for value members and the awaited type for
	// future members. Nil for void members.
	Result       reflect.Type
	ReturnsError bool

	// Type is the member's func type without a receiver.
	Type reflect.Type
}

// Qualified returns "Owner.Name", the key used by route tables.
func (m *MemberDescriptor) Qualified() string {
	if m.Owner == "" {
		return m.Name
	}
	return m.Owner + "." + m.Name
}

// ContextIndex returns the position of the first context.Context parameter or -1.
func (m *MemberDescriptor) ContextIndex() int {
	for _, p := range m.Params {
		if p.IsContext {
			return p.Position
		}
	}
	return -1
}

// Param looks a parameter up by name, case-insensitively.
func (m *MemberDescriptor) Param(name string) (ParameterDescriptor, bool) {
	for _, p := range m.Params {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return ParameterDescriptor{}, false
}

// InterfaceDescriptor is the immutable, position-ordered member table of one
// capability. It must not be modified once cached.
type InterfaceDescriptor struct {
	Type    reflect.Type
	Name    string
	Members []MemberDescriptor
}

// Names returns the member names in position order.
func (d *InterfaceDescriptor) Names() []string {
	out := make([]string, len(d.Members))
	for i := range d.Members {
		out[i] = d.Members[i].Name
	}
	return out
}
