package filter

import (
	"encoding/json"
	"fmt"
)

// Decoder turns a serialized predicate blob from the query engine into a
// Node tree. The wire format is owned by the engine side; this package only
// ships the JSON codec.
type Decoder interface {
	Decode(data []byte) (Node, error)
}

// Node kinds on the JSON wire.
const (
	kindFunc   = "func"
	kindColumn = "column"
	kindConst  = "const"
)

type wireNode struct {
	Kind     string     `json:"kind"`
	Op       string     `json:"op,omitempty"`
	Name     string     `json:"name,omitempty"`
	Type     string     `json:"type,omitempty"`
	Value    string     `json:"value,omitempty"`
	Children []wireNode `json:"children,omitempty"`
}

// JSONDecoder decodes predicate trees from their JSON encoding.
type JSONDecoder struct{}

// Decode parses data into a Node tree.
func (JSONDecoder) Decode(data []byte) (Node, error) {
	var w wireNode
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decoding filter expression: %w", err)
	}
	return fromWire(w)
}

func fromWire(w wireNode) (Node, error) {
	switch w.Kind {
	case kindFunc:
		children := make([]Node, len(w.Children))
		for i, c := range w.Children {
			n, err := fromWire(c)
			if err != nil {
				return nil, err
			}
			children[i] = n
		}
		return &Func{Op: w.Op, Children: children}, nil
	case kindColumn:
		return &Column{Name: w.Name}, nil
	case kindConst:
		return &Const{Type: w.Type, Value: w.Value}, nil
	default:
		return nil, fmt.Errorf("unknown filter node kind %q", w.Kind)
	}
}

// Encode serializes a Node tree to its JSON wire form. The server side uses
// it to round-trip filters in tests and over HTTP.
func Encode(n Node) ([]byte, error) {
	w, err := toWire(n)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("encoding filter expression: %w", err)
	}
	return data, nil
}

func toWire(n Node) (wireNode, error) {
	switch n := n.(type) {
	case *Func:
		children := make([]wireNode, len(n.Children))
		for i, c := range n.Children {
			w, err := toWire(c)
			if err != nil {
				return wireNode{}, err
			}
			children[i] = w
		}
		return wireNode{Kind: kindFunc, Op: n.Op, Children: children}, nil
	case *Column:
		return wireNode{Kind: kindColumn, Name: n.Name}, nil
	case *Const:
		return wireNode{Kind: kindConst, Type: n.Type, Value: n.Value}, nil
	default:
		return wireNode{}, fmt.Errorf("unexpected filter node type %T", n)
	}
}
