package xml

import (
	"context"

	"github.com/rezonia/nfse-renderer/internal/model"
)

// Adapter maps one XML invoice layout onto model.Record
type Adapter interface {
	// Key is the element name holding the invoice collection
	Key() string

	// Locate finds the invoice collection in a parsed document
	Locate(root *Node) Value

	// Map converts one invoice element into a record
	Map(n *Node) model.Record

	// Schema returns the layout identifier
	Schema() model.Schema
}

// Registry holds all registered adapters
type Registry struct {
	adapters []Adapter
}

// NewRegistry creates registry with all adapters.
// The first adapter's key is the one reported when nothing matches.
func NewRegistry() *Registry {
	return &Registry{
		adapters: []Adapter{
			NewSPAdapter(),     // <NFe>
			NewABRASFAdapter(), // <CompNfse><Nfse><InfNfse>
		},
	}
}

// Locate returns the first adapter whose collection key is present, with
// the nodes it found.
func (r *Registry) Locate(root *Node) (Adapter, []*Node, error) {
	for _, a := range r.adapters {
		if v := a.Locate(root); !v.IsZero() {
			return a, v.List(), nil
		}
	}
	key := ""
	if len(r.adapters) > 0 {
		key = r.adapters[0].Key()
	}
	return nil, nil, model.NewMissingKeyError(key)
}

// Normalize parses XML into one record per invoice, in document order.
// A successful result is never empty.
func (r *Registry) Normalize(ctx context.Context, content []byte) ([]model.Record, error) {
	root, err := Parse(content)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	adapter, nodes, err := r.Locate(root)
	if err != nil {
		return nil, err
	}

	records := make([]model.Record, 0, len(nodes))
	for _, n := range nodes {
		records = append(records, adapter.Map(n))
	}
	return records, nil
}

// RegisterAdapter adds a custom adapter to the registry
func (r *Registry) RegisterAdapter(a Adapter) {
	// Add at the beginning so custom adapters take priority
	r.adapters = append([]Adapter{a}, r.adapters...)
}

// GetAdapter returns adapter for a specific schema
func (r *Registry) GetAdapter(schema model.Schema) Adapter {
	for _, a := range r.adapters {
		if a.Schema() == schema {
			return a
		}
	}
	return nil
}
