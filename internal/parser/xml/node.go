package xml

import (
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/net/html/charset"

	"github.com/rezonia/nfse-renderer/internal/model"
)

// Node is an element of a parsed document, keyed by local name
type Node struct {
	Name     string
	Content  string
	Attrs    map[string]string
	Children []*Node
}

// Value is the content of a key: nothing, a single node or a list of nodes.
// XML does not tell a lone element from a one-item list, so callers collapse
// it with List and never look at the shape again.
type Value struct {
	one  *Node
	many []*Node
}

// Single wraps one node
func Single(n *Node) Value { return Value{one: n} }

// Many wraps a list of nodes
func Many(ns []*Node) Value { return Value{many: ns} }

// IsZero reports whether the key was absent
func (v Value) IsZero() bool { return v.one == nil && len(v.many) == 0 }

// List returns the nodes in document order
func (v Value) List() []*Node {
	if v.one != nil {
		return []*Node{v.one}
	}
	return v.many
}

// First returns the first node, or nil
func (v Value) First() *Node {
	if v.one != nil {
		return v.one
	}
	if len(v.many) > 0 {
		return v.many[0]
	}
	return nil
}

// Parse reads an XML document into a Node tree
func Parse(content []byte) (*Node, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = charset.NewReaderLabel
	if err := doc.ReadFromBytes(content); err != nil {
		return nil, model.NewMalformedError(err)
	}
	root := doc.Root()
	if root == nil {
		return nil, model.NewMalformedError(nil)
	}
	return convert(root), nil
}

func convert(el *etree.Element) *Node {
	n := &Node{
		Name:    el.Tag,
		Content: strings.TrimSpace(el.Text()),
	}
	if len(el.Attr) > 0 {
		n.Attrs = make(map[string]string, len(el.Attr))
		for _, a := range el.Attr {
			n.Attrs[a.Key] = a.Value
		}
	}
	for _, child := range el.ChildElements() {
		n.Children = append(n.Children, convert(child))
	}
	return n
}

// Lookup returns the direct children named name
func (n *Node) Lookup(name string) Value {
	if n == nil {
		return Value{}
	}
	var found []*Node
	for _, c := range n.Children {
		if c.Name == name {
			found = append(found, c)
		}
	}
	switch len(found) {
	case 0:
		return Value{}
	case 1:
		return Single(found[0])
	default:
		return Many(found)
	}
}

// Search finds name breadth first. The node itself matches when it carries
// the name; otherwise the shallowest level holding the name wins.
func (n *Node) Search(name string) Value {
	if n == nil {
		return Value{}
	}
	if n.Name == name {
		return Single(n)
	}
	queue := []*Node{n}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if v := cur.Lookup(name); !v.IsZero() {
			return v
		}
		queue = append(queue, cur.Children...)
	}
	return Value{}
}

// Child follows path taking the first match at every step
func (n *Node) Child(path ...string) *Node {
	cur := n
	for _, name := range path {
		cur = cur.Lookup(name).First()
		if cur == nil {
			return nil
		}
	}
	return cur
}

// Text returns the trimmed text at path, or "" when any step is missing
func (n *Node) Text(path ...string) string {
	c := n.Child(path...)
	if c == nil {
		return ""
	}
	return c.Content
}
