// Package xmlcontent implements a minimal XML Content node for
// AttributeSelector (spec.md §3), gated behind PDPConfig.Engine.XPathEnabled.
// It is not a XPath 1.0 engine: it walks a "/"-separated sequence of element
// names, with an optional trailing "@attr" or "text()" step, the restricted
// path surface spec.md actually asks AttributeSelector to support.
package xmlcontent

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/lattice-abac/pdp/internal/domain/evalctx"
)

// node mirrors the XML tree shape needed for path walking: element name,
// attributes, child elements in document order, and concatenated character
// data (XML Content nodes rarely mix text and elements at the same level;
// spec.md's examples are attribute-bag shaped, not mixed-content documents).
type node struct {
	Name     string
	Attrs    map[string]string
	Children []*node
	Text     string
}

func decode(data []byte) (*node, error) {
	dec := xml.NewDecoder(strings.NewReader(string(data)))
	var root *node
	var stack []*node
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{Name: t.Name.Local, Attrs: make(map[string]string, len(t.Attr))}
			for _, a := range t.Attr {
				n.Attrs[a.Name.Local] = a.Value
			}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, n)
			} else {
				root = n
			}
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].Text += string(t)
			}
		}
	}
	if root == nil {
		return nil, fmt.Errorf("xmlcontent: no root element")
	}
	return root, nil
}

// Parse builds an evalctx.Content backed by data, an XML document. The
// returned Content's Lookup walks a path like "Record/Subject/@role" or
// "Record/Subject/text()" against every descendant matching the path,
// returning the lexical form of every match (AttributeSelector is bag-valued
// by nature: the same path may match more than one node).
func Parse(data []byte) (evalctx.Content, error) {
	root, err := decode(data)
	if err != nil {
		return evalctx.Content{}, err
	}
	return evalctx.Content{Lookup: func(path string) ([]string, bool) {
		matches := walk(root, splitPath(path))
		return matches, len(matches) > 0
	}}, nil
}

func splitPath(path string) []string {
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// walk matches steps against n and its descendants. The first step must
// name n itself (a path is always rooted at the document element); an
// "@attr" or "text()" final step reads from the node the preceding steps
// selected rather than descending further.
func walk(n *node, steps []string) []string {
	if len(steps) == 0 || n.Name != steps[0] {
		return nil
	}
	rest := steps[1:]
	if len(rest) == 0 {
		if n.Text != "" {
			return []string{strings.TrimSpace(n.Text)}
		}
		return nil
	}
	if len(rest) == 1 {
		if attr, ok := strings.CutPrefix(rest[0], "@"); ok {
			if v, ok := n.Attrs[attr]; ok {
				return []string{v}
			}
			return nil
		}
		if rest[0] == "text()" {
			return []string{strings.TrimSpace(n.Text)}
		}
	}
	var out []string
	for _, c := range n.Children {
		out = append(out, walk(c, rest)...)
	}
	return out
}
