package parser

import (
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

// element is a namespace-free view of an XML element. Names are local names only,
// so <tsl:Name> and <ns1:Name> are the same element here.
type element struct {
	local    string
	texts    []string
	children []*element
}

var errNoRoot = errors.New("document has no root element")

// decodeTree reads the whole document into an element tree.
func decodeTree(r io.Reader) (*element, int, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel

	var root *element
	var stack []*element
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			line, _ := dec.InputPos()
			return nil, line, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			el := &element{local: t.Name.Local}
			if len(stack) == 0 {
				if root != nil {
					line, _ := dec.InputPos()
					return nil, line, errors.New("multiple root elements")
				}
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, el)
			}
			stack = append(stack, el)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				top := stack[len(stack)-1]
				top.texts = append(top.texts, string(t))
			}
		}
	}

	if root == nil {
		return nil, 0, errNoRoot
	}
	return root, 0, nil
}

// descendants returns every element below e (e itself excluded) whose local name
// matches, in document order.
func (e *element) descendants(local string) []*element {
	var out []*element
	var walk func(*element)
	walk = func(n *element) {
		for _, c := range n.children {
			if c.local == local {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(e)
	return out
}

// firstText follows a chain of descendant steps and returns the first direct text
// node found, trimmed. Matches without any text node are skipped; an empty string
// means nothing matched or the first text node was blank.
func (e *element) firstText(path ...string) string {
	text, _ := e.findText(path)
	return text
}

func (e *element) findText(path []string) (string, bool) {
	if len(path) == 0 {
		if len(e.texts) == 0 {
			return "", false
		}
		return strings.TrimSpace(e.texts[0]), true
	}
	for _, match := range e.descendants(path[0]) {
		if text, ok := match.findText(path[1:]); ok {
			return text, true
		}
	}
	return "", false
}
