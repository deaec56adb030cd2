package browser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"golang.org/x/net/html"

	"github.com/hazyhaar/domref/dom"
)

// Computed styles requested per layout node, in this order.
var snapshotStyles = []string{"display", "visibility", "opacity"}

// CDP node types onto x/net/html node types. Fragments (shadow roots) and
// everything else are dropped with their subtree.
var nodeTypes = map[int]html.NodeType{
	1:  html.ElementNode,
	3:  html.TextNode,
	8:  html.CommentNode,
	9:  html.DocumentNode,
	10: html.DoctypeNode,
}

// capture takes a DOMSnapshot of the main frame.
func capture(page *rod.Page) (string, []dom.Captured, error) {
	res, err := proto.DOMSnapshotCaptureSnapshot{ComputedStyles: snapshotStyles}.Call(page)
	if err != nil {
		return "", nil, fmt.Errorf("browser: capture snapshot: %w", err)
	}
	if len(res.Documents) == 0 {
		return "", nil, fmt.Errorf("browser: capture snapshot: no documents")
	}
	url, nodes := convertSnapshot(res.Strings, res.Documents[0])
	return url, nodes, nil
}

// convertSnapshot flattens one snapshot document into the capture format
// dom.Reconcile consumes. Elements without a layout box are reported as
// display none with an empty box.
func convertSnapshot(strs []string, doc *proto.DOMSnapshotDocumentSnapshot) (string, []dom.Captured) {
	str := func(i proto.DOMSnapshotStringIndex) string {
		if i < 0 || int(i) >= len(strs) {
			return ""
		}
		return strs[i]
	}
	url := str(doc.DocumentURL)
	tree := doc.Nodes
	if tree == nil {
		return url, nil
	}

	rows := make(map[int]int)
	if doc.Layout != nil {
		for row, idx := range doc.Layout.NodeIndex {
			if _, ok := rows[idx]; !ok {
				rows[idx] = row
			}
		}
	}
	inputValue := rareStrings(tree.InputValue)
	lookup := func(m map[int]proto.DOMSnapshotStringIndex, i int) string {
		if v, ok := m[i]; ok {
			return str(v)
		}
		return ""
	}
	textValue := rareStrings(tree.TextValue)
	checked := rareBools(tree.InputChecked)
	selected := rareBools(tree.OptionSelected)
	clickable := rareBools(tree.IsClickable)

	out := make([]dom.Captured, 0, len(tree.NodeType))
	remap := make([]int, len(tree.NodeType))
	var options []int
	optionSelected := make(map[int]bool)
	optionText := make(map[int]*strings.Builder)

	for i, t := range tree.NodeType {
		remap[i] = -1
		typ, ok := nodeTypes[t]
		if !ok {
			continue
		}
		name := ""
		if i < len(tree.NodeName) {
			name = str(tree.NodeName[i])
		}
		if typ == html.ElementNode && strings.HasPrefix(name, "::") {
			continue
		}

		parent := -1
		if i < len(tree.ParentIndex) && tree.ParentIndex[i] >= 0 {
			p := tree.ParentIndex[i]
			if p >= i || remap[p] < 0 {
				continue
			}
			parent = remap[p]
		}

		c := dom.Captured{Parent: parent, Type: typ}
		if i < len(tree.BackendNodeID) {
			c.BackendID = int(tree.BackendNodeID[i])
		}

		switch typ {
		case html.ElementNode:
			c.Data = strings.ToLower(name)
			if i < len(tree.Attributes) {
				pairs := tree.Attributes[i]
				for k := 0; k+1 < len(pairs); k += 2 {
					c.Attr = append(c.Attr, html.Attribute{Key: strings.ToLower(str(pairs[k])), Val: str(pairs[k+1])})
				}
			}
			c.Info = layoutInfo(str, doc.Layout, rows, i)
			c.Info.Checked = checked[i]
			c.Info.Clickable = clickable[i]
			switch c.Data {
			case "input":
				if isCheckableInput(c.Attr) {
					c.Info.Value, c.Info.HasValue = attrValue(c.Attr, "value")
				} else {
					c.Info.Value, c.Info.HasValue = lookup(inputValue, i), true
				}
			case "textarea":
				v, ok := textValue[i]
				if !ok {
					v, ok = inputValue[i]
				}
				if ok {
					c.Info.Value = str(v)
				}
				c.Info.HasValue = true
			case "select":
				c.Info.HasValue = true
			case "option":
				options = append(options, len(out))
				optionSelected[len(out)] = selected[i]
			}
		case html.TextNode, html.CommentNode:
			if i < len(tree.NodeValue) {
				c.Data = str(tree.NodeValue[i])
			}
			if b, ok := optionText[parent]; ok && typ == html.TextNode {
				b.WriteString(c.Data)
			}
		case html.DoctypeNode:
			c.Data = strings.ToLower(name)
		}

		remap[i] = len(out)
		if c.Data == "option" && typ == html.ElementNode {
			optionText[len(out)] = &strings.Builder{}
		}
		out = append(out, c)
	}

	selectValues(out, options, optionSelected, optionText)
	return url, out
}

// selectValues derives each select's value from its selected option, or
// its first option when none is selected.
func selectValues(out []dom.Captured, options []int, sel map[int]bool, text map[int]*strings.Builder) {
	chosen := make(map[int]bool)
	first := make(map[int]int)
	for _, o := range options {
		s := owningSelect(out, o)
		if s < 0 {
			continue
		}
		if _, ok := first[s]; !ok {
			first[s] = o
		}
		if sel[o] && !chosen[s] {
			chosen[s] = true
			out[s].Info.Value = optionValue(out[o], text[o])
		}
	}
	for s, o := range first {
		if !chosen[s] {
			out[s].Info.Value = optionValue(out[o], text[o])
		}
	}
}

func owningSelect(out []dom.Captured, i int) int {
	for p := out[i].Parent; p >= 0; p = out[p].Parent {
		switch out[p].Data {
		case "select":
			return p
		case "optgroup":
			continue
		}
		return -1
	}
	return -1
}

func optionValue(c dom.Captured, text *strings.Builder) string {
	if v, ok := attrValue(c.Attr, "value"); ok {
		return v
	}
	if text == nil {
		return ""
	}
	return dom.NormalizeSpace(text.String())
}

func layoutInfo(str func(proto.DOMSnapshotStringIndex) string, layout *proto.DOMSnapshotLayoutTreeSnapshot, rows map[int]int, i int) dom.Info {
	inf := dom.Info{Display: "none", Visibility: "visible", Opacity: 1}
	row, ok := rows[i]
	if !ok || layout == nil {
		return inf
	}
	inf.Display = "block"
	if row < len(layout.Styles) {
		styles := layout.Styles[row]
		for k, name := range snapshotStyles {
			if k >= len(styles) {
				break
			}
			v := str(styles[k])
			switch name {
			case "display":
				if v != "" {
					inf.Display = v
				}
			case "visibility":
				if v != "" {
					inf.Visibility = v
				}
			case "opacity":
				if f, err := strconv.ParseFloat(v, 64); err == nil {
					inf.Opacity = f
				}
			}
		}
	}
	if row < len(layout.Bounds) && len(layout.Bounds[row]) == 4 {
		inf.Width, inf.Height = layout.Bounds[row][2], layout.Bounds[row][3]
	}
	return inf
}

func rareStrings(d *proto.DOMSnapshotRareStringData) map[int]proto.DOMSnapshotStringIndex {
	out := make(map[int]proto.DOMSnapshotStringIndex)
	if d == nil {
		return out
	}
	for k, idx := range d.Index {
		if k < len(d.Value) {
			out[idx] = d.Value[k]
		}
	}
	return out
}

func rareBools(d *proto.DOMSnapshotRareBooleanData) map[int]bool {
	out := make(map[int]bool)
	if d == nil {
		return out
	}
	for _, idx := range d.Index {
		out[idx] = true
	}
	return out
}

func attrValue(attrs []html.Attribute, key string) (string, bool) {
	for _, a := range attrs {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func isCheckableInput(attrs []html.Attribute) bool {
	t, _ := attrValue(attrs, "type")
	t = strings.ToLower(strings.TrimSpace(t))
	return t == "checkbox" || t == "radio"
}
