package axtree

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"testing"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/domref/dom"
)

func parse(t *testing.T, src string) *dom.Document {
	t.Helper()
	d, err := dom.ParseString(src, "https://example.test/")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return d
}

func intp(v int) *int { return &v }

func TestVisible(t *testing.T) {
	d := parse(t, `<body>
		<button id="ok">a</button>
		<div id="none" style="display: none">b</div>
		<div id="hid" style="visibility:hidden">c</div>
		<div id="clear" style="opacity: 0">d</div>
		<div id="flat" style="height: 0">e</div>
		<div id="attr" hidden>f</div>
		<div style="display:none"><span id="deep">g</span></div>
	</body>`)

	tests := []struct {
		id   string
		want bool
	}{
		{"ok", true},
		{"none", false},
		{"hid", false},
		{"clear", false},
		{"flat", false},
		{"attr", false},
		{"deep", false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if got := Visible(d, d.ElementByID(tt.id)); got != tt.want {
				t.Fatalf("Visible(%s): got %v, want %v", tt.id, got, tt.want)
			}
		})
	}
	if Visible(d, nil) {
		t.Fatal("nil node should not be visible")
	}
}

func TestRole(t *testing.T) {
	d := parse(t, `<body>
		<a id="link" href="/x">x</a>
		<a id="anchor">x</a>
		<input id="plain">
		<input id="weird" type="date">
		<input id="cb" type="checkbox">
		<input id="num" type="number">
		<input id="sub" type="submit">
		<select id="combo"><option>a</option></select>
		<select id="multi" multiple><option>a</option></select>
		<section id="sec">x</section>
		<section id="region" aria-label="News">x</section>
		<h3 id="h3">t</h3>
		<div id="explicit" role="Tab Button">x</div>
		<div id="none">x</div>
		<button id="override" role="menuitem">x</button>
	</body>`)

	tests := []struct {
		id   string
		want string
	}{
		{"link", "link"},
		{"anchor", ""},
		{"plain", "textbox"},
		{"weird", "textbox"},
		{"cb", "checkbox"},
		{"num", "spinbutton"},
		{"sub", "button"},
		{"combo", "combobox"},
		{"multi", "listbox"},
		{"sec", ""},
		{"region", "region"},
		{"h3", "heading"},
		{"explicit", "tab"},
		{"none", ""},
		{"override", "menuitem"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if got := Role(d.ElementByID(tt.id)); got != tt.want {
				t.Fatalf("Role(%s): got %q, want %q", tt.id, got, tt.want)
			}
		})
	}
}

func TestHeadingLevel(t *testing.T) {
	d := parse(t, `<body><h2 id="a">x</h2><div id="b" role="heading" aria-level="4">y</div><h5 id="c" aria-level="bad">z</h5></body>`)
	for id, want := range map[string]int{"a": 2, "b": 4, "c": 5} {
		if got := HeadingLevel(d.ElementByID(id)); got != want {
			t.Errorf("HeadingLevel(%s): got %d, want %d", id, got, want)
		}
	}
}

func TestClassify(t *testing.T) {
	d := parse(t, `<body>
		<input id="text">
		<input id="cb" type="checkbox">
		<input id="btn" type="button" value="Go">
		<textarea id="ta"></textarea>
		<select id="sel"><option>a</option></select>
		<div id="edit" contenteditable="true"></div>
		<div id="noedit" contenteditable="false"></div>
		<div id="sw" role="switch"></div>
		<p id="p">x</p>
	</body>`)

	tests := []struct {
		id   string
		want Capability
	}{
		{"text", TextEntry | ValueBearing},
		{"cb", Checkable},
		{"btn", ValueBearing},
		{"ta", TextEntry | ValueBearing},
		{"sel", Selectable | ValueBearing},
		{"edit", TextEntry},
		{"noedit", None},
		{"sw", Checkable},
		{"p", None},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if got := Classify(d.ElementByID(tt.id)); got != tt.want {
				t.Fatalf("Classify(%s): got %v, want %v", tt.id, got, tt.want)
			}
		})
	}
	if !(TextEntry | ValueBearing).Has(TextEntry) || Checkable.Has(TextEntry) || None.Has(None) {
		t.Fatal("Has misbehaves")
	}
}

func TestName_PriorityChain(t *testing.T) {
	long := strings.Repeat("word ", 30)
	d := parse(t, `<body>
		<button id="aria" aria-label="X" title="T">Y</button>
		<span id="l1">First</span><span id="l2">Second</span>
		<input id="by" aria-labelledby="l1 l2" placeholder="P">
		<label for="for">Email address</label><input id="for" placeholder="P">
		<label id="wrap">Name: <input id="wrapped"></label>
		<span id="title" title="Tip">  </span>
		<input id="ph" placeholder="Search here">
		<img id="img" alt="Logo">
		<div id="short">  Short   text </div>
		<div id="long">`+long+`</div>
		<input id="submit" type="submit" value="Send it">
		<input id="val" value="`+strings.Repeat("v", 60)+`">
		<div id="empty"></div>
	</body>`)

	tests := []struct {
		id   string
		want string
	}{
		{"aria", "X"},
		{"by", "First Second"},
		{"for", "Email address"},
		{"wrapped", "Name:"},
		{"wrap", "Name:"},
		{"title", "Tip"},
		{"ph", "Search here"},
		{"img", "Logo"},
		{"short", "Short text"},
		{"long", ""},
		{"submit", "Send it"},
		{"val", strings.Repeat("v", 50)},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if got := Name(d, d.ElementByID(tt.id)); got != tt.want {
				t.Fatalf("Name(%s): got %q, want %q", tt.id, got, tt.want)
			}
		})
	}
}

func TestRegistry_ClearAllocateResolve(t *testing.T) {
	d := parse(t, `<body><p id="a">x</p></body>`)
	n := d.ElementByID("a")
	r := NewRegistry(0)

	r.Clear()
	ref := r.Allocate(n)
	if ref != "@e1" {
		t.Fatalf("first ref: got %q, want @e1", ref)
	}
	got, err := r.Resolve(ref)
	if err != nil || got != n {
		t.Fatalf("resolve: got %v, %v", got, err)
	}

	r.Clear()
	if _, err := r.Resolve(ref); !errors.Is(err, ErrNotFound) {
		t.Fatalf("resolve after clear: got %v, want ELEMENT_NOT_FOUND", err)
	}
	if again := r.Allocate(n); again != "@e1" {
		t.Fatalf("counter not reset: got %q", again)
	}
	if r.Epoch() != 2 {
		t.Fatalf("epoch: got %d, want 2", r.Epoch())
	}
}

func TestRegistry_ProjectionRefsSurviveLimit(t *testing.T) {
	// WHAT: A projection larger than the registry limit keeps every ref it returns.
	// WHY: The bound is for locator growth; a snapshot must never hand out dead refs.
	d := parse(t, `<body>`+strings.Repeat(`<button>b</button>`, 10)+`</body>`)
	r := NewRegistry(3)
	r.Clear()
	p := Project(d, d.Body(), Options{Interactive: true}, r)

	nodes := p.Nodes()
	if len(nodes) != 10 {
		t.Fatalf("nodes: got %d, want 10", len(nodes))
	}
	for _, n := range nodes {
		if _, err := r.Resolve(n.Ref); err != nil {
			t.Fatalf("resolve %s: %v", n.Ref, err)
		}
	}

	// Locator refs are bounded on top of the pinned ones.
	var extra []string
	for i := 0; i < 4; i++ {
		extra = append(extra, r.Allocate(d.Body()))
	}
	if _, err := r.Resolve(extra[0]); !errors.Is(err, ErrNotFound) {
		t.Fatalf("oldest locator ref should be evicted, got %v", err)
	}
	if r.Len() != 13 {
		t.Fatalf("len: got %d, want 13", r.Len())
	}
	if _, err := r.Resolve(nodes[0].Ref); err != nil {
		t.Fatalf("pinned ref evicted by locator growth: %v", err)
	}
}

func TestRegistry_DetachedNode(t *testing.T) {
	d := parse(t, `<body><p id="a">x</p></body>`)
	n := d.ElementByID("a")
	r := NewRegistry(0)
	ref := r.Allocate(n)
	n.Parent.RemoveChild(n)
	if _, err := r.Resolve(ref); !errors.Is(err, ErrNotFound) {
		t.Fatalf("detached: got %v, want ELEMENT_NOT_FOUND", err)
	}
}

func TestRegistry_EvictsOldest(t *testing.T) {
	// WHAT: A bounded registry drops its oldest refs first.
	// WHY: Locator calls never clear, so an unbounded table would grow for the life of a page.
	d := parse(t, `<body><p id="a">a</p><p id="b">b</p><p id="c">c</p></body>`)
	r := NewRegistry(2)
	r1 := r.Allocate(d.ElementByID("a"))
	r2 := r.Allocate(d.ElementByID("b"))
	r3 := r.Allocate(d.ElementByID("c"))

	if r.Len() != 2 {
		t.Fatalf("len: got %d, want 2", r.Len())
	}
	if _, err := r.Resolve(r1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("oldest ref should be evicted, got %v", err)
	}
	for _, ref := range []string{r2, r3} {
		if _, err := r.Resolve(ref); err != nil {
			t.Fatalf("resolve %s: %v", ref, err)
		}
	}
	if r3 != "@e3" {
		t.Fatalf("refs must not be reused: got %q", r3)
	}
}

func TestIsRef(t *testing.T) {
	for sel, want := range map[string]bool{
		"@e1":     true,
		"@e120":   true,
		"@e":      false,
		"@x1":     false,
		"#e1":     false,
		"@e1 div": false,
		"button":  false,
	} {
		if got := IsRef(sel); got != want {
			t.Errorf("IsRef(%q): got %v, want %v", sel, got, want)
		}
	}
}

const loginForm = `<body>
	<h1>Sign in</h1>
	<form aria-label="Login">
		<input id="email" type="email" placeholder="you@example.com" value="a@b.c" required>
		<label><input type="checkbox" checked> Remember me</label>
		<button disabled>Go</button>
	</form>
</body>`

func TestProjectAndRender_Golden(t *testing.T) {
	d := parse(t, loginForm)
	r := NewRegistry(0)
	p := Project(d, d.Body(), Options{Interactive: true}, r)

	want := strings.Join([]string{
		`- heading "Sign in" [ref=@e1] [level=1]`,
		`- form "Login" [ref=@e5]`,
		`  - textbox "you@example.com" [ref=@e2] [required] [value="a@b.c"] [placeholder="you@example.com"]`,
		`  - checkbox "Remember me" [ref=@e3] [checked]`,
		`  - button "Go" [ref=@e4] [disabled]`,
	}, "\n")
	if got := Render(p); got != want {
		t.Fatalf("render mismatch\ngot:\n%s\nwant:\n%s", got, want)
	}
	if r.Len() != 5 {
		t.Fatalf("registry: got %d entries, want 5", r.Len())
	}
}

func TestProject_DeterministicRefs(t *testing.T) {
	d := parse(t, loginForm)
	r := NewRegistry(0)

	r.Clear()
	first := Render(Project(d, d.Body(), Options{}, r))
	r.Clear()
	second := Render(Project(d, d.Body(), Options{}, r))
	if first != second {
		t.Fatalf("snapshots differ\nfirst:\n%s\nsecond:\n%s", first, second)
	}
}

func TestProject_SingleButtonInteractive(t *testing.T) {
	d := parse(t, `<body><button>Submit</button></body>`)
	r := NewRegistry(0)
	p := Project(d, d.Body(), Options{Interactive: true}, r)

	if _, ok := p.Node(); ok {
		t.Fatal("body should be elided in interactive mode")
	}
	b, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if want := `[{"ref":"@e1","role":"button","name":"Submit"}]`; string(b) != want {
		t.Fatalf("json: got %s, want %s", b, want)
	}
	if got := Render(p); got != `- button "Submit" [ref=@e1]` {
		t.Fatalf("render: got %q", got)
	}
}

func TestProject_CompactPromotesChild(t *testing.T) {
	d := parse(t, `<body><div id="wrap"><input placeholder="Email"></div></body>`)
	r := NewRegistry(0)
	p := Project(d, d.ElementByID("wrap"), Options{Compact: true}, r)

	if _, ok := p.Node(); ok {
		t.Fatal("wrapper should not materialise")
	}
	nodes := p.Nodes()
	if len(nodes) != 1 || nodes[0].Role != "textbox" {
		t.Fatalf("promoted: got %+v", nodes)
	}
}

func TestProject_DepthLimit(t *testing.T) {
	d := parse(t, `<body><nav id="nav"><ul><li><a href="#">deep</a></li></ul></nav></body>`)
	r := NewRegistry(0)
	root := d.ElementByID("nav")

	p := Project(d, root, Options{Depth: intp(0)}, r)
	n, ok := p.Node()
	if !ok || n.Role != "navigation" || len(n.Children) != 0 {
		t.Fatalf("depth 0: got %+v", p.Nodes())
	}

	r.Clear()
	p = Project(d, root, Options{Depth: intp(1)}, r)
	n, _ = p.Node()
	if len(n.Children) != 1 || n.Children[0].Role != "list" {
		t.Fatalf("depth 1 children: got %+v", n.Children)
	}
	if len(n.Children[0].Children) != 0 {
		t.Fatal("depth 1 must not include grandchildren")
	}
}

func TestProjectAndRender_DeepNesting(t *testing.T) {
	// WHAT: A few thousand levels of nesting project and render completely.
	// WHY: Generated pages nest arbitrarily deep; the walk must not depend on call-stack depth.
	const depth = 3000
	doc := &html.Node{Type: html.DocumentNode}
	parent := doc
	for _, tag := range []atom.Atom{atom.Html, atom.Body} {
		n := &html.Node{Type: html.ElementNode, Data: tag.String(), DataAtom: tag}
		parent.AppendChild(n)
		parent = n
	}
	var outer *html.Node
	for i := 0; i < depth; i++ {
		div := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
		parent.AppendChild(div)
		if outer == nil {
			outer = div
		}
		parent = div
	}
	button := &html.Node{Type: html.ElementNode, Data: "button", DataAtom: atom.Button}
	button.AppendChild(&html.Node{Type: html.TextNode, Data: "Deep"})
	parent.AppendChild(button)
	d := dom.NewDocument(doc, "https://example.test/")

	r := NewRegistry(0)
	p := Project(d, outer, Options{}, r)
	lines := strings.Split(Render(p), "\n")
	if len(lines) != depth+1 {
		t.Fatalf("lines: got %d, want %d", len(lines), depth+1)
	}
	want := strings.Repeat("  ", depth) + `- button "Deep" [ref=@e1]`
	if lines[depth] != want {
		t.Fatalf("deepest line: got %q", strings.TrimSpace(lines[depth]))
	}
	if !strings.HasPrefix(lines[0], `- "Deep" [ref=@e`+strconv.Itoa(depth+1)+`]`) {
		t.Fatalf("outermost line: got %q", lines[0])
	}

	r.Clear()
	p = Project(d, outer, Options{Interactive: true}, r)
	nodes := p.Nodes()
	if len(nodes) != 1 || nodes[0].Role != "button" || len(nodes[0].Children) != 0 {
		t.Fatalf("interactive: got %d top-level nodes", len(nodes))
	}
	if n, err := r.Resolve(nodes[0].Ref); err != nil || n != button {
		t.Fatalf("resolve: got %v, %v", n, err)
	}
}

func TestProject_HeadingLevel(t *testing.T) {
	d := parse(t, `<body><h2 id="h">Title</h2></body>`)
	p := Project(d, d.ElementByID("h"), Options{}, NewRegistry(0))
	n, ok := p.Node()
	if !ok || n.Role != "heading" || n.Level != 2 || n.Name != "Title" {
		t.Fatalf("heading: got %+v", n)
	}
}

func TestProject_InvisibleRootAndHiddenSubtree(t *testing.T) {
	d := parse(t, `<body>
		<div id="gone" style="display:none"><button>Hidden</button></div>
		<button>Shown</button>
	</body>`)
	r := NewRegistry(0)
	if p := Project(d, d.ElementByID("gone"), Options{}, r); !p.IsEmpty() {
		t.Fatalf("invisible root: got %+v", p.Nodes())
	}
	out := Render(Project(d, d.Body(), Options{Interactive: true}, r))
	if strings.Contains(out, "Hidden") || !strings.Contains(out, "Shown") {
		t.Fatalf("hidden subtree leaked: %q", out)
	}
}

func TestProject_InteractiveSignals(t *testing.T) {
	d := parse(t, `<body>
		<div onclick="x()">Clicky</div>
		<span tabindex="0">Focus</span>
		<div contenteditable>Edit</div>
		<div role="switch" aria-checked="true">Wifi</div>
		<p>Plain</p>
	</body>`)
	out := Render(Project(d, d.Body(), Options{Interactive: true}, NewRegistry(0)))
	want := strings.Join([]string{
		`- "Clicky" [ref=@e1]`,
		`- "Focus" [ref=@e2]`,
		`- "Edit" [ref=@e3]`,
		`- switch "Wifi" [ref=@e4] [checked]`,
	}, "\n")
	if out != want {
		t.Fatalf("got:\n%s\nwant:\n%s", out, want)
	}
}

func TestProjection_EmptyMarshalsNull(t *testing.T) {
	b, err := json.Marshal(Projection{})
	if err != nil || string(b) != "null" {
		t.Fatalf("got %s, %v", b, err)
	}
	if Render(Projection{}) != "" {
		t.Fatal("empty projection should render empty")
	}
}
