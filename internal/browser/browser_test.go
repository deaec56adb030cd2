package browser

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/proto"
	"golang.org/x/net/html"

	"github.com/hazyhaar/domref/dom"
)

// snapshotFixture builds a capture of:
//
//	#document
//	  html
//	    body
//	      input#q (value "typed")
//	      input[type=checkbox] (checked)
//	      select > option[a], option[b selected]
//	      div::before (pseudo, dropped)
//	      span (no layout)
//	        "hidden text"
func snapshotFixture() ([]string, *proto.DOMSnapshotDocumentSnapshot) {
	strs := []string{
		"https://example.test/", // 0
		"#document",             // 1
		"HTML",                  // 2
		"BODY",                  // 3
		"INPUT",                 // 4
		"id", "q",               // 5 6
		"typed",                 // 7
		"type", "checkbox",      // 8 9
		"SELECT",                // 10
		"OPTION",                // 11
		"value", "a", "b",       // 12 13 14
		"::before",              // 15
		"SPAN",                  // 16
		"#text", "hidden text",  // 17 18
		"block", "visible", "1", // 19 20 21
		"inline-block", "0.5", // 22 23
	}
	si := func(i int) proto.DOMSnapshotStringIndex { return proto.DOMSnapshotStringIndex(i) }
	nodes := &proto.DOMSnapshotNodeTreeSnapshot{
		ParentIndex:   []int{-1, 0, 1, 2, 2, 2, 5, 5, 2, 2, 9},
		NodeType:      []int{9, 1, 1, 1, 1, 1, 1, 1, 1, 1, 3},
		NodeName:      []proto.DOMSnapshotStringIndex{si(1), si(2), si(3), si(4), si(4), si(10), si(11), si(11), si(15), si(16), si(17)},
		NodeValue:     []proto.DOMSnapshotStringIndex{-1, -1, -1, -1, -1, -1, -1, -1, -1, -1, si(18)},
		BackendNodeID: []proto.DOMBackendNodeID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
		Attributes: []proto.DOMSnapshotArrayOfStrings{
			nil, nil, nil,
			{si(5), si(6)},
			{si(8), si(9)},
			nil,
			{si(12), si(13)},
			{si(12), si(14)},
			nil, nil, nil,
		},
		InputValue:     &proto.DOMSnapshotRareStringData{Index: []int{3}, Value: []proto.DOMSnapshotStringIndex{si(7)}},
		InputChecked:   &proto.DOMSnapshotRareBooleanData{Index: []int{4}},
		OptionSelected: &proto.DOMSnapshotRareBooleanData{Index: []int{7}},
		IsClickable:    &proto.DOMSnapshotRareBooleanData{Index: []int{4}},
	}
	layout := &proto.DOMSnapshotLayoutTreeSnapshot{
		NodeIndex: []int{1, 2, 3, 4, 5},
		Styles: []proto.DOMSnapshotArrayOfStrings{
			{si(19), si(20), si(21)},
			{si(19), si(20), si(21)},
			{si(22), si(20), si(21)},
			{si(22), si(20), si(23)},
			{si(22), si(20), si(21)},
		},
		Bounds: []proto.DOMSnapshotRectangle{
			{0, 0, 800, 600},
			{0, 0, 800, 600},
			{8, 8, 150, 21},
			{8, 40, 13, 13},
			{8, 60, 80, 20},
		},
	}
	return strs, &proto.DOMSnapshotDocumentSnapshot{DocumentURL: 0, Nodes: nodes, Layout: layout}
}

func TestConvertSnapshot(t *testing.T) {
	strs, snap := snapshotFixture()
	url, nodes := convertSnapshot(strs, snap)
	if url != "https://example.test/" {
		t.Fatalf("url: got %q", url)
	}
	// Pseudo element dropped: 11 snapshot nodes become 10.
	if len(nodes) != 10 {
		t.Fatalf("nodes: got %d, want 10", len(nodes))
	}

	byBackend := make(map[int]dom.Captured)
	for _, n := range nodes {
		byBackend[n.BackendID] = n
	}
	if _, ok := byBackend[9]; ok {
		t.Fatal("pseudo element should be dropped")
	}

	q := byBackend[4]
	if q.Data != "input" || q.Info.Value != "typed" || !q.Info.HasValue {
		t.Fatalf("text input: got %+v", q)
	}
	if q.Info.Display != "inline-block" || q.Info.Width != 150 || q.Info.Height != 21 {
		t.Fatalf("text input layout: got %+v", q.Info)
	}

	cb := byBackend[5]
	if !cb.Info.Checked || !cb.Info.Clickable || cb.Info.HasValue {
		t.Fatalf("checkbox: got %+v", cb.Info)
	}
	if cb.Info.Opacity != 0.5 {
		t.Fatalf("checkbox opacity: got %v", cb.Info.Opacity)
	}

	if sel := byBackend[6]; sel.Info.Value != "b" || !sel.Info.HasValue {
		t.Fatalf("select value: got %+v", sel.Info)
	}

	span := byBackend[10]
	if span.Info.Display != "none" || span.Info.Width != 0 {
		t.Fatalf("unlaid element should be display none, got %+v", span.Info)
	}
	text := byBackend[11]
	if text.Type != html.TextNode || text.Data != "hidden text" {
		t.Fatalf("text node: got %+v", text)
	}
	if nodes[text.Parent].BackendID != 10 {
		t.Fatalf("text parent: got backend %d", nodes[text.Parent].BackendID)
	}
}

func TestConvertSnapshot_ReconcileKeepsNodes(t *testing.T) {
	strs, snap := snapshotFixture()
	doc, err := dom.ParseString("", "")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	url, nodes := convertSnapshot(strs, snap)
	if !doc.Reconcile(url, nodes) {
		t.Fatal("first reconcile should report navigation")
	}
	q := doc.ElementByID("q")
	if q == nil {
		t.Fatal("input#q missing after reconcile")
	}

	// Same capture again: same nodes, no navigation.
	url, nodes = convertSnapshot(strs, snap)
	if doc.Reconcile(url, nodes) {
		t.Fatal("identical capture should not report navigation")
	}
	if doc.ElementByID("q") != q {
		t.Fatal("input#q lost its identity")
	}
}

func TestSelectValue_FirstOptionDefault(t *testing.T) {
	strs, snap := snapshotFixture()
	snap.Nodes.OptionSelected = nil
	_, nodes := convertSnapshot(strs, snap)
	for _, n := range nodes {
		if n.BackendID == 6 && n.Info.Value != "a" {
			t.Fatalf("select without selection: got %q, want first option", n.Info.Value)
		}
	}
}

func TestShouldBlock(t *testing.T) {
	set := map[string]bool{"images": true, "fonts": true}
	tests := []struct {
		resType string
		want    bool
	}{
		{"Image", true},
		{"Font", true},
		{"Stylesheet", false},
		{"Document", false},
		{"Media", false},
	}
	for _, tt := range tests {
		t.Run(tt.resType, func(t *testing.T) {
			if got := shouldBlock(set, tt.resType); got != tt.want {
				t.Fatalf("shouldBlock(%q): got %v, want %v", tt.resType, got, tt.want)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in    string
		level StealthLevel
		auto  bool
	}{
		{"0", LevelHTTP, false},
		{"1", LevelHeadless, false},
		{"2", LevelHeadful, false},
		{"auto", LevelHTTP, true},
		{"", LevelHTTP, true},
	}
	for _, tt := range tests {
		level, auto := ParseLevel(tt.in)
		if level != tt.level || auto != tt.auto {
			t.Errorf("ParseLevel(%q): got %d/%v, want %d/%v", tt.in, level, auto, tt.level, tt.auto)
		}
	}
}

func TestResolveURL(t *testing.T) {
	got, err := resolveURL("https://example.test/a/b", "../c?x=1")
	if err != nil || got != "https://example.test/c?x=1" {
		t.Fatalf("got %q, %v", got, err)
	}
	got, err = resolveURL("", "https://other.test/")
	if err != nil || got != "https://other.test/" {
		t.Fatalf("absolute: got %q, %v", got, err)
	}
}

func TestXvfbSocket(t *testing.T) {
	tests := []struct {
		display string
		want    string
		ok      bool
	}{
		{":99", "/tmp/.X11-unix/X99", true},
		{":1.0", "/tmp/.X11-unix/X1", true},
		{"", "", false},
		{":x", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.display, func(t *testing.T) {
			got, err := xvfbSocket(tt.display)
			if (err == nil) != tt.ok || got != tt.want {
				t.Fatalf("xvfbSocket(%q): got %q, %v", tt.display, got, err)
			}
		})
	}

	args := xvfbArgs(":5", "1280x720x16")
	if !slices.Equal(args[:4], []string{":5", "-screen", "0", "1280x720x16"}) {
		t.Fatalf("args: got %v", args)
	}
}

func TestWaitForSocket(t *testing.T) {
	// WHAT: The display wait ends on the socket, on process exit, or on timeout.
	// WHY: Chrome launched before Xvfb listens fails to open its window.
	dir := t.TempDir()
	sock := filepath.Join(dir, "X7")

	go func() {
		time.Sleep(50 * time.Millisecond)
		os.WriteFile(sock, nil, 0o600)
	}()
	if err := waitForSocket(sock, 2*time.Second, make(chan error)); err != nil {
		t.Fatalf("socket appeared: %v", err)
	}

	exited := make(chan error, 1)
	exited <- errors.New("exit status 1")
	if err := waitForSocket(filepath.Join(dir, "X8"), 2*time.Second, exited); err == nil {
		t.Fatal("exited process should fail the wait")
	}

	start := time.Now()
	if err := waitForSocket(filepath.Join(dir, "X9"), 60*time.Millisecond, make(chan error)); err == nil {
		t.Fatal("missing socket should time out")
	}
	if time.Since(start) > time.Second {
		t.Fatal("timeout overran")
	}
}
