package browser

import (
	"fmt"
	"strings"

	"github.com/go-rod/rod/lib/proto"
)

const (
	defaultMaxChars  = 8000
	maxSnapshotNodes = 2000
)

type snapshot struct {
	text      string
	refs      map[string]proto.DOMBackendNodeID
	truncated bool
}

func axString(v *proto.AccessibilityAXValue) string {
	if v == nil {
		return ""
	}
	if s := v.Value.Str(); s != "" {
		return s
	}
	switch raw := v.Value.String(); raw {
	case "", "null", `""`:
		return ""
	default:
		return raw
	}
}

type snapshotWriter struct {
	byID    map[proto.AccessibilityAXNodeID]*proto.AccessibilityAXNode
	lines   []string
	refs    map[string]proto.DOMBackendNodeID
	visited int
}

// renderSnapshot turns a flat CDP accessibility tree into an indented
// outline, one element per line:
//
//	- heading "Prices" [ref=e1]
//	  - link "Buy" [ref=e2]
//	  "Free shipping"
func renderSnapshot(nodes []*proto.AccessibilityAXNode, maxChars int) snapshot {
	if maxChars <= 0 {
		maxChars = defaultMaxChars
	}
	w := &snapshotWriter{
		byID: make(map[proto.AccessibilityAXNodeID]*proto.AccessibilityAXNode, len(nodes)),
		refs: make(map[string]proto.DOMBackendNodeID),
	}
	children := make(map[proto.AccessibilityAXNodeID]bool)
	for _, n := range nodes {
		w.byID[n.NodeID] = n
		for _, c := range n.ChildIDs {
			children[c] = true
		}
	}
	for _, n := range nodes {
		if !children[n.NodeID] {
			w.walk(n, 0, "")
			break
		}
	}

	if len(w.lines) == 0 {
		return snapshot{text: "(empty page)", refs: w.refs}
	}

	var sb strings.Builder
	truncated := false
	for _, line := range w.lines {
		if sb.Len()+len(line)+1 > maxChars {
			truncated = true
			break
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(line)
	}
	return snapshot{text: sb.String(), refs: w.refs, truncated: truncated}
}

func (w *snapshotWriter) walk(n *proto.AccessibilityAXNode, depth int, parentName string) {
	if w.visited >= maxSnapshotNodes {
		return
	}
	w.visited++

	role := strings.ToLower(axString(n.Role))
	name := strings.TrimSpace(axString(n.Name))
	childDepth, childParent := depth, parentName

	switch {
	case n.Ignored, role == "inlinetextbox", role == "linebreak":
	case role == "statictext":
		if name != "" && name != parentName {
			w.lines = append(w.lines, strings.Repeat("  ", depth)+fmt.Sprintf("%q", name))
		}
	case kindOf(role) == roleStructural && name == "", role == "" && name == "":
	default:
		w.lines = append(w.lines, strings.Repeat("  ", depth)+w.describe(n, role, name))
		childDepth, childParent = depth+1, name
	}

	for _, id := range n.ChildIDs {
		if c, ok := w.byID[id]; ok {
			w.walk(c, childDepth, childParent)
		}
	}
}

func (w *snapshotWriter) describe(n *proto.AccessibilityAXNode, role, name string) string {
	line := "- " + role
	if name != "" {
		line += fmt.Sprintf(" %q", name)
	}
	kind := kindOf(role)
	if (kind == roleInteractive || (kind == roleContent && name != "")) && n.BackendDOMNodeID != 0 {
		ref := fmt.Sprintf("e%d", len(w.refs)+1)
		w.refs[ref] = n.BackendDOMNodeID
		line += " [ref=" + ref + "]"
	}
	if v := axString(n.Value); v != "" {
		line += fmt.Sprintf(": %q", v)
	}
	if d := axString(n.Description); d != "" {
		line += " (" + d + ")"
	}
	return line
}
