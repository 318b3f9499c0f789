package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
)

const settleDelay = 300 * time.Millisecond

// View is what a page looks like after an action.
type View struct {
	URL       string
	Title     string
	Text      string
	Refs      int
	Truncated bool
}

// Page is one tab. It is not safe for concurrent use; each agent run owns
// its own page.
type Page struct {
	page     *rod.Page
	maxChars int
	refs     map[string]proto.DOMBackendNodeID
}

func (p *Page) Navigate(ctx context.Context, url string) (*View, error) {
	pg := p.page.Context(ctx)
	if err := pg.Navigate(url); err != nil {
		return nil, fmt.Errorf("navigate: %w", err)
	}
	return p.view(pg)
}

// Click clicks the element a ref from the latest view points at.
func (p *Page) Click(ctx context.Context, ref string) (*View, error) {
	pg := p.page.Context(ctx)
	el, err := p.element(pg, ref)
	if err != nil {
		return nil, err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return nil, fmt.Errorf("click %s: %w", ref, err)
	}
	return p.view(pg)
}

// Type focuses the element, enters text and optionally presses Enter.
func (p *Page) Type(ctx context.Context, ref, text string, submit bool) (*View, error) {
	pg := p.page.Context(ctx)
	el, err := p.element(pg, ref)
	if err != nil {
		return nil, err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return nil, fmt.Errorf("focus %s: %w", ref, err)
	}
	if err := el.Input(text); err != nil {
		return nil, fmt.Errorf("type into %s: %w", ref, err)
	}
	if submit {
		if err := pg.Keyboard.Press(input.Enter); err != nil {
			return nil, fmt.Errorf("submit: %w", err)
		}
	}
	return p.view(pg)
}

func (p *Page) Close() error {
	return p.page.Close()
}

func (p *Page) element(pg *rod.Page, ref string) (*rod.Element, error) {
	id, ok := p.refs[normalizeRef(ref)]
	if !ok {
		return nil, fmt.Errorf("unknown ref %q", ref)
	}
	_ = proto.DOMEnable{}.Call(pg)
	node, err := proto.DOMResolveNode{BackendNodeID: id}.Call(pg)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", ref, err)
	}
	el, err := pg.ElementFromObject(node.Object)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", ref, err)
	}
	return el, nil
}

// view waits for the page to settle and snapshots its accessibility tree.
// Refs from earlier views are replaced.
func (p *Page) view(pg *rod.Page) (*View, error) {
	if err := pg.WaitStable(settleDelay); err != nil {
		return nil, fmt.Errorf("wait for page: %w", err)
	}
	tree, err := proto.AccessibilityGetFullAXTree{}.Call(pg)
	if err != nil {
		return nil, fmt.Errorf("read accessibility tree: %w", err)
	}
	snap := renderSnapshot(tree.Nodes, p.maxChars)
	p.refs = snap.refs

	v := &View{Text: snap.text, Refs: len(snap.refs), Truncated: snap.truncated}
	if info, err := pg.Info(); err == nil && info != nil {
		v.URL = info.URL
		v.Title = info.Title
	}
	return v, nil
}

// normalizeRef accepts "e5", "@e5" and "ref=e5".
func normalizeRef(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "@")
	return strings.TrimPrefix(s, "ref=")
}
