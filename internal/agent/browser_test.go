package agent

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nextlevelbuilder/agentgate/pkg/browser"
)

type fakeTab struct {
	url     string
	clickTo string
	calls   []string
	closed  int
}

func (t *fakeTab) Navigate(_ context.Context, url string) (*browser.View, error) {
	t.calls = append(t.calls, "navigate "+url)
	t.url = url
	return &browser.View{URL: url, Title: "Shop", Text: `- button "Buy" [ref=e1]`, Refs: 1}, nil
}

func (t *fakeTab) Click(_ context.Context, ref string) (*browser.View, error) {
	t.calls = append(t.calls, "click "+ref)
	if t.clickTo != "" {
		t.url = t.clickTo
	}
	return &browser.View{URL: t.url, Title: "Cart", Text: `- heading "Cart" [ref=e1]`, Refs: 1}, nil
}

func (t *fakeTab) Type(_ context.Context, ref, text string, submit bool) (*browser.View, error) {
	t.calls = append(t.calls, fmt.Sprintf("type %s %q %v", ref, text, submit))
	return &browser.View{URL: t.url, Text: "typed"}, nil
}

func (t *fakeTab) Close() error {
	t.closed++
	return nil
}

type fakeBrowser struct {
	tab   *fakeTab
	opens int
}

func (b *fakeBrowser) OpenTab(context.Context) (Tab, error) {
	b.opens++
	return b.tab, nil
}

func clickReply(ref string) string {
	return fmt.Sprintf("Clicking.\n```action\n{\"type\":\"click\",\"ref\":%q}\n```", ref)
}

const publicPage = "https://93.184.216.34/shop"

func TestChatRunner_BrowserNavigateClickType(t *testing.T) {
	model := &scriptedModel{replies: []string{
		navigateReply("Opening.", publicPage),
		clickReply("e1"),
		"Searching.\n```action\n{\"type\":\"type\",\"ref\":\"e1\",\"text\":\"shoes\",\"submit\":true}\n```",
		"Added to cart.",
	}}
	modelSrv := httptest.NewServer(model)
	defer modelSrv.Close()

	b := &fakeBrowser{tab: &fakeTab{}}
	r := NewChatRunner(ChatRunnerConfig{Browser: b})
	steps, err := collect(t, r, Spec{Dialect: DialectOpenAI, BaseURL: modelSrv.URL, Model: "gpt-4o", APIKey: "sk-test", Task: "buy it"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(steps) != 4 {
		t.Fatalf("steps = %d", len(steps))
	}
	if got := steps[1].Action; got == nil || got.Type != ActionClick || got.Description != "Click e1" || got.Result != "Cart, 1 elements" {
		t.Errorf("click action = %+v", got)
	}
	if got := steps[2].Action; got == nil || got.Description != "Type into e1" {
		t.Errorf("type action = %+v", got)
	}

	want := []string{"navigate " + publicPage, "click e1", `type e1 "shoes" true`}
	if strings.Join(b.tab.calls, "|") != strings.Join(want, "|") {
		t.Errorf("calls = %v", b.tab.calls)
	}
	if b.opens != 1 || b.tab.closed != 1 {
		t.Errorf("opens = %d, closed = %d", b.opens, b.tab.closed)
	}
	if !strings.Contains(model.bodies[0], "driving a real browser") {
		t.Error("browser prompt not used")
	}
	if !strings.Contains(model.bodies[1], "[ref=e1]") {
		t.Errorf("outline not fed back: %s", model.bodies[1])
	}
}

func TestChatRunner_BrowserClickBeforeNavigate(t *testing.T) {
	model := &scriptedModel{replies: []string{clickReply("e1"), "ok"}}
	modelSrv := httptest.NewServer(model)
	defer modelSrv.Close()

	b := &fakeBrowser{tab: &fakeTab{}}
	r := NewChatRunner(ChatRunnerConfig{Browser: b})
	steps, err := collect(t, r, Spec{Dialect: DialectOpenAI, BaseURL: modelSrv.URL, Model: "gpt-4o", APIKey: "k", Task: "t"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.HasPrefix(steps[0].Action.Result, "error: no page is open") {
		t.Errorf("result = %q", steps[0].Action.Result)
	}
	if b.opens != 0 {
		t.Errorf("opens = %d", b.opens)
	}
}

func TestChatRunner_BrowserLeavesAllowedNetwork(t *testing.T) {
	model := &scriptedModel{replies: []string{
		navigateReply("Opening.", publicPage),
		clickReply("e1"),
		"stopped",
	}}
	modelSrv := httptest.NewServer(model)
	defer modelSrv.Close()

	b := &fakeBrowser{tab: &fakeTab{clickTo: "http://127.0.0.1/admin"}}
	r := NewChatRunner(ChatRunnerConfig{Browser: b})
	steps, err := collect(t, r, Spec{Dialect: DialectOpenAI, BaseURL: modelSrv.URL, Model: "gpt-4o", APIKey: "k", Task: "t"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(steps[1].Action.Result, "left the allowed network") {
		t.Errorf("result = %q", steps[1].Action.Result)
	}
	if b.tab.closed != 1 {
		t.Errorf("closed = %d", b.tab.closed)
	}
}
