package agent

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

const (
	defaultPageChars = 8000
	maxRedirects     = 3
	fetchUserAgent   = "Mozilla/5.0 (compatible; agentgate/1.0)"
)

// page is the result of one navigate action.
type page struct {
	URL         string
	Status      int
	ContentType string
	Text        string
	Truncated   bool
}

var privateNets = func() []*net.IPNet {
	var out []*net.IPNet
	for _, c := range []string{
		"0.0.0.0/8", "10.0.0.0/8", "127.0.0.0/8", "169.254.0.0/16",
		"172.16.0.0/12", "192.168.0.0/16", "100.64.0.0/10",
		"::1/128", "fe80::/10", "fc00::/7",
	} {
		_, n, _ := net.ParseCIDR(c)
		out = append(out, n)
	}
	return out
}()

func isPrivateIP(ip net.IP) bool {
	if ip.IsUnspecified() {
		return true
	}
	for _, n := range privateNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// checkURL rejects non-http(s) URLs and, unless private targets are allowed,
// hosts that are or resolve to private addresses.
func (r *ChatRunner) checkURL(ctx context.Context, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("missing hostname")
	}
	if r.allowPrivate {
		return nil
	}
	lower := strings.ToLower(host)
	if lower == "localhost" || strings.HasSuffix(lower, ".localhost") ||
		strings.HasSuffix(lower, ".local") || strings.HasSuffix(lower, ".internal") {
		return fmt.Errorf("blocked hostname: %s", host)
	}
	if ip := net.ParseIP(host); ip != nil {
		if isPrivateIP(ip) {
			return fmt.Errorf("private address not allowed: %s", host)
		}
		return nil
	}
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", host, err)
	}
	for _, a := range addrs {
		if isPrivateIP(a.IP) {
			return fmt.Errorf("%s resolves to private address %s", host, a.IP)
		}
	}
	return nil
}

// fetch performs a navigate action: GET the URL and reduce it to text.
func (r *ChatRunner) fetch(ctx context.Context, raw string) (*page, error) {
	if err := r.checkURL(ctx, raw); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", fetchUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/json,text/plain;q=0.9,*/*;q=0.8")

	client := *r.client
	client.CheckRedirect = func(next *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		return r.checkURL(next.Context(), next.URL.String())
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(r.maxPageChars*4)))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	p := &page{
		URL:         resp.Request.URL.String(),
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
	}
	switch {
	case strings.HasPrefix(p.ContentType, "image/"):
		// images are handed to the model by URL when vision is on
	case strings.Contains(p.ContentType, "text/html"), strings.Contains(p.ContentType, "application/xhtml"):
		p.Text = htmlToText(string(body))
	default:
		p.Text = strings.TrimSpace(string(body))
	}
	if len(p.Text) > r.maxPageChars {
		p.Text = p.Text[:r.maxPageChars]
		p.Truncated = true
	}
	return p, nil
}

func (p *page) isImage() bool {
	return strings.HasPrefix(p.ContentType, "image/")
}

var (
	reScript  = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	reStyle   = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	reComment = regexp.MustCompile(`(?s)<!--.*?-->`)
	reBlock   = regexp.MustCompile(`(?i)</?(p|div|br|li|h[1-6]|tr|section|article)[^>]*>`)
	reTag     = regexp.MustCompile(`<[^>]+>`)
	reSpaces  = regexp.MustCompile(`[ \t]+`)
)

var entityReplacer = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&apos;", "'",
	"&nbsp;", " ",
)

// htmlToText extracts readable text from HTML, one non-empty line per block.
func htmlToText(html string) string {
	s := reScript.ReplaceAllString(html, "")
	s = reStyle.ReplaceAllString(s, "")
	s = reComment.ReplaceAllString(s, "")
	s = reBlock.ReplaceAllString(s, "\n")
	s = reTag.ReplaceAllString(s, "")
	s = entityReplacer.Replace(s)
	s = reSpaces.ReplaceAllString(s, " ")

	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
