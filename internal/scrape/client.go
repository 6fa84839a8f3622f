package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const municipalitySelectID = "MasterContent_ddlKMZFiles"

var (
	// ErrStaleForm is returned when the server answers a download with an HTML page
	ErrStaleForm = errors.New("server returned html instead of a kmz; form state may be stale")

	// ErrNoMunicipalities is returned when the landing page has no municipality dropdown
	ErrNoMunicipalities = errors.New("municipality dropdown not found; page structure may have changed")

	// ErrUnsafeName is returned for a municipality value that is not a plain file name
	ErrUnsafeName = errors.New("municipality is not a plain file name")
)

// Form is the ASP.NET state needed to post a download request
type Form struct {
	ViewState          string
	ViewStateGenerator string
	EventValidation    string
	Municipalities     []string
}

// Client talks to the MassSave Google Earth download page. Cookies persist
// across requests so the posted view state matches the session.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for baseURL
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Jar: jar, Timeout: timeout},
	}, nil
}

// FetchForm loads the landing page and reads the hidden form state and the
// list of municipalities.
func (c *Client) FetchForm(ctx context.Context) (*Form, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch %s: status %d", c.baseURL, resp.StatusCode)
	}
	return ParseForm(resp.Body)
}

// ParseForm extracts the form state from the landing page HTML
func ParseForm(r io.Reader) (*Form, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	hidden := make(map[string]string)
	var dropdown *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Input:
				if name := attr(n, "name"); name != "" {
					hidden[name] = attr(n, "value")
				}
			case atom.Select:
				if dropdown == nil && attr(n, "id") == municipalitySelectID {
					dropdown = n
				}
			}
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(root)

	form := &Form{
		ViewState:          hidden["__VIEWSTATE"],
		ViewStateGenerator: hidden["__VIEWSTATEGENERATOR"],
		EventValidation:    hidden["__EVENTVALIDATION"],
	}
	if form.ViewState == "" {
		return nil, fmt.Errorf("failed to find __VIEWSTATE on page")
	}
	if dropdown == nil {
		return nil, ErrNoMunicipalities
	}

	var options func(*html.Node)
	options = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Option {
			if v := attr(n, "value"); v != "" {
				form.Municipalities = append(form.Municipalities, v)
			}
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			options(ch)
		}
	}
	options(dropdown)

	return form, nil
}

// Values builds the POST body requesting one municipality's KMZ
func (f *Form) Values(municipality string) url.Values {
	v := url.Values{}
	v.Set("__EVENTTARGET", "")
	v.Set("__EVENTARGUMENT", "")
	v.Set("__VIEWSTATE", f.ViewState)
	v.Set("__VIEWSTATEGENERATOR", f.ViewStateGenerator)
	v.Set("__EVENTVALIDATION", f.EventValidation)
	v.Set("ctl00$MasterContent$ddlKMZFiles", municipality)
	v.Set("ctl00$MasterContent$btnDownload", "Download")
	v.Set("ctl00$MasterContent$hdnPublic", "1")
	return v
}

// Download posts the form for one municipality and writes the returned KMZ
// to path. The file is written under a temporary name and renamed on success.
func (c *Client) Download(ctx context.Context, form *Form, municipality, path string) error {
	body := strings.NewReader(form.Values(municipality).Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", municipality, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download %s: status %d", municipality, resp.StatusCode)
	}
	if mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mediaType == "text/html" {
		return fmt.Errorf("%s: %w", municipality, ErrStaleForm)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	tmp := path + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
