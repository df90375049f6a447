package reference

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "http://api.alquran.cloud/v1"
	defaultEdition = "quran-uthmani"
)

// AlQuranOption configures an [AlQuran] client.
type AlQuranOption func(*AlQuran)

// WithBaseURL overrides the API root. Default: http://api.alquran.cloud/v1.
func WithBaseURL(u string) AlQuranOption {
	return func(a *AlQuran) {
		if u != "" {
			a.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithEdition selects the text edition. Default: quran-uthmani.
func WithEdition(e string) AlQuranOption {
	return func(a *AlQuran) {
		if e != "" {
			a.edition = e
		}
	}
}

// WithTimeout bounds one request. Default: 10 s.
func WithTimeout(d time.Duration) AlQuranOption {
	return func(a *AlQuran) {
		if d > 0 {
			a.client.Timeout = d
		}
	}
}

// WithHTTPClient replaces the HTTP client. Its Timeout is kept as is.
func WithHTTPClient(c *http.Client) AlQuranOption {
	return func(a *AlQuran) {
		if c != nil {
			a.client = c
		}
	}
}

// AlQuran fetches page text from the alquran.cloud API.
type AlQuran struct {
	baseURL string
	edition string
	client  *http.Client
}

var _ Provider = (*AlQuran)(nil)

// NewAlQuran creates a client with the given options applied.
func NewAlQuran(opts ...AlQuranOption) *AlQuran {
	a := &AlQuran{
		baseURL: defaultBaseURL,
		edition: defaultEdition,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

type pageResponse struct {
	Code int `json:"code"`
	Data struct {
		Ayahs []struct {
			Text string `json:"text"`
		} `json:"ayahs"`
	} `json:"data"`
}

// Text implements [Provider]. The ayahs of the page are joined with single
// spaces. A non-200 status or a page without ayahs yields [ErrNotFound].
func (a *AlQuran) Text(ctx context.Context, page int) (string, error) {
	if err := checkPage(page); err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/page/%d/%s", a.baseURL, page, a.edition)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("reference: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("reference: fetch page %d: %w", page, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return "", fmt.Errorf("%w: page %d: status %d", ErrNotFound, page, resp.StatusCode)
	}

	var body pageResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("reference: decode page %d: %w", page, err)
	}

	parts := make([]string, 0, len(body.Data.Ayahs))
	for _, ayah := range body.Data.Ayahs {
		if t := strings.TrimSpace(ayah.Text); t != "" {
			parts = append(parts, t)
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("%w: page %d has no ayahs", ErrNotFound, page)
	}
	return strings.Join(parts, " "), nil
}

// Check fetches the first page. It backs the readiness probe.
func (a *AlQuran) Check(ctx context.Context) error {
	_, err := a.Text(ctx, FirstPage)
	return err
}
