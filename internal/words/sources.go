// internal/words/sources.go
//
// Concrete dictionary sources: remote JSON over HTTP, a local file, and the
// small list embedded in the binary. Cached adds a TTL on top of any of them.

package words

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/robalobadob/wordeko/assets"
)

// DefaultURL is the public word map the game was built against.
const DefaultURL = "https://raw.githubusercontent.com/dwyl/english-words/master/words_dictionary.json"

// HTTPSource fetches a JSON word map on every Load.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

// NewHTTPSource returns a source for url. A nil client uses a 10s timeout.
func NewHTTPSource(url string, client *http.Client) *HTTPSource {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPSource{URL: url, Client: client}
}

func (h *HTTPSource) Load(ctx context.Context) (Set, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: GET %s: %s", ErrNetwork, h.URL, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrNetwork, err)
	}
	return parseJSON(body)
}

// FileSource reads a JSON object or newline list from disk on every Load.
type FileSource struct {
	Path string
}

func (f FileSource) Load(context.Context) (Set, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	return Parse(data)
}

var (
	embeddedOnce sync.Once
	embeddedSet  Set
	embeddedErr  error
)

// EmbeddedSource serves the offline list shipped in assets.
type EmbeddedSource struct{}

func (EmbeddedSource) Load(context.Context) (Set, error) {
	embeddedOnce.Do(func() {
		list, err := assets.DictionaryList()
		if err != nil {
			embeddedErr = fmt.Errorf("%w: %v", ErrMalformed, err)
			return
		}
		embeddedSet = FromList(list)
	})
	return embeddedSet, embeddedErr
}

// Cached remembers a successful Load for ttl. Failures are not cached.
// A ttl of zero or less passes every Load through.
type Cached struct {
	src Source
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	set     Set
	fetched time.Time
}

// NewCached wraps src with a ttl.
func NewCached(src Source, ttl time.Duration) *Cached {
	return &Cached{src: src, ttl: ttl, now: time.Now}
}

func (c *Cached) Load(ctx context.Context) (Set, error) {
	if c.ttl <= 0 {
		return c.src.Load(ctx)
	}
	c.mu.Lock()
	if c.set != nil && c.now().Sub(c.fetched) < c.ttl {
		set := c.set
		c.mu.Unlock()
		return set, nil
	}
	c.mu.Unlock()

	set, err := c.src.Load(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.set, c.fetched = set, c.now()
	c.mu.Unlock()
	return set, nil
}

// Select picks the source for the given settings: a file beats a URL, and
// with neither the embedded list is used.
func Select(url, file string, ttl time.Duration, client *http.Client) Source {
	var src Source
	switch {
	case file != "":
		src = FileSource{Path: file}
	case url != "":
		src = NewHTTPSource(url, client)
	default:
		return EmbeddedSource{}
	}
	return NewCached(src, ttl)
}
