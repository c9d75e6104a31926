package catalog

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

var ErrCoverNotFound = errors.New("cover not found")

// CoverAsset is a loaded cover image. Decoding and resizing are left to the caller.
type CoverAsset struct {
	Name        string
	ContentType string
	Data        []byte
}

// CoverSource loads named cover assets. Implementations return
// ErrCoverNotFound (possibly wrapped) when the name does not exist.
type CoverSource interface {
	Fetch(name string) (*CoverAsset, error)
}

// DefaultCoverMap is the article to image mapping the club shipped with.
// Articles without an image are listed with an empty name and get the placeholder.
var DefaultCoverMap = map[string]string{
	"B112F4": "1.png",  // The Master and Margarita
	"F635R4": "2.png",  // 1984
	"H782T5": "3.png",  // Crime and Punishment
	"G783F5": "4.png",  // Three Comrades
	"J384T6": "5.png",  // The Little Prince
	"D572U8": "6.png",  // Sherlock Holmes
	"F572H7": "7.png",  // Harry Potter
	"D329H3": "8.png",  // Murder on the Orient Express
	"B320R5": "9.png",  // War and Peace
	"G432E4": "10.png", // The Alchemist
	"S213E3": "",
	"E482R4": "",
	"S634B5": "",
	"K345R4": "",
	"O754F4": "",
}

// DefaultPlaceholder is shown for books without a cover.
const DefaultPlaceholder = "placeholder.png"

// CoverCache memoizes cover assets by name. It is safe for concurrent use.
type CoverCache struct {
	source      CoverSource
	mapping     map[string]string
	placeholder string

	group   singleflight.Group
	mu      sync.RWMutex
	loaded  map[string]*CoverAsset // nil value marks a known-missing asset
	fetches int
}

// NewCoverCache builds a cache over source. A nil mapping uses DefaultCoverMap.
func NewCoverCache(source CoverSource, mapping map[string]string, placeholder string) *CoverCache {
	if mapping == nil {
		mapping = DefaultCoverMap
	}
	m := make(map[string]string, len(mapping))
	for article, name := range mapping {
		m[NormalizeArticle(article)] = name
	}
	return &CoverCache{
		source:      source,
		mapping:     m,
		placeholder: placeholder,
		loaded:      make(map[string]*CoverAsset),
	}
}

// AssetName returns the asset mapped to article, or "" when the book has none.
func (c *CoverCache) AssetName(article string) string {
	return c.mapping[NormalizeArticle(article)]
}

// Cover returns the cover for article, falling back to the placeholder.
func (c *CoverCache) Cover(article string) (*CoverAsset, error) {
	if name := c.AssetName(article); name != "" {
		asset, err := c.asset(name)
		if err != nil {
			return nil, err
		}
		if asset != nil {
			return asset, nil
		}
	}
	return c.Placeholder()
}

// Placeholder returns the fallback cover.
func (c *CoverCache) Placeholder() (*CoverAsset, error) {
	if c.placeholder == "" {
		return nil, ErrCoverNotFound
	}
	asset, err := c.asset(c.placeholder)
	if err != nil {
		return nil, err
	}
	if asset == nil {
		return nil, ErrCoverNotFound
	}
	return asset, nil
}

// Preload fetches every mapped asset and the placeholder. Failures are logged
// and skipped so one broken file does not keep the catalog from opening.
func (c *CoverCache) Preload() int {
	names := make(map[string]struct{}, len(c.mapping)+1)
	for _, name := range c.mapping {
		if name != "" {
			names[name] = struct{}{}
		}
	}
	if c.placeholder != "" {
		names[c.placeholder] = struct{}{}
	}

	n := 0
	for name := range names {
		asset, err := c.asset(name)
		if err != nil {
			logrus.WithError(err).WithField("cover", name).Warn("cover preload failed")
			continue
		}
		if asset != nil {
			n++
		}
	}
	logrus.WithField("covers", n).Debug("covers preloaded")
	return n
}

// Fetches reports how many times the source was asked for an asset.
func (c *CoverCache) Fetches() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fetches
}

// asset returns the memoized asset, (nil, nil) for a known-missing one, or the
// source error for anything other than a missing asset. The source is called
// without holding the lock, and concurrent loads of one name share a fetch.
func (c *CoverCache) asset(name string) (*CoverAsset, error) {
	if a, ok := c.cached(name); ok {
		return a, nil
	}

	v, err, _ := c.group.Do(name, func() (any, error) {
		if a, ok := c.cached(name); ok {
			return a, nil
		}
		c.mu.Lock()
		c.fetches++
		c.mu.Unlock()

		a, err := c.source.Fetch(name)
		if errors.Is(err, ErrCoverNotFound) {
			a, err = nil, nil
		}
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.loaded[name] = a
		c.mu.Unlock()
		return a, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*CoverAsset), nil
}

func (c *CoverCache) cached(name string) (*CoverAsset, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.loaded[name]
	return a, ok
}
