package labels

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// DefaultLanguage is used when the requested language has no catalog.
const DefaultLanguage = "en"

//go:embed locales/*.yaml
var locales embed.FS

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.]+)\s*\}\}`)

// Catalog resolves dotted label keys to text for the current language.
type Catalog struct {
	mu       sync.RWMutex
	language string
	entries  map[string]string
	// dir is where <language>.yaml files are looked up first on a language
	// switch. Empty for embedded catalogs.
	dir string
}

// New loads the embedded catalog for language, falling back to English.
func New(language string) (*Catalog, error) {
	data, err := locales.ReadFile("locales/" + language + ".yaml")
	if err != nil {
		if language != DefaultLanguage {
			log.Warn().Str("language", language).Msg("no labels for language, falling back to english")
		}
		language = DefaultLanguage
		data, err = locales.ReadFile("locales/" + DefaultLanguage + ".yaml")
		if err != nil {
			return nil, fmt.Errorf("failed to read default labels: %w", err)
		}
	}
	return Parse(language, data)
}

// LoadFile loads a catalog from a YAML file on disk. Later language switches
// look for <language>.yaml in the same directory.
func LoadFile(language, path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read labels file: %w", err)
	}
	c, err := Parse(language, data)
	if err != nil {
		return nil, err
	}
	c.dir = filepath.Dir(path)
	return c, nil
}

// Parse builds a catalog from a nested YAML document.
func Parse(language string, data []byte) (*Catalog, error) {
	var tree map[string]interface{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("failed to parse labels: %w", err)
	}

	c := &Catalog{language: language, entries: make(map[string]string)}
	flatten("", tree, c.entries)
	return c, nil
}

func flatten(prefix string, node map[string]interface{}, out map[string]string) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]interface{}:
			flatten(key, val, out)
		case nil:
		default:
			out[key] = fmt.Sprint(val)
		}
	}
}

// Language returns the catalog language.
func (c *Catalog) Language() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.language
}

// SetLanguage replaces the entries with the catalog for language. File
// catalogs try <dir>/<language>.yaml before the embedded catalogs. On error
// the current entries are kept.
func (c *Catalog) SetLanguage(language string) error {
	if language == "" || language == c.Language() {
		return nil
	}

	next, err := c.load(language)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.language = next.language
	c.entries = next.entries
	log.Info().Str("language", c.language).Msg("labels language switched")
	return nil
}

func (c *Catalog) load(language string) (*Catalog, error) {
	if c.dir != "" {
		path := filepath.Join(c.dir, language+".yaml")
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			return Parse(language, data)
		case !errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("failed to read labels file: %w", err)
		}
	}
	return New(language)
}

// Label returns the text for key with {{ param }} placeholders filled in.
// An unknown key is returned as is; unknown placeholders are left untouched.
func (c *Catalog) Label(key string, params map[string]interface{}) string {
	c.mu.RLock()
	text, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return key
	}
	if len(params) == 0 || !strings.Contains(text, "{{") {
		return text
	}
	return placeholder.ReplaceAllStringFunc(text, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		if v, ok := params[name]; ok {
			return fmt.Sprint(v)
		}
		return m
	})
}
