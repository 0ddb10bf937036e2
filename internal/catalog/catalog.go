// Package catalog loads the ward block catalog: the set of block types that
// act as ward stones, with their protection radii and quota grouping
// aliases. The catalog is supplied externally and read-only after load.
package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

type BlockType struct {
	Key         string   `json:"block"`
	Alias       string   `json:"alias"`
	DisplayName string   `json:"display_name,omitempty"`
	Lore        []string `json:"lore,omitempty"`
	Radius      int      `json:"radius"`
	Priority    int      `json:"priority,omitempty"`
	Cost        float64  `json:"cost,omitempty"`

	// AllowedWorlds empty means every world.
	AllowedWorlds []string `json:"allowed_worlds,omitempty"`
	Hidden        bool     `json:"hidden,omitempty"`
}

func (b *BlockType) AllowedIn(world string) bool {
	if len(b.AllowedWorlds) == 0 {
		return true
	}
	for _, w := range b.AllowedWorlds {
		if w == world {
			return true
		}
	}
	return false
}

type Catalog struct {
	ByKey  map[string]*BlockType
	Keys   []string // sorted
	Digest string
}

// Load reads and decodes the catalog document without schema validation.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return decode(raw)
}

// LoadValidated validates the document against the given JSON schema before
// decoding. The daemon uses this; tools that trust their input use Load.
func LoadValidated(path, schemaPath string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	schema, err := jsonschema.Compile(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("catalog schema: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return decode(raw)
}

func decode(raw []byte) (*Catalog, error) {
	var defs []BlockType
	if err := json.Unmarshal(raw, &defs); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}

	c := &Catalog{ByKey: make(map[string]*BlockType, len(defs))}
	for i := range defs {
		d := &defs[i]
		if d.Key == "" {
			return nil, fmt.Errorf("catalog: empty block key")
		}
		if d.Radius < 0 {
			return nil, fmt.Errorf("catalog: %s: negative radius", d.Key)
		}
		if _, dup := c.ByKey[d.Key]; dup {
			return nil, fmt.Errorf("catalog: duplicate block key %s", d.Key)
		}
		if d.Alias == "" {
			d.Alias = d.Key
		}
		c.ByKey[d.Key] = d
	}

	keys := make([]string, 0, len(c.ByKey))
	for k := range c.ByKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	c.Keys = keys

	sum := sha256.Sum256(raw)
	c.Digest = hex.EncodeToString(sum[:])
	return c, nil
}

func (c *Catalog) Get(key string) *BlockType { return c.ByKey[key] }

// IsWardBlock reports whether the block key is configured as a ward stone.
func (c *Catalog) IsWardBlock(key string) bool {
	_, ok := c.ByKey[key]
	return ok
}

// FromAlias finds the block type whose quota alias or raw key matches the
// token, case-insensitively. Returns nil when nothing matches.
func (c *Catalog) FromAlias(token string) *BlockType {
	for _, k := range c.Keys {
		b := c.ByKey[k]
		if strings.EqualFold(b.Alias, token) || strings.EqualFold(b.Key, token) {
			return b
		}
	}
	return nil
}
