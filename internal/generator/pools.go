package generator

import (
	_ "embed" // embedded pool definitions
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

//go:embed pools.toml
var poolsTOML string

// Pool is a named list of plausible categorical values.
type Pool struct {
	Category string
	Values   []any
}

// Domain groups the pools of one business domain.
type Domain struct {
	Name  string
	Pools []Pool
}

// Pools holds every domain in definition order.
type Pools []Domain

// LoadPools decodes pool definitions, keeping the order of domains and categories.
func LoadPools(data string) (Pools, error) {
	var raw map[string]map[string][]any
	md, err := toml.Decode(data, &raw)
	if err != nil {
		return nil, fmt.Errorf("could not decode value pools: %v", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unexpected keys in value pools: %v", undecoded)
	}

	var pools Pools
	index := make(map[string]int)
	for _, key := range md.Keys() {
		switch len(key) {
		case 1:
			index[key[0]] = len(pools)
			pools = append(pools, Domain{Name: key[0]})
		case 2:
			values := raw[key[0]][key[1]]
			if len(values) == 0 {
				return nil, fmt.Errorf("value pool %s.%s is empty", key[0], key[1])
			}
			i, ok := index[key[0]]
			if !ok {
				return nil, fmt.Errorf("value pool %s.%s is outside of a domain table", key[0], key[1])
			}
			pools[i].Pools = append(pools[i].Pools, Pool{Category: key[1], Values: values})
		}
	}
	return pools, nil
}

// MustLoadPools is LoadPools panicking on error, for embedded definitions.
func MustLoadPools(data string) Pools {
	p, err := LoadPools(data)
	if err != nil {
		panic(err)
	}
	return p
}

// DefaultPools are the built-in domain value pools.
var DefaultPools = MustLoadPools(poolsTOML)

// Category returns the first pool named category across all domains.
func (ps Pools) Category(category string) (Pool, bool) {
	for _, d := range ps {
		for _, p := range d.Pools {
			if p.Category == category {
				return p, true
			}
		}
	}
	return Pool{}, false
}

// ForField returns the pool of the named domain that textually overlaps field:
// the category is a substring of the field, one of its underscore-separated
// keywords is, or the field is a substring of the category.
func (ps Pools) ForField(domain, field string) (Pool, bool) {
	for _, d := range ps {
		if d.Name != domain {
			continue
		}
		for _, p := range d.Pools {
			if overlaps(field, p.Category) {
				return p, true
			}
		}
		return Pool{}, false
	}
	return Pool{}, false
}

func overlaps(field, category string) bool {
	if field == "" {
		return false
	}
	if strings.Contains(field, category) || strings.Contains(category, field) {
		return true
	}
	for _, kw := range strings.Split(category, "_") {
		if kw != "" && strings.Contains(field, kw) {
			return true
		}
	}
	return false
}
