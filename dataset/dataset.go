// dataset/dataset.go
package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
)

// ErrDataUnavailable is returned when the backing dataset could not be
// loaded. Board generation must refuse to run in that state.
var ErrDataUnavailable = errors.New("dataset unavailable")

// Attribute kinds. Combo challenges combine two attributes.
const (
	KindTeam   = "team"
	KindNation = "nation"
	KindTrophy = "trophy"
)

// Attribute 球员属性（队伍、国籍、奖杯）
type Attribute struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

func (a Attribute) String() string {
	return a.Kind + ":" + a.Value
}

// Cricketer 数据集中的一名球员
type Cricketer struct {
	ID       int      `json:"id"`
	Name     string   `json:"name"`
	Nation   string   `json:"nation"`
	Teams    []string `json:"teams"`
	Trophies []string `json:"trophies"`
}

// Pool is a read-only index over one named set of cricketers.
type Pool struct {
	Name    string
	players []Cricketer
	byName  map[string]*Cricketer   // normalized name -> player
	byAttr  map[Attribute][]*Cricketer
	attrsOf map[string][]Attribute // normalized name -> attributes
}

// Lookup holds every loaded pool. Read-only after Load.
type Lookup struct {
	pools map[string]*Pool
}

// Normalize lowercases and trims an answer for comparison.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Load reads every configured pool file and builds the indexes. It
// fails closed: any missing, empty or partially-decoded file aborts
// the whole load with ErrDataUnavailable.
func Load(files map[string]string) (*Lookup, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("no pools configured: %w", ErrDataUnavailable)
	}
	l := &Lookup{pools: make(map[string]*Pool)}
	for name, path := range files {
		pool, err := loadPool(name, path)
		if err != nil {
			return nil, err
		}
		l.pools[name] = pool
	}
	return l, nil
}

func loadPool(name, path string) (*Pool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pool %q: %v: %w", name, err, ErrDataUnavailable)
	}
	var players []Cricketer
	if err := json.Unmarshal(raw, &players); err != nil {
		return nil, fmt.Errorf("pool %q: decode: %v: %w", name, err, ErrDataUnavailable)
	}
	if len(players) == 0 {
		return nil, fmt.Errorf("pool %q is empty: %w", name, ErrDataUnavailable)
	}
	return NewPool(name, players), nil
}

// NewPool indexes an in-memory player list. Exposed for tests.
func NewPool(name string, players []Cricketer) *Pool {
	p := &Pool{
		Name:    name,
		players: players,
		byName:  make(map[string]*Cricketer, len(players)),
		byAttr:  make(map[Attribute][]*Cricketer),
		attrsOf: make(map[string][]Attribute, len(players)),
	}
	for i := range p.players {
		pl := &p.players[i]
		key := Normalize(pl.Name)
		p.byName[key] = pl

		var attrs []Attribute
		for _, t := range pl.Teams {
			attrs = append(attrs, Attribute{Kind: KindTeam, Value: t})
		}
		if pl.Nation != "" {
			attrs = append(attrs, Attribute{Kind: KindNation, Value: pl.Nation})
		}
		for _, t := range pl.Trophies {
			attrs = append(attrs, Attribute{Kind: KindTrophy, Value: t})
		}
		p.attrsOf[key] = attrs
		for _, a := range attrs {
			p.byAttr[a] = append(p.byAttr[a], pl)
		}
	}
	return p
}

// NewLookup builds a lookup over in-memory pools. Exposed for tests.
func NewLookup(pools ...*Pool) *Lookup {
	l := &Lookup{pools: make(map[string]*Pool, len(pools))}
	for _, p := range pools {
		l.pools[p.Name] = p
	}
	return l
}

// Pool returns a named pool, or ErrDataUnavailable if it was never
// loaded.
func (l *Lookup) Pool(name string) (*Pool, error) {
	p, ok := l.pools[name]
	if !ok {
		return nil, fmt.Errorf("pool %q: %w", name, ErrDataUnavailable)
	}
	return p, nil
}

// PoolNames lists the loaded pools.
func (l *Lookup) PoolNames() []string {
	names := make([]string, 0, len(l.pools))
	for n := range l.pools {
		names = append(names, n)
	}
	return names
}

// Size returns the number of players in the pool.
func (p *Pool) Size() int {
	return len(p.players)
}

// CandidatesFor returns every player carrying the attribute.
func (p *Pool) CandidatesFor(attr Attribute) []*Cricketer {
	return p.byAttr[attr]
}

// CandidatesForAll returns players carrying every listed attribute.
// Used for combo challenges.
func (p *Pool) CandidatesForAll(attrs []Attribute) []*Cricketer {
	if len(attrs) == 0 {
		return nil
	}
	var result []*Cricketer
	for _, pl := range p.byAttr[attrs[0]] {
		if p.hasAll(pl, attrs[1:]) {
			result = append(result, pl)
		}
	}
	return result
}

func (p *Pool) hasAll(pl *Cricketer, attrs []Attribute) bool {
	for _, a := range attrs {
		if !p.has(pl, a) {
			return false
		}
	}
	return true
}

func (p *Pool) has(pl *Cricketer, a Attribute) bool {
	switch a.Kind {
	case KindTeam:
		for _, t := range pl.Teams {
			if t == a.Value {
				return true
			}
		}
	case KindNation:
		return pl.Nation == a.Value
	case KindTrophy:
		for _, t := range pl.Trophies {
			if t == a.Value {
				return true
			}
		}
	}
	return false
}

// AttributesOf returns every attribute of a named player, or nil if
// the player is unknown.
func (p *Pool) AttributesOf(name string) []Attribute {
	return p.attrsOf[Normalize(name)]
}

// Find resolves a (case-insensitive) player name.
func (p *Pool) Find(name string) (*Cricketer, bool) {
	pl, ok := p.byName[Normalize(name)]
	return pl, ok
}

// Attributes returns the distinct attributes of the given kinds across
// the whole pool, in a stable order so that seeded draws are
// reproducible.
func (p *Pool) Attributes(kinds ...string) []Attribute {
	want := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}
	var attrs []Attribute
	for a := range p.byAttr {
		if want[a.Kind] {
			attrs = append(attrs, a)
		}
	}
	sort.Slice(attrs, func(i, j int) bool {
		if attrs[i].Kind != attrs[j].Kind {
			return attrs[i].Kind < attrs[j].Kind
		}
		return attrs[i].Value < attrs[j].Value
	})
	return attrs
}

// Players returns the raw player list. Callers must not mutate it.
func (p *Pool) Players() []Cricketer {
	return p.players
}
