package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Size is a grid's width and height in cells.
type Size struct {
	W int
	H int
}

// Sim is the grid the viewer drives. Cells are palette indices in row-major
// display order.
type Sim interface {
	Name() string
	Size() Size
	Reset(seed int64)
	Step()
	Cells() []uint8
}

// Factory builds a Sim from key/value settings. Keys a factory does not
// understand are ignored.
type Factory func(cfg map[string]string) (Sim, error)

var (
	simsMu sync.RWMutex
	sims   = map[string]Factory{}
)

// Register makes a factory available under name. Empty names and nil
// factories are ignored.
func Register(name string, f Factory) {
	if name == "" || f == nil {
		return
	}
	simsMu.Lock()
	defer simsMu.Unlock()
	sims[name] = f
}

// Sims returns a copy of the registered factories.
func Sims() map[string]Factory {
	simsMu.RLock()
	defer simsMu.RUnlock()
	out := make(map[string]Factory, len(sims))
	for name, f := range sims {
		out[name] = f
	}
	return out
}

// Open builds the sim registered under name.
func Open(name string, cfg map[string]string) (Sim, error) {
	f, ok := Sims()[name]
	if !ok {
		return nil, fmt.Errorf("unknown sim %q (registered: %s)", name, strings.Join(Names(), ", "))
	}
	return f(cfg)
}

// Names lists the registered sims in sorted order.
func Names() []string {
	all := Sims()
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
