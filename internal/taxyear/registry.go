package taxyear

import (
	"embed"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

//go:embed tables/*.yaml
var builtinTables embed.FS

// Registry holds the loaded parameter tables, keyed by tax year. It is
// populated once at startup and read-only afterwards, so it is safe for
// concurrent use by parallel calculations without locking.
type Registry struct {
	tables map[int]*Table
}

// NewRegistry returns a registry pre-loaded with the built-in tables
// shipped with the binary.
func NewRegistry() (*Registry, error) {
	r := &Registry{tables: make(map[int]*Table)}

	entries, err := builtinTables.ReadDir("tables")
	if err != nil {
		return nil, eris.Wrap(err, "taxyear: read builtin tables")
	}
	for _, e := range entries {
		data, err := builtinTables.ReadFile("tables/" + e.Name())
		if err != nil {
			return nil, eris.Wrapf(err, "taxyear: read builtin %s", e.Name())
		}
		if err := r.add(data); err != nil {
			return nil, eris.Wrapf(err, "taxyear: builtin %s", e.Name())
		}
	}
	return r, nil
}

// LoadDir loads every *.yaml table in dir, overriding any built-in table
// for the same year. A missing directory is not an error; external tables
// are optional.
func (r *Registry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return eris.Wrapf(err, "taxyear: read table dir %s", dir)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return eris.Wrapf(err, "taxyear: read table %s", e.Name())
		}
		if err := r.add(data); err != nil {
			return eris.Wrapf(err, "taxyear: table %s", e.Name())
		}
	}
	return nil
}

func (r *Registry) add(data []byte) error {
	t, err := Parse(data)
	if err != nil {
		return err
	}
	r.tables[t.Year] = t
	return nil
}

// ForYear returns the parameter table for a tax year, or
// ErrMissingConfiguration if none is loaded. Never falls back to another
// year's table.
func (r *Registry) ForYear(year int) (*Table, error) {
	t, ok := r.tables[year]
	if !ok {
		return nil, eris.Wrapf(ErrMissingConfiguration, "tax year %d", year)
	}
	return t, nil
}

// Years lists the loaded tax years in ascending order.
func (r *Registry) Years() []int {
	years := make([]int, 0, len(r.tables))
	for y := range r.tables {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}
