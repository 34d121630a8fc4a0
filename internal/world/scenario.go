package world

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is a starting snapshot plus optional resource targets, as stored
// in a YAML scenario file.
type Scenario struct {
	Name     string           `yaml:"name,omitempty"`
	Targets  map[Resource]int `yaml:"targets,omitempty"`
	Snapshot `yaml:",inline"`
}

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	sc, err := DecodeScenario(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return sc, nil
}

// DecodeScenario parses a single YAML scenario document. Unknown fields are
// rejected.
func DecodeScenario(r io.Reader) (*Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty scenario")
		}
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	for r, v := range sc.Targets {
		if !r.Valid() {
			return nil, fmt.Errorf("unknown target resource %q", r)
		}
		if v < 0 {
			return nil, fmt.Errorf("negative target for %s: %d", r, v)
		}
	}
	if err := sc.Snapshot.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Encode writes the scenario as YAML.
func (sc *Scenario) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(sc); err != nil {
		return err
	}
	return enc.Close()
}

// DefaultScenario is a small map with one worker, one node of each kind and
// an empty base.
func DefaultScenario() *Scenario {
	return &Scenario{
		Name:    "default",
		Targets: map[Resource]int{Gold: 200, Wood: 200},
		Snapshot: Snapshot{
			Width:   16,
			Height:  12,
			Workers: []Unit{{ID: 1, Pos: Pt(3, 4)}},
			Bases:   []Base{{ID: 2, Pos: Pt(2, 3)}},
			Nodes: []Node{
				{ID: 3, Kind: Gold, Pos: Pt(10, 3), Remaining: 1000},
				{ID: 4, Kind: Wood, Pos: Pt(4, 9), Remaining: 1000},
			},
		},
	}
}
