package resource

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidData is wrapped by every validation failure in a data file.
var ErrInvalidData = errors.New("resource: invalid data")

// ---- Data Structures ----

// Skill is one immutable entry of the skill table.
type Skill struct {
	ID     string
	Name   string
	Power  int
	Hit    float64 // probability in [0,1]
	Effect string  // feedback cue tag, e.g. "flash"
}

// rawSkill mirrors the on-disk layout; Hit is a pointer so an omitted
// field can default to a certain hit.
type rawSkill struct {
	ID     string   `json:"id" yaml:"id"`
	Name   string   `json:"name" yaml:"name"`
	Power  int      `json:"power" yaml:"power"`
	Hit    *float64 `json:"hit" yaml:"hit"`
	Effect string   `json:"effect" yaml:"effect"`
}

// Combatant describes one unit of a formation file.
type Combatant struct {
	ID        string  `json:"id" yaml:"id"`
	Name      string  `json:"name" yaml:"name"`
	Lane      int     `json:"lane" yaml:"lane"`
	MaxHP     int     `json:"max_hp" yaml:"max_hp"`
	Atk       int     `json:"atk" yaml:"atk"`
	Def       int     `json:"def" yaml:"def"`
	Spd       float64 `json:"spd" yaml:"spd"`
	ATBRate   float64 `json:"atb_rate" yaml:"atb_rate"`
	Threshold float64 `json:"threshold" yaml:"threshold"`
	Control   string  `json:"control" yaml:"control"` // "", "player" or "auto"
}

// Formation lists the combatants on each side of a battle.
type Formation struct {
	Allies  []Combatant `json:"allies" yaml:"allies"`
	Enemies []Combatant `json:"enemies" yaml:"enemies"`
}

// ---- SkillTable ----

// SkillTable is the read-only skill registry keyed by id.
type SkillTable struct {
	skills map[string]*Skill
	order  []string
}

// NewSkillTable validates the given skills and indexes them by id.
func NewSkillTable(skills []*Skill) (*SkillTable, error) {
	t := &SkillTable{skills: make(map[string]*Skill, len(skills))}
	for i, s := range skills {
		if s == nil {
			continue
		}
		if s.ID == "" {
			return nil, fmt.Errorf("%w: skill #%d has no id", ErrInvalidData, i)
		}
		if _, dup := t.skills[s.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate skill id %q", ErrInvalidData, s.ID)
		}
		if math.IsNaN(s.Hit) || s.Hit < 0 || s.Hit > 1 {
			return nil, fmt.Errorf("%w: skill %q hit %v outside [0,1]", ErrInvalidData, s.ID, s.Hit)
		}
		cp := *s
		t.skills[s.ID] = &cp
		t.order = append(t.order, s.ID)
	}
	return t, nil
}

// SkillByID returns the Skill with the given ID.
func (t *SkillTable) SkillByID(id string) (*Skill, bool) {
	if t == nil {
		return nil, false
	}
	s, ok := t.skills[id]
	return s, ok
}

// IDs returns skill ids in file order.
func (t *SkillTable) IDs() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

func (t *SkillTable) Len() int { return len(t.order) }

// ---- ResourceLoader ----

// ResourceLoader reads and holds the static battle data.
type ResourceLoader struct {
	DataPath      string
	SkillsFile    string
	FormationFile string
	Skills        *SkillTable
	Formation     *Formation
}

// NewLoader creates a ResourceLoader for the given data directory.
func NewLoader(dataPath, skillsFile, formationFile string) *ResourceLoader {
	return &ResourceLoader{
		DataPath:      dataPath,
		SkillsFile:    skillsFile,
		FormationFile: formationFile,
	}
}

// Load reads all data files. The formation file is optional.
func (rl *ResourceLoader) Load() error {
	skills, err := LoadSkills(rl.path(rl.SkillsFile))
	if err != nil {
		return err
	}
	rl.Skills = skills

	if rl.FormationFile == "" {
		return nil
	}
	f, err := LoadFormation(rl.path(rl.FormationFile))
	if err != nil {
		return err
	}
	rl.Formation = f
	return nil
}

func (rl *ResourceLoader) path(file string) string {
	return filepath.Join(rl.DataPath, file)
}

// LoadSkills reads a skill table from a .json or .yaml file.
func LoadSkills(path string) (*SkillTable, error) {
	var raw []*rawSkill
	if err := loadData(path, &raw); err != nil {
		return nil, err
	}
	skills := make([]*Skill, 0, len(raw))
	for _, r := range raw {
		if r == nil {
			continue
		}
		hit := 1.0
		if r.Hit != nil {
			hit = *r.Hit
		}
		skills = append(skills, &Skill{ID: r.ID, Name: r.Name, Power: r.Power, Hit: hit, Effect: r.Effect})
	}
	t, err := NewSkillTable(skills)
	if err != nil {
		return nil, fmt.Errorf("resource: %s: %w", path, err)
	}
	return t, nil
}

// LoadFormation reads a formation from a .json or .yaml file.
func LoadFormation(path string) (*Formation, error) {
	var f Formation
	if err := loadData(path, &f); err != nil {
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("resource: %s: %w", path, err)
	}
	return &f, nil
}

// Validate checks ids are unique across both sides and stats are usable.
func (f *Formation) Validate() error {
	seen := make(map[string]bool)
	check := func(c Combatant) error {
		if c.ID == "" {
			return fmt.Errorf("%w: combatant %q has no id", ErrInvalidData, c.Name)
		}
		if seen[c.ID] {
			return fmt.Errorf("%w: duplicate combatant id %q", ErrInvalidData, c.ID)
		}
		seen[c.ID] = true
		if c.MaxHP <= 0 {
			return fmt.Errorf("%w: combatant %q max_hp must be positive", ErrInvalidData, c.ID)
		}
		if c.Threshold <= 0 {
			return fmt.Errorf("%w: combatant %q threshold must be positive", ErrInvalidData, c.ID)
		}
		if c.ATBRate < 0 || math.IsNaN(c.ATBRate) {
			return fmt.Errorf("%w: combatant %q atb_rate must not be negative", ErrInvalidData, c.ID)
		}
		// A unit that cannot move never reaches the center line.
		if !(c.Spd > 0) || math.IsInf(c.Spd, 0) {
			return fmt.Errorf("%w: combatant %q spd must be positive", ErrInvalidData, c.ID)
		}
		switch c.Control {
		case "", "player", "auto":
		default:
			return fmt.Errorf("%w: combatant %q control %q", ErrInvalidData, c.ID, c.Control)
		}
		return nil
	}
	for _, c := range f.Allies {
		if err := check(c); err != nil {
			return err
		}
	}
	for _, c := range f.Enemies {
		if err := check(c); err != nil {
			return err
		}
	}
	return nil
}

func loadData[T any](path string, out *T) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("resource: read %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, out)
	default:
		err = json.Unmarshal(data, out)
	}
	if err != nil {
		return fmt.Errorf("resource: parse %s: %w", path, err)
	}
	return nil
}
