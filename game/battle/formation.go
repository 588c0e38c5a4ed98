package battle

import (
	"fmt"

	"github.com/kasuganosora/shuttlebattle/resource"
)

// Field is the battlefield geometry shared by all units.
type Field struct {
	CenterX  float64   // x of the center line where actions resolve
	PxPerSec float64   // pixels per second at Spd 1.0
	AllyX    float64   // ally home line
	EnemyX   float64   // enemy home line
	LaneY    []float64 // y of each lane, index = lane
}

// DefaultField returns the standard 800px three-lane layout.
func DefaultField() Field {
	return Field{
		CenterX:  400,
		PxPerSec: 180,
		AllyX:    120,
		EnemyX:   680,
		LaneY:    []float64{360, 300, 240},
	}
}

func (f Field) homeX(side Side) float64 {
	if side == SideAlly {
		return f.AllyX
	}
	return f.EnemyX
}

// facing points from the side's home line toward the center.
func (f Field) facing(side Side) int {
	if f.homeX(side) <= f.CenterX {
		return 1
	}
	return -1
}

// NewUnit builds an idle, full-health unit standing on its home line.
func NewUnit(c resource.Combatant, side Side, f Field) (*Unit, error) {
	if c.Lane < 0 || c.Lane >= len(f.LaneY) {
		return nil, fmt.Errorf("battle: unit %q lane %d out of range [0,%d)", c.ID, c.Lane, len(f.LaneY))
	}
	home := f.homeX(side)
	return &Unit{
		ID:   c.ID,
		Name: c.Name,
		Side: side,
		Lane: c.Lane,
		Stats: Stats{
			MaxHP:     c.MaxHP,
			Atk:       c.Atk,
			Def:       c.Def,
			Spd:       c.Spd,
			ATBRate:   c.ATBRate,
			Threshold: c.Threshold,
		},
		Control: ParseControl(c.Control),
		HP:      c.MaxHP,
		State:   StateIdle,
		Pos:     Vec2{X: home, Y: f.LaneY[c.Lane]},
		HomeX:   home,
		Facing:  f.facing(side),
	}, nil
}

// BuildUnits creates every unit of a formation, allies first.
func BuildUnits(form *resource.Formation, f Field) ([]*Unit, error) {
	if form == nil {
		return nil, nil
	}
	units := make([]*Unit, 0, len(form.Allies)+len(form.Enemies))
	for _, c := range form.Allies {
		u, err := NewUnit(c, SideAlly, f)
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	for _, c := range form.Enemies {
		u, err := NewUnit(c, SideEnemy, f)
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, nil
}
