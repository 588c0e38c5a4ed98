package battle

import (
	"math/rand"
	"testing"

	"github.com/kasuganosora/shuttlebattle/resource"
)

func TestDefaultTurnOrderBySpeed(t *testing.T) {
	slow := &Unit{ID: "slow", Stats: Stats{Spd: 1}, ATB: 150}
	fast := &Unit{ID: "fast", Stats: Stats{Spd: 2}, ATB: 100}

	order := DefaultTurnOrder{}.Order([]*Unit{slow, fast}, rand.New(rand.NewSource(42)))
	if order[0].ID != "fast" || order[1].ID != "slow" {
		t.Errorf("order = %s,%s, want fast,slow", order[0].ID, order[1].ID)
	}
}

func TestDefaultTurnOrderByReadiness(t *testing.T) {
	low := &Unit{ID: "low", Stats: Stats{Spd: 1}, ATB: 100}
	high := &Unit{ID: "high", Stats: Stats{Spd: 1}, ATB: 120}

	order := DefaultTurnOrder{}.Order([]*Unit{low, high}, rand.New(rand.NewSource(1)))
	if order[0].ID != "high" {
		t.Errorf("first = %s, want high", order[0].ID)
	}
}

func TestDefaultTurnOrderRandomTies(t *testing.T) {
	firsts := map[string]int{}
	for seed := int64(0); seed < 200; seed++ {
		a := &Unit{ID: "a", Stats: Stats{Spd: 1}, ATB: 100}
		b := &Unit{ID: "b", Stats: Stats{Spd: 1}, ATB: 100}
		order := DefaultTurnOrder{}.Order([]*Unit{a, b}, rand.New(rand.NewSource(seed)))
		firsts[order[0].ID]++
	}
	if firsts["a"] == 0 || firsts["b"] == 0 {
		t.Errorf("tie never broken both ways: %v", firsts)
	}
}

func TestDefaultTurnOrderDeterministicPerSeed(t *testing.T) {
	build := func() []*Unit {
		var us []*Unit
		for _, id := range []string{"a", "b", "c", "d"} {
			us = append(us, &Unit{ID: id, Stats: Stats{Spd: 1}, ATB: 100})
		}
		return us
	}
	first := DefaultTurnOrder{}.Order(build(), rand.New(rand.NewSource(9)))
	second := DefaultTurnOrder{}.Order(build(), rand.New(rand.NewSource(9)))
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("order differs at %d: %s vs %s", i, first[i].ID, second[i].ID)
		}
	}
}

func TestDispatchFollowsTurnOrder(t *testing.T) {
	c := newTestController(t, 1)
	slow := makeUnit(t, "slow", SideAlly, 0, resource.Combatant{Spd: 1})
	fast := makeUnit(t, "fast", SideAlly, 1, resource.Combatant{Spd: 3})
	e := makeUnit(t, "e1", SideEnemy, 0, resource.Combatant{})
	mustAdd(t, c, slow, fast, e)

	var got []string
	c.SetOnCommand(func(u *Unit) { got = append(got, u.ID) })

	slow.ATB, fast.ATB = 100, 100
	c.Update(0)
	if len(got) != 2 || got[0] != "fast" || got[1] != "slow" {
		t.Errorf("command order = %v, want [fast slow]", got)
	}
}

type reverseOrder struct{}

func (reverseOrder) Order(ready []*Unit, _ *rand.Rand) []*Unit {
	for i, j := 0, len(ready)-1; i < j; i, j = i+1, j-1 {
		ready[i], ready[j] = ready[j], ready[i]
	}
	return ready
}

func TestCustomTurnOrder(t *testing.T) {
	c := NewController(Config{Skills: makeTestSkills(t), TurnOrder: reverseOrder{}})
	a1 := makeUnit(t, "a1", SideAlly, 0, resource.Combatant{Spd: 3})
	a2 := makeUnit(t, "a2", SideAlly, 1, resource.Combatant{Spd: 1})
	e := makeUnit(t, "e1", SideEnemy, 0, resource.Combatant{})
	mustAdd(t, c, a1, a2, e)

	var got []string
	c.SetOnCommand(func(u *Unit) { got = append(got, u.ID) })
	a1.ATB, a2.ATB = 100, 100
	c.Update(0)
	if len(got) != 2 || got[0] != "a2" {
		t.Errorf("command order = %v, want [a2 a1]", got)
	}
}

func TestNearestOpponent(t *testing.T) {
	c := newTestController(t, 1)
	a := makeUnit(t, "a1", SideAlly, 0, resource.Combatant{})
	far := makeUnit(t, "far", SideEnemy, 0, resource.Combatant{})
	near := makeUnit(t, "near", SideEnemy, 1, resource.Combatant{})
	mustAdd(t, c, a, far, near)
	near.Pos.X = 500

	got, ok := c.nearestOpponent(a)
	if !ok || got.ID != "near" {
		t.Fatalf("nearest = %v, want near", got)
	}

	near.Pos.X = far.Pos.X
	got, _ = c.nearestOpponent(a)
	if got.ID != "far" {
		t.Errorf("tie: nearest = %s, want first registered", got.ID)
	}

	c.kill(far)
	c.kill(near)
	if _, ok := c.nearestOpponent(a); ok {
		t.Error("found a target among the dead")
	}
}

func TestNearestTargetSkill(t *testing.T) {
	c := newTestController(t, 1)
	e := makeUnit(t, "e1", SideEnemy, 0, resource.Combatant{})
	a := makeUnit(t, "a1", SideAlly, 0, resource.Combatant{})
	mustAdd(t, c, e, a)

	pa, ok := NearestTarget{}.Choose(c, e)
	if !ok || pa.SkillID != DefaultSkillID || pa.TargetID != "a1" || pa.UserID != "e1" {
		t.Errorf("Choose = %+v, %v", pa, ok)
	}
	pa, _ = NearestTarget{SkillID: "whiff"}.Choose(c, e)
	if pa.SkillID != "whiff" {
		t.Errorf("skill = %s, want whiff", pa.SkillID)
	}
}
