package battle

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/kasuganosora/shuttlebattle/resource"
)

func makeTestSkills(t *testing.T) *resource.SkillTable {
	t.Helper()
	tbl, err := resource.NewSkillTable([]*resource.Skill{
		{ID: "melee_punch", Name: "Punch", Power: 2, Hit: 1.0, Effect: "flash"},
		{ID: "whiff", Name: "Whiff", Power: 99, Hit: 0.0, Effect: "dust"},
		{ID: "tickle", Name: "Tickle", Power: -50, Hit: 1.0, Effect: "sparkle"},
	})
	if err != nil {
		t.Fatalf("NewSkillTable: %v", err)
	}
	return tbl
}

func newTestController(t *testing.T, seed int64) *Controller {
	t.Helper()
	return NewController(Config{
		Skills: makeTestSkills(t),
		RNG:    rand.New(rand.NewSource(seed)),
	})
}

// makeUnit builds a unit on its home line with the default field.
func makeUnit(t *testing.T, id string, side Side, lane int, c resource.Combatant) *Unit {
	t.Helper()
	c.ID = id
	if c.Name == "" {
		c.Name = id
	}
	c.Lane = lane
	if c.MaxHP == 0 {
		c.MaxHP = 30
	}
	if c.Spd == 0 {
		c.Spd = 1
	}
	if c.Threshold == 0 {
		c.Threshold = 100
	}
	u, err := NewUnit(c, side, DefaultField())
	if err != nil {
		t.Fatalf("NewUnit(%s): %v", id, err)
	}
	return u
}

func mustAdd(t *testing.T, c *Controller, units ...*Unit) {
	t.Helper()
	for _, u := range units {
		if err := c.AddUnit(u); err != nil {
			t.Fatalf("AddUnit(%s): %v", u.ID, err)
		}
	}
}

func TestAddUnitRejectsDuplicate(t *testing.T) {
	c := newTestController(t, 1)
	first := makeUnit(t, "a1", SideAlly, 0, resource.Combatant{Atk: 5})
	mustAdd(t, c, first)

	dup := makeUnit(t, "a1", SideEnemy, 1, resource.Combatant{Atk: 9})
	err := c.AddUnit(dup)
	if !errors.Is(err, ErrDuplicateUnit) {
		t.Fatalf("err = %v, want ErrDuplicateUnit", err)
	}
	got, _ := c.Unit("a1")
	if got != first {
		t.Error("duplicate replaced the registered unit")
	}
	if len(c.Units()) != 1 {
		t.Errorf("units = %d, want 1", len(c.Units()))
	}
}

func TestAddUnitRejectsInvalid(t *testing.T) {
	c := newTestController(t, 1)
	if err := c.AddUnit(nil); !errors.Is(err, ErrInvalidUnit) {
		t.Errorf("nil unit: err = %v", err)
	}
	if err := c.AddUnit(&Unit{ID: "x"}); !errors.Is(err, ErrInvalidUnit) {
		t.Errorf("zero threshold: err = %v", err)
	}
}

func TestReadinessMonotonic(t *testing.T) {
	c := newTestController(t, 1)
	// Enemy with no rate keeps the battle open; ally never gets a target
	// until it fills up.
	a := makeUnit(t, "a1", SideAlly, 0, resource.Combatant{ATBRate: 7})
	e := makeUnit(t, "e1", SideEnemy, 0, resource.Combatant{})
	mustAdd(t, c, a, e)

	prev := a.ATB
	for i := 0; i < 200 && a.State == StateIdle; i++ {
		c.Update(0.1)
		if a.State != StateIdle {
			break
		}
		if a.ATB <= prev {
			t.Fatalf("tick %d: atb %v did not increase from %v", i, a.ATB, prev)
		}
		if a.ATB > a.Stats.Threshold {
			t.Fatalf("tick %d: atb %v exceeds threshold", i, a.ATB)
		}
		prev = a.ATB
	}
	if a.State != StateCommand {
		t.Fatalf("state = %s, want COMMAND", a.State)
	}
	if a.ATB != a.Stats.Threshold {
		t.Errorf("atb = %v, want clamped to %v", a.ATB, a.Stats.Threshold)
	}
}

func TestChargeSnapsToCenter(t *testing.T) {
	for _, dt := range []float64{0.016, 0.1, 0.7, 5.0} {
		c := newTestController(t, 1)
		a := makeUnit(t, "a1", SideAlly, 0, resource.Combatant{Atk: 1, ATBRate: 1000, Control: "auto"})
		e := makeUnit(t, "e1", SideEnemy, 0, resource.Combatant{MaxHP: 1000})
		mustAdd(t, c, a, e)

		for i := 0; i < 10000 && a.State != StateCharge; i++ {
			c.Update(dt)
		}
		if a.State != StateCharge {
			t.Fatalf("dt=%v: never charged", dt)
		}
		for i := 0; i < 10000 && a.State == StateCharge; i++ {
			c.Update(dt)
			if a.State == StateCharge && a.Pos.X >= c.Field().CenterX {
				t.Fatalf("dt=%v: still charging past center at %v", dt, a.Pos.X)
			}
		}
		if a.Pos.X != c.Field().CenterX {
			t.Errorf("dt=%v: x = %v, want exactly %v", dt, a.Pos.X, c.Field().CenterX)
		}
		if a.State != StateCooldown {
			t.Errorf("dt=%v: state = %s, want COOLDOWN", dt, a.State)
		}
	}
}

func TestEnemyChargesLeftward(t *testing.T) {
	c := newTestController(t, 1)
	a := makeUnit(t, "a1", SideAlly, 0, resource.Combatant{MaxHP: 1000})
	e := makeUnit(t, "e1", SideEnemy, 0, resource.Combatant{ATBRate: 100})
	mustAdd(t, c, a, e)

	c.Update(1.0)
	if e.State != StateCharge {
		t.Fatalf("state = %s, want CHARGE", e.State)
	}
	c.Update(1.0)
	if e.Pos.X != 680-180 {
		t.Errorf("x = %v, want %v", e.Pos.X, 680-180)
	}
	c.Update(1.0)
	if e.Pos.X != 400 || e.State != StateCooldown {
		t.Errorf("x = %v state = %s, want 400 COOLDOWN", e.Pos.X, e.State)
	}
	c.Update(1.0)
	if e.Pos.X != 400+180 {
		t.Errorf("retreat x = %v, want %v", e.Pos.X, 400+180)
	}
}

func TestRoundTrip(t *testing.T) {
	c := newTestController(t, 1)
	// 25 per second at dt=1 fills a threshold of 100 in exactly 4 ticks.
	a := makeUnit(t, "a1", SideAlly, 0, resource.Combatant{Atk: 1, ATBRate: 25})
	e := makeUnit(t, "e1", SideEnemy, 0, resource.Combatant{MaxHP: 1000})
	mustAdd(t, c, a, e)

	var commanded []string
	c.SetOnCommand(func(u *Unit) { commanded = append(commanded, u.ID) })

	for i := 1; i <= 3; i++ {
		c.Update(1.0)
		if a.State != StateIdle {
			t.Fatalf("tick %d: state = %s, want IDLE", i, a.State)
		}
	}
	c.Update(1.0)
	if a.State != StateCommand {
		t.Fatalf("tick 4: state = %s, want COMMAND", a.State)
	}
	if len(commanded) != 1 || commanded[0] != "a1" {
		t.Fatalf("command callback = %v", commanded)
	}

	// Parked: updates do not move it.
	c.Update(1.0)
	if a.State != StateCommand || a.Pos.X != a.HomeX {
		t.Fatalf("COMMAND not frozen: state=%s x=%v", a.State, a.Pos.X)
	}

	if err := c.DecideAction("a1", "melee_punch", "e1"); err != nil {
		t.Fatalf("DecideAction: %v", err)
	}
	if a.State != StateCharge {
		t.Fatalf("state = %s, want CHARGE", a.State)
	}

	seen := map[State]bool{}
	for i := 0; i < 100 && a.State != StateIdle; i++ {
		c.Update(1.0)
		seen[a.State] = true
	}
	if !seen[StateCooldown] {
		t.Error("never passed through COOLDOWN")
	}
	if a.State != StateIdle {
		t.Fatalf("state = %s, want IDLE", a.State)
	}
	if a.ATB != 0 {
		t.Errorf("atb = %v, want 0", a.ATB)
	}
	if a.Pos.X != a.HomeX {
		t.Errorf("x = %v, want home %v", a.Pos.X, a.HomeX)
	}
	if e.HP != 1000-Damage(2, 1, 0) {
		t.Errorf("enemy hp = %d, want %d", e.HP, 1000-Damage(2, 1, 0))
	}
}

func TestDecideActionMisuse(t *testing.T) {
	c := newTestController(t, 1)
	a := makeUnit(t, "a1", SideAlly, 0, resource.Combatant{})
	e := makeUnit(t, "e1", SideEnemy, 0, resource.Combatant{})
	mustAdd(t, c, a, e)

	if err := c.DecideAction("a1", "melee_punch", "e1"); !errors.Is(err, ErrNotCommanding) {
		t.Errorf("idle unit: err = %v, want ErrNotCommanding", err)
	}
	if err := c.Wait("a1"); !errors.Is(err, ErrNotCommanding) {
		t.Errorf("idle wait: err = %v, want ErrNotCommanding", err)
	}
	if err := c.DecideAction("ghost", "melee_punch", "e1"); !errors.Is(err, ErrUnknownUnit) {
		t.Errorf("unknown unit: err = %v, want ErrUnknownUnit", err)
	}

	a.ATB = a.Stats.Threshold
	c.Update(0)
	if a.State != StateCommand {
		t.Fatalf("state = %s, want COMMAND", a.State)
	}
	if err := c.DecideAction("a1", "melee_punch", "ghost"); !errors.Is(err, ErrUnknownUnit) {
		t.Errorf("unknown target: err = %v, want ErrUnknownUnit", err)
	}
	if a.State != StateCommand {
		t.Errorf("failed decision changed state to %s", a.State)
	}
}

func TestWaitResetsMeter(t *testing.T) {
	c := newTestController(t, 1)
	a := makeUnit(t, "a1", SideAlly, 0, resource.Combatant{})
	e := makeUnit(t, "e1", SideEnemy, 0, resource.Combatant{})
	mustAdd(t, c, a, e)
	a.ATB = a.Stats.Threshold
	c.Update(0)

	if err := c.Wait("a1"); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if a.State != StateIdle || a.ATB != 0 {
		t.Errorf("state=%s atb=%v, want IDLE 0", a.State, a.ATB)
	}
}

func TestUpdatePanicsOnNegativeDt(t *testing.T) {
	c := newTestController(t, 1)
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	c.Update(-0.1)
}

func TestDeathIsAbsorbing(t *testing.T) {
	c := newTestController(t, 3)
	a := makeUnit(t, "a1", SideAlly, 0, resource.Combatant{Atk: 50, ATBRate: 100, Control: "auto"})
	e1 := makeUnit(t, "e1", SideEnemy, 0, resource.Combatant{MaxHP: 1, ATBRate: 10})
	e2 := makeUnit(t, "e2", SideEnemy, 1, resource.Combatant{MaxHP: 100000})
	mustAdd(t, c, a, e1, e2)

	for i := 0; i < 100 && !e1.IsDead(); i++ {
		c.Update(0.5)
	}
	if !e1.IsDead() {
		t.Fatal("e1 never died")
	}
	pos, atb := e1.Pos, e1.ATB
	for i := 0; i < 200; i++ {
		c.Update(0.5)
		if e1.State != StateDead || e1.Pos != pos || e1.ATB != atb || e1.HP != 0 {
			t.Fatalf("tick %d: dead unit changed: %+v", i, e1.View())
		}
	}
	if a.TargetID == "e1" && len(a.Actions) > 0 {
		t.Error("dead unit still targeted by a pending action")
	}
	if got, _ := c.FindTarget("a1"); got == nil || got.ID != "e2" {
		t.Errorf("FindTarget = %v, want e2", got)
	}
	for _, v := range c.Snapshot() {
		if v.ID == "e1" {
			t.Error("dead unit in snapshot")
		}
	}
}

func TestAutoUnitWithoutTargetStaysIdle(t *testing.T) {
	c := newTestController(t, 1)
	a := makeUnit(t, "a1", SideAlly, 0, resource.Combatant{ATBRate: 100, Control: "auto"})
	mustAdd(t, c, a)

	for i := 0; i < 5; i++ {
		c.Update(1.0)
	}
	if a.State != StateIdle {
		t.Errorf("state = %s, want IDLE", a.State)
	}
	if len(a.Actions) != 0 {
		t.Errorf("actions = %v, want none", a.Actions)
	}
}

func TestCommandingList(t *testing.T) {
	c := newTestController(t, 1)
	a1 := makeUnit(t, "a1", SideAlly, 0, resource.Combatant{})
	a2 := makeUnit(t, "a2", SideAlly, 1, resource.Combatant{})
	e := makeUnit(t, "e1", SideEnemy, 0, resource.Combatant{})
	mustAdd(t, c, a1, a2, e)
	a1.ATB, a2.ATB = 100, 100
	c.Update(0)

	got := c.Commanding()
	if len(got) != 2 || got[0].ID != "a1" || got[1].ID != "a2" {
		t.Errorf("Commanding = %v", got)
	}
}

func TestTakeMessageClears(t *testing.T) {
	c := newTestController(t, 1)
	a := makeUnit(t, "a1", SideAlly, 0, resource.Combatant{Atk: 1})
	e := makeUnit(t, "e1", SideEnemy, 0, resource.Combatant{})
	mustAdd(t, c, a, e)

	if _, ok := c.TakeMessage(); ok {
		t.Error("message before any action")
	}
	c.applyAction(PlannedAction{SkillID: "melee_punch", UserID: "a1", TargetID: "e1"})
	if c.LastMessage() == "" {
		t.Fatal("no message recorded")
	}
	msg, ok := c.TakeMessage()
	if !ok || msg == "" {
		t.Fatalf("TakeMessage = %q, %v", msg, ok)
	}
	if _, ok := c.TakeMessage(); ok {
		t.Error("message not cleared")
	}
}

func TestCheckVictoryFromController(t *testing.T) {
	c := newTestController(t, 1)
	a := makeUnit(t, "a1", SideAlly, 0, resource.Combatant{})
	e := makeUnit(t, "e1", SideEnemy, 0, resource.Combatant{})
	mustAdd(t, c, a, e)

	if got := c.CheckVictory(); got != ResultOngoing {
		t.Errorf("CheckVictory = %s, want ongoing", got)
	}
	c.kill(e)
	if got := c.CheckVictory(); got != ResultAlly {
		t.Errorf("CheckVictory = %s, want ally", got)
	}
	if got := c.CheckVictory(); got != ResultAlly {
		t.Errorf("second CheckVictory = %s, want ally", got)
	}
}
