package battle

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/kasuganosora/shuttlebattle/resource"
)

type cue struct {
	kind, text string
	x, y       float64
}

type recordingFeedback struct {
	cues []cue
}

func (r *recordingFeedback) PlayEffect(name string, x, y float64) {
	r.cues = append(r.cues, cue{"effect", name, x, y})
}

func (r *recordingFeedback) PopDamage(text string, x, y float64) {
	r.cues = append(r.cues, cue{"damage", text, x, y})
}

type panickingFeedback struct{}

func (panickingFeedback) PlayEffect(string, float64, float64) { panic("no renderer") }
func (panickingFeedback) PopDamage(string, float64, float64)  { panic("no renderer") }

func TestDamage(t *testing.T) {
	tests := []struct {
		power, atk, def, want int
	}{
		{2, 5, 3, 4},
		{0, 0, 0, 1},
		{-50, 1, 10, 1},
		{10, 10, 0, 20},
		{1, 1, 1, 1},
	}
	for _, tt := range tests {
		if got := Damage(tt.power, tt.atk, tt.def); got != tt.want {
			t.Errorf("Damage(%d,%d,%d) = %d, want %d", tt.power, tt.atk, tt.def, got, tt.want)
		}
	}
}

func TestBasicKill(t *testing.T) {
	fb := &recordingFeedback{}
	c := NewController(Config{
		Skills:   makeTestSkills(t),
		RNG:      rand.New(rand.NewSource(7)),
		Feedback: fb,
	})
	a := makeUnit(t, "a1", SideAlly, 0, resource.Combatant{Name: "Hero", Atk: 5})
	e := makeUnit(t, "e1", SideEnemy, 0, resource.Combatant{Name: "Slime", MaxHP: 4, Def: 3})
	mustAdd(t, c, a, e)

	var outcomes []ActionOutcome
	c.SetOnOutcome(func(out ActionOutcome) { outcomes = append(outcomes, out) })

	out, ok := c.applyAction(PlannedAction{SkillID: "melee_punch", UserID: "a1", TargetID: "e1"})
	if !ok {
		t.Fatal("action aborted")
	}
	if out.Damage != 4 || !out.Defeated || out.Missed {
		t.Errorf("outcome = %+v", out)
	}
	if e.State != StateDead || e.HP != 0 {
		t.Errorf("target state=%s hp=%d, want DEAD 0", e.State, e.HP)
	}
	if got := c.CheckVictory(); got != ResultAlly {
		t.Errorf("victory = %s, want ally", got)
	}
	if !strings.Contains(c.LastMessage(), "Slime was defeated") {
		t.Errorf("message = %q", c.LastMessage())
	}
	if len(outcomes) != 1 {
		t.Errorf("outcome callbacks = %d, want 1", len(outcomes))
	}

	want := []cue{
		{"effect", "flash", e.Pos.X, e.Pos.Y},
		{"damage", "4", e.Pos.X, e.Pos.Y},
	}
	if len(fb.cues) != len(want) {
		t.Fatalf("cues = %+v", fb.cues)
	}
	for i := range want {
		if fb.cues[i] != want[i] {
			t.Errorf("cue[%d] = %+v, want %+v", i, fb.cues[i], want[i])
		}
	}
}

func TestDamageMessage(t *testing.T) {
	c := newTestController(t, 1)
	a := makeUnit(t, "a1", SideAlly, 0, resource.Combatant{Name: "Hero", Atk: 5})
	e := makeUnit(t, "e1", SideEnemy, 0, resource.Combatant{Name: "Slime", MaxHP: 30, Def: 3})
	mustAdd(t, c, a, e)

	c.applyAction(PlannedAction{SkillID: "melee_punch", UserID: "a1", TargetID: "e1"})
	if e.HP != 26 || e.State != StateIdle {
		t.Errorf("hp=%d state=%s, want 26 IDLE", e.HP, e.State)
	}
	if msg := c.LastMessage(); !strings.Contains(msg, "4 damage") {
		t.Errorf("message = %q", msg)
	}
}

func TestDamageFloorOnHit(t *testing.T) {
	c := newTestController(t, 1)
	a := makeUnit(t, "a1", SideAlly, 0, resource.Combatant{Atk: 0})
	e := makeUnit(t, "e1", SideEnemy, 0, resource.Combatant{Def: 99})
	mustAdd(t, c, a, e)

	out, ok := c.applyAction(PlannedAction{SkillID: "tickle", UserID: "a1", TargetID: "e1"})
	if !ok || out.Damage != 1 || e.HP != 29 {
		t.Errorf("ok=%v damage=%d hp=%d, want 1 29", ok, out.Damage, e.HP)
	}
}

func TestGuaranteedMiss(t *testing.T) {
	for seed := int64(0); seed < 1000; seed++ {
		fb := &recordingFeedback{}
		c := NewController(Config{
			Skills:   makeTestSkills(t),
			RNG:      rand.New(rand.NewSource(seed)),
			Feedback: fb,
		})
		a := makeUnit(t, "a1", SideAlly, 0, resource.Combatant{Atk: 50})
		e := makeUnit(t, "e1", SideEnemy, 0, resource.Combatant{MaxHP: 1})
		mustAdd(t, c, a, e)

		out, ok := c.applyAction(PlannedAction{SkillID: "whiff", UserID: "a1", TargetID: "e1"})
		if !ok || !out.Missed {
			t.Fatalf("seed %d: outcome = %+v ok=%v, want miss", seed, out, ok)
		}
		if e.HP != 1 || e.State != StateIdle {
			t.Fatalf("seed %d: hp=%d state=%s after miss", seed, e.HP, e.State)
		}
		if !strings.HasSuffix(c.LastMessage(), "missed!") {
			t.Fatalf("seed %d: message = %q", seed, c.LastMessage())
		}
		if last := fb.cues[len(fb.cues)-1]; last.kind != "damage" || last.text != "0" {
			t.Fatalf("seed %d: last cue = %+v, want zero marker", seed, last)
		}
	}
}

func TestGuaranteedHit(t *testing.T) {
	for seed := int64(0); seed < 200; seed++ {
		c := newTestController(t, seed)
		a := makeUnit(t, "a1", SideAlly, 0, resource.Combatant{Atk: 1})
		e := makeUnit(t, "e1", SideEnemy, 0, resource.Combatant{MaxHP: 100})
		mustAdd(t, c, a, e)

		out, _ := c.applyAction(PlannedAction{SkillID: "melee_punch", UserID: "a1", TargetID: "e1"})
		if out.Missed {
			t.Fatalf("seed %d: hit=1.0 missed", seed)
		}
	}
}

func TestApplyActionAbortsSilently(t *testing.T) {
	tests := []struct {
		name string
		pa   PlannedAction
	}{
		{"missing user", PlannedAction{SkillID: "melee_punch", UserID: "ghost", TargetID: "e1"}},
		{"missing target", PlannedAction{SkillID: "melee_punch", UserID: "a1", TargetID: "ghost"}},
		{"dead target", PlannedAction{SkillID: "melee_punch", UserID: "a1", TargetID: "e2"}},
		{"unknown skill", PlannedAction{SkillID: "fireball", UserID: "a1", TargetID: "e1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := &recordingFeedback{}
			c := NewController(Config{Skills: makeTestSkills(t), Feedback: fb})
			a := makeUnit(t, "a1", SideAlly, 0, resource.Combatant{Atk: 5})
			e1 := makeUnit(t, "e1", SideEnemy, 0, resource.Combatant{})
			e2 := makeUnit(t, "e2", SideEnemy, 1, resource.Combatant{})
			mustAdd(t, c, a, e1, e2)
			c.kill(e2)

			if _, ok := c.applyAction(tt.pa); ok {
				t.Error("action applied")
			}
			if e1.HP != 30 {
				t.Errorf("e1 hp = %d", e1.HP)
			}
			if c.LastMessage() != "" {
				t.Errorf("message = %q", c.LastMessage())
			}
			if len(fb.cues) != 0 {
				t.Errorf("cues = %+v", fb.cues)
			}
		})
	}
}

func TestNilSkillBook(t *testing.T) {
	c := NewController(Config{})
	a := makeUnit(t, "a1", SideAlly, 0, resource.Combatant{})
	e := makeUnit(t, "e1", SideEnemy, 0, resource.Combatant{})
	mustAdd(t, c, a, e)

	if _, ok := c.applyAction(PlannedAction{SkillID: "melee_punch", UserID: "a1", TargetID: "e1"}); ok {
		t.Error("action applied without skills")
	}
}

func TestPanickingFeedbackIsContained(t *testing.T) {
	c := NewController(Config{Skills: makeTestSkills(t), Feedback: panickingFeedback{}})
	a := makeUnit(t, "a1", SideAlly, 0, resource.Combatant{Atk: 5})
	e := makeUnit(t, "e1", SideEnemy, 0, resource.Combatant{Def: 3})
	mustAdd(t, c, a, e)

	out, ok := c.applyAction(PlannedAction{SkillID: "melee_punch", UserID: "a1", TargetID: "e1"})
	if !ok || out.Damage != 4 || e.HP != 26 {
		t.Errorf("ok=%v damage=%d hp=%d", ok, out.Damage, e.HP)
	}
}

func TestTargetReResolution(t *testing.T) {
	c := newTestController(t, 1)
	a := makeUnit(t, "a1", SideAlly, 0, resource.Combatant{Atk: 5})
	e1 := makeUnit(t, "e1", SideEnemy, 0, resource.Combatant{})
	e2 := makeUnit(t, "e2", SideEnemy, 1, resource.Combatant{Def: 3})
	mustAdd(t, c, a, e1, e2)

	a.ATB = a.Stats.Threshold
	c.Update(0)
	if err := c.DecideAction("a1", "melee_punch", "e1"); err != nil {
		t.Fatalf("DecideAction: %v", err)
	}
	c.kill(e1)

	for i := 0; i < 100 && a.State == StateCharge; i++ {
		c.Update(0.5)
	}
	if a.State != StateCooldown {
		t.Fatalf("state = %s, want COOLDOWN", a.State)
	}
	if e2.HP != 26 {
		t.Errorf("redirected target hp = %d, want 26", e2.HP)
	}
	if a.TargetID != "e2" {
		t.Errorf("target = %q, want e2", a.TargetID)
	}
	if e1.HP != 0 || e1.State != StateDead {
		t.Errorf("dead target touched: %+v", e1.View())
	}
}

func TestNoTargetParksInCooldown(t *testing.T) {
	c := newTestController(t, 1)
	a := makeUnit(t, "a1", SideAlly, 0, resource.Combatant{Atk: 5})
	e := makeUnit(t, "e1", SideEnemy, 0, resource.Combatant{})
	mustAdd(t, c, a, e)

	a.ATB = a.Stats.Threshold
	c.Update(0)
	if err := c.DecideAction("a1", "melee_punch", "e1"); err != nil {
		t.Fatalf("DecideAction: %v", err)
	}
	c.kill(e)

	for i := 0; i < 100 && a.State == StateCharge; i++ {
		c.Update(0.5)
	}
	if a.State != StateCooldown {
		t.Fatalf("state = %s, want COOLDOWN", a.State)
	}
	if len(a.Actions) != 0 {
		t.Errorf("actions = %v, want drained", a.Actions)
	}
	if c.LastMessage() != "" {
		t.Errorf("message = %q, want none", c.LastMessage())
	}
}
