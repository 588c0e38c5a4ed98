package scene

// Command menu choices offered to a unit parked in COMMAND.
const (
	OptionFight = "fight"
	OptionWait  = "wait"
)

// Menu is the fight/wait selector. The cursor wraps at both ends.
type Menu struct {
	options []string
	cursor  int
}

// NewMenu returns a menu with the cursor on "fight".
func NewMenu() *Menu {
	return &Menu{options: []string{OptionFight, OptionWait}}
}

func (m *Menu) Up() {
	m.cursor = (m.cursor - 1 + len(m.options)) % len(m.options)
}

func (m *Menu) Down() {
	m.cursor = (m.cursor + 1) % len(m.options)
}

// Selected returns the option under the cursor.
func (m *Menu) Selected() string { return m.options[m.cursor] }

// Options returns the menu entries in display order.
func (m *Menu) Options() []string {
	out := make([]string, len(m.options))
	copy(out, m.options)
	return out
}

// Cursor returns the highlighted index.
func (m *Menu) Cursor() int { return m.cursor }

// Reset puts the cursor back on the first option.
func (m *Menu) Reset() { m.cursor = 0 }
