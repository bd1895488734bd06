package ussd

// nav is the current level of a flow plus the back-stack of levels that led to it.
type nav[S ~string] struct {
	Level    S   `json:"level"`
	Previous []S `json:"previous_levels"`
}

// push moves to next, remembering the current level.
func (n *nav[S]) push(next S) {
	n.Previous = append(n.Previous, n.Level)
	n.Level = next
}

// back pops one level, landing on root when the stack is empty.
func (n *nav[S]) back(root S) {
	if len(n.Previous) == 0 {
		n.Level = root
		return
	}
	n.Level = n.Previous[len(n.Previous)-1]
	n.Previous = n.Previous[:len(n.Previous)-1]
}

// home returns to root and clears the stack.
func (n *nav[S]) home(root S) {
	n.Level = root
	n.Previous = nil
}

// reset jumps to level with an explicit stack.
func (n *nav[S]) reset(level S, previous ...S) {
	n.Level = level
	n.Previous = previous
}

const (
	inputBack = "0"
	inputHome = "00"
)
