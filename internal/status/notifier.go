package status

import "sync"

// Surface is where the status slot becomes visible (a status panel, the
// browser hub, a log). Only actual changes reach it.
type Surface interface {
	Display(message string)
	Hide()
	ScrollIntoView()
}

// Notifier is the single, de-duplicating status slot shared by every
// failure path. Concurrent callers race and the last call wins.
type Notifier struct {
	mu      sync.Mutex
	last    string
	visible bool
	owners  map[string]struct{} // who currently relies on the visible message
	surface Surface
}

func NewNotifier(surface Surface) *Notifier {
	return &Notifier{surface: surface}
}

// Show displays message without an owner: only a later message or an empty
// Show replaces it. Repeating the message that is already shown changes
// nothing. An empty message hides the slot.
func (n *Notifier) Show(message string) {
	n.Raise("", message)
}

// Raise displays message on behalf of owner and scrolls it into view. When
// the same message is already visible, owner joins the ones relying on it and
// nothing visible changes.
func (n *Notifier) Raise(owner, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if message == "" {
		n.hideLocked()
		return
	}
	if n.visible && message == n.last {
		n.owners[owner] = struct{}{}
		return
	}
	n.last = message
	n.visible = true
	n.owners = map[string]struct{}{owner: {}}
	if n.surface != nil {
		n.surface.Display(message)
		n.surface.ScrollIntoView()
	}
}

// Release withdraws owner from the visible message and hides the slot once
// nobody relies on it any more. A message raised by someone else, or shown
// without an owner, is never cleared. It reports whether the slot was hidden.
func (n *Notifier) Release(owner string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if owner == "" || !n.visible {
		return false
	}
	if _, ok := n.owners[owner]; !ok {
		return false
	}
	delete(n.owners, owner)
	if len(n.owners) > 0 {
		return false
	}
	n.hideLocked()
	return true
}

// Current returns the visible message, or "" when hidden.
func (n *Notifier) Current() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.visible {
		return ""
	}
	return n.last
}

func (n *Notifier) hideLocked() {
	if !n.visible {
		return
	}
	n.last = ""
	n.visible = false
	n.owners = nil
	if n.surface != nil {
		n.surface.Hide()
	}
}
