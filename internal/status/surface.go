package status

// Surfaces fans visible changes out to several surfaces in order.
type Surfaces []Surface

func (s Surfaces) Display(message string) {
	for _, x := range s {
		x.Display(message)
	}
}

func (s Surfaces) Hide() {
	for _, x := range s {
		x.Hide()
	}
}

func (s Surfaces) ScrollIntoView() {
	for _, x := range s {
		x.ScrollIntoView()
	}
}
