package stream

// FrameObservers fans lifecycle notifications out to several observers.
type FrameObservers []FrameObserver

func (o FrameObservers) OnOpen() {
	for _, x := range o {
		x.OnOpen()
	}
}

func (o FrameObservers) OnFrameDropped(err error) {
	for _, x := range o {
		x.OnFrameDropped(err)
	}
}

func (o FrameObservers) OnError(err error) {
	for _, x := range o {
		x.OnError(err)
	}
}
