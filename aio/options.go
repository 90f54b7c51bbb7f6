package aio

// Options configures backend sizing. RingEntries sizes the io_uring
// submission/completion rings (Linux); EventBuffer sizes the per-call
// kevent() batch (BSD/macOS). Each backend ignores the field it has no use
// for, following the teacher package's Options/DefaultOptions shape.
type Options struct {
	RingEntries uint32
	EventBuffer uint32
}

var DefaultOptions = Options{RingEntries: 256, EventBuffer: 256}
