package aio

// pendingOp is an entry in the operation table of spec §3: a context plus
// the kind of work in flight and, for recv/send, the caller-owned buffer
// borrowed until completion fires.
type pendingOp struct {
	ctx Context
	kin OpKind
	buf []byte
	// fd is tracked alongside the context so backends that index pending
	// work by file descriptor (the kqueue backend, the mock backend)
	// don't need a second lookup structure keyed differently than the id.
	fd int
	// cancelled marks an op whose Cancel was requested while still
	// in-flight. The entry stays in the table (a forced or late-arriving
	// completion must still be deliverable, per spec §5's "callers must
	// therefore treat their own state as possibly cancelled"); backends
	// that have nothing further to do with the flag may ignore it.
	cancelled bool
}

// opTable maps OpID to pendingOp. Its invariants (spec §3):
//  1. every in-flight operation has exactly one entry, removed before its
//     callback runs;
//  2. removing an unknown id is a silent no-op, so cancel on a completed
//     operation is safe;
//  3. at teardown, remaining entries are abandoned untouched.
type opTable struct {
	m      map[OpID]pendingOp
	nextID OpID
}

func (t *opTable) init() {
	t.m = make(map[OpID]pendingOp)
	t.nextID = 0
}

// insert allocates the next OpID and records op, panicking only in the
// practically-unreachable case of id wraparound (spec §3: "wraparound is
// an error").
func (t *opTable) insert(op pendingOp) OpID {
	t.nextID++
	if t.nextID == 0 {
		panic("aio: operation id wrapped around")
	}
	id := t.nextID
	t.m[id] = op
	return id
}

func (t *opTable) get(id OpID) (pendingOp, bool) {
	op, ok := t.m[id]
	return op, ok
}

// remove deletes the entry for id. Removing an id that never existed, or
// that was already removed, is a silent no-op.
func (t *opTable) remove(id OpID) {
	delete(t.m, id)
}

// cancel marks the entry for id as cancelled in place, without removing
// it, so a still-in-flight or forced completion can still be resolved and
// delivered exactly once. A no-op if id is unknown.
func (t *opTable) cancel(id OpID) {
	op, ok := t.m[id]
	if !ok {
		return
	}
	op.cancelled = true
	t.m[id] = op
}

func (t *opTable) len() int {
	return len(t.m)
}
