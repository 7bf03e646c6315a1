// Package memtrap lets a process survive memory faults on watched, memory
// mapped, regions that were invalidated by external code, e.g. a shared
// memory segment truncated by its peer.
//
// The Go runtime owns SIGSEGV and SIGBUS, so rather than installing a signal
// handler, accesses to watched memory are guarded via Access, which relies
// on [debug.SetPanicOnFault]. A fault inside a watched region is absorbed:
// the region is marked bad, and its pages are replaced by a zero filled
// anonymous mapping, so that the access (and every later access, guarded or
// not) reads zeros instead of crashing. A fault anywhere else is re-raised.
//
// Usage:
//
//	if err := memtrap.Install(); err != nil {
//		return err
//	}
//	region, err := memtrap.AddSlice(mem)
//	if err != nil {
//		return err
//	}
//	defer region.Remove()
//
//	err = memtrap.Access(func() {
//		copyOut(dst, mem)
//	})
//	if errors.Is(err, memtrap.ErrFaulted) || !region.IsGood() {
//		// the data is garbage, drop it and tear down the mapping
//	}
//
// Region lookup, on the fault path, is lock-free: the set of regions is an
// immutable snapshot, replaced on every change.
package memtrap
