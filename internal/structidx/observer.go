package structidx

// Observer receives table activity notifications, e.g. for metrics.
// InternMiss and Flushed run while the table's write lock is held, so they
// are serialized with every mutation and must not call back into the table.
// InternHit and Defect run after the lock is released and may be concurrent.
type Observer interface {
	InternHit()
	InternMiss(entries int)
	Flushed(dropped int)
	Defect(code Code)
}

type nopObserver struct{}

func (nopObserver) InternHit()     {}
func (nopObserver) InternMiss(int) {}
func (nopObserver) Flushed(int)    {}
func (nopObserver) Defect(Code)    {}
