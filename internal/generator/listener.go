package generator

import "github.com/MeKo-Tech/gobar/internal/barcode"

// Listener receives the lifecycle notifications of one submitted request.
// OnStart comes first, then exactly one of OnSuccess or OnFailure, then
// OnFinish. All calls for a request are made from the same goroutine.
type Listener interface {
	OnStart()
	OnSuccess(outcome barcode.Outcome)
	OnFailure(err error)
	OnFinish()
}

// ListenerFuncs adapts optional functions to a Listener. Nil fields are skipped.
type ListenerFuncs struct {
	Start   func()
	Success func(barcode.Outcome)
	Failure func(error)
	Finish  func()
}

func (l ListenerFuncs) OnStart() {
	if l.Start != nil {
		l.Start()
	}
}

func (l ListenerFuncs) OnSuccess(outcome barcode.Outcome) {
	if l.Success != nil {
		l.Success(outcome)
	}
}

func (l ListenerFuncs) OnFailure(err error) {
	if l.Failure != nil {
		l.Failure(err)
	}
}

func (l ListenerFuncs) OnFinish() {
	if l.Finish != nil {
		l.Finish()
	}
}

// NoOpListener ignores all notifications.
type NoOpListener struct{}

func (NoOpListener) OnStart()                  {}
func (NoOpListener) OnSuccess(barcode.Outcome) {}
func (NoOpListener) OnFailure(error)           {}
func (NoOpListener) OnFinish()                 {}
