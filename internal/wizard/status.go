package wizard

// StatusHandler receives notifications while the engine replays and
// finishes wizard instances.
type StatusHandler interface {
	OnStepRealized(instance string, r *Realized)
	OnNavigationCorrected(instance, requested string, to *Realized)
	OnFinished(instance, redirect string)
}

type noopStatus struct{}

func (noopStatus) OnStepRealized(string, *Realized)                {}
func (noopStatus) OnNavigationCorrected(string, string, *Realized) {}
func (noopStatus) OnFinished(string, string)                       {}

// MultiStatus fans notifications out to several handlers.
type MultiStatus []StatusHandler

func (m MultiStatus) OnStepRealized(instance string, r *Realized) {
	for _, h := range m {
		h.OnStepRealized(instance, r)
	}
}

func (m MultiStatus) OnNavigationCorrected(instance, requested string, to *Realized) {
	for _, h := range m {
		h.OnNavigationCorrected(instance, requested, to)
	}
}

func (m MultiStatus) OnFinished(instance, redirect string) {
	for _, h := range m {
		h.OnFinished(instance, redirect)
	}
}
