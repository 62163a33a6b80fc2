package service

import (
	"github.com/inforequest/inforequest/internal/wizard"
	"go.uber.org/zap"
)

// LogStatus reports engine events to a zap logger.
type LogStatus struct {
	log *zap.Logger
}

var _ wizard.StatusHandler = (*LogStatus)(nil)

func NewLogStatus(log *zap.Logger) *LogStatus {
	return &LogStatus{log: log}
}

func (s *LogStatus) OnStepRealized(instance string, r *wizard.Realized) {
	s.log.Debug("step realized",
		zap.String("instance", instance),
		zap.String("step", string(r.ID)),
		zap.Int("index", r.Index),
		zap.Bool("accessible", r.Accessible),
		zap.Bool("valid", r.IsValid))
}

func (s *LogStatus) OnNavigationCorrected(instance, requested string, to *wizard.Realized) {
	s.log.Info("navigation corrected",
		zap.String("instance", instance),
		zap.String("requested", requested),
		zap.Int("index", to.Index),
		zap.String("step", string(to.ID)))
}

func (s *LogStatus) OnFinished(instance, redirect string) {
	s.log.Info("wizard finished", zap.String("instance", instance), zap.String("redirect", redirect))
}
