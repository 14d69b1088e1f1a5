package board

import (
	"go.uber.org/zap"

	"github.com/hackgods/clinic-status-board/internal/clinic"
)

// Alarm is rung once per completed countdown treatment.
type Alarm interface {
	Ring(c clinic.Completion)
}

type AlarmFunc func(c clinic.Completion)

func (f AlarmFunc) Ring(c clinic.Completion) { f(c) }

// Alarms rings every member in order.
type Alarms []Alarm

func (a Alarms) Ring(c clinic.Completion) {
	for _, alarm := range a {
		alarm.Ring(c)
	}
}

type LogAlarm struct {
	log *zap.Logger
}

func NewLogAlarm(log *zap.Logger) *LogAlarm {
	return &LogAlarm{log: log}
}

func (l *LogAlarm) Ring(c clinic.Completion) {
	l.log.Info("treatment finished",
		zap.Int("bed_id", c.BedID),
		zap.String("bed", c.BedName),
		zap.String("patient", c.PatientName),
		zap.String("treatment", string(c.TreatmentName)),
		zap.String("treatment_id", c.TreatmentID),
	)
}
