package feedback

import (
	"context"

	"github.com/sirupsen/logrus"

	"asset-scan/internal/domain/entity"
	"asset-scan/internal/domain/port"
)

// LogFeedback пишет сигналы пользователю в лог (терминальный режим, отладка)
type LogFeedback struct {
	log logrus.FieldLogger
}

// NewLogFeedback создаёт получателя сигналов
func NewLogFeedback(log logrus.FieldLogger) *LogFeedback {
	return &LogFeedback{log: log}
}

// Notify логирует сигнал. Ошибки лишь предупреждения, остальное информационно.
func (f *LogFeedback) Notify(ctx context.Context, fb entity.Feedback) {
	entry := f.log.WithFields(logrus.Fields{
		"owner": fb.OwnerID,
		"kind":  fb.Kind,
		"code":  fb.Code,
	})
	if fb.Kind == entity.FeedbackError {
		entry.Warn(fb.Message)
		return
	}
	entry.Info(fb.Message)
}

// Fanout рассылает сигнал нескольким получателям
type Fanout []port.Feedback

func (f Fanout) Notify(ctx context.Context, fb entity.Feedback) {
	for _, r := range f {
		if r != nil {
			r.Notify(ctx, fb)
		}
	}
}

var (
	_ port.Feedback = (*LogFeedback)(nil)
	_ port.Feedback = Fanout(nil)
)
