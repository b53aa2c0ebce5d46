package app

import (
	"context"
	"time"

	"animsched/internal/eventbus"
	"animsched/internal/history"
	"animsched/internal/storage"
	logx "animsched/pkg/logx"
)

const recorderFlushTimeout = time.Second

// startRecorder persists history.recorded events off the dispatch path.
func (a *App) startRecorder() {
	if a.store == nil {
		return
	}
	events, unsub := a.bus.Subscribe(512)
	log := a.log.With(logx.String("comp", "recorder"))

	a.sup.Go0("history.recorder", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				// Flush what is already queued.
				fctx, cancel := context.WithTimeout(context.Background(), recorderFlushTimeout)
				defer cancel()
				for {
					select {
					case e, ok := <-events:
						if !ok {
							return
						}
						a.persist(fctx, log, e)
					default:
						return
					}
				}
			case e, ok := <-events:
				if !ok {
					return
				}
				a.persist(c, log, e)
			}
		}
	})
}

func (a *App) persist(ctx context.Context, log logx.Logger, e eventbus.Event) {
	if e.Type != eventbus.TypeHistoryRecorded {
		return
	}
	sum, ok := e.Data.(history.Summary)
	if !ok {
		return
	}
	if err := a.store.AppendInstruction(ctx, toRecord(sum)); err != nil {
		log.Warn("persist instruction failed", logx.String("id", sum.ID), logx.Err(err))
	}
}

func toRecord(s history.Summary) storage.InstructionRecord {
	return storage.InstructionRecord{
		ID:                 s.ID,
		Name:               s.Name,
		RecordedAt:         s.RecordedAt,
		CycleOffsets:       s.CycleOffsets,
		InstructionOffsets: s.InstructionOffsets,
	}
}
