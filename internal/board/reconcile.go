package board

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/taskboards/taskboards/internal/demo"
	"github.com/taskboards/taskboards/internal/notify"
	"github.com/taskboards/taskboards/internal/types"
)

// FlagPersistOrder enables writing lane order back to the backend.
const FlagPersistOrder = "persist-order"

// TaskWriter saves a single task. *api.Client satisfies it.
type TaskWriter interface {
	UpdateTask(ctx context.Context, task types.Task) error
}

// Reconciler publishes moves.
type Reconciler struct {
	coord        *demo.Coordinator
	writer       TaskWriter
	bus          *notify.Bus
	persistOrder bool
	logger       *log.Logger
}

// NewReconciler creates a reconciler. writer and bus may be nil.
func NewReconciler(coord *demo.Coordinator, writer TaskWriter, bus *notify.Bus, persistOrder bool, logger *log.Logger) *Reconciler {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Reconciler{
		coord:        coord,
		writer:       writer,
		bus:          bus,
		persistOrder: persistOrder,
		logger:       logger,
	}
}

// Reconcile applies m to tasks and returns the collection to display. In demo
// mode the result replaces the demo dataset. With order persistence on, the
// moved task and every renumbered task in its lane are written back; failures
// are reported on the bus and never change the returned collection.
func (r *Reconciler) Reconcile(ctx context.Context, tasks []types.Task, m Move) ([]types.Task, bool) {
	next, changed := Apply(tasks, m)
	if !changed {
		return tasks, false
	}

	var dirty []types.Task
	if r.persistOrder {
		next, dirty = Renumber(next, m.To)
		dirty = withMoved(dirty, next, m.TaskID)
	}

	r.logger.WithFields(log.Fields{
		"task": m.TaskID,
		"from": m.From,
		"to":   m.To,
		"at":   m.ToIndex,
	}).Debug("board.move")

	if r.coord != nil && r.coord.DemoMode() {
		if err := r.coord.SetTasks(ctx, next); err != nil {
			r.report("Demo board not saved", err)
		}
		return next, true
	}

	if len(dirty) == 0 || r.writer == nil || r.coord == nil {
		return next, true
	}
	err := r.coord.Guard(ctx, func(ctx context.Context) error {
		failed := 0
		var firstErr error
		for _, task := range dirty {
			if err := r.writer.UpdateTask(ctx, task); err != nil {
				failed++
				if firstErr == nil {
					firstErr = err
				}
			}
		}
		if failed > 0 {
			return fmt.Errorf("failed to save %d of %d tasks: %w", failed, len(dirty), firstErr)
		}
		return nil
	})
	if err != nil {
		r.report("Board order not saved", err)
	}
	return next, true
}

func (r *Reconciler) report(title string, err error) {
	r.logger.WithError(err).Warn("board.persist")
	if r.bus != nil {
		r.bus.Push(notify.Toast(notify.LevelWarning, title, err.Error()))
	}
}

// withMoved makes sure the moved task is written even when its Order did not
// change, since its lane did.
func withMoved(dirty, tasks []types.Task, id string) []types.Task {
	if types.IndexOf(dirty, id) >= 0 {
		return dirty
	}
	if i := types.IndexOf(tasks, id); i >= 0 {
		dirty = append([]types.Task{tasks[i]}, dirty...)
	}
	return dirty
}
