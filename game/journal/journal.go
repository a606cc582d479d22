package journal

import (
	"errors"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/wricardo/gridtactics/game/service"
)

// ObserverName is the name journal observers subscribe under.
const ObserverName = "journal"

// Journal owns the sinks of one process run.
type Journal struct {
	run    string
	jsonl  *JSONLZstdWriter
	index  *SQLiteIndex
	logger *zap.Logger
}

// Open creates a journal. An empty dir disables the JSONL files and an
// empty dbPath disables the SQLite index.
func Open(dir, dbPath string, logger *zap.Logger) (*Journal, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	j := &Journal{run: NewRunID(), logger: logger}
	if dir != "" {
		j.jsonl = NewJSONLZstdWriter(filepath.Join(dir, "events"), "events")
	}
	if dbPath != "" {
		idx, err := OpenSQLite(dbPath)
		if err != nil {
			return nil, err
		}
		j.index = idx
	}
	logger.Info("journal opened",
		zap.String("run", j.run),
		zap.String("dir", dir),
		zap.String("index", dbPath),
	)
	return j, nil
}

// Run returns the run identifier stamped on every record.
func (j *Journal) Run() string {
	return j.run
}

// Index returns the SQLite index, or nil.
func (j *Journal) Index() *SQLiteIndex {
	return j.index
}

func (j *Journal) sinks() []Sink {
	var out []Sink
	if j.jsonl != nil {
		out = append(out, j.jsonl)
	}
	if j.index != nil {
		out = append(out, j.index)
	}
	return out
}

// Attach subscribes a journal observer to the session's dispatcher. It has
// the shape of a session manager hook.
func (j *Journal) Attach(s *service.Session) {
	sinks := j.sinks()
	if len(sinks) == 0 {
		return
	}
	s.Dispatcher.Subscribe(ObserverName, NewObserver(j.run, s.ID, j.logger, sinks...))
}

func (j *Journal) Close() error {
	var errs []error
	if j.jsonl != nil {
		errs = append(errs, j.jsonl.Close())
	}
	if j.index != nil {
		st := j.index.Stats()
		if st.DropEventTotal+st.DropFailTotal+st.DropUndoTotal > 0 || st.WriteErrTotal > 0 {
			j.logger.Warn("journal index lost records",
				zap.Uint64("dropped_events", st.DropEventTotal),
				zap.Uint64("dropped_failures", st.DropFailTotal),
				zap.Uint64("dropped_undos", st.DropUndoTotal),
				zap.Uint64("write_errors", st.WriteErrTotal),
			)
		}
		errs = append(errs, j.index.Close())
	}
	return errors.Join(errs...)
}
