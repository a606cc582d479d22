package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/wricardo/gridtactics/game/engine"
)

// DefaultQueueSize is the SQLite index request buffer.
const DefaultQueueSize = 4096

// SQLiteIndex stores records in a queryable database. Writes are queued
// and applied by a single goroutine; records are dropped when the queue is
// full. The JSONL journal stays the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan Record
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropEvent atomic.Uint64
	dropFail  atomic.Uint64
	dropUndo  atomic.Uint64
	writeErrs atomic.Uint64
}

// IndexStats reports queue health.
type IndexStats struct {
	QueueDepth     int
	QueueCapacity  int
	DropEventTotal uint64
	DropFailTotal  uint64
	DropUndoTotal  uint64
	WriteErrTotal  uint64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	return OpenSQLiteWithQueue(path, DefaultQueueSize)
}

func OpenSQLiteWithQueue(path string, queue int) (*SQLiteIndex, error) {
	if path == "" {
		return nil, errors.New("empty db path")
	}
	if queue <= 0 {
		queue = DefaultQueueSize
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan Record, queue),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS events (
			run TEXT NOT NULL,
			session TEXT NOT NULL,
			seq INTEGER NOT NULL,
			team TEXT NOT NULL,
			turn INTEGER NOT NULL,
			kind TEXT NOT NULL,
			change_json TEXT NOT NULL,
			at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_session_seq ON events(session, seq);`,
		`CREATE TABLE IF NOT EXISTS failures (
			run TEXT NOT NULL,
			session TEXT NOT NULL,
			turn INTEGER NOT NULL,
			command TEXT NOT NULL,
			error TEXT NOT NULL,
			at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_failures_session ON failures(session, at);`,
		`CREATE TABLE IF NOT EXISTS undos (
			run TEXT NOT NULL,
			session TEXT NOT NULL,
			seq INTEGER NOT NULL,
			team TEXT NOT NULL,
			turn INTEGER NOT NULL,
			at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_undos_session_seq ON undos(session, seq);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Close drains the queue and closes the database.
func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		if s.db != nil {
			err = s.db.Close()
		}
	})
	return err
}

// WriteRecord queues r. It never blocks.
func (s *SQLiteIndex) WriteRecord(r Record) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- r:
	default:
		switch r.Kind {
		case KindEvent:
			s.dropEvent.Add(1)
		case KindFail:
			s.dropFail.Add(1)
		case KindUndo:
			s.dropUndo.Add(1)
		}
	}
	return nil
}

func (s *SQLiteIndex) Stats() IndexStats {
	if s == nil {
		return IndexStats{}
	}
	return IndexStats{
		QueueDepth:     len(s.ch),
		QueueCapacity:  cap(s.ch),
		DropEventTotal: s.dropEvent.Load(),
		DropFailTotal:  s.dropFail.Load(),
		DropUndoTotal:  s.dropUndo.Load(),
		WriteErrTotal:  s.writeErrs.Load(),
	}
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertEvent, err1 := s.db.PrepareContext(ctx, `INSERT INTO events(run,session,seq,team,turn,kind,change_json,at) VALUES(?,?,?,?,?,?,?,?)`)
	insertFail, err2 := s.db.PrepareContext(ctx, `INSERT INTO failures(run,session,turn,command,error,at) VALUES(?,?,?,?,?,?)`)
	insertUndo, err3 := s.db.PrepareContext(ctx, `INSERT INTO undos(run,session,seq,team,turn,at) VALUES(?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertEvent, insertFail, insertUndo} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()
	if err := errors.Join(err1, err2, err3); err != nil {
		// Keep draining so writers never block on a broken index.
		for range s.ch {
			s.writeErrs.Add(1)
		}
		return
	}

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 256
		commitMaxWait = time.Second
	)
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.writeErrs.Add(1)
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		if tx == nil {
			txx, err := s.db.BeginTx(ctx, nil)
			if err != nil {
				s.writeErrs.Add(1)
				continue
			}
			tx = txx
		}
		if err := s.insert(tx, r, insertEvent, insertFail, insertUndo); err != nil {
			s.writeErrs.Add(1)
		} else {
			opCount++
		}
		// Commit when idle so readers see records promptly.
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait || len(s.ch) == 0 {
			commit()
		}
	}
	commit()
}

func (s *SQLiteIndex) insert(tx *sql.Tx, r Record, event, fail, undo *sql.Stmt) error {
	at := r.At.UTC().Format(time.RFC3339Nano)
	switch r.Kind {
	case KindEvent:
		change, err := engine.DecodeChange(r.Change)
		if err != nil {
			return err
		}
		_, err = tx.Stmt(event).Exec(r.Run, r.Session, int64(r.Seq), r.Team, int64(r.Turn), string(change.Kind()), string(r.Change), at)
		return err
	case KindFail:
		_, err := tx.Stmt(fail).Exec(r.Run, r.Session, int64(r.Turn), r.Command, r.Error, at)
		return err
	case KindUndo:
		_, err := tx.Stmt(undo).Exec(r.Run, r.Session, int64(r.Seq), r.Team, int64(r.Turn), at)
		return err
	}
	return fmt.Errorf("unknown record kind %q", r.Kind)
}
