package datarecording

import (
	"os"
	"strings"
	"time"
)

// ExecInfo is one property of a program execution.
type ExecInfo struct {
	Property string
	Value    string
}

// ExecRecorder writes the command line and the wall-clock span of a run into
// the exec_info table.
type ExecRecorder struct {
	tablename string
	recorder  DataRecorder
	entries   []ExecInfo
	now       func() time.Time
}

// NewExecRecorder creates the exec_info table in recorder.
func NewExecRecorder(recorder DataRecorder) *ExecRecorder {
	e := &ExecRecorder{
		tablename: ExecInfoTable,
		recorder:  recorder,
		now:       time.Now,
	}

	recorder.CreateTable(e.tablename, ExecInfo{})

	return e
}

// Start remembers the start time, the command, and the working directory.
func (e *ExecRecorder) Start() {
	e.entries = append(e.entries,
		ExecInfo{"Start Time", e.timestamp()},
		ExecInfo{"Command", strings.Join(os.Args, " ")},
	)

	if wd, err := os.Getwd(); err == nil {
		e.entries = append(e.entries, ExecInfo{"Working Directory", wd})
	}
}

// Property adds a property of the run, such as a configuration value.
func (e *ExecRecorder) Property(name, value string) {
	e.entries = append(e.entries, ExecInfo{name, value})
}

// End writes the collected entries along with the end time.
func (e *ExecRecorder) End() {
	for _, entry := range e.entries {
		e.recorder.InsertData(e.tablename, entry)
	}

	e.recorder.InsertData(e.tablename, ExecInfo{"End Time", e.timestamp()})

	e.entries = nil

	e.recorder.Flush()
}

func (e *ExecRecorder) timestamp() string {
	return e.now().Format("2006-01-02 15:04:05.000000000")
}
