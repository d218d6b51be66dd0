package engine

// StreamKind tags stream text in an out-of-band record.
type StreamKind int

const (
	// StreamNone marks a record that carries no stream text.
	StreamNone StreamKind = iota
	// StreamConsole is debugger console output.
	StreamConsole
	// StreamTarget is output produced by the debugged program.
	StreamTarget
	// StreamLog is the engine's own log/diagnostic output.
	StreamLog
)

// String returns a string representation of the stream kind.
func (k StreamKind) String() string {
	switch k {
	case StreamNone:
		return "none"
	case StreamConsole:
		return "console"
	case StreamTarget:
		return "target"
	case StreamLog:
		return "log"
	default:
		return "unknown"
	}
}

// OutOfBandRecord is an asynchronous record inside an Output batch. It is
// either stream text or an execution notification.
type OutOfBandRecord struct {
	Stream StreamKind
	Text   string

	// Execution notification fields.
	Stopped          bool
	Running          bool
	Reason           StopReason
	Frame            *Frame
	ThreadID         int
	BreakpointNumber int
}

// IsStopped reports whether the record is a stop notification.
func (r OutOfBandRecord) IsStopped() bool {
	return r.Stopped
}

// HasFrame reports whether the record carries frame data.
func (r OutOfBandRecord) HasFrame() bool {
	return r.Frame != nil
}

// ResultClass is the completion status of a command.
type ResultClass int

const (
	// ResultUnknown is the zero value.
	ResultUnknown ResultClass = iota
	// ResultDone means the command completed.
	ResultDone
	// ResultRunning means the command started the target.
	ResultRunning
	// ResultConnected means the engine connected to a target.
	ResultConnected
	// ResultError means the command failed.
	ResultError
	// ResultExit means the engine is exiting.
	ResultExit
)

// String returns a string representation of the result class.
func (c ResultClass) String() string {
	switch c {
	case ResultDone:
		return "done"
	case ResultRunning:
		return "running"
	case ResultConnected:
		return "connected"
	case ResultError:
		return "error"
	case ResultExit:
		return "exit"
	default:
		return "unknown"
	}
}

// ResultRecord reports completion of the command that produced a batch.
type ResultRecord struct {
	Class   ResultClass
	Cookie  string
	Message string
}

// Command identifies the request that triggered a batch.
type Command struct {
	Name   string
	Cookie string
}

// Output is one parsed batch of engine output.
type Output struct {
	Command   Command
	OutOfBand []OutOfBandRecord
	Result    *ResultRecord
}

// HasOutOfBand reports whether the batch has any out-of-band records.
func (o Output) HasOutOfBand() bool {
	return len(o.OutOfBand) > 0
}

// HasResult reports whether the batch has a result record.
func (o Output) HasResult() bool {
	return o.Result != nil
}
