package types

import (
	"fmt"
	"time"
)

// FetchError wraps a per-source network, timeout, or extraction failure.
// It is recorded in the run result and never aborts the remaining sources;
// the failed source's prior fingerprint and snapshots are left untouched.
type FetchError struct {
	SourceID string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.SourceID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ConfigError reports a reference to an unknown source or consult id. It
// aborts only the operation for that entity.
type ConfigError struct {
	Kind string // "source" or "consult"
	ID   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s %q not found in configuration", e.Kind, e.ID)
}

// StageTimeoutError reports a whole pipeline stage exceeding its wall-clock
// budget. Dependent stages in the same run are skipped; state persisted by
// earlier stages stands.
type StageTimeoutError struct {
	Stage  string
	Budget time.Duration
}

func (e *StageTimeoutError) Error() string {
	return fmt.Sprintf("%s stage exceeded %s budget", e.Stage, e.Budget)
}

// PublishError reports a commit/push failure. It downgrades the run to a
// warning and never flips overall success to false.
type PublishError struct {
	Err error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish: %v", e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// ArtifactWriteError reports a filesystem failure while patching or exporting
// a consult. It is fatal only to that single candidate's disposition.
type ArtifactWriteError struct {
	ConsultID string
	Err       error
}

func (e *ArtifactWriteError) Error() string {
	return fmt.Sprintf("write consult %s: %v", e.ConsultID, e.Err)
}

func (e *ArtifactWriteError) Unwrap() error { return e.Err }
