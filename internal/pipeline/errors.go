package pipeline

import (
	"errors"
	"fmt"

	"github.com/qivr/analytics-etl/internal/domain"
)

var (
	// ErrConnection is fatal to a run: nothing can be extracted.
	ErrConnection = errors.New("connection failure")
	ErrExtract    = errors.New("extraction failure")
	ErrEncode     = errors.New("encode failure")
	ErrPublish    = errors.New("publish failure")
)

type Stage string

const (
	StageConnect Stage = "connect"
	StageExtract Stage = "extract"
	StageEncode  Stage = "encode"
	StagePublish Stage = "publish"
)

func (s Stage) sentinel() error {
	switch s {
	case StageConnect:
		return ErrConnection
	case StageExtract:
		return ErrExtract
	case StageEncode:
		return ErrEncode
	case StagePublish:
		return ErrPublish
	}
	return nil
}

// StageError records where in a run an error happened. It matches the
// stage's sentinel with errors.Is as well as the underlying cause.
type StageError struct {
	Domain domain.Domain
	Stage  Stage
	Err    error
}

func (e *StageError) Error() string {
	if e.Domain == "" {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Domain, e.Stage, e.Err)
}

func (e *StageError) Unwrap() []error {
	if s := e.Stage.sentinel(); s != nil {
		return []error{s, e.Err}
	}
	return []error{e.Err}
}
