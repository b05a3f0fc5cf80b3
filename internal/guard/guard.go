// Package guard gates every destructive filesystem operation behind a
// safety.Policy. A policy rejection is returned as an Outcome, never as an
// error; errors are reserved for filesystem conditions.
package guard

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"fsguard/internal/cleanup"
	"fsguard/internal/database"
	"fsguard/internal/fsops"
	"fsguard/internal/metrics"
	"fsguard/internal/safety"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Rejection reasons added on top of the policy reasons.
const (
	ReasonRecursiveRequiresConfirmation safety.Reason = "recursive-requires-confirmation"
	ReasonNotEmpty                      safety.Reason = "not-empty"
	ReasonDestinationExists             safety.Reason = "destination-exists"
)

// Operation names, used in outcomes, audit records and metrics.
const (
	OpDeleteFile      = "delete_file"
	OpDeleteDirectory = "delete_directory"
	OpMove            = "move"
	OpOrganize        = "organize"
	OpCleanup         = "cleanup"
)

var (
	ErrNotFound                = errors.New("not found")
	ErrNotAFile                = errors.New("not a file")
	ErrNotADirectory           = errors.New("not a directory")
	ErrDestinationExists       = errors.New("destination exists")
	ErrDestinationInsideSource = errors.New("destination is inside source")
	ErrPermission              = errors.New("permission denied")
)

// PolicyProvider supplies the policy in force for a call.
type PolicyProvider interface {
	Policy() (*safety.Policy, error)
}

// PolicyFunc adapts a function to PolicyProvider.
type PolicyFunc func() (*safety.Policy, error)

func (f PolicyFunc) Policy() (*safety.Policy, error) { return f() }

// Static always provides p.
func Static(p *safety.Policy) PolicyProvider {
	return PolicyFunc(func() (*safety.Policy, error) { return p, nil })
}

// Recorder persists audit events.
type Recorder interface {
	RecordOperation(ctx context.Context, op database.Operation) error
}

// Kind is the type of entity in a preview.
type Kind string

const (
	KindFile      Kind = "file"
	KindDirectory Kind = "directory"
)

// PreviewItem describes one entity an operation would touch.
type PreviewItem struct {
	Path string `json:"path"`
	Kind Kind   `json:"kind"`
	Size *int64 `json:"size,omitempty"`
}

// Move is one planned or completed relocation.
type Move struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// SkipItem is an entry an operation left alone.
type SkipItem struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Outcome is the result of a guarded operation, whether it was rejected,
// previewed or carried out.
type Outcome struct {
	ID                string          `json:"id"`
	Operation         string          `json:"operation"`
	Path              string          `json:"path"`
	Destination       string          `json:"destination,omitempty"`
	Rejected          bool            `json:"rejected"`
	Reason            safety.Reason   `json:"reason,omitempty"`
	Detail            string          `json:"detail,omitempty"`
	Checks            safety.Checks   `json:"checks"`
	DestinationChecks *safety.Checks  `json:"destination_checks,omitempty"`
	Previewed         bool            `json:"previewed,omitempty"`
	Preview           []PreviewItem   `json:"preview,omitempty"`
	Removed           []string        `json:"removed,omitempty"`
	Moved             []Move          `json:"moved,omitempty"`
	Skipped           []SkipItem      `json:"skipped,omitempty"`
	Cleanup           *cleanup.Result `json:"cleanup,omitempty"`
	BytesFreed        int64           `json:"bytes_freed,omitempty"`
}

// Err returns the rejection as an error wrapping the policy sentinel, or
// nil when the operation was not rejected.
func (o *Outcome) Err() error {
	if !o.Rejected {
		return nil
	}
	return &safety.RejectionError{Reason: o.Reason, Detail: o.Detail}
}

// Guard runs guarded operations
type Guard struct {
	policies PolicyProvider
	fs       fsops.FS
	cleaner  *cleanup.Cleaner
	recorder Recorder
	logger   zerolog.Logger
}

// Option configures a Guard
type Option func(*Guard)

// WithFS routes every mutation through f.
func WithFS(f fsops.FS) Option {
	return func(g *Guard) { g.fs = f }
}

// WithRecorder records every operation to r.
func WithRecorder(r Recorder) Option {
	return func(g *Guard) { g.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(g *Guard) { g.logger = l }
}

// New creates a Guard. Mutations go to the real filesystem unless WithFS
// is given.
func New(policies PolicyProvider, opts ...Option) *Guard {
	g := &Guard{
		policies: policies,
		fs:       fsops.OS{},
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.cleaner = cleanup.New(g.fs, g.logger)
	return g
}

func (g *Guard) policy() (*safety.Policy, error) {
	p, err := g.policies.Policy()
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}
	return p, nil
}

// Validate evaluates path against the current policy without touching the
// filesystem.
func (g *Guard) Validate(path string) (safety.Result, error) {
	p, err := g.policy()
	if err != nil {
		return safety.Result{}, err
	}
	return p.ValidateDeletion(path), nil
}

// call tracks one operation from start to its recorded result.
type call struct {
	g     *Guard
	ctx   context.Context
	start time.Time
	out   *Outcome
}

func (g *Guard) begin(ctx context.Context, op, path string) *call {
	return &call{
		g:     g,
		ctx:   ctx,
		start: time.Now(),
		out:   &Outcome{ID: uuid.NewString(), Operation: op, Path: path},
	}
}

func (c *call) record(op database.Operation) {
	if c.g.recorder == nil {
		return
	}
	op.OperationID = c.out.ID
	op.Operation = c.out.Operation
	if err := c.g.recorder.RecordOperation(c.ctx, op); err != nil {
		c.g.logger.Error().Err(err).Str("operation_id", c.out.ID).Msg("failed to record operation")
		metrics.RecordError()
	}
}

// reject finishes the call as a rejection.
func (c *call) reject(reason safety.Reason, detail, objectType string) (*Outcome, error) {
	c.out.Rejected = true
	c.out.Reason = reason
	c.out.Detail = detail

	c.g.logger.Warn().
		Str("operation", c.out.Operation).
		Str("path", c.out.Path).
		Str("reason", string(reason)).
		Msg(detail)
	c.record(database.Operation{
		Action:      database.ActionReject,
		Path:        c.out.Path,
		Destination: c.out.Destination,
		ObjectType:  objectType,
		Reason:      string(reason),
		Detail:      detail,
	})
	metrics.RecordRejection(string(reason))
	metrics.RecordOperation(c.out.Operation, metrics.OutcomeRejected, time.Since(c.start))
	return c.out, nil
}

// rejectResult finishes the call with a policy rejection.
func (c *call) rejectResult(res safety.Result, objectType string) (*Outcome, error) {
	return c.reject(res.Reason, res.Detail, objectType)
}

// fail finishes the call with an operational error.
func (c *call) fail(err error, objectType string) (*Outcome, error) {
	c.g.logger.Error().Err(err).Str("operation", c.out.Operation).Str("path", c.out.Path).Msg("operation failed")
	c.record(database.Operation{
		Action:       database.ActionError,
		Path:         c.out.Path,
		Destination:  c.out.Destination,
		ObjectType:   objectType,
		ErrorMessage: err.Error(),
	})
	metrics.RecordError()
	metrics.RecordOperation(c.out.Operation, metrics.OutcomeError, time.Since(c.start))
	return nil, err
}

// preview finishes the call as a non-mutating preview.
func (c *call) preview(items []PreviewItem, objectType string) (*Outcome, error) {
	c.out.Previewed = true
	c.out.Preview = items
	c.record(database.Operation{
		Action:      database.ActionPreview,
		Path:        c.out.Path,
		Destination: c.out.Destination,
		ObjectType:  objectType,
		Detail:      fmt.Sprintf("%d items", len(items)),
	})
	metrics.RecordOperation(c.out.Operation, metrics.OutcomePreview, time.Since(c.start))
	return c.out, nil
}

// done finishes a call that mutated the filesystem.
func (c *call) done() (*Outcome, error) {
	c.g.logger.Info().
		Str("operation", c.out.Operation).
		Str("operation_id", c.out.ID).
		Str("path", c.out.Path).
		Int("removed", len(c.out.Removed)).
		Int("moved", len(c.out.Moved)).
		Int("skipped", len(c.out.Skipped)).
		Int64("bytes_freed", c.out.BytesFreed).
		Msg("operation complete")
	metrics.RecordOperation(c.out.Operation, metrics.OutcomeSuccess, time.Since(c.start))
	return c.out, nil
}

// runCleanup walks from start toward boundary, refusing to remove any
// directory the policy would not allow deleting, and records what it did.
func (c *call) runCleanup(p *safety.Policy, start, boundary string) cleanup.Result {
	res := c.g.cleaner.CleanupChecked(start, boundary, vetoFor(p))
	c.recordCleanup(res)
	return res
}

func (c *call) recordCleanup(res cleanup.Result) {
	for _, dir := range res.Removed {
		c.record(database.Operation{
			Action:     database.ActionCleanup,
			Path:       dir,
			ObjectType: string(KindDirectory),
		})
	}
}

func vetoFor(p *safety.Policy) cleanup.Veto {
	return func(dir string) string {
		if res := p.ValidateDeletion(dir); !res.Safe {
			return string(res.Reason)
		}
		return ""
	}
}

// classify maps a filesystem error onto the package sentinels.
func classify(err error, path string) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %s", ErrPermission, path)
	default:
		return fmt.Errorf("%s: %w", path, err)
	}
}

func sizePtr(n int64) *int64 {
	return &n
}
