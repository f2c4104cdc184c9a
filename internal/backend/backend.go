package backend

import (
	"context"
	"fmt"
	"sync"

	xerrors "github.com/danielpatrickdp/agency-engine/internal/errors"
)

// #region action

// Action is the already-validated unit of work handed to an execution
// backend. Authorization, sandboxing, and snapshotting have all happened
// by the time a backend sees one.
type Action struct {
	ID         string
	ActionType string
	Resource   string
	Parameters map[string]string
}

// Result is what a backend reports back.
type Result struct {
	Output string
}

// #endregion action

// #region execution-backend

// ExecutionBackend performs the actual side effect of an action.
// Preview must compute the would-be outcome without mutating anything.
type ExecutionBackend interface {
	Execute(ctx context.Context, action Action) (Result, error)
	Preview(ctx context.Context, action Action) (Result, error)
}

// #endregion execution-backend

// #region file-backend

// FileBackend executes file-flavored actions against a ResourceStore:
// file_write, file_delete, draft_message, calendar_write.
type FileBackend struct {
	resources ResourceStore
}

// NewFileBackend wraps a resource store.
func NewFileBackend(resources ResourceStore) *FileBackend {
	return &FileBackend{resources: resources}
}

func (b *FileBackend) Execute(ctx context.Context, action Action) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	switch action.ActionType {
	case "file_write", "draft_message", "calendar_write":
		content := action.Parameters["content"]
		if err := b.resources.Write(action.Resource, []byte(content)); err != nil {
			return Result{}, xerrors.Wrap(xerrors.CodeExecutionFailure, "write resource", err)
		}
		return Result{Output: fmt.Sprintf("wrote %d bytes to %s", len(content), action.Resource)}, nil
	case "file_delete":
		if err := b.resources.Delete(action.Resource); err != nil {
			return Result{}, xerrors.Wrap(xerrors.CodeExecutionFailure, "delete resource", err)
		}
		return Result{Output: fmt.Sprintf("deleted %s", action.Resource)}, nil
	case "read_resource":
		data, err := b.resources.Read(action.Resource)
		if err != nil {
			return Result{}, xerrors.Wrap(xerrors.CodeExecutionFailure, "read resource", err)
		}
		return Result{Output: string(data)}, nil
	}
	return Result{}, xerrors.Newf(xerrors.CodeExecutionFailure, "file backend cannot execute %q", action.ActionType)
}

func (b *FileBackend) Preview(ctx context.Context, action Action) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	switch action.ActionType {
	case "file_write", "draft_message", "calendar_write":
		return Result{Output: fmt.Sprintf("would write %d bytes to %s", len(action.Parameters["content"]), action.Resource)}, nil
	case "file_delete":
		return Result{Output: fmt.Sprintf("would delete %s", action.Resource)}, nil
	case "read_resource":
		return b.Execute(ctx, action)
	}
	return Result{}, xerrors.Newf(xerrors.CodeExecutionFailure, "file backend cannot preview %q", action.ActionType)
}

// #endregion file-backend

// #region scripted-backend

// ScriptedBackend is a deterministic backend for tests and replay: it
// executes against a memory resource store and fails on demand.
type ScriptedBackend struct {
	inner *FileBackend

	mu               sync.Mutex
	failures         map[string]error // action ID -> injected execution error
	resourceFailures map[string]error // resource -> injected execution error
	delay            func()           // optional hook invoked inside Execute
}

// NewScriptedBackend wraps a resource store in a scriptable backend.
func NewScriptedBackend(resources ResourceStore) *ScriptedBackend {
	return &ScriptedBackend{
		inner:            NewFileBackend(resources),
		failures:         make(map[string]error),
		resourceFailures: make(map[string]error),
	}
}

// FailAction makes Execute and Preview fail for the given action ID.
func (b *ScriptedBackend) FailAction(actionID string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[actionID] = err
}

// FailResource makes Execute and Preview fail for any action touching the
// resource. Useful when the action ID is assigned by the caller.
func (b *ScriptedBackend) FailResource(resource string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resourceFailures[resource] = err
}

// SetDelay installs a hook that runs inside every Execute call, before the
// side effect. Used to hold an execution open in concurrency tests.
func (b *ScriptedBackend) SetDelay(hook func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.delay = hook
}

func (b *ScriptedBackend) Execute(ctx context.Context, action Action) (Result, error) {
	b.mu.Lock()
	injected := b.failures[action.ID]
	if injected == nil {
		injected = b.resourceFailures[action.Resource]
	}
	hook := b.delay
	b.mu.Unlock()

	if hook != nil {
		hook()
	}
	if injected != nil {
		return Result{}, injected
	}
	return b.inner.Execute(ctx, action)
}

func (b *ScriptedBackend) Preview(ctx context.Context, action Action) (Result, error) {
	b.mu.Lock()
	injected := b.failures[action.ID]
	if injected == nil {
		injected = b.resourceFailures[action.Resource]
	}
	b.mu.Unlock()

	if injected != nil {
		return Result{}, injected
	}
	return b.inner.Preview(ctx, action)
}

// #endregion scripted-backend
