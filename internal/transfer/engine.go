// Copyright (c) 2026 Ferryman Team
// Ferryman - SSH terminal client with an encrypted connection vault
// This source code is licensed under the MIT license found in the LICENSE file.

package transfer

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/ferryman-ssh/ferryman/internal/model"
	"github.com/ferryman-ssh/ferryman/internal/sshx"
)

const (
	// DefaultChunkSize is the buffered copy unit; cancellation takes effect
	// within one chunk write.
	DefaultChunkSize = 32 * 1024
	// DefaultProgressInterval bounds how often progress events are emitted.
	DefaultProgressInterval = 250 * time.Millisecond

	eventBufferSize = 256
)

// SessionGateway lends out a session's SFTP channel for the duration of one
// job. The session manager implements it; BeginTransfer fails while the
// session is busy, and EndTransfer must be called exactly once per
// successful BeginTransfer.
type SessionGateway interface {
	BeginTransfer(sessionID string) (sshx.SftpChannel, error)
	EndTransfer(sessionID string)
}

// Engine runs transfer jobs. One job per session at a time; jobs on
// different sessions run in parallel.
type Engine struct {
	gateway          SessionGateway
	localFs          afero.Fs
	log              *zap.Logger
	chunkSize        int
	progressInterval time.Duration

	mu     sync.Mutex
	active map[string]*Job // keyed by session id

	events chan Event
}

// Options tunes engine behavior; zero values select the defaults.
type Options struct {
	ChunkSize        int
	ProgressInterval time.Duration
}

// NewEngine builds an engine over the gateway and the local filesystem.
func NewEngine(gateway SessionGateway, localFs afero.Fs, log *zap.Logger, opts Options) *Engine {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = DefaultProgressInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		gateway:          gateway,
		localFs:          localFs,
		log:              log,
		chunkSize:        opts.ChunkSize,
		progressInterval: opts.ProgressInterval,
		active:           make(map[string]*Job),
		events:           make(chan Event, eventBufferSize),
	}
}

// Events returns the progress and outcome stream. Sends never block the
// engine: progress events are dropped when the consumer lags, outcomes are
// delivered asynchronously if needed.
func (e *Engine) Events() <-chan Event { return e.events }

// Start launches a job for the confirmed spec. It returns once the job is
// registered and running; completion arrives on the event stream. A second
// job on the same session fails with ErrSessionBusy.
func (e *Engine) Start(spec JobSpec) (*Job, error) {
	job := &Job{
		ID:        model.NewRecordID(),
		SessionID: spec.SessionID,
		Direction: spec.Direction,
		Source:    spec.SourcePath,
		TargetDir: spec.TargetDir,
		cancelled: make(chan struct{}),
		done:      make(chan struct{}),
	}

	e.mu.Lock()
	if e.active[spec.SessionID] != nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: session %s", ErrSessionBusy, spec.SessionID)
	}
	e.active[spec.SessionID] = job
	e.mu.Unlock()

	sftp, err := e.gateway.BeginTransfer(spec.SessionID)
	if err != nil {
		e.unregister(job)
		close(job.done)
		return nil, fmt.Errorf("borrow sftp channel: %w", err)
	}

	var src, dst Side
	local := LocalSide(e.localFs)
	if spec.Direction == DirectionUpload {
		src, dst = local, sftp
	} else {
		src, dst = sftp, local
	}

	e.log.Info("transfer started",
		zap.String("job_id", job.ID),
		zap.String("session_id", job.SessionID),
		zap.String("direction", job.Direction.String()),
		zap.String("source", job.Source),
		zap.String("target_dir", job.TargetDir),
	)
	go e.run(job, src, dst)
	return job, nil
}

// ActiveJob returns the running job on a session, or nil.
func (e *Engine) ActiveJob(sessionID string) *Job {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active[sessionID]
}

// Cancel requests cancellation of a running job by id. Unknown ids are
// ignored; the job may already have finished.
func (e *Engine) Cancel(jobID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, job := range e.active {
		if job.ID == jobID {
			job.Cancel()
			return
		}
	}
}

// CancelForSession cancels the session's running job, if any, and waits for
// it to reach a terminal outcome. The session manager calls this before
// tearing a session down.
func (e *Engine) CancelForSession(sessionID string) {
	e.mu.Lock()
	job := e.active[sessionID]
	e.mu.Unlock()
	if job == nil {
		return
	}
	job.Cancel()
	<-job.Done()
}

// item is one entry of the enumerated source tree, in creation order:
// every directory precedes its contents.
type item struct {
	src   string
	dst   string
	size  int64
	isDir bool
}

// run executes the job and publishes its outcome. The channel goes back to
// the gateway before Done is observable, so a waiter that saw the job end
// can immediately start the next one.
func (e *Engine) run(job *Job, src, dst Side) {
	outcome, cause := e.execute(job, src, dst)
	e.gateway.EndTransfer(job.SessionID)
	e.finish(job, outcome, cause)
}

func (e *Engine) execute(job *Job, src, dst Side) (Outcome, error) {
	items, total, err := enumerate(src, job.Source, job.TargetDir)
	if err != nil {
		return OutcomeFailed, classify(err)
	}
	job.mu.Lock()
	job.totalBytes = total
	job.mu.Unlock()

	lastEmit := time.Time{}
	for _, it := range items {
		if job.cancelRequested() {
			return OutcomeCancelled, nil
		}
		if it.isDir {
			if err := dst.Mkdir(it.dst); err != nil {
				return OutcomeFailed, classify(err)
			}
			continue
		}
		if err := e.copyFile(job, src, dst, it, &lastEmit); err != nil {
			if errors.Is(err, ErrCancelled) {
				return OutcomeCancelled, nil
			}
			return OutcomeFailed, classify(err)
		}
	}
	return OutcomeCompleted, nil
}

// copyFile streams one file in chunks, checking the cancellation flag
// between chunks and crediting bytesDone as chunks land.
func (e *Engine) copyFile(job *Job, src, dst Side, it item, lastEmit *time.Time) error {
	in, err := src.Open(it.src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := dst.Create(it.dst)
	if err != nil {
		return err
	}

	buf := make([]byte, e.chunkSize)
	for {
		if job.cancelRequested() {
			_ = out.Close()
			return ErrCancelled
		}
		n, readErr := in.Read(buf)
		if n > 0 {
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				_ = out.Close()
				return fmt.Errorf("write %s: %w", it.dst, writeErr)
			}
			job.mu.Lock()
			job.bytesDone += int64(n)
			job.mu.Unlock()
			e.maybeEmitProgress(job, it.src, lastEmit)
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			_ = out.Close()
			return fmt.Errorf("read %s: %w", it.src, readErr)
		}
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", it.dst, err)
	}
	return nil
}

// maybeEmitProgress coalesces progress to at most one event per interval.
func (e *Engine) maybeEmitProgress(job *Job, currentFile string, lastEmit *time.Time) {
	now := time.Now()
	if now.Sub(*lastEmit) < e.progressInterval {
		return
	}
	*lastEmit = now

	done, total := job.Progress()
	ev := Progress{
		JobID:       job.ID,
		SessionID:   job.SessionID,
		BytesDone:   done,
		TotalBytes:  total,
		CurrentFile: currentFile,
	}
	select {
	case e.events <- ev:
	default:
		// Consumer is lagging; the next interval carries fresher numbers.
	}
}

// finish records the outcome, emits Finished and removes the job from the
// active set. It runs exactly once per job.
func (e *Engine) finish(job *Job, outcome Outcome, cause error) {
	job.mu.Lock()
	job.outcome = outcome
	job.finished = true
	job.err = cause
	done := job.bytesDone
	job.mu.Unlock()

	e.unregister(job)
	close(job.done)

	switch outcome {
	case OutcomeFailed:
		e.log.Warn("transfer failed",
			zap.String("job_id", job.ID),
			zap.String("session_id", job.SessionID),
			zap.Error(cause),
		)
	default:
		e.log.Info("transfer finished",
			zap.String("job_id", job.ID),
			zap.String("session_id", job.SessionID),
			zap.String("outcome", outcome.String()),
			zap.Int64("bytes", done),
		)
	}

	ev := Finished{
		JobID:     job.ID,
		SessionID: job.SessionID,
		Outcome:   outcome,
		BytesDone: done,
		Err:       cause,
	}
	select {
	case e.events <- ev:
	default:
		// Outcomes must not be lost; hand off without blocking the worker.
		go func() { e.events <- ev }()
	}
}

func (e *Engine) unregister(job *Job) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active[job.SessionID] == job {
		delete(e.active, job.SessionID)
	}
}

// enumerate walks the source tree and plans the target layout. A file
// source yields a single item; a directory source is mirrored under
// targetDir/<basename> with directories listed before their contents, so
// empty directories survive the transfer.
func enumerate(src Side, source, targetDir string) ([]item, int64, error) {
	root, err := src.Stat(source)
	if err != nil {
		return nil, 0, err
	}
	if !root.IsDir {
		it := item{src: source, dst: path.Join(targetDir, path.Base(source)), size: root.Size}
		return []item{it}, root.Size, nil
	}

	var items []item
	var total int64
	dstRoot := path.Join(targetDir, path.Base(source))
	items = append(items, item{src: source, dst: dstRoot, isDir: true})

	var walk func(srcDir, dstDir string) error
	walk = func(srcDir, dstDir string) error {
		entries, err := src.List(srcDir)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			srcPath := path.Join(srcDir, entry.Name)
			dstPath := path.Join(dstDir, entry.Name)
			if entry.IsDir {
				items = append(items, item{src: srcPath, dst: dstPath, isDir: true})
				if err := walk(srcPath, dstPath); err != nil {
					return err
				}
				continue
			}
			items = append(items, item{src: srcPath, dst: dstPath, size: entry.Size})
			total += entry.Size
		}
		return nil
	}
	if err := walk(source, dstRoot); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// classify maps raw I/O failures onto the transfer error taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrPermission) || strings.Contains(err.Error(), "permission denied") {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	return err
}
