package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"notepush.app/notepush/common/logger"
	"notepush.app/notepush/internal/clock"
	"notepush.app/notepush/internal/github"
	"notepush.app/notepush/internal/line"
	"notepush.app/notepush/internal/notes"
)

// AppendResult is what every delivery resolves to. Store failures never
// escalate past this struct: the webhook sender needs its acknowledgement
// whether or not the append landed.
type AppendResult struct {
	OK            bool   `json:"ok"`
	AppendedCount int    `json:"appended"`
	Path          string `json:"path"`
	ErrorDetail   string `json:"detail,omitempty"`
}

type AppendService interface {
	Append(ctx context.Context, msgs []line.Message) AppendResult
}

// RetryPolicy bounds the optimistic-concurrency retry loop. Backoff maps a
// 1-based attempt number to the wait before the next attempt; Sleep is
// injectable so tests don't wait on the wall clock.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
	Sleep       func(time.Duration)
}

// DefaultRetryPolicy waits 150ms, then 300ms, between its 3 attempts.
// Linear on purpose: the expected conflict is one concurrent delivery, and
// a single short re-fetch almost always resolves it.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff: func(attempt int) time.Duration {
			return time.Duration(attempt) * 150 * time.Millisecond
		},
		Sleep: time.Sleep,
	}
}

type appendService struct {
	store        github.NoteStore
	clk          clock.Clock
	pathTemplate string
	retry        RetryPolicy
	logger       *slog.Logger
}

func NewAppendService(store github.NoteStore, clk clock.Clock, pathTemplate string, retry RetryPolicy, log *slog.Logger) AppendService {
	if log == nil {
		log = slog.Default()
	}
	return &appendService{
		store:        store,
		clk:          clk,
		pathTemplate: pathTemplate,
		retry:        retry,
		logger:       log,
	}
}

// Append writes msgs as timestamped lines to today's note. It fetches the
// current document, merges the new block, and writes back with the fetched
// SHA as precondition; on conflict it re-fetches and tries again within the
// retry budget. The SHA is single-use per write, so every attempt starts
// from a fresh fetch.
func (s *appendService) Append(ctx context.Context, msgs []line.Message) AppendResult {
	parts := clock.PartsAt(s.clk.Now())
	path := notes.ResolvePath(s.pathTemplate, parts)
	block := notes.FormatBlock(msgs, parts)

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		NotePath:   logger.Ptr(path),
		EventCount: logger.Ptr(len(msgs)),
		Component:  "notepush.service.append",
	})

	if len(msgs) == 0 {
		return AppendResult{OK: true, AppendedCount: 0, Path: path}
	}

	commitMessage := "note: " + parts.ISODate + " " + parts.Hour2 + ":" + parts.Minute2

	var lastErr error
	for attempt := 1; attempt <= s.retry.MaxAttempts; attempt++ {
		err := s.tryAppend(ctx, path, block, parts, commitMessage)
		if err == nil {
			s.logger.InfoContext(ctx, "note appended",
				"attempt", attempt,
				"messages", len(msgs),
			)
			return AppendResult{OK: true, AppendedCount: len(msgs), Path: path}
		}
		lastErr = err

		if !isConflict(err) || attempt == s.retry.MaxAttempts {
			break
		}

		wait := s.retry.Backoff(attempt)
		s.logger.WarnContext(ctx, "write conflict, retrying",
			"attempt", attempt,
			"backoff", wait,
		)
		s.retry.Sleep(wait)
	}

	s.logger.ErrorContext(ctx, "append failed",
		"error", logger.Truncate(lastErr.Error(), 500),
	)
	return AppendResult{
		OK:          false,
		Path:        path,
		ErrorDetail: lastErr.Error(),
	}
}

// tryAppend is one fetch-merge-write round.
func (s *appendService) tryAppend(ctx context.Context, path, block string, parts clock.TimeParts, commitMessage string) error {
	doc, err := s.store.Fetch(ctx, path)
	if err != nil {
		return err
	}

	var content, sha string
	if doc.Exists {
		content = notes.AppendBlock(doc.Content, block)
		sha = doc.SHA
	} else {
		// Fresh day: header line, then the block. No SHA means create.
		content = notes.Header(parts) + block
	}

	return s.store.Write(ctx, path, content, sha, commitMessage)
}

func isConflict(err error) bool {
	var apiErr *github.APIError
	return errors.As(err, &apiErr) && apiErr.IsConflict()
}
