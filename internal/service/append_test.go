package service_test

import (
	"context"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"notepush.app/notepush/internal/clock"
	"notepush.app/notepush/internal/github"
	"notepush.app/notepush/internal/line"
	"notepush.app/notepush/internal/service"
)

// fakeStore scripts per-attempt outcomes for the retry loop.
type fakeStore struct {
	doc        github.Document
	fetchErr   error
	writeErrs  []error // consumed one per Write call
	fetchCalls int
	writes     []writeCall
}

type writeCall struct {
	path    string
	content string
	sha     string
	message string
}

func (f *fakeStore) Fetch(ctx context.Context, path string) (github.Document, error) {
	f.fetchCalls++
	if f.fetchErr != nil {
		return github.Document{}, f.fetchErr
	}
	return f.doc, nil
}

func (f *fakeStore) Write(ctx context.Context, path, content, sha, message string) error {
	f.writes = append(f.writes, writeCall{path: path, content: content, sha: sha, message: message})
	if len(f.writeErrs) == 0 {
		return nil
	}
	err := f.writeErrs[0]
	f.writeErrs = f.writeErrs[1:]
	return err
}

var _ = Describe("AppendService", func() {
	var (
		store  *fakeStore
		sleeps []time.Duration
		svc    service.AppendService
	)

	// 2026-01-02 14:03 in Asia/Tokyo.
	instant := time.Date(2026, 1, 2, 5, 3, 9, 0, time.UTC)
	conflict := &github.APIError{StatusCode: http.StatusConflict, Body: "stale sha"}

	newService := func() service.AppendService {
		retry := service.RetryPolicy{
			MaxAttempts: 3,
			Backoff: func(attempt int) time.Duration {
				return time.Duration(attempt) * 150 * time.Millisecond
			},
			Sleep: func(d time.Duration) { sleeps = append(sleeps, d) },
		}
		return service.NewAppendService(store, clock.Fixed(instant), "daily/{date}.md", retry, nil)
	}

	BeforeEach(func() {
		store = &fakeStore{}
		sleeps = nil
		svc = newService()
	})

	It("creates the note with a date header when it does not exist", func() {
		store.doc = github.Document{Exists: false}

		result := svc.Append(context.Background(), []line.Message{{Text: "hello", SenderID: "U1"}})

		Expect(result.OK).To(BeTrue())
		Expect(result.AppendedCount).To(Equal(1))
		Expect(result.Path).To(Equal("daily/2026-01-02.md"))

		Expect(store.writes).To(HaveLen(1))
		Expect(store.writes[0].sha).To(BeEmpty())
		Expect(store.writes[0].content).To(Equal("# 2026-01-02\n- 14:03 hello\n"))
	})

	It("appends to an existing note using the fetched version token", func() {
		store.doc = github.Document{
			Exists:  true,
			SHA:     "abc123",
			Content: "# 2026-01-02\n- 09:00 old\n",
		}

		result := svc.Append(context.Background(), []line.Message{
			{Text: "hello", SenderID: "U1"},
			{Text: "world", SenderID: "U2"},
		})

		Expect(result.OK).To(BeTrue())
		Expect(result.AppendedCount).To(Equal(2))

		Expect(store.writes).To(HaveLen(1))
		Expect(store.writes[0].sha).To(Equal("abc123"))
		Expect(store.writes[0].content).To(Equal("# 2026-01-02\n- 09:00 old\n- 14:03 hello\n- 14:03 world\n"))
	})

	It("re-fetches and retries on conflict with increasing backoff", func() {
		store.doc = github.Document{Exists: true, SHA: "abc123", Content: "# 2026-01-02\n"}
		store.writeErrs = []error{conflict, conflict}

		result := svc.Append(context.Background(), []line.Message{{Text: "hi", SenderID: "U1"}})

		Expect(result.OK).To(BeTrue())
		Expect(store.fetchCalls).To(Equal(3))
		Expect(store.writes).To(HaveLen(3))
		Expect(sleeps).To(Equal([]time.Duration{150 * time.Millisecond, 300 * time.Millisecond}))
	})

	It("fails with detail after exhausting all attempts on conflict", func() {
		store.doc = github.Document{Exists: true, SHA: "abc123", Content: "# 2026-01-02\n"}
		store.writeErrs = []error{conflict, conflict, conflict}

		result := svc.Append(context.Background(), []line.Message{{Text: "hi", SenderID: "U1"}})

		Expect(result.OK).To(BeFalse())
		Expect(result.ErrorDetail).To(ContainSubstring("stale sha"))
		Expect(store.writes).To(HaveLen(3))
		Expect(sleeps).To(HaveLen(2))
	})

	It("does not retry non-conflict store errors", func() {
		store.doc = github.Document{Exists: true, SHA: "abc123", Content: "# 2026-01-02\n"}
		store.writeErrs = []error{&github.APIError{StatusCode: http.StatusForbidden, Body: "rate limited"}}

		result := svc.Append(context.Background(), []line.Message{{Text: "hi", SenderID: "U1"}})

		Expect(result.OK).To(BeFalse())
		Expect(result.ErrorDetail).To(ContainSubstring("rate limited"))
		Expect(store.writes).To(HaveLen(1))
		Expect(sleeps).To(BeEmpty())
	})

	It("reports fetch failures without writing", func() {
		store.fetchErr = &github.APIError{StatusCode: http.StatusBadGateway, Body: "upstream down"}

		result := svc.Append(context.Background(), []line.Message{{Text: "hi", SenderID: "U1"}})

		Expect(result.OK).To(BeFalse())
		Expect(result.ErrorDetail).To(ContainSubstring("upstream down"))
		Expect(store.writes).To(BeEmpty())
	})

	It("treats zero messages as a successful no-op", func() {
		result := svc.Append(context.Background(), nil)

		Expect(result.OK).To(BeTrue())
		Expect(result.AppendedCount).To(Equal(0))
		Expect(result.Path).To(Equal("daily/2026-01-02.md"))
		Expect(store.fetchCalls).To(BeZero())
	})
})
