package webhook_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"notepush.app/notepush/common/id"
	"notepush.app/notepush/internal/http/handler/webhook"
	"notepush.app/notepush/internal/line"
	"notepush.app/notepush/internal/service"
)

const channelSecret = "test-channel-secret"

type fakeAppender struct {
	received []line.Message
	result   service.AppendResult
}

func (f *fakeAppender) Append(ctx context.Context, msgs []line.Message) service.AppendResult {
	f.received = msgs
	result := f.result
	result.AppendedCount = len(msgs)
	return result
}

var _ = Describe("LineWebhookHandler", func() {
	var (
		router   *gin.Engine
		appender *fakeAppender
		buf      *bytes.Buffer
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		Expect(id.Init(1)).To(Succeed())

		router = gin.New()
		buf = &bytes.Buffer{}
		slog.SetDefault(slog.New(slog.NewJSONHandler(buf, nil)))

		appender = &fakeAppender{
			result: service.AppendResult{OK: true, Path: "daily/2026-01-02.md"},
		}
		h := webhook.NewLineWebhookHandler(channelSecret, appender)
		router.GET("/webhook", h.Health)
		router.POST("/webhook", h.HandleEvents)
	})

	post := func(body []byte, signature string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if signature != "" {
			req.Header.Set("X-Line-Signature", signature)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	textPayload := func(texts ...string) []byte {
		events := make([]map[string]any, 0, len(texts))
		for _, text := range texts {
			events = append(events, map[string]any{
				"type":    "message",
				"message": map[string]any{"type": "text", "text": text},
				"source":  map[string]any{"userId": "U1"},
			})
		}
		payload, err := json.Marshal(map[string]any{"events": events})
		Expect(err).NotTo(HaveOccurred())
		return payload
	}

	It("answers health checks regardless of body", func() {
		req := httptest.NewRequest(http.MethodGet, "/webhook", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(MatchJSON(`{"ok":true,"name":"note-push"}`))
	})

	It("accepts a signed delivery and reports the append result", func() {
		body := textPayload("hello", "world")
		w := post(body, line.Sign(body, channelSecret))

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(appender.received).To(HaveLen(2))

		var result service.AppendResult
		Expect(json.Unmarshal(w.Body.Bytes(), &result)).To(Succeed())
		Expect(result.OK).To(BeTrue())
		Expect(result.AppendedCount).To(Equal(2))
		Expect(result.Path).To(Equal("daily/2026-01-02.md"))

		Expect(buf.String()).To(ContainSubstring("webhook delivery received"))
	})

	It("rejects a missing signature with 401", func() {
		w := post(textPayload("hello"), "")

		Expect(w.Code).To(Equal(http.StatusUnauthorized))
		Expect(appender.received).To(BeNil())
	})

	It("rejects a wrong signature with 401", func() {
		body := textPayload("hello")
		w := post(body, line.Sign(body, "other-secret"))

		Expect(w.Code).To(Equal(http.StatusUnauthorized))
		Expect(w.Body.String()).To(ContainSubstring("invalid signature"))
		Expect(appender.received).To(BeNil())
	})

	It("rejects unparseable JSON with 400 after the signature passes", func() {
		body := []byte("{not json")
		w := post(body, line.Sign(body, channelSecret))

		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(appender.received).To(BeNil())
	})

	It("treats a delivery with no text messages as a 200 no-op", func() {
		body := []byte(`{"events":[{"type":"message","message":{"type":"image"},"source":{"userId":"U1"}}]}`)
		w := post(body, line.Sign(body, channelSecret))

		Expect(w.Code).To(Equal(http.StatusOK))

		var result service.AppendResult
		Expect(json.Unmarshal(w.Body.Bytes(), &result)).To(Succeed())
		Expect(result.OK).To(BeTrue())
		Expect(result.AppendedCount).To(BeZero())
	})

	It("keeps the 200 status when the append fails downstream", func() {
		appender.result = service.AppendResult{
			OK:          false,
			Path:        "daily/2026-01-02.md",
			ErrorDetail: "github api: status 409: stale sha",
		}

		body := textPayload("hello")
		w := post(body, line.Sign(body, channelSecret))

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring(`"ok":false`))
		Expect(w.Body.String()).To(ContainSubstring("409"))
		Expect(buf.String()).To(ContainSubstring("append did not land"))
	})
})
