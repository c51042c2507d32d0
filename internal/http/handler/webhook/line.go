package webhook

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"notepush.app/notepush/common/id"
	"notepush.app/notepush/common/logger"
	"notepush.app/notepush/internal/line"
	"notepush.app/notepush/internal/service"
)

// ServiceName is what the health payload reports.
const ServiceName = "note-push"

// maxBodySize caps webhook bodies at 1MiB. LINE deliveries are far smaller.
const maxBodySize = 1 << 20

type LineWebhookHandler struct {
	channelSecret string
	appender      service.AppendService
}

func NewLineWebhookHandler(channelSecret string, appender service.AppendService) *LineWebhookHandler {
	return &LineWebhookHandler{
		channelSecret: channelSecret,
		appender:      appender,
	}
}

// Health answers LINE's endpoint verification and anything else that GETs
// the webhook URL.
func (h *LineWebhookHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "name": ServiceName})
}

// HandleEvents processes one webhook delivery. The status code only encodes
// problems with the delivery itself: 401 for a bad signature, 400 for
// unparseable JSON. Downstream store failures still return 200 with
// ok:false in the body, so LINE does not redeliver on our transient errors.
func (h *LineWebhookHandler) HandleEvents(c *gin.Context) {
	ctx := c.Request.Context()

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodySize))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "failed to read request body"})
		return
	}

	// Verify over the raw bytes before any parsing.
	signature := c.GetHeader(line.SignatureHeader)
	if !line.VerifySignature(body, signature, h.channelSecret) {
		slog.WarnContext(ctx, "webhook signature rejected",
			"signature_present", signature != "",
		)
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "invalid signature"})
		return
	}

	var payload line.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		slog.WarnContext(ctx, "webhook payload unparseable", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid payload"})
		return
	}

	deliveryID := id.New()
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		DeliveryID: logger.Ptr(deliveryID),
		Component:  "notepush.http.webhook",
	})

	msgs := line.ExtractMessages(payload)
	slog.InfoContext(ctx, "webhook delivery received",
		"events", len(payload.Events),
		"text_messages", len(msgs),
	)

	result := h.appender.Append(ctx, msgs)
	if !result.OK {
		slog.ErrorContext(ctx, "append did not land",
			"path", result.Path,
			"detail", logger.Truncate(result.ErrorDetail, 500),
		)
	}

	c.JSON(http.StatusOK, result)
}
