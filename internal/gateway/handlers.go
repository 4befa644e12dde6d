package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/driftwell/clauding/internal/apierr"
	"github.com/driftwell/clauding/internal/router"
	anthropicschema "github.com/driftwell/clauding/internal/schema/anthropic"
	"github.com/driftwell/clauding/internal/transport"
	"github.com/driftwell/clauding/internal/translate"
	"github.com/driftwell/clauding/internal/usage"
)

// routing is the subset of a Gateway's state a config reload replaces
// wholesale: the router, request transformer, and model catalog all
// derive from the same Config and must be swapped together so a request
// never sees a router from one config paired with a catalog from
// another.
type routing struct {
	Router       *router.ModelRouter
	RequestXF    translate.RequestTransformer
	ModelCatalog ModelCatalog
}

// Gateway binds the router, translators, backend client, and usage meter
// to the three HTTP endpoints of the Anthropic-facing surface. Backend,
// ResponseXF, Meter, and Logger are fixed at construction; Router,
// RequestXF, and ModelCatalog are reloadable via Swap.
type Gateway struct {
	ResponseXF translate.ResponseTransformer
	Backend    *transport.BackendClient
	Meter      *usage.Meter // nil when usage.track is disabled
	Logger     *slog.Logger

	routing atomic.Pointer[routing]
}

// NewGateway builds a Gateway with its initial routing state.
func NewGateway(r *router.ModelRouter, requestXF translate.RequestTransformer, responseXF translate.ResponseTransformer, backend *transport.BackendClient, meter *usage.Meter, logger *slog.Logger, catalog ModelCatalog) *Gateway {
	gw := &Gateway{ResponseXF: responseXF, Backend: backend, Meter: meter, Logger: logger}
	gw.routing.Store(&routing{Router: r, RequestXF: requestXF, ModelCatalog: catalog})
	return gw
}

// Swap atomically replaces the router, request transformer, and model
// catalog, for an in-place config reload. Requests already in flight
// keep using whatever snapshot they read at the start of ServeHTTP.
func (g *Gateway) Swap(r *router.ModelRouter, requestXF translate.RequestTransformer, catalog ModelCatalog) {
	g.routing.Store(&routing{Router: r, RequestXF: requestXF, ModelCatalog: catalog})
}

func (g *Gateway) router() *router.ModelRouter          { return g.routing.Load().Router }
func (g *Gateway) requestXF() translate.RequestTransformer { return g.routing.Load().RequestXF }
func (g *Gateway) modelCatalog() ModelCatalog           { return g.routing.Load().ModelCatalog }

func (g *Gateway) logger() *slog.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return slog.Default()
}

// MessagesHandler serves POST /v1/messages.
type MessagesHandler struct{ GW *Gateway }

func (h MessagesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := uuid.NewString()
	start := time.Now()

	var req anthropicschema.MessagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(ctx, w, apierr.New(apierr.InvalidRequest, "malformed request body: "+err.Error()))
		return
	}
	if len(req.Messages) == 0 {
		writeAPIError(ctx, w, apierr.New(apierr.InvalidRequest, "messages must not be empty"))
		return
	}

	route, err := h.GW.router().Resolve(req.Model)
	if err != nil {
		var mce *router.MissingCredentialError
		if errors.As(err, &mce) {
			writeAPIError(ctx, w, apierr.New(apierr.AuthenticationError, err.Error()))
			return
		}
		writeAPIError(ctx, w, apierr.New(apierr.InvalidRequest, err.Error()))
		return
	}

	outReq, extraBody, err := h.GW.requestXF().Transform(req, route)
	if err != nil {
		writeAPIError(ctx, w, asAPIError(err, route.ModelID))
		return
	}
	body, err := translate.MarshalBackendBody(outReq, extraBody)
	if err != nil {
		writeAPIError(ctx, w, apierr.New(apierr.InvalidRequest, err.Error()))
		return
	}

	rec := newRecordSkeleton(requestID, req, route)

	if req.Stream {
		h.serveStreaming(ctx, w, req, route, body, rec, start)
		return
	}
	h.serveUnary(ctx, w, req.Model, route, body, rec, start)
}

// asAPIError converts a backend or internal error into the gateway's
// client-facing error shape. When the error resolves to a not_found
// kind, modelID (the resolved upstream model, if known at the call
// site) is appended so the client can see which upstream id the
// backend rejected.
func asAPIError(err error, modelID string) *apierr.Error {
	var ae *apierr.Error
	if !errors.As(err, &ae) {
		ae = apierr.New(apierr.InvalidRequest, err.Error())
	}
	if ae.Kind == apierr.NotFound && modelID != "" {
		ae = &apierr.Error{Kind: ae.Kind, Code: ae.Code, Message: ae.Message + " (resolved model_id: " + modelID + ")"}
	}
	return ae
}

func (h MessagesHandler) serveUnary(ctx context.Context, w http.ResponseWriter, clientModel string, route router.TierRoute, body []byte, rec usage.Record, start time.Time) {
	chat, err := h.GW.Backend.Do(ctx, route.EndpointURL, body, route.APIKey)
	if err != nil {
		h.finishRecord(rec, start, "error", err.Error(), 0, 0)
		writeAPIError(ctx, w, asAPIError(err, route.ModelID))
		return
	}

	resp, err := h.GW.ResponseXF.TransformUnary(chat, clientModel, route.ReasoningPolicy)
	if err != nil {
		h.finishRecord(rec, start, "error", err.Error(), 0, 0)
		writeAPIError(ctx, w, apierr.New(apierr.BackendError, err.Error()))
		return
	}

	h.finishRecord(rec, start, "ok", "", resp.Usage.InputTokens, resp.Usage.OutputTokens)
	writeJSON(ctx, w, resp, http.StatusOK)
}

func (h MessagesHandler) serveStreaming(ctx context.Context, w http.ResponseWriter, req anthropicschema.MessagesRequest, route router.TierRoute, body []byte, rec usage.Record, start time.Time) {
	stream, err := h.GW.Backend.Stream(ctx, route.EndpointURL, body, route.APIKey)
	if err != nil {
		h.finishRecord(rec, start, "error", err.Error(), 0, 0)
		writeAPIError(ctx, w, asAPIError(err, route.ModelID))
		return
	}
	defer stream.Close()

	sse, err := NewSSEWriter(w)
	if err != nil {
		h.finishRecord(rec, start, "error", err.Error(), 0, 0)
		writeAPIError(ctx, w, apierr.New(apierr.BackendError, err.Error()))
		return
	}

	state := translate.NewStreamState(req.Model, route.ReasoningPolicy)
	xf := translate.StreamTransformer{}
	eventsSent := false

	for {
		chunk, err := stream.Next(ctx)
		if err != nil {
			if errors.Is(err, transport.ErrStreamDone) {
				break
			}
			if ctx.Err() != nil {
				h.finishRecord(rec, start, "ok", "client_cancel", state.UsageInputTokens(), state.UsageOutputTokens())
				return
			}
			h.emitMidStreamError(ctx, sse, eventsSent, err, route.ModelID)
			h.finishRecord(rec, start, "error", err.Error(), state.UsageInputTokens(), state.UsageOutputTokens())
			return
		}
		for _, ev := range xf.ProcessChunk(state, chunk) {
			if writeErr := sse.WriteEvent(ev); writeErr != nil {
				h.GW.logger().ErrorContext(ctx, "failed to write sse event", "error", writeErr)
				return
			}
			eventsSent = true
		}
	}

	for _, ev := range xf.Finish(state) {
		if writeErr := sse.WriteEvent(ev); writeErr != nil {
			h.GW.logger().ErrorContext(ctx, "failed to write sse event", "error", writeErr)
			break
		}
	}

	h.finishRecord(rec, start, "ok", "", state.UsageInputTokens(), state.UsageOutputTokens())
}

// emitMidStreamError implements the streaming propagation policy: once the
// HTTP 200 and SSE headers are already on the wire, a backend failure can
// only be surfaced as an error event followed by message_stop, never as a
// rewritten status line — true whether or not a prior event has actually
// reached the client.
func (h MessagesHandler) emitMidStreamError(ctx context.Context, sse *SSEWriter, eventsSent bool, err error, modelID string) {
	ae := asAPIError(err, modelID)
	_ = sse.WriteEvent(anthropicschema.StreamErrorEvent{
		Type: anthropicschema.EventError,
		Error: anthropicschema.StreamErrorBody{Type: string(ae.Kind), Message: ae.Message},
	})
	_ = sse.WriteEvent(anthropicschema.MessageStopEvent{Type: anthropicschema.EventMessageStop})
	h.GW.logger().ErrorContext(ctx, "stream error", "error", err)
}

func newRecordSkeleton(requestID string, req anthropicschema.MessagesRequest, route router.TierRoute) usage.Record {
	hasSystem := len(req.System) > 0
	hasTools := len(req.Tools) > 0
	hasImages, hasToolBlocks, jsonText := scanMessages(req.Messages)
	hasJSON, jsonBytes := usage.DetectJSON(jsonText, hasToolBlocks)

	return usage.Record{
		RequestID:      requestID,
		TS:             time.Now().UnixMilli(),
		ModelRequested: req.Model,
		ModelRouted:    route.ModelID,
		Endpoint:       route.EndpointURL,
		Tier:           string(route.Tier),
		Stream:         req.Stream,
		MessageCount:   len(req.Messages),
		HasSystem:      hasSystem,
		HasTools:       hasTools,
		HasImages:      hasImages,
		HasJSONContent: hasJSON,
		JSONBytes:      jsonBytes,
	}
}

func scanMessages(messages []anthropicschema.Message) (hasImages, hasToolBlocks bool, text string) {
	for _, m := range messages {
		if s, ok := m.IsPlainString(); ok {
			text += s
			continue
		}
		blocks, err := m.Blocks()
		if err != nil {
			continue
		}
		for _, b := range blocks {
			switch v := b.(type) {
			case anthropicschema.TextBlock:
				text += v.Text
			case anthropicschema.ImageBlock:
				hasImages = true
			case anthropicschema.ToolUseBlock, anthropicschema.ToolResultBlock:
				hasToolBlocks = true
			}
		}
	}
	return hasImages, hasToolBlocks, text
}

func (h MessagesHandler) finishRecord(rec usage.Record, start time.Time, status, errMsg string, inputTokens, outputTokens int) {
	if h.GW.Meter == nil {
		return
	}
	duration := time.Since(start)
	rec.Status = status
	rec.ErrorMessage = errMsg
	rec.InputTokens = inputTokens
	rec.OutputTokens = outputTokens
	rec.TotalTokens = inputTokens + outputTokens
	rec.DurationMS = duration.Milliseconds()
	if duration > 0 {
		rec.TokensPerSecond = float64(outputTokens) / duration.Seconds()
	}
	rec.EstimatedCostUSD = usage.EstimateCost(rec.ModelRouted, inputTokens, outputTokens)
	h.GW.Meter.Log(rec)
}
