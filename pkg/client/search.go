package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	http "github.com/bogdanfinn/fhttp"
	"github.com/diogo/perplexity-web-api-go/internal/metrics"
	"github.com/diogo/perplexity-web-api-go/pkg/models"
	"go.uber.org/zap"
)

// SearchStream submits a query and returns its live event stream.
//
// Validation happens before any network call: attached files need
// credentials and the model must be legal for the mode. Files are then
// uploaded one by one; an upload failure aborts the query.
func (c *Client) SearchStream(ctx context.Context, req models.SearchRequest) (*Stream, error) {
	if len(req.Files) > 0 && !c.transport.HasCredentials() {
		return nil, ErrFileUploadRequiresAuth
	}
	if _, err := models.ResolveModel(req.Mode, req.Model); err != nil {
		return nil, err
	}

	uploaded := make([]string, 0, len(req.Files))
	for _, file := range req.Files {
		url, err := c.Upload(ctx, file)
		if err != nil {
			c.countFailure(req.Mode)
			return nil, fmt.Errorf("upload %s: %w", file.Filename, err)
		}
		uploaded = append(uploaded, url)
	}

	payload, err := buildAskPayload(req, uploaded)
	if err != nil {
		return nil, err
	}

	c.log.Debug("submitting query",
		zap.String("mode", string(req.Mode)),
		zap.String("model_preference", payload.Params.ModelPreference),
		zap.Int("attachments", len(payload.Params.Attachments)),
		zap.Bool("follow_up", payload.Params.LastBackendUUID != ""),
		zap.String("frontend_uuid", payload.Params.FrontendUUID),
	)

	resp, cancel, err := c.openQuery(ctx, payload)
	if err != nil {
		c.countFailure(req.Mode)
		return nil, err
	}

	return newStream(resp.Body, cancel, req.Mode, c.log), nil
}

// Search submits a query and drains its stream. The last event wins, even
// when it carries less than an earlier one.
func (c *Client) Search(ctx context.Context, req models.SearchRequest) (*models.SearchResponse, error) {
	stream, err := c.SearchStream(ctx, req)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var last *models.SearchEvent
	for event, err := range stream.All() {
		if err != nil {
			return nil, err
		}
		last = event
	}

	if last == nil {
		return nil, ErrUnexpectedEndOfStream
	}
	return ResponseFromEvent(last)
}

// ResponseFromEvent builds the final response from the last event of a
// stream.
func ResponseFromEvent(event *models.SearchEvent) (*models.SearchResponse, error) {
	raw, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event: %w", err)
	}

	return &models.SearchResponse{
		Answer:     event.Answer,
		WebResults: event.WebResults,
		FollowUp:   event.FollowUp(),
		Raw:        raw,
	}, nil
}

// openQuery posts the ask payload. The query timeout only bounds the wait
// for response headers; the body is bounded by ctx alone. The returned
// cancel func releases the request.
func (c *Client) openQuery(ctx context.Context, payload models.AskPayload) (*http.Response, context.CancelFunc, error) {
	limit := c.timeouts.Query
	start := time.Now()

	streamCtx, cancel := context.WithCancel(ctx)
	timer := time.AfterFunc(limit, cancel)

	resp, err := c.transport.PostJSON(streamCtx, searchPath, payload)
	stopped := timer.Stop()
	if err == nil {
		if err = checkStatus(LegQuery, resp); err != nil {
			resp.Body.Close()
		}
	}
	if err == nil && !stopped {
		// headers arrived as the timer fired; the context is already gone
		resp.Body.Close()
		err = context.DeadlineExceeded
	}

	if err != nil {
		cancel()
		var statusErr *StatusError
		switch {
		case errors.As(err, &statusErr):
		case !stopped && ctx.Err() == nil:
			err = &TimeoutError{Leg: LegQuery, Duration: limit}
		default:
			err = &LegError{Leg: LegQuery, Err: err}
		}
		metrics.ObserveLeg(string(LegQuery), start, err)
		c.log.Debug("request leg failed", zap.String("leg", string(LegQuery)), zap.Error(err))
		return nil, nil, err
	}

	metrics.ObserveLeg(string(LegQuery), start, nil)
	return resp, cancel, nil
}

func (c *Client) countFailure(mode models.Mode) {
	metrics.RequestsTotal.WithLabelValues(string(mode), "error").Inc()
}
