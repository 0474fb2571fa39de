package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"voxedit/internal/lib/logger/sl"
	"voxedit/internal/models"
)

// Client talks to the external lip-sync/TTS executor over HTTP.
type Client struct {
	log      *slog.Logger
	addr     string
	testMode bool
	http     *http.Client
}

func New(
	log *slog.Logger,
	addr string,
	timeout time.Duration,
	testMode bool,
) *Client {
	return &Client{
		log:      log,
		addr:     addr,
		testMode: testMode,
		http: &http.Client{
			Timeout: timeout,
		},
	}
}

// Synthesize submits one segment for regeneration and blocks
// until the executor responds or ctx is done.
func (c *Client) Synthesize(ctx context.Context, req models.SynthesisRequest) (models.SynthesisResult, error) {
	const op = "Client.Synthesize"

	log := c.log.With(
		slog.String("op", op),
		slog.String("jobID", req.JobID),
	)

	body, err := json.Marshal(req)
	if err != nil {
		return models.SynthesisResult{}, fmt.Errorf("%s: %w", op, err)
	}

	u := c.addr + "/generate-lipsync-from-transcript?" + url.Values{
		"test_mode": {strconv.FormatBool(c.testMode)},
	}.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return models.SynthesisResult{}, fmt.Errorf("%s: %w", op, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		log.Error("executor request failed", sl.Err(err))
		return models.SynthesisResult{}, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		log.Error("executor rejected job",
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(msg)),
		)
		return models.SynthesisResult{}, fmt.Errorf("%s: executor returned %d: %s", op, resp.StatusCode, msg)
	}

	var result models.SynthesisResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return models.SynthesisResult{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Debug("executor finished job", slog.String("output", result.OutputPath))

	return result, nil
}
