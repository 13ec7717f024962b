package protocol

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
)

// maxLine bounds a single request line.
const maxLine = 1024 * 1024

// Serve reads newline-delimited requests from r and writes one response
// line per non-notification request to w. It returns when r is exhausted
// or ctx is done.
func Serve(ctx context.Context, h *Handler, r io.Reader, w io.Writer, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)

	encoder := json.NewEncoder(w)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		resp, ok := h.HandleRaw(ctx, []byte(line))
		if !ok {
			continue
		}
		if resp.Error != nil {
			logger.Debug("request failed", zap.Int("code", resp.Error.Code), zap.String("message", resp.Error.Message))
		}
		if err := encoder.Encode(resp); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read request: %w", err)
	}
	return nil
}
