package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPClient calls a remote predictor over its /predict endpoint.
type HTTPClient struct {
	base   string
	client *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		base:   strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client: &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) Predict(ctx context.Context, payload map[string]any) (Response, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Response{}, fmt.Errorf("predictor: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/predict", bytes.NewReader(b))
	if err != nil {
		return Response{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("predictor request error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		var out Response
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return Response{}, fmt.Errorf("predictor decode error: %w", err)
		}
		return out, nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	var e ErrorResponse
	if err := json.Unmarshal(raw, &e); err != nil || e.Error == "" {
		return Response{}, fmt.Errorf("predictor status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	switch resp.StatusCode {
	case http.StatusBadRequest:
		return Response{}, &ValidationError{Err: errors.New(e.Error)}
	case http.StatusServiceUnavailable:
		return Response{}, ErrServiceUnavailable
	case http.StatusInternalServerError:
		if rest, ok := strings.CutPrefix(e.Error, calculationPrefix); ok {
			return Response{}, &CalculationError{Err: errors.New(rest)}
		}
		return Response{}, &PredictionError{Stage: "remote", Err: errors.New(e.Error)}
	default:
		return Response{}, fmt.Errorf("predictor status %d: %s", resp.StatusCode, e.Error)
	}
}
