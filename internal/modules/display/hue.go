package display

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aristath/trailstop/internal/domain"
	"github.com/rs/zerolog"
)

var _ domain.PerformanceIndicator = (*HueLights)(nil)

// HueLights colours Philips Hue lights after portfolio performance
// through the bridge's REST API
type HueLights struct {
	log        zerolog.Logger
	scale      *ColorScale
	httpClient *http.Client
	bridgeURL  string
	user       string

	mu       sync.Mutex
	lightIDs []string
	lastHue  *int
}

// NewHueLights creates a light controller. bridge is a host or URL; with no
// lightIDs every light known to the bridge is used.
func NewHueLights(bridge, user string, lightIDs []string, scale *ColorScale, log zerolog.Logger) *HueLights {
	if !strings.HasPrefix(bridge, "http://") && !strings.HasPrefix(bridge, "https://") {
		bridge = "http://" + bridge
	}
	return &HueLights{
		log:        log.With().Str("component", "hue_lights").Logger(),
		scale:      scale,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		bridgeURL:  strings.TrimRight(bridge, "/"),
		user:       user,
		lightIDs:   append([]string(nil), lightIDs...),
	}
}

// hueError is one error entry of a bridge response
type hueError struct {
	Type        int    `json:"type"`
	Address     string `json:"address"`
	Description string `json:"description"`
}

func (e hueError) Error() string {
	return fmt.Sprintf("hue error %d at %s: %s", e.Type, e.Address, e.Description)
}

// SetPerformance implements domain.PerformanceIndicator.
// Failures on single lights are logged and do not fail the call.
func (h *HueLights) SetPerformance(ctx context.Context, current, baseline float64) error {
	performance := Performance(current, baseline)
	hue := h.scale.Hue(performance)

	h.log.Info().
		Float64("performance_pct", performance*100).
		Int("hue", hue).
		Msg("Current performance")

	ids, err := h.lights(ctx)
	if err != nil {
		return err
	}

	failed := 0
	for _, id := range ids {
		if err := h.setHue(ctx, id, hue); err != nil {
			failed++
			h.log.Warn().Err(err).Str("light_id", id).Msg("Failed to set light colour")
		}
	}

	if failed > 0 && failed == len(ids) {
		return fmt.Errorf("failed to update all %d lights", failed)
	}

	h.mu.Lock()
	h.lastHue = &hue
	h.mu.Unlock()
	return nil
}

// LastHue returns the last hue pushed to the lights
func (h *HueLights) LastHue() (int, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.lastHue == nil {
		return 0, false
	}
	return *h.lastHue, true
}

// lights returns the configured light IDs, asking the bridge once when none were given
func (h *HueLights) lights(ctx context.Context) ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.lightIDs) > 0 {
		return h.lightIDs, nil
	}

	raw, err := h.do(ctx, http.MethodGet, "/lights", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list lights: %w", err)
	}
	// The bridge reports failures as an array even where an object is expected
	if err := bridgeError(raw); err != nil {
		return nil, fmt.Errorf("failed to list lights: %w", err)
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(raw, &all); err != nil {
		return nil, fmt.Errorf("failed to decode lights: %w", err)
	}

	ids := make([]string, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	h.lightIDs = ids
	h.log.Info().Strs("light_ids", ids).Msg("Discovered lights")
	return ids, nil
}

func (h *HueLights) setHue(ctx context.Context, id string, hue int) error {
	raw, err := h.do(ctx, http.MethodPut, "/lights/"+id+"/state", map[string]int{"hue": hue})
	if err != nil {
		return err
	}
	return bridgeError(raw)
}

// bridgeError returns the first error entry of an array response
func bridgeError(raw []byte) error {
	if !bytes.HasPrefix(bytes.TrimSpace(raw), []byte("[")) {
		return nil
	}

	var entries []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return fmt.Errorf("failed to decode bridge response: %w", err)
	}
	for _, entry := range entries {
		payload, ok := entry["error"]
		if !ok {
			continue
		}
		var e hueError
		if err := json.Unmarshal(payload, &e); err != nil {
			return fmt.Errorf("failed to decode bridge error: %w", err)
		}
		return e
	}
	return nil
}

func (h *HueLights) do(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	url := fmt.Sprintf("%s/api/%s%s", h.bridgeURL, h.user, path)

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal JSON: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		h.log.Debug().Err(err).Str("url", url).Msg("Bridge request failed (bridge may be offline)")
		return nil, fmt.Errorf("bridge request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("bridge returned error status: %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return raw, nil
}
