package transport

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/agentstation/edimap/pkg/constants"
	"github.com/agentstation/edimap/pkg/errors"
	"github.com/agentstation/edimap/pkg/logging"
)

// DecodeResponse decodes a JSON response into the target structure.
// Non-2xx responses become an *errors.APIError carrying a truncated body.
func DecodeResponse(resp *http.Response, target any) error {
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logging.Warn().Err(err).Msg("Failed to close response body")
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.WrapIO("read", "response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &errors.APIError{
			Backend:    "unknown",
			StatusCode: resp.StatusCode,
			Message:    errors.Truncate(string(body), constants.SampleLength),
		}
	}

	if target == nil {
		return nil
	}
	if err := json.Unmarshal(body, target); err != nil {
		return errors.WrapParse("json", "response", err)
	}

	return nil
}
