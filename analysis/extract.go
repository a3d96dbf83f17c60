package analysis

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/Lokesh-Sai-Tamiri/wyra-vertex/utils"
	"github.com/Lokesh-Sai-Tamiri/wyra-vertex/utils/logging"
)

var errNotObject = errors.New("json value is not an object")

var errTrailingData = errors.New("unexpected data after top-level json value")

// decodeObject keeps numbers as json.Number so integer fields survive schema
// validation and re-encoding unchanged.
func decodeObject(text string) (map[string]interface{}, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var value interface{}
	if err := dec.Decode(&value); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errTrailingData
	}
	obj, ok := value.(map[string]interface{})
	if !ok {
		return nil, errNotObject
	}
	return obj, nil
}

// fencedBlock returns the text between the first occurrence of open and the
// next ``` after it.
func fencedBlock(raw, open string) (string, bool) {
	_, rest, found := strings.Cut(raw, open)
	if !found {
		return "", false
	}
	block, _, _ := strings.Cut(rest, "```")
	return strings.TrimSpace(block), true
}

// ExtractJSON parses the model output as a JSON object. Output wrapped in a
// ```json fence, or failing that any ``` fence, is accepted as well.
func ExtractJSON(raw string) (map[string]interface{}, error) {
	obj, err := decodeObject(raw)
	if err == nil {
		slog.Debug("parsed model response directly", "code", logging.ANALYSIS)
		return obj, nil
	}
	slog.Warn("failed to parse model response directly", "error", err, "code", logging.ANALYSIS)

	if block, ok := fencedBlock(raw, "```json"); ok {
		obj, err := decodeObject(block)
		if err == nil {
			slog.Info("extracted json from ```json code block", "code", logging.ANALYSIS)
			return obj, nil
		}
		slog.Warn("failed to extract from ```json block", "error", err, "code", logging.ANALYSIS)
	}

	if block, ok := fencedBlock(raw, "```"); ok {
		obj, err := decodeObject(block)
		if err == nil {
			slog.Info("extracted json from ``` code block", "code", logging.ANALYSIS)
			return obj, nil
		}
		slog.Warn("failed to extract from ``` block", "error", err, "code", logging.ANALYSIS)
	}

	slog.Error("could not extract valid json", "response_length", len(raw), "code", logging.ANALYSIS)
	return nil, &jsonError{preview: utils.Preview(raw, 200)}
}
