package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	evaluation "github.com/okian/consortium/internal/domain/evaluation"
	"gopkg.in/yaml.v3"
)

// readRequest decodes an evaluation request from a YAML or JSON file.
// "-" reads stdin.
func readRequest(path string, stdin io.Reader) (evaluation.Request, error) {
	var req evaluation.Request
	var raw []byte
	var err error
	if path == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return req, fmt.Errorf("read input: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&req); err != nil {
		return req, fmt.Errorf("decode input %s: %w", path, err)
	}
	if len(req.Members) == 0 {
		return req, fmt.Errorf("input %s: no members", path)
	}
	return req, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
