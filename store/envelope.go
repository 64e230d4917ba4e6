package store

import (
	"encoding/json"
	"fmt"

	"github.com/stevemurr/flash-survey/schema"
	"github.com/stevemurr/flash-survey/submission"
)

// SchemaVersion is the only envelope version this build reads and writes.
const SchemaVersion = 1

// envelope is the persisted slot layout.
type envelope struct {
	Version     int                     `json:"version"`
	Revision    int64                   `json:"revision"`
	Submissions []submission.Submission `json:"submissions"`
}

var envelopeSchema = map[string]any{
	"type":     "object",
	"required": []any{"version", "revision", "submissions"},
	"properties": map[string]any{
		"version":  map[string]any{"type": "integer", "minimum": 1},
		"revision": map[string]any{"type": "integer", "minimum": 0},
		"submissions": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []any{"id", "submittedAt", "data"},
				"properties": map[string]any{
					"id":          map[string]any{"type": "string", "minLength": 1},
					"submittedAt": map[string]any{"type": "string", "minLength": 1},
					"data": map[string]any{
						"type": "object",
						"additionalProperties": map[string]any{
							"type":  []any{"string", "array"},
							"items": map[string]any{"type": "string"},
						},
					},
				},
			},
		},
	},
}

func emptyEnvelope() envelope {
	return envelope{Version: SchemaVersion, Submissions: []submission.Submission{}}
}

func encodeEnvelope(env envelope) ([]byte, error) {
	b, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode submissions: %w", err)
	}
	return b, nil
}

func decodeEnvelope(blob []byte) (envelope, error) {
	var raw any
	if err := json.Unmarshal(blob, &raw); err != nil {
		return envelope{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if err := schema.Validate(envelopeSchema, raw); err != nil {
		return envelope{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	var env envelope
	if err := json.Unmarshal(blob, &env); err != nil {
		return envelope{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if env.Version != SchemaVersion {
		return envelope{}, fmt.Errorf("%w: unsupported schema version %d", ErrCorrupt, env.Version)
	}

	seen := make(map[string]struct{}, len(env.Submissions))
	for i, s := range env.Submissions {
		if _, dup := seen[s.ID]; dup {
			return envelope{}, fmt.Errorf("%w: duplicate submission id %q at index %d", ErrCorrupt, s.ID, i)
		}
		seen[s.ID] = struct{}{}
		if s.Data == nil {
			env.Submissions[i].Data = submission.Answers{}
		}
	}
	if env.Submissions == nil {
		env.Submissions = []submission.Submission{}
	}
	return env, nil
}
