package orchestrator

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mf-advisor-core/server/internal/agent/model"
	"github.com/mf-advisor-core/server/internal/agent/subagents"
)

// Merge applies the updates proposed by agent to a copy of s.
//
// Map-shaped values are overlaid key by key onto the existing section; other
// values replace it. Sections the agent does not own are rejected. The result
// is validated as a whole and nothing is applied if any part fails, so the
// caller either gets a consistent new state or a ValidationErrors.
func Merge(agents subagents.Registry, agent model.AgentID, s *model.State, updates model.Updates) (*model.State, error) {
	if len(updates) == 0 {
		return s.Clone(), nil
	}
	doc, err := s.Document()
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}

	var errs model.ValidationErrors
	for _, sec := range updates.Sections() {
		v := updates[sec]
		switch {
		case !agents.Owns(agent, sec):
			errs = append(errs, model.FieldError{Section: sec, Message: fmt.Sprintf("is not writable by %s", agent)})
			continue
		case v == nil:
			errs = append(errs, model.FieldError{Section: sec, Message: "update is empty"})
			continue
		}

		patch, err := generic(v)
		if err != nil {
			errs = append(errs, model.FieldError{Section: sec, Message: "update is not serializable"})
			continue
		}
		if sec == model.SectionFundRecommendations {
			if list, ok := patch.([]any); !ok || len(list) == 0 {
				errs = append(errs, model.FieldError{Section: sec, Message: "must contain at least one fund"})
				continue
			}
		}

		merged := overlay(doc[string(sec)], patch)
		if err := checkShape(sec, merged); err != nil {
			errs = append(errs, model.FieldError{Section: sec, Message: "has an unexpected shape"})
			continue
		}
		doc[string(sec)] = merged
	}
	if len(errs) > 0 {
		return nil, errs
	}

	next, err := model.StateFromDocument(doc)
	if err != nil {
		var verrs model.ValidationErrors
		if errors.As(err, &verrs) {
			return nil, verrs
		}
		return nil, model.ValidationErrors{{Message: err.Error()}}
	}
	return next, nil
}

// generic round-trips v through JSON into maps, slices and scalars.
func generic(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// overlay is a shallow overwrite of the patch keys onto existing when both are objects.
func overlay(existing, patch any) any {
	base, ok := existing.(map[string]any)
	p, pok := patch.(map[string]any)
	if !ok || !pok {
		return patch
	}
	out := make(map[string]any, len(base)+len(p))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range p {
		out[k] = v
	}
	return out
}

// checkShape decodes one section on its own so a type mismatch is attributed to it.
func checkShape(sec model.Section, v any) error {
	b, err := json.Marshal(map[string]any{string(sec): v})
	if err != nil {
		return err
	}
	var probe model.State
	return json.Unmarshal(b, &probe)
}
