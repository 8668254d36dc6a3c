package ai

import (
	"encoding/json"
	"strings"

	"jobapplicator/internal/errors"
	"jobapplicator/internal/types"
)

// rawFormDescription mirrors the JSON the model is asked for. Optional ids may be null.
type rawFormDescription struct {
	FormFields []struct {
		FieldID   *string `json:"field_id"`
		FieldType *string `json:"field_type"`
		Label     *string `json:"label"`
		Required  *bool   `json:"required"`
	} `json:"form_fields"`
	ResumeUploadID *string `json:"resume_upload_id"`
	SubmitButtonID *string `json:"submit_button_id"`
}

// ParseFormDescription validates model output against the FormDescription shape.
// Markdown code fences are tolerated. Fields without an id are dropped; a
// description with neither fields nor an upload target is rejected.
func ParseFormDescription(data []byte) (*types.FormDescription, error) {
	text := stripCodeFence(string(data))
	if text == "" {
		return nil, errors.NewFormError(errors.ErrCodeFormUnparseable, "empty model response", nil)
	}

	var raw rawFormDescription
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, errors.NewFormError(errors.ErrCodeFormUnparseable, "model response is not valid form JSON", err)
	}

	desc := &types.FormDescription{
		ResumeUploadID: cleanID(raw.ResumeUploadID),
		SubmitButtonID: cleanID(raw.SubmitButtonID),
	}

	for _, f := range raw.FormFields {
		id := cleanID(f.FieldID)
		if id == "" {
			continue
		}
		field := types.FormField{ID: id}
		if f.FieldType != nil {
			field.Type = strings.TrimSpace(*f.FieldType)
		}
		if f.Label != nil {
			field.Label = strings.TrimSpace(*f.Label)
		}
		if f.Required != nil {
			field.Required = *f.Required
		}
		desc.Fields = append(desc.Fields, field)
	}

	if len(desc.Fields) == 0 && desc.ResumeUploadID == "" {
		return nil, errors.NewFormError(errors.ErrCodeFormUnparseable, "model response describes no usable fields", nil)
	}

	return desc, nil
}

// cleanID normalizes optional identifiers; models sometimes emit the string "null".
func cleanID(s *string) string {
	if s == nil {
		return ""
	}
	v := strings.TrimSpace(*s)
	if strings.EqualFold(v, "null") || strings.EqualFold(v, "none") {
		return ""
	}
	return v
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
