package ai

import (
	"fmt"
	"strings"

	"jobapplicator/internal/config"
	"jobapplicator/internal/types"
)

// DefaultSystemPrompt is the built-in system instruction for form description.
const DefaultSystemPrompt = `You are an assistant that reads job application web pages and describes their application form.

Rules:
- Report only inputs that are present in the supplied HTML. Never invent fields.
- field_id must be the element's id attribute, or its name attribute when it has no id.
- field_type is the input type as written in the HTML (text, email, tel, file, select, textarea, checkbox, ...).
- label is the human-visible label text for the field, trimmed.
- required is true when the input is marked required or its label carries an asterisk.
- resume_upload_id is the id (or name) of the file input that accepts a resume or CV, or null.
- submit_button_id is the id (or name) of the button that submits the application, or null.
- Respond with JSON only.`

// DefaultUserPrompt is the built-in user prompt template. The verbs receive the
// page URL, the visible page text, and the extracted form HTML, in that order.
const DefaultUserPrompt = `Analyze this job application page and identify:
1. Required form fields (name, email, phone, etc.)
2. Where to upload the resume
3. The submit button identifier

Page URL: %s

Page content excerpt:
%s

Form elements found:
%s

Return JSON with this structure:
{
  "form_fields": [
    {"field_id": "string", "field_type": "string", "label": "string", "required": true}
  ],
  "resume_upload_id": "string or null",
  "submit_button_id": "string or null"
}`

// maxFormHTML bounds the form markup sent to the model.
const maxFormHTML = 3000

// resolvePrompt selects the correct prompt string based on a clear priority order:
// 1. A prompt loaded from a file.
// 2. A prompt defined directly in the configuration.
// 3. A hardcoded default prompt.
func resolvePrompt(loadedFromFile, fromConfig, fromDefault string) string {
	if loadedFromFile != "" {
		return loadedFromFile
	}
	if fromConfig != "" {
		return fromConfig
	}
	return fromDefault
}

// buildDescribePrompts returns the system and formatted user prompt for a page.
func buildDescribePrompts(cfg *config.OperationAIConfig, page types.PageSnapshot) (string, string) {
	loaded := config.GetLoadedInspectPrompts()

	systemPrompt := resolvePrompt(loaded.SystemPrompt, cfg.CustomPrompts.SystemPrompt, DefaultSystemPrompt)
	userTemplate := resolvePrompt(loaded.UserPrompt, cfg.CustomPrompts.UserPrompt, DefaultUserPrompt)

	forms := "None found"
	if len(page.Forms) > 0 {
		forms = truncate(strings.Join(page.Forms, "\n"), maxFormHTML)
	}

	return systemPrompt, fmt.Sprintf(userTemplate, page.URL, page.Text, forms)
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
