package domain

type PromptID string

// Prompt is one canned conversation starter. Selecting it submits Title
// through the same pipeline as typed input.
type Prompt struct {
	ID          PromptID
	Title       string
	Description string
}
