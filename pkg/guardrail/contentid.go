package guardrail

import "github.com/google/uuid"

// ContentIDProvider derives a correlation id from the content being
// evaluated. Implementations may hash the messages to produce stable ids for
// identical content, or mint a fresh id per call.
type ContentIDProvider func(messages []string) (string, error)

// UUIDContentID is the default provider. It mints a random UUID per call,
// ignoring the content.
func UUIDContentID(_ []string) (string, error) {
	return uuid.NewString(), nil
}
