package prompt

import (
	"fmt"
	"strings"

	"github.com/ruteri/trustroot-signer/interfaces"
)

// Scripted answers prompts from a fixed list and records everything shown.
// An empty answer selects the default. Running out of answers aborts.
type Scripted struct {
	answers []string
	// Transcript holds echoed lines and asked messages in order.
	Transcript []string
}

func NewScripted(answers ...string) *Scripted {
	return &Scripted{answers: answers}
}

func (s *Scripted) Echo(format string, args ...any) {
	s.Transcript = append(s.Transcript, fmt.Sprintf(format, args...))
}

func (s *Scripted) Ask(message, defaultValue string) (string, error) {
	s.Transcript = append(s.Transcript, "? "+message)
	if len(s.answers) == 0 {
		return "", interfaces.ErrAborted
	}
	answer := strings.TrimSpace(s.answers[0])
	s.answers = s.answers[1:]
	if answer == "" {
		return defaultValue, nil
	}
	return answer, nil
}

// Remaining returns the number of unused answers.
func (s *Scripted) Remaining() int {
	return len(s.answers)
}

// Output joins the transcript into a single string.
func (s *Scripted) Output() string {
	return strings.Join(s.Transcript, "\n")
}

var _ interfaces.Prompt = (*Scripted)(nil)
