package prompt

import (
	"fmt"
	"strconv"

	"github.com/ruteri/trustroot-signer/interfaces"
)

// AskInt asks until the answer parses as an integer within [min, max]. A max
// below min disables the upper bound.
func AskInt(p interfaces.Prompt, message string, defaultValue, min, max int) (int, error) {
	for {
		answer, err := p.Ask(message, strconv.Itoa(defaultValue))
		if err != nil {
			return 0, err
		}
		value, err := strconv.Atoi(answer)
		if err != nil {
			p.Echo("Error: %q is not a valid integer", answer)
			continue
		}
		if value < min || (max >= min && value > max) {
			p.Echo("Error: %d is not in the range %s", value, rangeText(min, max))
			continue
		}
		return value, nil
	}
}

// Confirm waits for the operator to press enter.
func Confirm(p interfaces.Prompt, message string) error {
	_, err := p.Ask(message, "")
	return err
}

func rangeText(min, max int) string {
	if max < min {
		return fmt.Sprintf("x>=%d", min)
	}
	return fmt.Sprintf("%d<=x<=%d", min, max)
}
