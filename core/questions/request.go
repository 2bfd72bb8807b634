package questions

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Request describes the interview to generate questions for.
type Request struct {
	Kind   string `json:"type"`
	Role   string `json:"role"`
	Level  string `json:"level"`
	Stack  string `json:"techStack"`
	Amount Amount `json:"amount"`
	UserID string `json:"userId"`
}

// Amount is the number of questions to generate. Voice agents send it as a
// string as often as a number, so both are accepted.
type Amount int

func (a *Amount) UnmarshalJSON(data []byte) error {
	var number int
	if err := json.Unmarshal(data, &number); err == nil {
		*a = Amount(number)
		return nil
	}

	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("amount must be a number or a numeric string: %w", err)
	}
	number, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return fmt.Errorf("amount must be a number or a numeric string: %w", err)
	}
	*a = Amount(number)
	return nil
}

func splitTechStack(stack string) []string {
	techStack := []string{}
	for _, tech := range strings.Split(stack, ",") {
		if tech = strings.TrimSpace(tech); tech != "" {
			techStack = append(techStack, tech)
		}
	}
	return techStack
}
