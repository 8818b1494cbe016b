package provider

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/alohalabs/aloha/pkg/tools"
)

// ValidationError marks a request the brain understood but refused, e.g.
// a dice with zero sides.  It surfaces as a failed task, never a panic.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

var (
	sidesPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(\d+)[-\s]?sided`),
		regexp.MustCompile(`d(\d+)`),
		regexp.MustCompile(`(\d+)\s+side`),
	}
	numberPattern = regexp.MustCompile(`\b(\d+)\b`)
)

/*
DiceProvider is a pattern-matching brain that rolls dice and checks
primality without any model behind it.  It is the fallback brain the
ollama provider degrades to, and a self-contained default for demos and
tests.
*/
type DiceProvider struct{}

func NewDiceProvider() *DiceProvider {
	return &DiceProvider{}
}

func (prvdr *DiceProvider) Name() string { return "dice" }

func (prvdr *DiceProvider) Invoke(ctx context.Context, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	lower := strings.ToLower(text)

	if strings.Contains(lower, "roll") && (strings.Contains(lower, "dice") || strings.Contains(lower, "die")) {
		sides := extractSides(text)
		if sides > tools.MaxSides {
			return "", &ValidationError{Message: fmt.Sprintf("'sides' must be <= %d, got %d", tools.MaxSides, sides)}
		}

		result, err := tools.RollDice(sides)
		if err != nil {
			return "", fmt.Errorf("error rolling dice: %w", err)
		}

		if strings.Contains(lower, "prime") {
			return fmt.Sprintf(
				"I rolled a %d-sided dice and got: %d. %s",
				sides, result, tools.CheckPrime([]int{result}),
			), nil
		}

		return fmt.Sprintf("I rolled a %d-sided dice and got: %d", sides, result), nil
	}

	if strings.Contains(lower, "prime") {
		numbers := extractNumbers(text)
		if len(numbers) == 0 {
			return "Please provide numbers to check for primality.", nil
		}
		if len(numbers) > tools.MaxNumbers {
			return "", &ValidationError{Message: fmt.Sprintf("'numbers' list too large (max %d), got %d", tools.MaxNumbers, len(numbers))}
		}
		return tools.CheckPrime(numbers), nil
	}

	return "I can roll dice and check if numbers are prime. What would you like me to do?", nil
}

// extractSides pulls the dice size out of phrases like "6-sided", "d20" or
// "20 side"; an unspecified size means a regular 6-sided dice.
func extractSides(text string) int {
	for _, pattern := range sidesPatterns {
		matches := pattern.FindStringSubmatch(text)
		if len(matches) > 1 {
			if sides, err := strconv.Atoi(matches[1]); err == nil && sides > 0 {
				return sides
			}
		}
	}
	return 6
}

func extractNumbers(text string) []int {
	var numbers []int
	for _, match := range numberPattern.FindAllStringSubmatch(text, -1) {
		if len(match) > 1 {
			if num, err := strconv.Atoi(match[1]); err == nil {
				numbers = append(numbers, num)
			}
		}
	}
	return numbers
}
