package tools

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

// MaxSides caps dice size; MaxNumbers caps one primality batch.
const (
	MaxSides   = 1000000
	MaxNumbers = 1000
)

// RollDice rolls an N-sided dice and returns the result.
func RollDice(sides int) (int, error) {
	if sides <= 0 {
		return 0, fmt.Errorf("dice must have at least 1 side")
	}
	if sides > MaxSides {
		return 0, fmt.Errorf("dice cannot have more than %d sides", MaxSides)
	}

	return rand.IntN(sides) + 1, nil
}

// CheckPrime checks which numbers in the list are prime and phrases the
// answer for a human reader.
func CheckPrime(numbers []int) string {
	if len(numbers) == 0 {
		return "No numbers provided to check."
	}

	var primes []string
	for _, n := range numbers {
		if isPrime(n) {
			primes = append(primes, fmt.Sprintf("%d", n))
		}
	}

	if len(primes) == 0 {
		return "None of the numbers are prime."
	}

	return strings.Join(primes, ", ") + " are prime numbers."
}

func isPrime(n int) bool {
	if n <= 1 {
		return false
	}
	if n == 2 {
		return true
	}
	if n%2 == 0 {
		return false
	}

	for i := 3; i*i <= n; i += 2 {
		if n%i == 0 {
			return false
		}
	}

	return true
}
