package password

import (
	"fmt"
	"strings"
	"unicode"
)

// Strength labels the overall quality of a password after scoring.
type Strength string

const (
	StrengthVeryWeak Strength = "very_weak"
	StrengthWeak     Strength = "weak"
	StrengthFair     Strength = "fair"
	StrengthGood     Strength = "good"
	StrengthStrong   Strength = "strong"
)

// Policy defines the acceptance rules for new passwords.
type Policy struct {
	MinLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireDigit     bool
	RequireSymbol    bool
	// ComplexityScore is the minimum score (0–5) a password must reach.
	ComplexityScore int
	// PreventReuseCount is how many historical digests the Engine checks
	// a new password against. Zero disables reuse prevention.
	PreventReuseCount int
}

// DefaultPolicy matches the platform-wide baseline: 8+ characters, all
// four character classes, score 3, last 5 passwords blocked.
func DefaultPolicy() Policy {
	return Policy{
		MinLength:         8,
		RequireUppercase:  true,
		RequireLowercase:  true,
		RequireDigit:      true,
		RequireSymbol:     true,
		ComplexityScore:   3,
		PreventReuseCount: 5,
	}
}

// Result is the outcome of scoring one candidate password.
type Result struct {
	Score       int
	Strength    Strength
	Feedback    []string
	MeetsPolicy bool
}

// commonPatterns are substrings that immediately mark a password as
// guessable regardless of its character mix.
var commonPatterns = []string{
	"123456",
	"password",
	"qwerty",
	"abc123",
	"admin",
	"letmein",
	"welcome",
	"monkey",
	"dragon",
}

// Validate scores password against the policy.
//
// Scoring: +1 for each satisfied rule among {min length, uppercase,
// lowercase, digit, symbol}; +1 bonus for length >= 12; -1 for a run of
// three or more identical characters; -2 for containing a known common
// pattern. The score is clamped to [0,5]. MeetsPolicy requires reaching
// ComplexityScore with zero outstanding feedback items.
func (p Policy) Validate(password string) Result {
	var res Result

	if len(password) >= p.MinLength {
		res.Score++
	} else {
		res.Feedback = append(res.Feedback,
			fmt.Sprintf("password must be at least %d characters long", p.MinLength))
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSymbol = true
		}
	}

	if hasUpper {
		res.Score++
	} else if p.RequireUppercase {
		res.Feedback = append(res.Feedback, "password must contain an uppercase letter")
	}
	if hasLower {
		res.Score++
	} else if p.RequireLowercase {
		res.Feedback = append(res.Feedback, "password must contain a lowercase letter")
	}
	if hasDigit {
		res.Score++
	} else if p.RequireDigit {
		res.Feedback = append(res.Feedback, "password must contain a digit")
	}
	if hasSymbol {
		res.Score++
	} else if p.RequireSymbol {
		res.Feedback = append(res.Feedback, "password must contain a symbol")
	}

	if len(password) >= 12 {
		res.Score++
	}

	if hasRepeatedRun(password, 3) {
		res.Score--
		res.Feedback = append(res.Feedback, "password must not repeat the same character three or more times in a row")
	}

	lower := strings.ToLower(password)
	for _, pattern := range commonPatterns {
		if strings.Contains(lower, pattern) {
			res.Score -= 2
			res.Feedback = append(res.Feedback, "password contains a commonly used pattern")
			break
		}
	}

	if res.Score < 0 {
		res.Score = 0
	}
	if res.Score > 5 {
		res.Score = 5
	}

	res.Strength = strengthFor(res.Score)
	res.MeetsPolicy = res.Score >= p.ComplexityScore && len(res.Feedback) == 0
	return res
}

func strengthFor(score int) Strength {
	switch score {
	case 0, 1:
		return StrengthVeryWeak
	case 2:
		return StrengthWeak
	case 3:
		return StrengthFair
	case 4:
		return StrengthGood
	default:
		return StrengthStrong
	}
}

func hasRepeatedRun(s string, n int) bool {
	run := 0
	var prev rune
	for i, r := range s {
		if i > 0 && r == prev {
			run++
			if run+1 >= n {
				return true
			}
		} else {
			run = 0
		}
		prev = r
	}
	return false
}
