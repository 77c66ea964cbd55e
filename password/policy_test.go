package password

import "testing"

func TestPolicyRejectsWeakPasswords(t *testing.T) {
	policy := DefaultPolicy()

	rejected := []string{
		"password",
		"123456",
		"qwerty",
		"admin",
		"welcome",
		"Password",
		"password123",
		"PASSWORD123!",
		"short",
		"",
	}
	for _, pw := range rejected {
		res := policy.Validate(pw)
		if res.MeetsPolicy {
			t.Errorf("expected %q rejected, got score %d with no feedback", pw, res.Score)
		}
	}
}

func TestPolicyAcceptsStrongPasswords(t *testing.T) {
	policy := DefaultPolicy()

	accepted := []string{
		"MySecureP@ssw0rd!",
		"C0mpl3x&S3cur3!",
	}
	for _, pw := range accepted {
		res := policy.Validate(pw)
		if !res.MeetsPolicy {
			t.Errorf("expected %q accepted, got score %d, feedback %v", pw, res.Score, res.Feedback)
		}
		if res.Strength != StrengthStrong {
			t.Errorf("expected %q to rate strong, got %s", pw, res.Strength)
		}
	}
}

func TestPolicyScoring(t *testing.T) {
	policy := DefaultPolicy()

	cases := []struct {
		password string
		score    int
	}{
		// All five rules plus the length bonus, clamped to 5.
		{"MySecureP@ssw0rd!", 5},
		// Four classes, 8 chars, no length bonus.
		{"Ab1!efgh", 5},
		// Common pattern drags a full-featured candidate down.
		{"Password123!", 4},
		// Repeated run penalty.
		{"aaa1!Bcd", 4},
		// Nothing satisfied beyond lowercase.
		{"abc", 1},
	}
	for _, tc := range cases {
		res := policy.Validate(tc.password)
		if res.Score != tc.score {
			t.Errorf("%q: expected score %d, got %d (feedback %v)", tc.password, tc.score, res.Score, res.Feedback)
		}
	}
}

func TestPolicyFeedbackNamesMissingRules(t *testing.T) {
	policy := DefaultPolicy()

	res := policy.Validate("lowercase")
	if res.MeetsPolicy {
		t.Fatal("expected rejection")
	}
	if len(res.Feedback) != 3 {
		t.Fatalf("expected feedback for uppercase, digit, and symbol, got %v", res.Feedback)
	}
}

func TestPolicyDisabledRequirements(t *testing.T) {
	policy := Policy{MinLength: 6, ComplexityScore: 1}

	res := policy.Validate("simple")
	if !res.MeetsPolicy {
		t.Fatalf("relaxed policy should accept %q, feedback %v", "simple", res.Feedback)
	}
}

func TestStrengthLabels(t *testing.T) {
	cases := []struct {
		score    int
		strength Strength
	}{
		{0, StrengthVeryWeak},
		{1, StrengthVeryWeak},
		{2, StrengthWeak},
		{3, StrengthFair},
		{4, StrengthGood},
		{5, StrengthStrong},
	}
	for _, tc := range cases {
		if got := strengthFor(tc.score); got != tc.strength {
			t.Errorf("score %d: expected %s, got %s", tc.score, tc.strength, got)
		}
	}
}
