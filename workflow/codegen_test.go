package workflow

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/mes_backend/models"
	"bitbucket.org/mmdatafocus/mes_backend/utils"
)

func TestScopeKey(t *testing.T) {
	now := time.Date(2026, 8, 31, 14, 5, 0, 0, time.UTC)
	cases := []struct {
		scope    models.CounterReset
		expected string
	}{
		{models.CounterResetNever, ""},
		{models.CounterResetDaily, "20260831"},
		{models.CounterResetMonthly, "202608"},
		{models.CounterResetYearly, "2026"},
	}
	for _, tc := range cases {
		if got := ScopeKey(tc.scope, now); got != tc.expected {
			t.Fatalf("ScopeKey(%s) expected %q, got %q", tc.scope, tc.expected, got)
		}
	}
}

func TestRenderDate(t *testing.T) {
	now := time.Date(2026, 8, 31, 14, 5, 9, 0, time.UTC)
	cases := []struct {
		format   string
		expected string
	}{
		{"yyyyMMdd", "20260831"},
		{"yyMM", "2608"},
		{"yyyy-MM-dd HH:mm:ss", "2026-08-31 14:05:09"},
		{"plain", "plain"},
	}
	for _, tc := range cases {
		if got := RenderDate(tc.format, now); got != tc.expected {
			t.Fatalf("RenderDate(%q) expected %q, got %q", tc.format, tc.expected, got)
		}
	}
}

func TestRenderComponentsComposesInSequence(t *testing.T) {
	now := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	components := []models.CodeRuleComponent{
		{Kind: models.CodeComponentLiteral, Literal: "WO-"},
		{Kind: models.CodeComponentDate, DateFormat: "yyyyMMdd"},
		{Kind: models.CodeComponentLiteral, Literal: "-"},
		{Kind: models.CodeComponentField, FieldName: "line"},
		{Kind: models.CodeComponentCounter, CounterWidth: 4},
		{Kind: models.CodeComponentRandom, RandomLength: 2},
	}
	code, err := RenderComponents(components, now,
		map[string]string{"line": "L1"},
		func(component models.CodeRuleComponent) (int64, error) { return 42, nil },
		func(charset string, length int) (string, error) { return strings.Repeat("X", length), nil },
	)
	if err != nil {
		t.Fatalf("RenderComponents: %v", err)
	}
	if code != "WO-20260831-L10042XX" {
		t.Fatalf("unexpected code %q", code)
	}
}

func TestRenderComponentsRequiresNamedFields(t *testing.T) {
	components := []models.CodeRuleComponent{
		{Kind: models.CodeComponentField, FieldName: "workshop"},
	}
	_, err := RenderComponents(components, time.Now(), nil,
		func(component models.CodeRuleComponent) (int64, error) { return 0, nil },
		func(charset string, length int) (string, error) { return "", nil },
	)
	if err == nil {
		t.Fatal("expected an error for the missing field")
	}
	appErr, ok := utils.AsAppError(err)
	if !ok || appErr.Kind != utils.ErrorKindConfig {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestRenderComponentsCounterCodesAreUniqueUnderConcurrency(t *testing.T) {
	components := []models.CodeRuleComponent{
		{Kind: models.CodeComponentLiteral, Literal: "PN-"},
		{Kind: models.CodeComponentCounter, CounterWidth: 6},
	}
	var counter int64
	next := func(component models.CodeRuleComponent) (int64, error) {
		return atomic.AddInt64(&counter, 1), nil
	}

	const n = 100
	codes := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			code, err := RenderComponents(components, time.Now(), nil, next,
				func(charset string, length int) (string, error) { return "", nil })
			if err != nil {
				t.Errorf("RenderComponents: %v", err)
				return
			}
			codes[i] = code
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for _, code := range codes {
		if seen[code] {
			t.Fatalf("duplicate code %q", code)
		}
		seen[code] = true
	}
}

func TestFallbackCodeShape(t *testing.T) {
	code, err := fallbackCode("wo")
	if err != nil {
		t.Fatalf("fallbackCode: %v", err)
	}
	parts := strings.Split(code, "-")
	if len(parts) != 3 {
		t.Fatalf("expected PREFIX-date-random, got %q", code)
	}
	if parts[0] != "WO" {
		t.Fatalf("prefix should be uppercased, got %q", parts[0])
	}
	if len(parts[1]) != 8 {
		t.Fatalf("expected yyyymmdd stamp, got %q", parts[1])
	}
	if len(parts[2]) != 6 {
		t.Fatalf("expected 6 random characters, got %q", parts[2])
	}
	for _, r := range parts[2] {
		if !strings.ContainsRune(defaultRandomCharset, r) {
			t.Fatalf("random tail %q uses a character outside the charset", parts[2])
		}
	}
}

func TestShouldFallBackOnlyOnMissingRule(t *testing.T) {
	if !shouldFallBack(utils.ErrorRecordNotFound) {
		t.Fatal("a missing rule should use the fallback code")
	}
	if shouldFallBack(fmt.Errorf("rule lookup: %w", utils.ErrorRecordNotFound)) != true {
		t.Fatal("a wrapped missing-rule error should use the fallback code")
	}
	if shouldFallBack(errors.New("connection refused")) {
		t.Fatal("an infrastructure failure must surface, not silently fall back")
	}
	if shouldFallBack(nil) {
		t.Fatal("nil error is not a fallback case")
	}
}

func TestRandomFromCharsetLengthAndAlphabet(t *testing.T) {
	s, err := randomFromCharset("AB", 32)
	if err != nil {
		t.Fatalf("randomFromCharset: %v", err)
	}
	if len(s) != 32 {
		t.Fatalf("expected 32 characters, got %d", len(s))
	}
	for _, r := range s {
		if r != 'A' && r != 'B' {
			t.Fatalf("unexpected character %q", r)
		}
	}
}
