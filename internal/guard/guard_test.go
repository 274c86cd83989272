package guard

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidate_NewTimeViolation(t *testing.T) {
	source := "Meeting at 14:30 with 5 people"
	candidate := "Toplantı 16:00'da 5 kişiyle"

	res := Validate(candidate, source)
	require.False(t, res.Passed)

	found := false
	for _, v := range res.Violations {
		if v.Category == CategoryTime && v.Value == "16:00" {
			found = true
		}
	}
	require.True(t, found, "expected a NEW_TIME violation for 16:00, got %+v", res.Violations)
}

func TestValidate_NoNewFacts(t *testing.T) {
	source := "Meeting at 14:30 with 5 people"
	candidate := "Toplantı 14:30'da, 5 kişi katılacak"
	res := Validate(candidate, source)
	require.True(t, res.Passed, "violations: %+v", res.Violations)
}

func TestValidate_TurkishNumberWordPassThrough(t *testing.T) {
	source := "5 kişi geliyor"
	candidate := "beş kişi geliyor"
	res := Validate(candidate, source)
	require.True(t, res.Passed, "violations: %+v", res.Violations)
}

func TestValidate_CurrencyViolation(t *testing.T) {
	source := "Fiyat 100 TL"
	candidate := "Fiyat 150 TL"
	res := Validate(candidate, source)
	require.False(t, res.Passed)
}
