package dialogstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFilterPII_MasksEmailPhoneAndIdentityNumber(t *testing.T) {
	in := "Bana ayse@example.com veya 05551234567 üzerinden ulaş, kimlik no 12345678901"
	out := FilterPII(in)
	require.NotContains(t, out, "ayse@example.com")
	require.NotContains(t, out, "05551234567")
	require.NotContains(t, out, "12345678901")
	require.Contains(t, out, "***")
}

func TestFilterPII_LeavesPlainTextUntouched(t *testing.T) {
	in := "Yarın saat 3'te toplantı var"
	require.Equal(t, in, FilterPII(in))
}
