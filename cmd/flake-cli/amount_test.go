package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		raw  bool
		want string
	}{
		{"", false, "0"},
		{"1", false, "1000000000000000000"},
		{"1.5", false, "1500000000000000000"},
		{"0.000000000000000001", false, "1"},
		{"42", true, "42"},
	}
	for _, tc := range cases {
		got, err := parseAmount(tc.in, tc.raw)
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.want, got.String(), tc.in)
	}
}

func TestParseAmountRejects(t *testing.T) {
	for _, in := range []string{"-1", "abc", "0.0000000000000000001"} {
		_, err := parseAmount(in, false)
		require.Error(t, err, in)
	}
	_, err := parseAmount("1.5", true)
	require.Error(t, err)
}

func TestFormatAmount(t *testing.T) {
	require.Equal(t, "1.5", formatAmount("1500000000000000000"))
	require.Equal(t, "0", formatAmount("0"))
	require.Equal(t, "garbage", formatAmount("garbage"))
}
