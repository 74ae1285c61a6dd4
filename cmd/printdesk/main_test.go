package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	dpiPixels, dpiTargetDPI = "", 0

	var out bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestDPICommand(t *testing.T) {
	out, err := execute(t, "dpi", "--pixels", "3000x2832", "26.6 × 24.0 cm")
	require.NoError(t, err)
	assert.Contains(t, out, "average 293")
	assert.Contains(t, out, "Optimal")
}

func TestDPICommandTargetDPI(t *testing.T) {
	out, err := execute(t, "dpi", "--pixels", "3000×2400", "--target-dpi", "150")
	require.NoError(t, err)
	assert.Contains(t, out, "50.8 × 40.6 cm")
	assert.Contains(t, out, "150 DPI")
}

func TestDPICommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "missing pixels", args: []string{"dpi", "30x40 cm"}, want: "pixels"},
		{name: "bad pixels", args: []string{"dpi", "--pixels", "3000", "30x40 cm"}, want: "WIDTHxHEIGHT"},
		{name: "zero pixels", args: []string{"dpi", "--pixels", "0x10", "30x40 cm"}, want: "positive"},
		{name: "missing size", args: []string{"dpi", "--pixels", "3000x2000"}, want: "print size"},
		{name: "unreadable size", args: []string{"dpi", "--pixels", "3000x2000", "pretty big"}, want: "could not read"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParsePixels(t *testing.T) {
	w, h, err := parsePixels(" 1200 X 800 ")
	require.NoError(t, err)
	assert.Equal(t, 1200, w)
	assert.Equal(t, 800, h)
}

func TestHandlersCommand(t *testing.T) {
	out, err := execute(t, "handlers")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 6)
	assert.True(t, strings.HasPrefix(lines[0], "NAME"))
	assert.True(t, strings.HasPrefix(lines[1], "gratitude"))
	assert.Contains(t, lines[5], "fallback")
}
