package cmd

import (
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShellQuote(t *testing.T) {
	testCases := []struct {
		in   string
		want string
	}{
		{in: "/home/u/.jsettlers/managed/var", want: "/home/u/.jsettlers/managed/var"},
		{in: "--settlers-folder=/data", want: "--settlers-folder=/data"},
		{in: "/home/jane doe/managed", want: "'/home/jane doe/managed'"},
		{in: "it's", want: `'it'\''s'`},
		{in: "$HOME", want: "'$HOME'"},
		{in: "", want: "''"},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, shellQuote(tc.in))
		})
	}
}

func TestShellCommand_QuotesPathsWithSpaces(t *testing.T) {
	c := &exec.Cmd{
		Path: "/opt/java home/bin/java",
		Args: []string{"java", "-Xmx2G", "-jar", "/games/my game/JSettlers.jar", "--settlers-folder=/games/my game/data"},
		Dir:  "/games/my game/var",
	}

	assert.Equal(t,
		`cd '/games/my game/var' && '/opt/java home/bin/java' -Xmx2G -jar '/games/my game/JSettlers.jar' '--settlers-folder=/games/my game/data'`,
		shellCommand(c))
}
