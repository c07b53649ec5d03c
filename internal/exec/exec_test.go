package exec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	out, err := Run(context.Background(), "echo 'hello world'")
	require.NoError(t, err)
	require.Equal(t, "hello world", out)

	_, err = Run(context.Background(), "sh -c 'echo broken >&2; exit 3'")
	require.Error(t, err)
	require.Contains(t, err.Error(), "broken")

	_, err = Run(context.Background(), "   ")
	require.ErrorIs(t, err, errEmptyCommand)

	_, err = Run(context.Background(), "echo 'oops")
	require.ErrorContains(t, err, "invalid command")

	out, err = Run(context.Background(), `printf '%s|%s' "fan at 100%" my\ dir`)
	require.NoError(t, err)
	require.Equal(t, "fan at 100%|my dir", out)
}
