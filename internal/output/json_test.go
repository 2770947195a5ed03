package output

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dotcommander/scrum/internal/models"
)

// testCoordErr implements models.CoordinationError for envelope tests.
type testCoordErr struct {
	msg   string
	code  string
	ctx   map[string]string
	steps []string
}

func (e *testCoordErr) Error() string              { return e.msg }
func (e *testCoordErr) ErrorCode() string          { return e.code }
func (e *testCoordErr) Context() map[string]string { return e.ctx }
func (e *testCoordErr) NextSteps() []string        { return e.steps }

var _ models.CoordinationError = (*testCoordErr)(nil)

func TestSuccessEnvelope(t *testing.T) {
	env := Success(map[string]string{"k": "v"})
	require.True(t, env.OK)
	require.NotNil(t, env.Data)
	require.Nil(t, env.Error)
}

func TestErrorEnvelope(t *testing.T) {
	t.Run("plain error maps to INTERNAL", func(t *testing.T) {
		env := Error(errors.New("boom"))
		require.False(t, env.OK)
		require.Nil(t, env.Data)
		require.NotNil(t, env.Error)
		require.Equal(t, models.CodeInternal, env.Error.Kind)
		require.Equal(t, "boom", env.Error.Message)
		require.Nil(t, env.Error.Details)
		require.Empty(t, env.Error.NextSteps)
	})

	t.Run("coordination error keeps its code and context", func(t *testing.T) {
		ce := &testCoordErr{
			msg:   "file already leased",
			code:  models.CodeClaimConflict,
			ctx:   map[string]string{"file": "a.go", "heldBy": "agent-2"},
			steps: []string{"scrum claim check --files a.go"},
		}
		env := Error(ce)
		require.False(t, env.OK)
		require.Equal(t, models.CodeClaimConflict, env.Error.Kind)
		require.Equal(t, "file already leased", env.Error.Message)
		require.Equal(t, map[string]string{"file": "a.go", "heldBy": "agent-2"}, env.Error.Details)
		require.Equal(t, []string{"scrum claim check --files a.go"}, env.Error.NextSteps)
	})

	t.Run("wrapped coordination error is still unwrapped", func(t *testing.T) {
		ce := &testCoordErr{msg: "no intent", code: models.CodeNoIntent}
		env := Error(fmt.Errorf("createClaim: %w", ce))
		require.Equal(t, models.CodeNoIntent, env.Error.Kind)
	})
}

func TestFprintCompactByDefault(t *testing.T) {
	t.Setenv("SCRUM_PRETTY_JSON", "")

	var buf bytes.Buffer
	require.NoError(t, Fprint(&buf, map[string]string{"hello": "world"}))
	require.Equal(t, "{\"hello\":\"world\"}\n", buf.String())
}

func TestFprintPrettyWhenEnabled(t *testing.T) {
	for _, value := range []string{"1", "true"} {
		t.Run(value, func(t *testing.T) {
			t.Setenv("SCRUM_PRETTY_JSON", value)

			var buf bytes.Buffer
			require.NoError(t, Fprint(&buf, map[string]string{"hello": "world"}))
			out := buf.String()
			require.True(t, strings.HasPrefix(out, "{\n"))
			require.Contains(t, out, "\n  \"hello\": \"world\"\n")
		})
	}
}

func TestEnvelopeWireShape(t *testing.T) {
	t.Setenv("SCRUM_PRETTY_JSON", "")

	var buf bytes.Buffer
	require.NoError(t, Fprint(&buf, Success(map[string]int{"count": 2})))
	out := buf.String()
	require.Contains(t, out, `"ok":true`)
	require.Contains(t, out, `"count":2`)
	require.NotContains(t, out, `"error"`)

	buf.Reset()
	require.NoError(t, Fprint(&buf, Error(errors.New("bad things"))))
	out = buf.String()
	require.Contains(t, out, `"ok":false`)
	require.Contains(t, out, `"kind":"INTERNAL"`)
	require.Contains(t, out, `"message":"bad things"`)
	require.NotContains(t, out, `"data"`)
	require.NotContains(t, out, `"details"`)
	require.NotContains(t, out, `"nextSteps"`)
}
