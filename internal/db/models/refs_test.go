package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDSet_AddRemove(t *testing.T) {
	var s IDSet

	s, changed := s.Add("a")
	assert.True(t, changed)
	s, changed = s.Add("b")
	assert.True(t, changed)
	s, changed = s.Add("a")
	assert.False(t, changed, "adding an existing id is a no-op")
	assert.Equal(t, IDSet{"a", "b"}, s)

	s, changed = s.Remove("a")
	assert.True(t, changed)
	assert.Equal(t, IDSet{"b"}, s)

	s, changed = s.Remove("missing")
	assert.False(t, changed)
	assert.Equal(t, IDSet{"b"}, s)
}

func TestIDSet_AddDoesNotAlias(t *testing.T) {
	base := make(IDSet, 1, 4)
	base[0] = "a"

	x, _ := base.Add("x")
	y, _ := base.Add("y")

	assert.Equal(t, IDSet{"a", "x"}, x)
	assert.Equal(t, IDSet{"a", "y"}, y)
}

func TestIDSet_Scan(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  IDSet
	}{
		{"postgres bytes", []byte(`["p1","p2"]`), IDSet{"p1", "p2"}},
		{"sqlite text", `["p1"]`, IDSet{"p1"}},
		{"null", nil, IDSet{}},
		{"json null", "null", IDSet{}},
		{"empty", "", IDSet{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s IDSet
			require.NoError(t, s.Scan(tt.input))
			assert.Equal(t, tt.want, s)
		})
	}

	var s IDSet
	assert.Error(t, s.Scan(42))
}

func TestIDSet_ValueNil(t *testing.T) {
	v, err := IDSet(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)

	v, err = StringList{"Go", "Postgres"}.Value()
	require.NoError(t, err)
	assert.Equal(t, `["Go","Postgres"]`, v)
}
