package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseRID(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want RID
	}{
		{name: "bare numeric", raw: "42", want: "42"},
		{name: "namespaced", raw: "main_queue:42", want: "42"},
		{name: "surrounding whitespace", raw: "  7\n", want: "7"},
		{name: "namespaced with whitespace", raw: " harbor:13 ", want: "13"},
		{name: "empty", raw: "", want: ""},
		{name: "only namespace", raw: "queue:", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseRID(tt.raw))
		})
	}
}

func TestEntry_Age(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e := &Entry{CreatedAt: created}

	assert.Equal(t, 45*time.Second, e.Age(created.Add(45*time.Second)))
	assert.Equal(t, time.Duration(0), e.Age(created))
}
