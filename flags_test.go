package beacon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beacon-sdk/beacon-go/internal/testutils"
	"github.com/beacon-sdk/beacon-go/storage"
)

func personalization(active bool) func() bool {
	return func() bool { return active }
}

func TestFlagEvaluatorResetCookie(t *testing.T) {
	meta := NewMetaState(storage.NewMemory(), nil)
	eval := NewFlagEvaluator(meta, testutils.NewFakeClock(time.Unix(0, 0)), nil)

	assert.Equal(t, Flags{}, eval.Evaluate())

	require.NoError(t, meta.ArmResetCookie())
	assert.Equal(t, Flags{ResetCookie: true}, eval.Evaluate())
	assert.Equal(t, Flags{}, eval.Evaluate())
}

func TestFlagEvaluatorResync(t *testing.T) {
	tests := []struct {
		name   string
		sync   bool
		now    int64
		active bool
		want   bool
	}{
		{name: "inactive", sync: false, now: 100, active: false, want: false},
		{name: "never synced", sync: false, now: 100, active: true, want: true},
		{name: "inside window", sync: true, now: 159, active: true, want: false},
		{name: "at expiry", sync: true, now: 160, active: true, want: true},
		{name: "after expiry", sync: true, now: 500, active: true, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := NewMetaState(storage.NewMemory(), nil)
			if tt.sync {
				require.NoError(t, meta.RecordSync(time.Unix(100, 0), 60*time.Second))
			}
			clock := testutils.NewFakeClock(time.Unix(tt.now, 0))
			eval := NewFlagEvaluator(meta, clock, personalization(tt.active))

			assert.Equal(t, tt.want, eval.Evaluate().Resync)
		})
	}
}

func TestFlagsApply(t *testing.T) {
	p := Payload{"evt": "x"}
	Flags{}.Apply(p)
	assert.Equal(t, Payload{"evt": "x"}, p)

	Flags{ResetCookie: true, Resync: true}.Apply(p)
	assert.Equal(t, Payload{"evt": "x", FieldResetCookie: true, FieldResync: true}, p)
}
