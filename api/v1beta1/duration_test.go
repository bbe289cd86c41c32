package v1beta1_test

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/toxwatch/api/v1beta1"
)

func TestDuration_UnmarshalText(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		"seconds":      {in: "1s", want: time.Second},
		"milliseconds": {in: "250ms", want: 250 * time.Millisecond},
		"compound":     {in: "1m30s", want: 90 * time.Second},
		"zero":         {in: "0", want: 0},
		"negative":     {in: "-1s", wantErr: true},
		"no unit":      {in: "5", wantErr: true},
		"garbage":      {in: "soon", wantErr: true},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var d v1beta1.Duration

			err := d.UnmarshalText([]byte(tc.in))
			if tc.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.want, d.Std())

			pattern := regexp.MustCompile(v1beta1.Duration(0).JSONSchema().Pattern)
			assert.True(t, pattern.MatchString(tc.in))
		})
	}
}

func TestDuration_MarshalText(t *testing.T) {
	t.Parallel()

	b, err := v1beta1.Duration(1500 * time.Millisecond).MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1.5s", string(b))
}
