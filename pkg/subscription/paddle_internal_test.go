package subscription

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaddleExpiry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
		want string
	}{
		{
			name: "billing period end",
			data: `{"current_billing_period":{"ends_at":"2025-07-01T00:00:00Z"},"next_billed_at":"2025-08-01T00:00:00Z"}`,
			want: "2025-07-01T00:00:00Z",
		},
		{
			name: "scheduled cancel",
			data: `{"scheduled_change":{"action":"cancel","effective_at":"2025-07-10T00:00:00Z"},"next_billed_at":"2025-08-01T00:00:00Z"}`,
			want: "2025-07-10T00:00:00Z",
		},
		{
			name: "scheduled pause falls through",
			data: `{"scheduled_change":{"action":"pause","effective_at":"2025-07-10T00:00:00Z"},"next_billed_at":"2025-08-01T00:00:00Z"}`,
			want: "2025-08-01T00:00:00Z",
		},
		{
			name: "nothing",
			data: `{}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var n paddleNotification
			require.NoError(t, json.Unmarshal([]byte(`{"data":`+tt.data+`}`), &n))

			got := paddleExpiry(n)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Format("2006-01-02T15:04:05Z07:00"))
		})
	}
}
