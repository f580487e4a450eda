package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "arsenal/pkg/domain-errors"
)

func TestParseSettlement(t *testing.T) {
	resID := uuid.New()
	st, err := ParseSettlement([]byte(`{"reservation_id":"` + resID.String() + `","serials":["sn-1"," SN-1 ",""]}`))
	require.NoError(t, err)
	assert.Equal(t, resID.String(), st.ReservationID.String())
	assert.Equal(t, []string{"SN-1"}, st.Serials)

	for name, raw := range map[string]string{
		"not json":       `[`,
		"bad id":         `{"reservation_id":"abc","serials":["A"]}`,
		"no serials":     `{"reservation_id":"` + resID.String() + `","serials":[" "]}`,
		"missing fields": `{}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseSettlement([]byte(raw))
			require.Error(t, err)
			assert.NotEqual(t, dErrors.CodeInternal, dErrors.CodeOf(err))
		})
	}
}
