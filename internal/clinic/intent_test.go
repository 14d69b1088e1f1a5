package clinic

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseIntent(t *testing.T) {
	in, err := ParseIntent([]byte(`{"type":"patient_transfer","fromBedId":0,"toBedId":4}`))
	require.NoError(t, err)
	require.Equal(t, PatientTransfer{FromBedID: 0, ToBedID: 4}, in)

	in, err = ParseIntent([]byte(`{"type":"treatment_transfer","fromBedId":4,"toBedId":0,"treatmentId":"abc"}`))
	require.NoError(t, err)
	require.Equal(t, TreatmentTransfer{FromBedID: 4, ToBedID: 0, TreatmentID: "abc"}, in)
	require.Equal(t, []Field{FieldBeds, FieldDirectorTasks}, in.Touches())

	in, err = ParseIntent([]byte(`{"type":"waiting_intake","waitingId":"w1","toBedId":2}`))
	require.NoError(t, err)
	require.Equal(t, WaitingIntake{WaitingID: "w1", ToBedID: 2}, in)
	require.Equal(t, []Field{FieldBeds, FieldWaitingList, FieldDirectorTasks}, in.Touches())
}

func TestParseIntent_Malformed(t *testing.T) {
	cases := []string{
		``,
		`not json`,
		`{"type":"teleport","fromBedId":1,"toBedId":0}`,
		`{"type":"patient_transfer","toBedId":0}`,
		`{"type":"treatment_transfer","fromBedId":1,"toBedId":0}`,
		`{"type":"treatment_transfer","fromBedId":1,"toBedId":0,"treatmentId":""}`,
		`{"type":"waiting_intake","toBedId":2}`,
		`{"type":"patient_transfer","fromBedId":"one","toBedId":0}`,
	}
	for _, c := range cases {
		_, err := ParseIntent([]byte(c))
		require.ErrorIs(t, err, ErrMalformedTransfer, "payload %q", c)
	}
}

func TestIntentApply(t *testing.T) {
	s := occupiedSnapshot(t, 0, "Kim")
	in, err := ParseIntent([]byte(`{"type":"patient_transfer","fromBedId":0,"toBedId":9}`))
	require.NoError(t, err)

	next, err := in.Apply(s, t0)
	require.NoError(t, err)
	bed, _ := next.Bed(9)
	require.Equal(t, "Kim", bed.PatientName)
}
