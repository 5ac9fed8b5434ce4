package harvest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMerge_FirstWriterWins(t *testing.T) {
	t.Parallel()

	existing := JobRecord{
		Title:     "Software Engineer",
		SourceURL: "https://example.com/jobs/1",
	}
	incoming := JobRecord{
		Title:    "SHOULD NOT OVERWRITE",
		Category: "Tecnologia",
		Location: "Maputo",
	}

	merged := Merge(existing, incoming)

	require.Equal(t, "Software Engineer", merged.Title)
	require.Equal(t, "Tecnologia", merged.Category)
	require.Equal(t, "Maputo", merged.Location)
	require.Equal(t, "https://example.com/jobs/1", merged.SourceURL)
}

func TestMerge_ChainsAcrossTiers(t *testing.T) {
	t.Parallel()

	tier1 := JobRecord{Title: "Analista"}
	tier2 := JobRecord{Category: "Finanças", Title: "ignored"}
	tier3 := JobRecord{Category: "ignored", Company: "Banco XYZ"}

	merged := Merge(Merge(tier1, tier2), tier3)

	require.Equal(t, "Analista", merged.Title)
	require.Equal(t, "Finanças", merged.Category)
	require.Equal(t, "Banco XYZ", merged.Company)
}

func TestJobRecord_EmptyAndComplete(t *testing.T) {
	t.Parallel()

	var rec JobRecord
	require.True(t, rec.Empty())
	require.False(t, rec.Complete())

	rec.Set(FieldTitle, "Motorista")
	require.False(t, rec.Empty())
	require.False(t, rec.Complete())

	for _, f := range ContentFields {
		rec.Set(f, "x")
	}
	require.True(t, rec.Complete())
}

func TestJobRecord_GetSetRoundTrip(t *testing.T) {
	t.Parallel()

	var rec JobRecord
	for _, f := range ContentFields {
		rec.Set(f, string(f))
	}
	for _, f := range ContentFields {
		require.Equal(t, string(f), rec.Get(f))
	}
}

func TestResult_Skipped(t *testing.T) {
	t.Parallel()

	require.False(t, Result{Record: JobRecord{Title: "x"}}.Skipped())
	require.True(t, Result{Skip: SkipExpired}.Skipped())
}
