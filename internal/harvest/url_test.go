package harvest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases host", "https://WWW.Emprego.CO.MZ/vaga/123", "https://www.emprego.co.mz/vaga/123"},
		{"strips default https port", "https://example.com:443/a", "https://example.com/a"},
		{"strips default http port", "http://example.com:80/a", "http://example.com/a"},
		{"drops fragment", "https://example.com/a#section", "https://example.com/a"},
		{"sorts query params", "https://example.com/a?b=2&a=1", "https://example.com/a?a=1&b=2"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := NormalizeURL(tc.in)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestAbsolutize(t *testing.T) {
	t.Parallel()

	got, err := Absolutize("https://unjobs.org/duty_stations/mozambique", "/vacancies/123")
	require.NoError(t, err)
	require.Equal(t, "https://unjobs.org/vacancies/123", got)

	got, err = Absolutize("https://unjobs.org/x", "https://other.org/y")
	require.NoError(t, err)
	require.Equal(t, "https://other.org/y", got)
}

func TestWithPageParam(t *testing.T) {
	t.Parallel()

	got, err := WithPageParam("https://emprego.mmo.co.mz/vagas-em-mocambique/", "page", 3)
	require.NoError(t, err)
	require.Equal(t, "https://emprego.mmo.co.mz/vagas-em-mocambique/?page=3", got)

	got, err = WithPageParam("https://example.com/list?page=2&q=x", "page", 5)
	require.NoError(t, err)
	require.Equal(t, "https://example.com/list?page=5&q=x", got)
}
