package entity

import (
	"math"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		kind Kind
		raw  any
		want Value
	}{
		{name: "nil is null", kind: KindString, raw: nil, want: Null()},
		{name: "string kept", kind: KindString, raw: "Old Name", want: String("Old Name")},
		{name: "empty string is explicit", kind: KindString, raw: "", want: String("")},
		{name: "bytes to string", kind: KindString, raw: []byte("abc"), want: String("abc")},
		{name: "int as string", kind: KindString, raw: int64(42), want: String("42")},
		{name: "float number", kind: KindNumber, raw: 40.1, want: String("40.1")},
		{name: "padded decimal string", kind: KindNumber, raw: "40.10", want: String("40.1")},
		{name: "numeric bytes", kind: KindNumber, raw: []byte("40.1000"), want: String("40.1")},
		{name: "big rat", kind: KindNumber, raw: big.NewRat(401, 10), want: String("40.1")},
		{name: "blank number is null", kind: KindNumber, raw: " ", want: Null()},
		{name: "date from time", kind: KindDate, raw: time.Date(2024, 3, 1, 15, 4, 5, 0, time.UTC), want: String("2024-03-01")},
		{name: "date from rfc3339", kind: KindDate, raw: "2024-03-01T00:00:00Z", want: String("2024-03-01")},
		{name: "bool from string", kind: KindBool, raw: "t", want: String("true")},
		{name: "bool from int", kind: KindBool, raw: 0, want: String("false")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := Normalize(tc.kind, tc.raw)
			require.NoError(t, err)
			require.True(t, tc.want.Equal(got), "want %#v, got %#v", tc.want, got)
		})
	}
}

func TestNormalize_Rejects(t *testing.T) {
	t.Parallel()

	_, err := Normalize(KindNumber, "forty")
	require.Error(t, err)
	_, err = Normalize(KindDate, "tomorrow")
	require.Error(t, err)
	_, err = Normalize(KindBool, "maybe")
	require.Error(t, err)
}

func TestNormalize_NonFiniteFloats(t *testing.T) {
	t.Parallel()

	for _, raw := range []any{math.NaN(), math.Inf(1), math.Inf(-1), float32(math.Inf(1))} {
		require.NotPanics(t, func() {
			_, err := Normalize(KindNumber, raw)
			require.Error(t, err)
		})
		require.NotPanics(t, func() {
			_, err := Normalize(KindBool, raw)
			require.Error(t, err)
		})
		v, err := Normalize(KindString, raw)
		require.NoError(t, err)
		require.True(t, v.IsSet())
	}
}

func TestValue_Persists(t *testing.T) {
	t.Parallel()

	require.True(t, Unset().Persists(Null()))
	require.True(t, Null().Persists(Unset()))
	require.False(t, Unset().Equal(Null()))
	require.False(t, String("").Persists(Null()))
	require.False(t, String("a").Persists(String("b")))
	require.True(t, String("a").Persists(String("a")))
}

func TestValue_MarshalJSON(t *testing.T) {
	t.Parallel()

	b, err := String("x").MarshalJSON()
	require.NoError(t, err)
	require.JSONEq(t, `"x"`, string(b))

	b, err = Unset().MarshalJSON()
	require.NoError(t, err)
	require.Equal(t, "null", string(b))
}
