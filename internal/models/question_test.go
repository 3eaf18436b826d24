package models_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/playcrack/trivia/internal/models"
)

func TestFlexIntAcceptsNumberAndString(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want models.FlexInt
	}{
		{"number", `{"correct_option":2}`, 2},
		{"string", `{"correct_option":"2"}`, 2},
		{"null", `{"correct_option":null}`, 0},
		{"absent", `{}`, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var q models.Question
			require.NoError(t, json.Unmarshal([]byte(tc.in), &q))
			require.Equal(t, tc.want, q.CorrectOption)
		})
	}
}

func TestFlexIntRejectsNonNumeric(t *testing.T) {
	var q models.Question
	err := json.Unmarshal([]byte(`{"correct_option":"two"}`), &q)
	require.Error(t, err)
}

func TestFlexIntMarshalsAsNumber(t *testing.T) {
	data, err := json.Marshal(models.Question{ID: 1, CorrectOption: 4})
	require.NoError(t, err)
	require.Contains(t, string(data), `"correct_option":4`)
}
