package game

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCommandNameCoversEveryCommand(t *testing.T) {
	cases := map[command]string{
		cmdStart{}:        "start_game",
		cmdEnd{}:          "end_game",
		cmdNextQuestion{}: "next_question",
		cmdResetScores{}:  "reset_scores",
		cmdJoin{}:         "join",
		cmdAnswer{}:       "submit_answer",
		cmdDisconnect{}:   "disconnect",
		cmdRankingGet{}:   "ranking_get",
		cmdTimerFired{}:   "timer_fired",
		cmdState{}:        "state",
	}

	for cmd, want := range cases {
		require.Equal(t, want, commandName(cmd))
	}
}
