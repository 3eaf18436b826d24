package models

import (
	"bytes"
	"strconv"
)

// Question is a quiz question as produced by the question management API.
// The coordinator treats it as an opaque value: it is pushed to clients as-is
// and only ID, CorrectOption, Points and TimeLimitSec are inspected.
// JSON field names follow the questions table columns.
type Question struct {
	ID             int64   `json:"id"`
	Text           string  `json:"question_text"`
	MediaURL       string  `json:"video_url"`
	PauseOffsetSec int     `json:"pause_timestamp_secs"`
	Points         int     `json:"points"`
	TimeLimitSec   int     `json:"time_limit_secs"`
	Option1        string  `json:"option_1"`
	Option2        string  `json:"option_2"`
	Option3        string  `json:"option_3"`
	Option4        string  `json:"option_4"`
	CorrectOption  FlexInt `json:"correct_option"`
}

// FlexInt is an integer that unmarshals from either a JSON number or a
// numeric string. The admin panel and older clients are inconsistent about
// whether option indexes travel as "2" or 2, and answer checking must treat
// both as the same value.
type FlexInt int64

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	s := string(bytes.Trim(data, `"`))
	if s == "null" || s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*f = FlexInt(n)
	return nil
}

func (f FlexInt) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(int64(f), 10)), nil
}
