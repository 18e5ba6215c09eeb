package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfSurvivesWrapping(t *testing.T) {
	base := Wrap(DecodeError, "read csv", errors.New("bare quote"))
	wrapped := fmt.Errorf("load: %w", base)

	assert.Equal(t, DecodeError, KindOf(wrapped))
	assert.True(t, Is(wrapped, DecodeError))
	assert.False(t, Is(wrapped, AnalysisError))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.False(t, Is(nil, DecodeError))
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "no_result: nothing returned", New(NoResult, "nothing returned").Error())
	assert.Equal(t, "analysis_error: engine: boom", Wrap(AnalysisError, "engine", errors.New("boom")).Error())
	assert.Contains(t, Unsupported("notes.txt").Error(), `"notes.txt"`)
}
