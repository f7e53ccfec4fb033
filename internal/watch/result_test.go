package watch

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKind_String(t *testing.T) {
	assert.Equal(t, "success", KindSuccess.String())
	assert.Equal(t, "not_found", KindNotFound.String())
	assert.Equal(t, "error", KindError.String())
}

func TestResult_OK(t *testing.T) {
	assert.True(t, successResult("満席", "").OK())
	assert.False(t, notFoundResult("").OK())
	assert.False(t, errorResult(errors.New("boom")).OK())
}

func TestResultConstructors(t *testing.T) {
	res := successResult("残1席", "ダーツ 残1席")
	assert.Equal(t, Status("残1席"), res.Status)
	assert.Equal(t, "ダーツ 残1席", res.Snippet)
	assert.WithinDuration(t, time.Now(), res.ObservedAt, time.Second)

	res = errorResult(errors.New("boom"))
	assert.Equal(t, KindError, res.Kind)
	assert.ErrorContains(t, res.Err, "boom")
}
