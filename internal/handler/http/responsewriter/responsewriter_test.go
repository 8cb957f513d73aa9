package responsewriter

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap_DefaultsTo200(t *testing.T) {
	w := Wrap(httptest.NewRecorder())

	assert.Equal(t, http.StatusOK, w.StatusCode())
	assert.Zero(t, w.BytesWritten())
}

func TestWriteHeader_RecordsStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	w := Wrap(rec)

	w.WriteHeader(http.StatusTooManyRequests)

	assert.Equal(t, http.StatusTooManyRequests, w.StatusCode())
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestWriteHeader_OnlyFirstCallCounts(t *testing.T) {
	rec := httptest.NewRecorder()
	w := Wrap(rec)

	w.WriteHeader(http.StatusAccepted)
	w.WriteHeader(http.StatusInternalServerError)

	assert.Equal(t, http.StatusAccepted, w.StatusCode())
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestWrite_CountsBytes(t *testing.T) {
	rec := httptest.NewRecorder()
	w := Wrap(rec)

	body := []byte(`{"status":"queued"}`)
	n, err := w.Write(body)
	require.NoError(t, err)
	assert.Equal(t, len(body), n)

	_, err = w.Write([]byte("\n"))
	require.NoError(t, err)
	assert.Equal(t, len(body)+1, w.BytesWritten())
}

func TestWrite_ImplicitOK(t *testing.T) {
	rec := httptest.NewRecorder()
	w := Wrap(rec)

	_, err := w.Write([]byte("ok"))

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, w.StatusCode())
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUnwrap(t *testing.T) {
	rec := httptest.NewRecorder()
	w := Wrap(rec)

	assert.Same(t, http.ResponseWriter(rec), w.Unwrap())
}
