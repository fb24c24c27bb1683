package motion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessro/mocap/internal/core"
	mocaperrors "github.com/tessro/mocap/internal/errors"
)

const fullHeader = "delta_time_ms," +
	"head_pos_x,head_pos_y,head_pos_z,head_rot_x,head_rot_y,head_rot_z,head_rot_w," +
	"left_hand_pos_x,left_hand_pos_y,left_hand_pos_z,left_hand_rot_x,left_hand_rot_y,left_hand_rot_z,left_hand_rot_w," +
	"right_hand_pos_x,right_hand_pos_y,right_hand_pos_z,right_hand_rot_x,right_hand_rot_y,right_hand_rot_z,right_hand_rot_w"

const noHeadHeader = "delta_time_ms," +
	"head_rot_x,head_rot_y,head_rot_z,head_rot_w," +
	"left_hand_pos_x,left_hand_pos_y,left_hand_pos_z,left_hand_rot_x,left_hand_rot_y,left_hand_rot_z,left_hand_rot_w," +
	"right_hand_pos_x,right_hand_pos_y,right_hand_pos_z,right_hand_rot_x,right_hand_rot_y,right_hand_rot_z,right_hand_rot_w"

func fullRow(ms int, head, left, right [3]float64) string {
	return fmt.Sprintf("%d,%v,%v,%v,0,0,0,1,%v,%v,%v,0,0,0,1,%v,%v,%v,0,0,0,1",
		ms, head[0], head[1], head[2], left[0], left[1], left[2], right[0], right[1], right[2])
}

func noHeadRow(ms int, left, right [3]float64) string {
	return fmt.Sprintf("%d,0,0,0,1,%v,%v,%v,0,0,0,1,%v,%v,%v,0,0,0,1",
		ms, left[0], left[1], left[2], right[0], right[1], right[2])
}

func recording(header string, rows ...string) string {
	return header + "\n" + strings.Join(rows, "\n") + "\n"
}

func assertVec(t *testing.T, want, got mgl64.Vec3) {
	t.Helper()
	assert.True(t, want.ApproxEqualThreshold(got, 1e-9), "want %v, got %v", want, got)
}

func TestParseNormalizesAgainstHead(t *testing.T) {
	data := recording(fullHeader,
		fullRow(0, [3]float64{100, 50, 0}, [3]float64{150, 100, 50}, [3]float64{50, 50, 0}),
		fullRow(500, [3]float64{100, 50, 0}, [3]float64{100, 50, 0}, [3]float64{50, 50, 0}),
		fullRow(1000, [3]float64{200, 50, 0}, [3]float64{100, 50, 0}, [3]float64{50, 50, 0}),
	)

	s, err := Parse(strings.NewReader(data), "walk", DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, "walk", s.Name)
	assert.Equal(t, 3, s.Rows)
	assert.False(t, s.HeadFallback)
	assert.Equal(t, time.Second, s.Duration())

	head := s.Track(core.DeviceHead)
	require.Equal(t, 3, head.Len())
	assertVec(t, mgl64.Vec3{0, 2, 0}, head.At(0).Position)
	assertVec(t, mgl64.Vec3{2, 2, 0}, head.At(2).Position)
	assert.Equal(t, 500*time.Millisecond, head.At(1).Time)

	left := s.Track(core.DeviceLeftHand)
	assertVec(t, mgl64.Vec3{1, 3, 1}, left.At(0).Position)
	assertVec(t, mgl64.Vec3{0, 2, 0}, left.At(1).Position)

	right := s.Track(core.DeviceRightHand)
	assertVec(t, mgl64.Vec3{-1, 2, 0}, right.At(0).Position)
	assert.Equal(t, mgl64.QuatIdent(), right.At(0).Rotation)
}

func TestParseHeadFallbackToRightHand(t *testing.T) {
	data := recording(noHeadHeader,
		noHeadRow(0, [3]float64{60, 20, 30}, [3]float64{10, 20, 30}),
		noHeadRow(100, [3]float64{60, 70, 30}, [3]float64{10, 20, 30}),
	)

	s, err := Parse(strings.NewReader(data), "fallback", DefaultOptions())
	require.NoError(t, err)

	assert.True(t, s.HeadFallback)
	assertVec(t, mgl64.Vec3{1, 2, 0}, s.Track(core.DeviceLeftHand).At(0).Position)
	assertVec(t, mgl64.Vec3{1, 3, 0}, s.Track(core.DeviceLeftHand).At(1).Position)
	assertVec(t, mgl64.Vec3{0, 2, 0}, s.Track(core.DeviceRightHand).At(0).Position)
	assertVec(t, mgl64.Vec3{0, 2, 0}, s.Track(core.DeviceHead).At(1).Position)
}

func TestParseBlankHeadInFirstRow(t *testing.T) {
	first := "0,,,,0,0,0,1,60,20,30,0,0,0,1,10,20,30,0,0,0,1"
	data := recording(fullHeader, first)

	s, err := Parse(strings.NewReader(data), "blank", DefaultOptions())
	require.NoError(t, err)
	assert.True(t, s.HeadFallback)
	assertVec(t, mgl64.Vec3{1, 2, 0}, s.Track(core.DeviceLeftHand).At(0).Position)
}

func TestParseCustomOptions(t *testing.T) {
	data := recording(fullHeader,
		fullRow(0, [3]float64{0, 0, 0}, [3]float64{10, 10, 10}, [3]float64{0, 0, 0}),
	)

	s, err := Parse(strings.NewReader(data), "x", Options{Scale: 10, YOffset: 0.5})
	require.NoError(t, err)
	assertVec(t, mgl64.Vec3{1, 1.5, 1}, s.Track(core.DeviceLeftHand).At(0).Position)
}

func TestParseUploadExport(t *testing.T) {
	data := recording("timestamp,"+
		"hmd_x,hmd_y,hmd_z,hmd_qx,hmd_qy,hmd_qz,hmd_qw,"+
		"left_x,left_y,left_z,left_qx,left_qy,left_qz,left_qw,"+
		"right_x,right_y,right_z,right_qx,right_qy,right_qz,right_qw",
		"250000,100,50,0,0,0,0,1,150,100,50,0,0,1,0,50,50,0,0,0,0,1",
		"250500,100,50,0,0,0,0,1,100,50,0,0,0,1,0,50,50,0,0,0,0,1",
	)

	s, err := Parse(strings.NewReader(data), "upload", DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 2, s.Rows)
	assert.False(t, s.HeadFallback)
	assert.Equal(t, 500*time.Millisecond, s.Duration())

	left := s.Track(core.DeviceLeftHand)
	assert.Equal(t, time.Duration(0), left.At(0).Time)
	assertVec(t, mgl64.Vec3{1, 3, 1}, left.At(0).Position)
	assertVec(t, mgl64.Vec3{0, 0, 1}, left.At(0).Rotation.V)
	assertVec(t, mgl64.Vec3{0, 2, 0}, s.Track(core.DeviceHead).At(1).Position)
}

func TestParseUploadExportMissingColumns(t *testing.T) {
	_, err := Parse(strings.NewReader("timestamp,hmd_x,hmd_y,hmd_z\n1,0,0,0\n"), "upload", DefaultOptions())
	assert.ErrorIs(t, err, mocaperrors.ErrMalformedRecording)
	assert.ErrorContains(t, err, "left_hand_rot_x")
}

func TestParseHeaderOnly(t *testing.T) {
	s, err := Parse(strings.NewReader(fullHeader+"\n"), "empty", DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 0, s.Rows)
	assert.True(t, s.IsEmpty())
	assert.Equal(t, 0, s.Track(core.DeviceHead).Len())
}

func TestParseEmptyInput(t *testing.T) {
	_, err := Parse(strings.NewReader(""), "nothing", DefaultOptions())
	assert.ErrorIs(t, err, mocaperrors.ErrEmptyRecording)
}

func TestParseMalformed(t *testing.T) {
	good := fullRow(0, [3]float64{}, [3]float64{}, [3]float64{})

	tests := []struct {
		name       string
		data       string
		wantLine   int
		wantColumn string
	}{
		{
			name:       "bad number",
			data:       recording(fullHeader, good, strings.Replace(fullRow(10, [3]float64{}, [3]float64{}, [3]float64{}), "10,0,0,0,0,0,0,1,0", "10,0,0,0,0,0,0,1,abc", 1)),
			wantLine:   3,
			wantColumn: "left_hand_pos_x",
		},
		{
			name:       "negative time",
			data:       recording(fullHeader, fullRow(-5, [3]float64{}, [3]float64{}, [3]float64{})),
			wantLine:   2,
			wantColumn: TimeColumn,
		},
		{
			name:       "time goes backwards",
			data:       recording(fullHeader, fullRow(100, [3]float64{}, [3]float64{}, [3]float64{}), good),
			wantLine:   3,
			wantColumn: TimeColumn,
		},
		{
			name:       "zero rotation",
			data:       recording(fullHeader, strings.Replace(good, "0,0,0,1,0,0,0", "0,0,0,0,0,0,0", 1)),
			wantLine:   2,
			wantColumn: "head_rot_w",
		},
		{
			name:       "not a number literal",
			data:       recording(fullHeader, strings.Replace(good, "0,0,0,0,0,0,0,1", "0,NaN,0,0,0,0,0,1", 1)),
			wantLine:   2,
			wantColumn: "head_pos_x",
		},
		{
			name:     "missing columns",
			data:     "delta_time_ms,head_rot_x\n0,0\n",
			wantLine: 1,
		},
		{
			name:     "short row",
			data:     recording(fullHeader, "0,1,2"),
			wantLine: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.data), "bad", DefaultOptions())
			require.Error(t, err)
			assert.ErrorIs(t, err, mocaperrors.ErrMalformedRecording)

			var perr *ParseError
			require.True(t, errors.As(err, &perr), "want *ParseError, got %T", err)
			assert.Equal(t, tt.wantLine, perr.Line)
			assert.Equal(t, tt.wantColumn, perr.Column)
		})
	}
}

func TestParseHeaderCaseInsensitive(t *testing.T) {
	data := recording(strings.ToUpper(fullHeader), fullRow(0, [3]float64{}, [3]float64{}, [3]float64{}))
	_, err := Parse(strings.NewReader(data), "upper", DefaultOptions())
	assert.NoError(t, err)
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, "payload")
	}))
	defer srv.Close()

	f := NewFetcher(time.Second, WithRetryWait(time.Millisecond))
	body, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(body))
	assert.Equal(t, int32(3), hits.Load())
}

func TestFetchGivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewFetcher(time.Second, WithRetries(2), WithRetryWait(time.Millisecond))
	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
}

func TestFetchClientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/missing.csv" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	f := NewFetcher(time.Second, WithRetryWait(time.Millisecond))

	_, err := f.Fetch(context.Background(), srv.URL+"/missing.csv")
	assert.ErrorIs(t, err, mocaperrors.ErrRecordingNotFound)

	_, err = f.Fetch(context.Background(), srv.URL+"/secret.csv")
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
	assert.Equal(t, int32(2), hits.Load())
}

func TestFetchHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	f := NewFetcher(time.Second, WithRetryWait(time.Hour))

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := f.Fetch(ctx, srv.URL)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoaderLocalAndRemote(t *testing.T) {
	data := recording(fullHeader,
		fullRow(0, [3]float64{}, [3]float64{}, [3]float64{}),
		fullRow(250, [3]float64{}, [3]float64{}, [3]float64{}),
	)

	dir := t.TempDir()
	path := filepath.Join(dir, "session-01.csv")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, data)
	}))
	defer srv.Close()

	loader := NewLoader(DefaultOptions(), NewFetcher(time.Second), nil)

	s, err := loader.Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "session-01", s.Name)
	assert.Equal(t, path, s.Source)
	assert.Equal(t, 250*time.Millisecond, s.Duration())

	s, err = loader.Load(context.Background(), srv.URL+"/remote.csv?v=2")
	require.NoError(t, err)
	assert.Equal(t, "remote", s.Name)

	_, err = loader.Load(context.Background(), filepath.Join(dir, "nope.csv"))
	assert.ErrorIs(t, err, mocaperrors.ErrRecordingNotFound)
}

func TestLoaderRemoteDisabled(t *testing.T) {
	loader := NewLoader(DefaultOptions(), nil, nil)
	_, err := loader.Load(context.Background(), "https://example.com/a.csv")
	assert.Error(t, err)
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.csv")
	newer := filepath.Join(dir, "new.CSV")
	require.NoError(t, os.WriteFile(old, []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(newer, []byte("abc"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.csv"), 0o755))

	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	entries, err := List(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "new", entries[0].Name)
	assert.Equal(t, int64(3), entries[0].Size)
	assert.Equal(t, "old", entries[1].Name)
}
