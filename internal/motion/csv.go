// Package motion decodes motion-capture recordings into sessions.
package motion

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/tessro/mocap/internal/core"
	mocaperrors "github.com/tessro/mocap/internal/errors"
)

// TimeColumn holds each row's timestamp in milliseconds from the start
// of the recording.
const TimeColumn = "delta_time_ms"

// Upload exports name their columns timestamp, hmd_x..hmd_qw, left_x..left_qw
// and right_x..right_qw. Their timestamps are absolute milliseconds.
const uploadTimeColumn = "timestamp"

var uploadPrefixes = map[core.Device]string{
	core.DeviceHead:      "hmd",
	core.DeviceLeftHand:  "left",
	core.DeviceRightHand: "right",
}

var (
	positionAttrs = [3]string{"pos_x", "pos_y", "pos_z"}
	rotationAttrs = [4]string{"rot_x", "rot_y", "rot_z", "rot_w"}
)

// Options controls how raw recorded positions are normalized.
type Options struct {
	// Scale divides every position after the origin is subtracted.
	Scale float64
	// YOffset is added to every normalized vertical position.
	YOffset float64
}

// DefaultOptions returns the normalization used by the recording rig.
func DefaultOptions() Options {
	return Options{Scale: 50, YOffset: 2}
}

// ParseError describes a malformed cell or row. It matches
// errors.ErrMalformedRecording.
type ParseError struct {
	Line   int
	Column string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("line %d, column %s: %v", e.Line, e.Column, e.Err)
}

func (e *ParseError) Unwrap() []error {
	return []error{mocaperrors.ErrMalformedRecording, e.Err}
}

// header maps column names to record indexes.
type header map[string]int

func (h header) has(col string) bool {
	_, ok := h[col]
	return ok
}

// aliasUpload maps upload export columns onto the recording columns. It
// reports whether the header was in upload form.
func (h header) aliasUpload() bool {
	if h.has(TimeColumn) || !h.has(uploadTimeColumn) {
		return false
	}
	h[TimeColumn] = h[uploadTimeColumn]
	for d, prefix := range uploadPrefixes {
		for i, axis := range []string{"x", "y", "z"} {
			if idx, ok := h[prefix+"_"+axis]; ok {
				h[d.Column(positionAttrs[i])] = idx
			}
		}
		for i, axis := range []string{"qx", "qy", "qz", "qw"} {
			if idx, ok := h[prefix+"_"+axis]; ok {
				h[d.Column(rotationAttrs[i])] = idx
			}
		}
	}
	return true
}

func (h header) require(cols ...string) error {
	var missing []string
	for _, c := range cols {
		if !h.has(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return &ParseError{Line: 1, Err: fmt.Errorf("missing columns: %s", strings.Join(missing, ", "))}
	}
	return nil
}

// Parse decodes a CSV recording. The first row is the header. Any malformed
// row fails the whole parse with a *ParseError. A header with no data rows
// yields an empty session.
func Parse(r io.Reader, name string, opts Options) (*core.Session, error) {
	if opts.Scale == 0 {
		opts.Scale = DefaultOptions().Scale
	}

	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	names, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%s: %w", name, mocaperrors.ErrEmptyRecording)
	}
	if err != nil {
		return nil, &ParseError{Line: 1, Err: err}
	}

	h := make(header, len(names))
	for i, n := range names {
		h[strings.ToLower(strings.TrimSpace(n))] = i
	}
	upload := h.aliasUpload()

	required := []string{TimeColumn}
	for _, d := range core.Devices {
		for _, a := range rotationAttrs {
			required = append(required, d.Column(a))
		}
		if d == core.DeviceHead {
			continue
		}
		for _, a := range positionAttrs {
			required = append(required, d.Column(a))
		}
	}
	if err := h.require(required...); err != nil {
		return nil, err
	}

	var rows []row
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var csvErr *csv.ParseError
			if errors.As(err, &csvErr) {
				return nil, &ParseError{Line: csvErr.Line, Err: csvErr.Err}
			}
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		line, _ := cr.FieldPos(0)
		parsed, err := parseRow(h, rec, line)
		if err != nil {
			return nil, err
		}
		if n := len(rows); n > 0 && parsed.time < rows[n-1].time {
			return nil, &ParseError{Line: line, Column: TimeColumn, Err: fmt.Errorf("time %v is before previous row", parsed.time)}
		}
		rows = append(rows, parsed)
	}

	if upload && len(rows) > 0 {
		start := rows[0].time
		for i := range rows {
			rows[i].time -= start
		}
	}
	return buildSession(name, rows, opts)
}

type row struct {
	line    int
	time    time.Duration
	pos     map[core.Device]mgl64.Vec3
	rot     map[core.Device]mgl64.Quat
	hasHead bool
}

func parseRow(h header, rec []string, line int) (row, error) {
	r := row{
		line: line,
		pos:  make(map[core.Device]mgl64.Vec3, len(core.Devices)),
		rot:  make(map[core.Device]mgl64.Quat, len(core.Devices)),
	}

	ms, err := parseCell(h, rec, line, TimeColumn)
	if err != nil {
		return r, err
	}
	if ms < 0 {
		return r, &ParseError{Line: line, Column: TimeColumn, Err: fmt.Errorf("negative time %v", ms)}
	}
	r.time = time.Duration(ms * float64(time.Millisecond))

	for _, d := range core.Devices {
		if d == core.DeviceHead {
			v, ok, err := parseOptionalVec(h, rec, line, d)
			if err != nil {
				return r, err
			}
			r.hasHead = ok
			r.pos[d] = v
		} else {
			var v mgl64.Vec3
			for i, a := range positionAttrs {
				if v[i], err = parseCell(h, rec, line, d.Column(a)); err != nil {
					return r, err
				}
			}
			r.pos[d] = v
		}

		var q [4]float64
		for i, a := range rotationAttrs {
			if q[i], err = parseCell(h, rec, line, d.Column(a)); err != nil {
				return r, err
			}
		}
		quat := mgl64.Quat{W: q[3], V: mgl64.Vec3{q[0], q[1], q[2]}}
		if quat.Len() == 0 {
			return r, &ParseError{Line: line, Column: d.Column("rot_w"), Err: fmt.Errorf("zero-length rotation")}
		}
		r.rot[d] = quat.Normalize()
	}

	return r, nil
}

// parseOptionalVec reads a device position whose columns may be absent or
// blank. A partially filled position is malformed.
func parseOptionalVec(h header, rec []string, line int, d core.Device) (mgl64.Vec3, bool, error) {
	var v mgl64.Vec3
	blank := 0
	for _, a := range positionAttrs {
		col := d.Column(a)
		if !h.has(col) || strings.TrimSpace(rec[h[col]]) == "" {
			blank++
		}
	}
	if blank == len(positionAttrs) {
		return v, false, nil
	}
	var err error
	for i, a := range positionAttrs {
		if v[i], err = parseCell(h, rec, line, d.Column(a)); err != nil {
			return v, false, err
		}
	}
	return v, true, nil
}

func parseCell(h header, rec []string, line int, col string) (float64, error) {
	idx, ok := h[col]
	if !ok {
		return 0, &ParseError{Line: line, Column: col, Err: fmt.Errorf("missing column")}
	}
	raw := strings.TrimSpace(rec[idx])
	if raw == "" {
		return 0, &ParseError{Line: line, Column: col, Err: fmt.Errorf("empty value")}
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &ParseError{Line: line, Column: col, Err: fmt.Errorf("invalid number %q", raw)}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &ParseError{Line: line, Column: col, Err: fmt.Errorf("non-finite value %q", raw)}
	}
	return f, nil
}

// buildSession normalizes rows against the first row's head position,
// falling back to the right hand when the head position is missing.
func buildSession(name string, rows []row, opts Options) (*core.Session, error) {
	session := &core.Session{
		Name:   name,
		Tracks: make(map[core.Device]*core.MotionTrack, len(core.Devices)),
		Rows:   len(rows),
	}

	var origin mgl64.Vec3
	if len(rows) > 0 {
		first := rows[0]
		origin = first.pos[core.DeviceHead]
		if !first.hasHead {
			origin = first.pos[core.DeviceRightHand]
			session.HeadFallback = true
		}
	}

	normalize := func(p mgl64.Vec3) mgl64.Vec3 {
		n := p.Sub(origin).Mul(1 / opts.Scale)
		n[1] += opts.YOffset
		return n
	}

	for _, d := range core.Devices {
		samples := make([]core.PoseSample, 0, len(rows))
		for _, r := range rows {
			pos := normalize(r.pos[d])
			if d == core.DeviceHead && !r.hasHead {
				pos = mgl64.Vec3{0, opts.YOffset, 0}
			}
			samples = append(samples, core.PoseSample{
				Time: r.time,
				Pose: core.Pose{Position: pos, Rotation: r.rot[d]},
			})
		}
		track, err := core.NewMotionTrack(d, samples)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		session.Tracks[d] = track
	}

	return session, nil
}
