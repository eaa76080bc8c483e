// Package driver runs a lumped outlet model standalone against a prescribed
// flow waveform, emulating the host solver's timestep loop: per step it
// offers the same (time, flow) pair to the outlet several times, the way
// outer nonlinear iterations do, and records the committed pressure trace.
package driver

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/GaryBoone/GoStats/stats"
	"github.com/sirupsen/logrus"

	"github.com/cardioflow/windkessel/outlet"
)

// Sample is one waveform point: simulation time and instantaneous outflow
// rate.
type Sample struct {
	T float64
	Q float64
}

// ReadWaveform parses a two-column CSV (time, flow). Blank lines and lines
// starting with '#' are skipped; a non-numeric first row is treated as a
// header. Times must be strictly increasing.
func ReadWaveform(r io.Reader) ([]Sample, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.TrimLeadingSpace = true

	var out []Sample
	line := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("driver: reading waveform: %w", err)
		}
		line++
		if len(rec) < 2 {
			return nil, fmt.Errorf("driver: waveform line %d has %d columns, want 2", line, len(rec))
		}
		t, errT := strconv.ParseFloat(strings.TrimSpace(rec[0]), 64)
		q, errQ := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if errT != nil || errQ != nil {
			if line == 1 {
				continue // Header row
			}
			return nil, fmt.Errorf("driver: waveform line %d is not numeric", line)
		}
		if n := len(out); n > 0 && t <= out[n-1].T {
			return nil, fmt.Errorf("driver: waveform times must increase: line %d has t=%g after t=%g",
				line, t, out[n-1].T)
		}
		out = append(out, Sample{T: t, Q: q})
	}
	if len(out) < 2 {
		return nil, fmt.Errorf("driver: waveform needs at least two samples, got %d", len(out))
	}
	return out, nil
}

// Result is a computed pressure trace aligned with the driving waveform.
// Zeff is populated only for implicit-mode outlets.
type Result struct {
	Time     []float64
	Flow     []float64
	Pressure []float64
	Zeff     []float64
}

// Run integrates the outlet over the waveform. outer is the number of calls
// per timestep (≥1); calls beyond the first exercise the update gate and
// must not change the trajectory. In implicit mode the linearized
// coefficients are evaluated each iteration too, as a host assembly would.
func Run(o *outlet.Outlet, waveform []Sample, outer int, log logrus.FieldLogger) (*Result, error) {
	if outer < 1 {
		return nil, fmt.Errorf("driver: outer iteration count must be >= 1, got %d", outer)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	res := &Result{
		Time:     make([]float64, 0, len(waveform)-1),
		Flow:     make([]float64, 0, len(waveform)-1),
		Pressure: make([]float64, 0, len(waveform)-1),
	}

	for i := 1; i < len(waveform); i++ {
		t := waveform[i].T
		q := waveform[i].Q
		dt := t - waveform[i-1].T

		var p float64
		var zeff float64
		implicit := false
		for it := 0; it < outer; it++ {
			p = o.Update(t, q, dt)
			// A real host re-assembles the coefficients every outer
			// iteration; they must come out identical each time.
			if c, ok := o.MatrixCoefficients(dt); ok {
				implicit = true
				zeff = c.Zeff
			}
		}

		res.Time = append(res.Time, t)
		res.Flow = append(res.Flow, q)
		res.Pressure = append(res.Pressure, p)
		if implicit {
			res.Zeff = append(res.Zeff, zeff)
		}
	}

	log.WithFields(logrus.Fields{
		"outlet": o.Name,
		"steps":  len(res.Time),
		"outer":  outer,
	}).Info("waveform integration complete")
	return res, nil
}

// WriteCSV writes the trace as time,flow,pressure rows with a header.
func (r *Result) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"time", "flow", "pressure"}); err != nil {
		return err
	}
	for i := range r.Time {
		rec := []string{
			strconv.FormatFloat(r.Time[i], 'g', -1, 64),
			strconv.FormatFloat(r.Flow[i], 'g', -1, 64),
			strconv.FormatFloat(r.Pressure[i], 'g', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Summary reports diastolic (min), systolic (max) and mean pressure over
// the trace.
func (r *Result) Summary() (diastolic, systolic, mean float64) {
	if len(r.Pressure) == 0 {
		return 0, 0, 0
	}
	return stats.StatsMin(r.Pressure), stats.StatsMax(r.Pressure), stats.StatsMean(r.Pressure)
}
