// oem file parser
// Copyright(c) 2022 Matt Pharr, Apache License

// Package oem provides a parser for CCSDS-style Orbital Ephemeris Message
// (OEM) text files, as published for the ISS and other spacecraft: a
// metadata header, free-form COMMENT annotations, and a time series of
// position/velocity state vectors.
package oem

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// ISSURL is the public NASA ephemeris for the International Space Station.
const ISSURL = "https://nasa-public-data.s3.amazonaws.com/iss-coords/current/ISS_OEM/ISS.OEM_J2K_EPH.txt"

// Ephemeris is a structure that wraps up all of the items processed by
// the parser.
type Ephemeris struct {
	ObjectName string // OBJECT_NAME from the metadata block, if present
	ObjectID   string // OBJECT_ID from the metadata block, if present

	MetadataText   string // Lines of the META_START/META_END block
	TrajectoryText string // Lines of the COMMENT TRAJECTORY block

	Vectors []StateVector

	// Errors holds the lines of the coordinate stream that could not be
	// parsed, in input order. They are not represented in Vectors.
	Errors []*SyntaxError
}

// StateVector is the position of the object at a single epoch. Positions
// are in kilometers.
type StateVector struct {
	Sequence int // 1-based position in Ephemeris.Vectors
	Epoch    time.Time
	X, Y, Z  float64
}

func (sv StateVector) String() string {
	return fmt.Sprintf("%d %s %.6f %.6f %.6f", sv.Sequence, sv.Epoch.Format(epochLayout), sv.X, sv.Y, sv.Z)
}

// Metadata returns the KEY = VALUE (or KEY VALUE) pairs found between
// META_START and META_END/META_STOP. Keys are upper-case keywords; other
// lines, such as comment prose, are not included.
func (e *Ephemeris) Metadata() map[string]string {
	m := make(map[string]string)
	inBlock := false
	for _, line := range strings.Split(e.MetadataText, "\n") {
		f := strings.Fields(line)
		if len(f) == 0 {
			continue
		}
		if strings.Contains(f[0], "META_START") {
			inBlock = true
			continue
		}
		if strings.Contains(f[0], "META_END") || strings.Contains(f[0], "META_STOP") {
			inBlock = false
			continue
		}
		if !inBlock || len(f) < 2 {
			continue
		}

		key, value, found := strings.Cut(strings.TrimSpace(line), "=")
		if found {
			key = strings.TrimSpace(key)
			value = strings.TrimSpace(value)
		} else {
			key = f[0]
			value = strings.Join(f[1:], " ")
		}
		if isKeyword(key) {
			m[key] = value
		}
	}
	return m
}

func isKeyword(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if !(c >= 'A' && c <= 'Z') && !(c >= '0' && c <= '9') && c != '_' {
			return false
		}
	}
	return true
}

// Table returns the columnar view of the vector series.
func (e *Ephemeris) Table() Table {
	return Table{vectors: e.Vectors}
}

// Table is a read-only columnar projection of a vector series: sequence
// number and the three position components. Each accessor returns a
// freshly allocated slice.
type Table struct {
	vectors []StateVector
}

// Columns names the table's columns in order.
var Columns = []string{"counts", "x coordinates", "y coordinates", "z coordinates"}

func (t Table) Len() int { return len(t.vectors) }

// Row returns the i'th row of the table.
func (t Table) Row(i int) (seq int, x, y, z float64) {
	v := t.vectors[i]
	return v.Sequence, v.X, v.Y, v.Z
}

func (t Table) Sequence() []int {
	s := make([]int, len(t.vectors))
	for i, v := range t.vectors {
		s[i] = v.Sequence
	}
	return s
}

func (t Table) X() []float64 { return t.column(func(v StateVector) float64 { return v.X }) }
func (t Table) Y() []float64 { return t.column(func(v StateVector) float64 { return v.Y }) }
func (t Table) Z() []float64 { return t.column(func(v StateVector) float64 { return v.Z }) }

func (t Table) column(get func(StateVector) float64) []float64 {
	c := make([]float64, len(t.vectors))
	for i, v := range t.vectors {
		c[i] = get(v)
	}
	return c
}

// WriteCSV writes the table, with a header row, as CSV.
func (t Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	ff := func(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
	for _, v := range t.vectors {
		if err := cw.Write([]string{strconv.Itoa(v.Sequence), ff(v.X), ff(v.Y), ff(v.Z)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Writes a text representation of the ephemeris to the provided writer.
func (e Ephemeris) Write(w io.Writer) {
	fmt.Fprintf(w, "OBJECT:\n\tName: %s\n\tId: %s\n\n", e.ObjectName, e.ObjectID)

	printText := func(text string) {
		for _, line := range strings.Split(strings.TrimSuffix(text, "\n"), "\n") {
			if line != "" {
				fmt.Fprintf(w, "\t%s\n", strings.TrimSpace(line))
			}
		}
	}

	fmt.Fprintf(w, "Metadata:\n")
	printText(e.MetadataText)

	fmt.Fprintf(w, "\nTrajectory:\n")
	printText(e.TrajectoryText)

	fmt.Fprintf(w, "\nState Vectors:\n")
	for _, v := range e.Vectors {
		fmt.Fprintf(w, "\t%s\n", v)
	}

	if len(e.Errors) > 0 {
		fmt.Fprintf(w, "\nSkipped Lines:\n")
		for _, err := range e.Errors {
			fmt.Fprintf(w, "\t%d: %s\n", err.Line, err.Err)
		}
	}
}
