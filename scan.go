// oem file parser
// Copyright(c) 2022 Matt Pharr, Apache License

package oem

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Section identifies the region of an OEM document the scanner is in. It
// only changes when a line carries a recognized marker; unmarked lines are
// processed under whatever section was last entered.
type Section int

const (
	Unknown Section = iota
	MetaStart
	MetaEnd
	CommentSource
	CommentTrajectory
	CommentEnd
	CoordinateStream
)

var sectionNames = [...]string{
	Unknown:           "Unknown",
	MetaStart:         "MetaStart",
	MetaEnd:           "MetaEnd",
	CommentSource:     "CommentSource",
	CommentTrajectory: "CommentTrajectory",
	CommentEnd:        "CommentEnd",
	CoordinateStream:  "CoordinateStream",
}

func (s Section) String() string {
	if s < 0 || int(s) >= len(sectionNames) {
		return fmt.Sprintf("Section(%d)", int(s))
	}
	return sectionNames[s]
}

// Epochs are always written with millisecond precision and no zone; they
// are interpreted as UTC.
const epochLayout = "2006-01-02T15:04:05.000"

var (
	ErrMalformedTimestamp = errors.New("malformed timestamp")
	ErrMalformedNumber    = errors.New("malformed number")
	ErrInsufficientFields = errors.New("insufficient fields")
	ErrEmptyDocument      = errors.New("no recognizable OEM section")
)

// SyntaxError describes a line of the coordinate stream that could not be
// parsed as a state vector. It unwraps to one of ErrMalformedTimestamp,
// ErrMalformedNumber, or ErrInsufficientFields.
type SyntaxError struct {
	Filename string
	Line     int
	Text     string
	Err      error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d: syntax error: %s\n\t%s\n", e.Filename, e.Line, e.Err, e.Text)
}

func (e *SyntaxError) Unwrap() error { return e.Err }

///////////////////////////////////////////////////////////////////////////
// line sources

type oemLine struct {
	text   string
	lineno int
}

type lineSource interface {
	GetLine() (oemLine, error)
}

// bufferLines hands out the lines of an in-memory document.
type bufferLines struct {
	file   []byte
	offset int
	lineno int
}

func (b *bufferLines) GetLine() (oemLine, error) {
	if b.offset == len(b.file) {
		return oemLine{}, io.EOF
	}

	b.lineno++
	end := b.offset
	for end < len(b.file) && b.file[end] != '\r' && b.file[end] != '\n' {
		end++
	}
	contents := b.file[b.offset:end]

	// Scan past detritus at EOL
	for end < len(b.file) && b.file[end] != '\n' {
		end++
	}
	if end < len(b.file) {
		end++ // skip newline
	}
	b.offset = end

	return oemLine{text: string(contents), lineno: b.lineno}, nil
}

// readerLines hands out lines as they are read from an io.Reader.
type readerLines struct {
	s      *bufio.Scanner
	lineno int
}

func newReaderLines(r io.Reader) *readerLines {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64*1024), 1024*1024)
	return &readerLines{s: s}
}

func (r *readerLines) GetLine() (oemLine, error) {
	if !r.s.Scan() {
		if err := r.s.Err(); err != nil {
			return oemLine{}, err
		}
		return oemLine{}, io.EOF
	}
	r.lineno++
	return oemLine{text: strings.TrimRight(r.s.Text(), "\r"), lineno: r.lineno}, nil
}

///////////////////////////////////////////////////////////////////////////
// classification

func tokenize(line string) []string {
	return strings.Fields(line)
}

// Classify returns the section in effect after a line with the given
// tokens, starting from cur. Marker rules are evaluated in order and the
// last one that fires wins; if none fires, cur is returned unchanged.
func Classify(cur Section, tokens []string) Section {
	if len(tokens) == 0 {
		return cur
	}

	next := cur
	first := tokens[0]
	if strings.Contains(first, "META_START") {
		next = MetaStart
	}
	// CCSDS closes the block with META_STOP; some producers write META_END.
	if strings.Contains(first, "META_END") || strings.Contains(first, "META_STOP") {
		next = MetaEnd
	}
	if strings.Contains(first, "COMMENT") && len(tokens) > 1 {
		if strings.Contains(tokens[1], "Source") {
			next = CommentSource
		}
		if strings.Contains(tokens[1], "TRAJECTORY") {
			next = CommentTrajectory
		}
		if strings.Contains(tokens[1], "End") {
			next = CommentEnd
		}
	}
	if isVectorLine(tokens) {
		next = CoordinateStream
	}
	return next
}

// isVectorLine reports whether the tokens have the shape of a state
// vector: an epoch followed by exactly six numbers.
func isVectorLine(tokens []string) bool {
	if len(tokens) != 7 {
		return false
	}
	if _, err := parseEpoch(tokens[0]); err != nil {
		return false
	}
	for _, tok := range tokens[1:] {
		if _, err := atof(tok); err != nil {
			return false
		}
	}
	return true
}

///////////////////////////////////////////////////////////////////////////
// state vectors

// time.Parse alone accepts one-digit hours and a comma before the
// fraction, so the shape is checked first.
var epochRE = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}$`)

func parseEpoch(s string) (time.Time, error) {
	if !epochRE.MatchString(s) {
		return time.Time{}, fmt.Errorf("%q does not match %s", s, epochLayout)
	}
	return time.Parse(epochLayout, s)
}

// atof accepts finite decimal numbers only: no NaN, Inf, hex floats, or
// digit separators.
func atof(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.Trim(s, "0123456789+-.eE") != "" {
		return 0, fmt.Errorf("%q is not a decimal number", s)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("%q is not finite", s)
	}
	return f, nil
}

// ParseVector parses the tokens of a coordinate line: an epoch followed by
// the x, y, and z position components. Any velocity components that follow
// are ignored. The returned vector's Sequence is left zero.
func ParseVector(tokens []string) (StateVector, error) {
	if len(tokens) < 4 {
		return StateVector{}, fmt.Errorf("%w: expected epoch and 3 position fields, got %d fields",
			ErrInsufficientFields, len(tokens))
	}

	epoch, err := parseEpoch(tokens[0])
	if err != nil {
		return StateVector{}, fmt.Errorf("%w: %q", ErrMalformedTimestamp, tokens[0])
	}

	var pos [3]float64
	for i := range pos {
		if pos[i], err = atof(tokens[i+1]); err != nil {
			return StateVector{}, fmt.Errorf("%w: %c component %q", ErrMalformedNumber, "xyz"[i], tokens[i+1])
		}
	}

	return StateVector{Epoch: epoch, X: pos[0], Y: pos[1], Z: pos[2]}, nil
}

///////////////////////////////////////////////////////////////////////////
// aggregation

// aggregator accumulates the parse result. Sequence numbers are assigned
// here, in append order.
type aggregator struct {
	meta, traj strings.Builder
	vectors    []StateVector
	errors     []*SyntaxError
}

func stripComment(line string) string {
	for strings.Contains(line, "COMMENT") {
		line = strings.ReplaceAll(line, "COMMENT", "")
	}
	return line
}

func (a *aggregator) appendMeta(line string) {
	a.meta.WriteString(stripComment(line))
	a.meta.WriteByte('\n')
}

func (a *aggregator) appendTrajectory(line string) {
	a.traj.WriteString(stripComment(line))
	a.traj.WriteByte('\n')
}

func (a *aggregator) appendVector(v StateVector) {
	v.Sequence = len(a.vectors) + 1
	a.vectors = append(a.vectors, v)
}

func (a *aggregator) appendError(err *SyntaxError) {
	a.errors = append(a.errors, err)
}

func (a *aggregator) record() *Ephemeris {
	e := &Ephemeris{
		MetadataText:   a.meta.String(),
		TrajectoryText: a.traj.String(),
		Vectors:        a.vectors,
		Errors:         a.errors,
	}
	md := e.Metadata()
	e.ObjectName = md["OBJECT_NAME"]
	e.ObjectID = md["OBJECT_ID"]
	return e
}

///////////////////////////////////////////////////////////////////////////
// ephemerisParser

type ephemerisParser struct {
	filename      string
	section       Section
	entered       bool // has any section other than Unknown been seen?
	agg           aggregator
	errorCallback func(error)
}

func (p *ephemerisParser) SyntaxError(l oemLine, err error) {
	se := &SyntaxError{Filename: p.filename, Line: l.lineno, Text: l.text, Err: err}
	p.agg.appendError(se)
	if p.errorCallback != nil {
		p.errorCallback(se)
	}
}

func (p *ephemerisParser) scanLine(line oemLine) {
	tokens := tokenize(line.text)
	p.section = Classify(p.section, tokens)
	if p.section != Unknown {
		p.entered = true
	}

	switch p.section {
	case MetaStart, MetaEnd:
		p.agg.appendMeta(line.text)

	case CommentTrajectory:
		p.agg.appendTrajectory(line.text)

	case CommentEnd:
		// The end of the comment block hands off to the state vectors.
		p.section = CoordinateStream

	case CoordinateStream:
		if len(tokens) == 0 {
			return
		}
		if v, err := ParseVector(tokens); err != nil {
			p.SyntaxError(line, err)
		} else {
			p.agg.appendVector(v)
		}

	default:
		// Unknown or CommentSource: nothing is kept.
	}
}

// Parser holds the options for parsing OEM documents. The zero value is
// ready to use and scans every line of its input.
type Parser struct {
	// MaxLines stops the scan after that many lines; zero or negative
	// means scan until the input is exhausted.
	MaxLines int

	// Syntax, if non-nil, is called with a *SyntaxError for each
	// coordinate line that could not be parsed. Parsing continues.
	Syntax func(error)
}

// Parse parses the provided contents, which are assumed to be an OEM text
// document. The filename is used only when generating error messages.
//
// A non-nil *Ephemeris is always returned. If no section marker or state
// vector is found, the record is empty and the error wraps
// ErrEmptyDocument. Lines that fail to parse as state vectors are reported
// through p.Syntax and recorded in Ephemeris.Errors; they do not cause an
// error return.
func (p Parser) Parse(contents []byte, filename string) (*Ephemeris, error) {
	return p.run(&bufferLines{file: contents}, filename)
}

// ParseReader is like Parse, but reads lines from r as it goes. A read
// error stops the scan; the record built so far is returned with it.
func (p Parser) ParseReader(r io.Reader, filename string) (*Ephemeris, error) {
	return p.run(newReaderLines(r), filename)
}

func (p Parser) run(src lineSource, filename string) (*Ephemeris, error) {
	ep := &ephemerisParser{filename: filename, errorCallback: p.Syntax}

	for n := 0; p.MaxLines <= 0 || n < p.MaxLines; n++ {
		line, err := src.GetLine()
		if err == io.EOF {
			break
		} else if err != nil {
			return ep.agg.record(), fmt.Errorf("%s: %w", filename, err)
		}
		ep.scanLine(line)
	}

	if !ep.entered {
		return ep.agg.record(), fmt.Errorf("%s: %w", filename, ErrEmptyDocument)
	}
	return ep.agg.record(), nil
}

// Parse parses an OEM document with the default options, reporting each
// unparseable state vector line to syntax, which may be nil.
func Parse(contents []byte, filename string, syntax func(error)) (*Ephemeris, error) {
	return Parser{Syntax: syntax}.Parse(contents, filename)
}
