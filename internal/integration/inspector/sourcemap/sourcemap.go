package sourcemap

import (
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
)

// Position is a location in a source file. Line and Column are 0-based.
type Position struct {
	Source string
	Line   int
	Column int
	Name   string
}

// mapping is one decoded segment of the mappings field.
type mapping struct {
	genLine   int
	genColumn int
	source    int // -1 when the segment has no original location
	line      int
	column    int
	name      int
}

// Map is a parsed revision 3 source map. It is immutable after Parse.
type Map struct {
	File    string
	Sources []string
	Names   []string

	byGenerated []mapping // sorted by (genLine, genColumn)
	byOriginal  []mapping // sorted by (source, line, column), only segments with a source
}

// rawMap is the JSON form of a source map.
type rawMap struct {
	Version    int               `json:"version"`
	File       string            `json:"file"`
	SourceRoot string            `json:"sourceRoot"`
	Sources    []string          `json:"sources"`
	Names      []string          `json:"names"`
	Mappings   string            `json:"mappings"`
	Sections   []json.RawMessage `json:"sections"`
}

// Errors returned by Parse.
var (
	ErrUnsupportedVersion = errors.New("unsupported source map version")
	ErrIndexMap           = errors.New("indexed source maps are not supported")
)

// Parse decodes a source map from its JSON text.
func Parse(data []byte) (*Map, error) {
	// Maps served over HTTP may carry the XSSI prefix.
	data = []byte(strings.TrimPrefix(string(data), ")]}'"))

	var raw rawMap
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode source map: %w", err)
	}
	if len(raw.Sections) > 0 {
		return nil, ErrIndexMap
	}
	if raw.Version != 3 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, raw.Version)
	}

	m := &Map{
		File:    raw.File,
		Sources: make([]string, len(raw.Sources)),
		Names:   raw.Names,
	}
	for i, src := range raw.Sources {
		if raw.SourceRoot != "" && !path.IsAbs(src) && !strings.Contains(src, "://") {
			src = strings.TrimSuffix(raw.SourceRoot, "/") + "/" + src
		}
		m.Sources[i] = src
	}

	mappings, err := decodeMappings(raw.Mappings, len(m.Sources), len(m.Names))
	if err != nil {
		return nil, err
	}

	m.byGenerated = mappings
	sort.SliceStable(m.byGenerated, func(i, j int) bool {
		a, b := m.byGenerated[i], m.byGenerated[j]
		if a.genLine != b.genLine {
			return a.genLine < b.genLine
		}
		return a.genColumn < b.genColumn
	})

	for _, seg := range mappings {
		if seg.source >= 0 {
			m.byOriginal = append(m.byOriginal, seg)
		}
	}
	sort.SliceStable(m.byOriginal, func(i, j int) bool {
		a, b := m.byOriginal[i], m.byOriginal[j]
		if a.source != b.source {
			return a.source < b.source
		}
		if a.line != b.line {
			return a.line < b.line
		}
		return a.column < b.column
	})

	return m, nil
}

// decodeMappings expands the VLQ mappings string. Every field except the
// generated column is relative to the previous segment across lines; the
// generated column resets on each line.
func decodeMappings(s string, nSources, nNames int) ([]mapping, error) {
	var (
		out                        []mapping
		genLine                    int
		genColumn                  int
		source, line, column, name int
	)

	pos := 0
	for pos < len(s) {
		switch s[pos] {
		case ';':
			genLine++
			genColumn = 0
			pos++
			continue
		case ',':
			pos++
			continue
		}

		var fields [5]int
		n := 0
		for pos < len(s) && s[pos] != ',' && s[pos] != ';' {
			if n == len(fields) {
				return nil, fmt.Errorf("segment with more than 5 fields at %d", pos)
			}
			v, next, err := decodeVLQ(s, pos)
			if err != nil {
				return nil, err
			}
			fields[n] = v
			n++
			pos = next
		}

		switch n {
		case 1, 4, 5:
		default:
			return nil, fmt.Errorf("segment with %d fields on line %d", n, genLine)
		}

		genColumn += fields[0]
		seg := mapping{genLine: genLine, genColumn: genColumn, source: -1, name: -1}
		if n >= 4 {
			source += fields[1]
			line += fields[2]
			column += fields[3]
			if source < 0 || source >= nSources {
				return nil, fmt.Errorf("source index %d out of range on line %d", source, genLine)
			}
			seg.source, seg.line, seg.column = source, line, column
		}
		if n == 5 {
			name += fields[4]
			if name >= 0 && name < nNames {
				seg.name = name
			}
		}
		out = append(out, seg)
	}

	return out, nil
}

// OriginalPositionFor returns the original location of a generated position.
// It uses the nearest mapping at or before column on the same generated line.
// Line and column are 0-based.
func (m *Map) OriginalPositionFor(line, column int) (Position, bool) {
	i := sort.Search(len(m.byGenerated), func(i int) bool {
		seg := m.byGenerated[i]
		if seg.genLine != line {
			return seg.genLine > line
		}
		return seg.genColumn > column
	})
	// i is the first segment past (line, column); step back one.
	i--
	if i < 0 {
		return Position{}, false
	}
	seg := m.byGenerated[i]
	if seg.genLine != line || seg.source < 0 {
		return Position{}, false
	}

	pos := Position{
		Source: m.Sources[seg.source],
		Line:   seg.line,
		Column: seg.column,
	}
	if seg.name >= 0 {
		pos.Name = m.Names[seg.name]
	}
	return pos, true
}

// GeneratedPositionFor returns the generated location of an original position.
// source matches a map source exactly or as a trailing path. It uses the
// nearest mapping at or before column on the same original line.
func (m *Map) GeneratedPositionFor(source string, line, column int) (Position, bool) {
	src := m.sourceIndex(source)
	if src < 0 {
		return Position{}, false
	}

	i := sort.Search(len(m.byOriginal), func(i int) bool {
		seg := m.byOriginal[i]
		if seg.source != src {
			return seg.source > src
		}
		if seg.line != line {
			return seg.line > line
		}
		return seg.column > column
	})
	i--
	if i < 0 {
		return Position{}, false
	}
	seg := m.byOriginal[i]
	if seg.source != src || seg.line != line {
		return Position{}, false
	}

	return Position{Source: m.File, Line: seg.genLine, Column: seg.genColumn}, true
}

// HasSource reports whether source appears in the map.
func (m *Map) HasSource(source string) bool {
	return m.sourceIndex(source) >= 0
}

func (m *Map) sourceIndex(source string) int {
	if source == "" {
		return -1
	}
	for i, s := range m.Sources {
		if s == source {
			return i
		}
	}
	for i, s := range m.Sources {
		if matchesPathSuffix(s, source) {
			return i
		}
	}
	return -1
}

// matchesPathSuffix reports whether a and b name the same file, one being a
// trailing path of the other on a separator boundary.
func matchesPathSuffix(a, b string) bool {
	a = strings.TrimPrefix(a, "./")
	b = strings.TrimPrefix(b, "./")
	if len(a) < len(b) {
		a, b = b, a
	}
	if !strings.HasSuffix(a, b) {
		return false
	}
	if len(a) == len(b) {
		return true
	}
	return a[len(a)-len(b)-1] == '/' || strings.HasPrefix(b, "/")
}
