// Package regionio implements region-file import/export: reading and
// writing a session's region.State set to a CRTF-style line-oriented
// text format, the on-disk counterpart of spec.md §4.3's importRegion
// and exportRegion operations.
package regionio

import (
	"bufio"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/CARTAvis/carta-backend-sub003/internal/region"
)

var typeNames = map[region.Type]string{
	region.TypePoint:      "point",
	region.TypeRectangle:  "rotbox",
	region.TypePolygon:    "poly",
	region.TypeEllipse:    "ellipse",
	region.TypePolyline:   "polyline",
	region.TypeLine:       "line",
	region.TypeAnnotation: "annotation",
}

var nameTypes = func() map[string]region.Type {
	out := make(map[string]region.Type, len(typeNames))
	for k, v := range typeNames {
		out[v] = k
	}
	return out
}()

// Encode serializes regions to a CRTF-style text region file: one
// "shape(x, y, ...) rotation=deg" line per region, in ascending id
// order so Encode output is deterministic for a given region set.
func Encode(regions map[int32]region.State) []byte {
	ids := make([]int32, 0, len(regions))
	for id := range regions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var b strings.Builder
	b.WriteString("#CARTA region file\n")
	for _, id := range ids {
		s := regions[id]
		name, ok := typeNames[s.Type]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "%s(", name)
		for i, p := range s.ControlPoints {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%g, %g", p.X, p.Y)
		}
		fmt.Fprintf(&b, ") rotation=%g\n", s.RotationDeg)
	}
	return []byte(b.String())
}

// Decode parses a region file produced by Encode into an ordered list
// of region.State values anchored to fileID, skipping blank lines and
// "#"-prefixed comments.
func Decode(data []byte, fileID int32) ([]region.State, error) {
	var out []region.State
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		s, err := decodeLine(line, fileID)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeLine(line string, fileID int32) (region.State, error) {
	open := strings.Index(line, "(")
	end := strings.Index(line, ")")
	if open < 0 || end < open {
		return region.State{}, fmt.Errorf("regionio: malformed line %q", line)
	}
	name := line[:open]
	typ, ok := nameTypes[name]
	if !ok {
		return region.State{}, fmt.Errorf("regionio: unknown region shape %q", name)
	}

	fields := strings.Split(line[open+1:end], ",")
	if len(fields)%2 != 0 {
		return region.State{}, fmt.Errorf("regionio: odd coordinate count in %q", line)
	}
	points := make([]region.ControlPoint, 0, len(fields)/2)
	for i := 0; i < len(fields); i += 2 {
		x, err := strconv.ParseFloat(strings.TrimSpace(fields[i]), 64)
		if err != nil {
			return region.State{}, fmt.Errorf("regionio: bad x coordinate: %w", err)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(fields[i+1]), 64)
		if err != nil {
			return region.State{}, fmt.Errorf("regionio: bad y coordinate: %w", err)
		}
		points = append(points, region.ControlPoint{X: x, Y: y})
	}

	rotation := 0.0
	if idx := strings.Index(line, "rotation="); idx >= 0 {
		if v, err := strconv.ParseFloat(strings.TrimSpace(line[idx+len("rotation="):]), 64); err == nil {
			rotation = v
		}
	}

	return region.State{FileID: fileID, Type: typ, ControlPoints: points, RotationDeg: rotation}, nil
}
