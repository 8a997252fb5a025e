package parser

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"02/01/2006 15:04",
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

// findColumn returns the index of the first alias present in header, or -1.
func findColumn(header []string, aliases []string) int {
	for _, alias := range aliases {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), alias) {
				return i
			}
		}
	}
	return -1
}

// detectDelimiter picks ';' for exports whose header uses it and ','
// otherwise.
func detectDelimiter(headerLine string) rune {
	if strings.Count(headerLine, ";") > strings.Count(headerLine, ",") {
		return ';'
	}
	return ','
}

// ParseSCADACSV reads a SCADA export from disk.
func ParseSCADACSV(path string, filter Filter) (*ParsedSCADA, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()
	return ParseSCADA(file, filter)
}

// ParseSCADA reads a SCADA export with a header row. Wind speed and
// direction columns are required; turbine, time and power are optional.
// Bad cells become NaN and are reported in ParseErrors; they never abort
// the parse.
func ParseSCADA(r io.Reader, filter Filter) (*ParsedSCADA, error) {
	br := bufio.NewReader(r)
	headerLine, err := br.Peek(4096)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	if i := strings.IndexByte(string(headerLine), '\n'); i >= 0 {
		headerLine = headerLine[:i]
	}

	reader := csv.NewReader(br)
	reader.Comma = detectDelimiter(string(headerLine))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("CSV file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	header = append([]string(nil), header...)
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	speedCol := findColumn(header, speedColumns)
	dirCol := findColumn(header, directionColumns)
	if speedCol < 0 || dirCol < 0 {
		return nil, fmt.Errorf("CSV header lacks wind speed or direction column (have %v)", header)
	}
	timeCol := findColumn(header, timeColumns)
	turbineCol := findColumn(header, turbineColumns)
	powerCol := findColumn(header, powerColumns)

	parsed := NewParsedSCADA()
	if filter.TurbineID != "" && turbineCol < 0 {
		parsed.addError("Warning: turbine filter ignored, CSV has no turbine column.")
		filter.TurbineID = ""
	}
	if filter.hasTimeRange() && timeCol < 0 {
		parsed.addError("Warning: time filter ignored, CSV has no time column.")
		filter.Start, filter.End = time.Time{}, time.Time{}
	}

	seenTurbines := make(map[string]bool)
	line := 1
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			parsed.addError(fmt.Sprintf("Error: CSV line %d could not be read: %v", line, err))
			continue
		}
		if len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			continue
		}
		parsed.Rows++

		cell := func(col int) string {
			if col < 0 || col >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[col])
		}
		number := func(col int, name string) float64 {
			s := cell(col)
			if col < 0 || s == "" || strings.EqualFold(s, "nan") {
				return math.NaN()
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				parsed.addError(fmt.Sprintf("Error converting %s '%s' on line %d. Using NaN.", name, s, line))
				return math.NaN()
			}
			return v
		}

		rec := Record{
			TurbineID:     cell(turbineCol),
			WindSpeed:     number(speedCol, "wind speed"),
			WindDirection: number(dirCol, "wind direction"),
			PowerKW:       number(powerCol, "power"),
		}
		if ts := cell(timeCol); ts != "" {
			t, err := parseTime(ts)
			if err != nil {
				parsed.addError(fmt.Sprintf("Warning: line %d: %v.", line, err))
				if filter.hasTimeRange() {
					continue
				}
			}
			rec.Time = t
		}

		if !filter.keep(rec) {
			continue
		}
		if rec.TurbineID != "" && !seenTurbines[rec.TurbineID] {
			seenTurbines[rec.TurbineID] = true
			parsed.Turbines = append(parsed.Turbines, rec.TurbineID)
		}
		parsed.Records = append(parsed.Records, rec)
	}

	parsed.Samples = Samples(parsed.Records)
	if parsed.suppressed > 0 {
		parsed.ParseErrors = append(parsed.ParseErrors, fmt.Sprintf("Warning: %d further problems not shown.", parsed.suppressed))
	}
	if len(parsed.Records) == 0 {
		parsed.ParseErrors = append(parsed.ParseErrors, "Warning: No rows matched; the wind rose will be empty.")
	}
	return parsed, nil
}
