package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"

	"github.com/atrai/atrai-backend-go/internal/models"
)

// ErrMissingColumn is returned when a CSV export lacks a required column.
var ErrMissingColumn = errors.New("missing required column")

// column aliases of the bike box exports
var (
	timeColumns     = []string{"createdAt", "created_at", "timestamp"}
	boxColumns      = []string{"boxId", "box_id", "boxid"}
	campaignColumns = []string{"grouptag", "campaign", "tag"}
	lonColumns      = []string{"lng", "lon", "longitude"}
	latColumns      = []string{"lat", "latitude"}
)

// ReadPointsCSV parses a bike box CSV export. Every column besides time, box,
// campaign and coordinates is read as a named sensor value; empty or non
// numeric cells are null. Rows without a campaign column get campaign.
// Rows with an unparsable timestamp are skipped and counted.
func ReadPointsCSV(r io.Reader, campaign string) ([]models.PointRecord, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	find := func(aliases []string) int {
		for _, a := range aliases {
			if i, ok := index[a]; ok {
				return i
			}
		}
		return -1
	}

	timeCol, boxCol := find(timeColumns), find(boxColumns)
	if timeCol < 0 {
		return nil, 0, fmt.Errorf("%w: %s", ErrMissingColumn, timeColumns[0])
	}
	if boxCol < 0 {
		return nil, 0, fmt.Errorf("%w: %s", ErrMissingColumn, boxColumns[0])
	}
	campaignCol, lonCol, latCol := find(campaignColumns), find(lonColumns), find(latColumns)

	known := map[int]bool{timeCol: true, boxCol: true, campaignCol: true, lonCol: true, latCol: true}

	var (
		records []models.PointRecord
		skipped int
	)
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, skipped, fmt.Errorf("failed to read line %d: %w", line, err)
		}

		created, err := ParseTime(cell(row, timeCol))
		if err != nil {
			skipped++
			continue
		}

		rec := models.PointRecord{
			Campaign:  campaign,
			BoxID:     cell(row, boxCol),
			CreatedAt: created,
			Readings:  make(map[string]float64),
		}
		if c := cell(row, campaignCol); c != "" {
			rec.Campaign = c
		}

		lon, lonErr := strconv.ParseFloat(cell(row, lonCol), 64)
		lat, latErr := strconv.ParseFloat(cell(row, latCol), 64)
		if lonErr == nil && latErr == nil {
			rec.Position = &orb.Point{lon, lat}
		}

		for i, name := range header {
			if known[i] {
				continue
			}
			if v, err := strconv.ParseFloat(cell(row, i), 64); err == nil {
				rec.Readings[strings.TrimSpace(name)] = v
			}
		}
		records = append(records, rec)
	}

	return records, skipped, nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// ParseTime accepts RFC 3339 timestamps, with or without fractional
// seconds, and the space separated form of database exports.
func ParseTime(s string) (time.Time, error) {
	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999Z07:00",
		"2006-01-02 15:04:05.999999999Z07",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02T15:04:05.999999999",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
