package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/places-cli/internal/model"
)

func TestFormatPlacesList(t *testing.T) {
	rating := 4.25
	drive := 610
	visited := "2024-05-01"
	list := []model.Place{
		{PlaceID: "p1", Name: "Sushi Dai", Rating: &rating, Category: "restaurant", DriveTime: &drive, LastVisited: &visited},
		{PlaceID: "p2", Name: "Kissa", Category: "cafe", Hidden: true},
	}

	var buf bytes.Buffer
	formatPlacesList(&buf, list)
	out := buf.String()

	assert.Contains(t, out, "PLACE ID")
	assert.Regexp(t, `p1\s+Sushi Dai\s+4\.2\s+restaurant\s+10m\s+2024-05-01`, out)
	assert.Regexp(t, `p2\s+Kissa\s+-\s+cafe\s+-\s+yes\s+-`, out)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "とんかつ…", truncate("とんかつ屋さん", 5))
}
