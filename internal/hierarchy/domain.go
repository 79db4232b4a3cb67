// Package hierarchy resolves which part of the zone > province > district > school > class
// tree a user may see and manages the assignments that define it.
package hierarchy

import (
	"fmt"
	"strings"
	"time"

	"github.com/observa-edu/observa/internal/shared"
)

// Level is a tier of the organizational tree.
type Level string

const (
	LevelZone     Level = "zone"
	LevelProvince Level = "province"
	LevelDistrict Level = "district"
	LevelSchool   Level = "school"
	LevelClass    Level = "class"
)

// Levels lists the tiers from root to leaf.
var Levels = []Level{LevelZone, LevelProvince, LevelDistrict, LevelSchool, LevelClass}

// ParseLevel validates an assignment type.
func ParseLevel(raw string) (Level, error) {
	level := Level(strings.ToLower(strings.TrimSpace(raw)))
	for _, l := range Levels {
		if l == level {
			return level, nil
		}
	}
	return "", fmt.Errorf("%w: invalid assignment type %q", shared.ErrValidation, raw)
}

// Node addresses one tree node.
type Node struct {
	Level Level `json:"level"`
	ID    int64 `json:"id"`
}

// Assignment grants a user the subtree rooted at a node.
type Assignment struct {
	UserID     int64     `json:"userId"`
	Level      Level     `json:"assignmentType"`
	NodeID     int64     `json:"assignmentId"`
	AssignedBy int64     `json:"assignedBy"`
	AssignedAt time.Time `json:"assignedAt"`
}

// School is a school row together with its ancestor ids.
type School struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	DistrictID int64  `json:"districtId"`
	ProvinceID int64  `json:"provinceId"`
	ZoneID     int64  `json:"zoneId"`
}
