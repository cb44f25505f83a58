package period

import (
	"fmt"
	"strings"
)

// Stage identifies an education period kind.
type Stage string

const (
	Daycare      Stage = "daycare"
	Kindergarten Stage = "kindergarten"
	Elementary   Stage = "elementary"
	Middle       Stage = "middle"
	High         Stage = "high"
	University   Stage = "university"
	Other        Stage = "other"
)

// UnknownPriority ranks stages that are not part of the known set.
const UnknownPriority = 99

// Stages lists the known stages in life order. Resolution visits them in this order.
var Stages = []Stage{Daycare, Kindergarten, Elementary, Middle, High, University, Other}

type stageInfo struct {
	priority  int
	name      string
	shortName string
	repeated  bool
}

var stageTable = map[Stage]stageInfo{
	Daycare:      {1, "Daycare", "Daycare", false},
	Kindergarten: {2, "Kindergarten", "Kinder", false},
	Elementary:   {3, "Elementary School", "Elem", false},
	Middle:       {4, "Middle School", "Middle", false},
	High:         {5, "High School", "High", false},
	University:   {6, "University", "Univ", true},
	Other:        {7, "Other", "Other", true},
}

// ParseStage maps a user-supplied name onto a known stage.
func ParseStage(s string) (Stage, bool) {
	st := Stage(strings.ToLower(strings.TrimSpace(s)))
	_, ok := stageTable[st]
	return st, ok
}

// ParseInputStage parses a stage named by a user. Names outside the known set
// are accepted only when custom is true.
func ParseInputStage(s string, custom bool) (Stage, error) {
	st, ok := ParseStage(s)
	switch {
	case ok:
		return st, nil
	case st == "":
		return "", fmt.Errorf("stage is empty")
	case !custom:
		names := make([]string, len(Stages))
		for i, k := range Stages {
			names[i] = string(k)
		}
		return "", fmt.Errorf("unknown stage %q (known: %s)", st, strings.Join(names, ", "))
	}
	return st, nil
}

// Known reports whether s is one of the built-in stages.
func (s Stage) Known() bool {
	_, ok := stageTable[s]
	return ok
}

// Repeatable reports whether the stage holds a list of entries rather than one.
func (s Stage) Repeatable() bool {
	return stageTable[s].repeated
}

// Priority returns the overlap rank; lower wins.
func (s Stage) Priority() int {
	if info, ok := stageTable[s]; ok {
		return info.priority
	}
	return UnknownPriority
}

// DisplayName returns the canonical label, or the stage id for unknown stages.
func (s Stage) DisplayName() string {
	if info, ok := stageTable[s]; ok {
		return info.name
	}
	return string(s)
}

// ShortName returns the compact label used on grid squares.
func (s Stage) ShortName() string {
	if info, ok := stageTable[s]; ok {
		return info.shortName
	}
	return string(s)
}

func stageIndex(s Stage) int {
	for i, st := range Stages {
		if st == s {
			return i
		}
	}
	return -1
}
