package scheduler

import "log/slog"

// Coverage tracking. During a pass each processed level is reset to an empty
// map and tiles write tri-state entries into it as they are handled. A level
// that was never reset this pass reports no coverage at all; a reset level
// reports coverage for any cell not explicitly marked otherwise, so an empty
// level covers vacuously.

type coverageState uint8

const (
	coverageUnset coverageState = iota
	coverageNotCovering
	coverageCovering
)

type coverageMap struct {
	logger *slog.Logger
	levels map[int]map[[2]int]coverageState
}

func newCoverageMap(logger *slog.Logger) *coverageMap {
	return &coverageMap{
		logger: logger,
		levels: map[int]map[[2]int]coverageState{},
	}
}

// resetLevel marks the level as processed this pass and forgets any
// previous cell states.
func (c *coverageMap) resetLevel(level int) {
	c.levels[level] = map[[2]int]coverageState{}
}

// setCoverage records whether the tile at (x, y) covers its cell. Writes to
// a level that has not been reset this pass are ignored.
func (c *coverageMap) setCoverage(level, x, y int, covers bool) {
	cells, ok := c.levels[level]
	if !ok {
		c.logger.Warn("Setting coverage for a tile before its level's coverage has been reset", "level", level)
		return
	}
	state := coverageNotCovering
	if covers {
		state = coverageCovering
	}
	cells[[2]int{x, y}] = state
}

// providesLevelCoverage reports whether the level covers the full draw area:
// every cell written this pass covers. A level never reset this pass does
// not cover; a reset level with no cells covers vacuously.
func (c *coverageMap) providesLevelCoverage(level int) bool {
	cells, ok := c.levels[level]
	if !ok {
		return false
	}
	for _, state := range cells {
		if state == coverageNotCovering {
			return false
		}
	}
	return true
}

// providesCoverage reports whether the cell at (x, y) is covered by the
// level. Cells never written on a reset level cover vacuously.
func (c *coverageMap) providesCoverage(level, x, y int) bool {
	cells, ok := c.levels[level]
	if !ok {
		return false
	}
	return cells[[2]int{x, y}] != coverageNotCovering
}

// isCovered reports whether the cell at (x, y) is fully covered by the four
// tiles one level down.
func (c *coverageMap) isCovered(level, x, y int) bool {
	return c.providesCoverage(level+1, 2*x, 2*y) &&
		c.providesCoverage(level+1, 2*x+1, 2*y) &&
		c.providesCoverage(level+1, 2*x, 2*y+1) &&
		c.providesCoverage(level+1, 2*x+1, 2*y+1)
}
