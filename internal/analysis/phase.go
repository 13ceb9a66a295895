package analysis

import (
	"strings"

	"github.com/san-kum/lqrsim/internal/dynamo"
)

// PhasePoint is one (x, y) pair of a phase portrait.
type PhasePoint struct{ X, Y float64 }

// PhasePortrait2D holds data for a 2D phase space plot
type PhasePortrait2D struct {
	XIndex, YIndex int
	Points         []PhasePoint
	Target         *PhasePoint
}

// BuildPhasePortrait projects a sampled trajectory onto two state
// components. It returns nil if either index is out of range.
func BuildPhasePortrait(tr dynamo.Trajectory, xIdx, yIdx int) *PhasePortrait2D {
	if tr.Len() == 0 || xIdx < 0 || yIdx < 0 || xIdx >= len(tr.States[0]) || yIdx >= len(tr.States[0]) {
		return nil
	}

	portrait := &PhasePortrait2D{
		XIndex: xIdx,
		YIndex: yIdx,
		Points: make([]PhasePoint, 0, tr.Len()),
	}
	for _, x := range tr.States {
		portrait.Points = append(portrait.Points, PhasePoint{X: x[xIdx], Y: x[yIdx]})
	}
	return portrait
}

// PhasePortraitToASCII draws the portrait on a width x height character
// grid, with axes through the origin and the target marked when set.
func PhasePortraitToASCII(portrait *PhasePortrait2D, width, height int) string {
	if portrait == nil || len(portrait.Points) == 0 {
		return ""
	}

	minX, maxX := portrait.Points[0].X, portrait.Points[0].X
	minY, maxY := portrait.Points[0].Y, portrait.Points[0].Y

	pts := portrait.Points
	if portrait.Target != nil {
		pts = append(pts[:len(pts):len(pts)], *portrait.Target)
	}
	for _, p := range pts {
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}

	// Add padding
	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	maxX += rangeX * 0.1
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeX = maxX - minX
	rangeY = maxY - minY

	canvas := make([][]rune, height)
	for i := range canvas {
		canvas[i] = make([]rune, width)
		for j := range canvas[i] {
			canvas[i][j] = ' '
		}
	}

	for _, p := range portrait.Points {
		col := int((p.X - minX) / rangeX * float64(width-1))
		row := height - 1 - int((p.Y-minY)/rangeY*float64(height-1))

		if row >= 0 && row < height && col >= 0 && col < width {
			canvas[row][col] = '•'
		}
	}
	if tp := portrait.Target; tp != nil {
		col := int((tp.X - minX) / rangeX * float64(width-1))
		row := height - 1 - int((tp.Y-minY)/rangeY*float64(height-1))
		if row >= 0 && row < height && col >= 0 && col < width {
			canvas[row][col] = '◎'
		}
	}

	// Draw axes if they cross the visible area
	if minX <= 0 && maxX >= 0 {
		col := int((0 - minX) / rangeX * float64(width-1))
		for row := 0; row < height; row++ {
			if col >= 0 && col < width && canvas[row][col] == ' ' {
				canvas[row][col] = '│'
			}
		}
	}
	if minY <= 0 && maxY >= 0 {
		row := height - 1 - int((0-minY)/rangeY*float64(height-1))
		for col := 0; col < width; col++ {
			if row >= 0 && row < height && canvas[row][col] == ' ' {
				canvas[row][col] = '─'
			}
		}
	}

	var sb strings.Builder
	for _, row := range canvas {
		sb.WriteString(string(row))
		sb.WriteRune('\n')
	}
	return sb.String()
}
