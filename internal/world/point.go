package world

import "fmt"

// Point is a grid cell.
type Point struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y int) Point {
	return Point{X: x, Y: y}
}

func (p Point) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Add returns p translated by q.
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Manhattan returns the L1 distance between p and q, used to rank resource
// nodes by proximity.
func (p Point) Manhattan(q Point) int {
	return abs(p.X-q.X) + abs(p.Y-q.Y)
}

// Chebyshev returns the number of 8-connected steps between p and q.
func (p Point) Chebyshev(q Point) int {
	return max(abs(p.X-q.X), abs(p.Y-q.Y))
}

// Adjacent reports whether p and q are distinct 8-connected neighbours.
func (p Point) Adjacent(q Point) bool {
	return p.Chebyshev(q) == 1
}

// Toward returns the unit step (each axis in -1..1) that moves p closer to q.
func (p Point) Toward(q Point) Point {
	return Point{X: sign(q.X - p.X), Y: sign(q.Y - p.Y)}
}

// Neighbours returns the 8-connected neighbours of p, in a fixed order.
func (p Point) Neighbours() []Point {
	out := make([]Point, 0, 8)
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			out = append(out, Point{X: p.X + dx, Y: p.Y + dy})
		}
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	default:
		return 0
	}
}
