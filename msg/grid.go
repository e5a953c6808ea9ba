package msg

import "fmt"

// OccupancyGrid is a 2D probability grid. Cell values are -1 for unknown or
// 0..100 occupancy; cells are laid out row-major starting at the origin
// pose, spaced by Resolution meters.
type OccupancyGrid struct {
	Header     Header  `json:"header"`
	Resolution float64 `json:"resolution"`
	Width      uint32  `json:"width"`
	Height     uint32  `json:"height"`
	Origin     Pose    `json:"origin"`
	Data       []int8  `json:"data"`
}

func (g *OccupancyGrid) Validate() error {
	if g.Resolution <= 0 {
		return fmt.Errorf("occupancy grid resolution %f must be positive", g.Resolution)
	}
	need := int(g.Width) * int(g.Height)
	if len(g.Data) != need {
		return fmt.Errorf("occupancy grid data has %d cells, dimensions %dx%d require %d",
			len(g.Data), g.Width, g.Height, need)
	}
	return nil
}
