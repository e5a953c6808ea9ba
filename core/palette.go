package core

// GridPalette selects how occupancy-grid cell values map to texture colors.
type GridPalette string

const (
	// PaletteMap renders free space white, occupied black, unknown
	// translucent gray.
	PaletteMap GridPalette = "map"
	// PaletteCostmap renders free space transparent and cost as a blue to
	// red ramp, with the inscribed (99) and lethal (100) costs called out.
	PaletteCostmap GridPalette = "costmap"
	// PaletteRaw renders the raw byte value as opaque grayscale.
	PaletteRaw GridPalette = "raw"
)

// BuildGridPalette returns a 256-entry RGBA table indexed by the cell value
// reinterpreted as a byte (so the unknown cell value -1 lands at index 255).
// Colors are display-space; the grid texture is sampled through an sRGB
// format.
func BuildGridPalette(p GridPalette) [256][4]byte {
	var table [256][4]byte
	switch p {
	case PaletteCostmap:
		for i := 0; i < 256; i++ {
			switch {
			case i == 0:
				table[i] = [4]byte{0, 0, 0, 0}
			case i >= 1 && i <= 98:
				frac := float64(i-1) / 97
				table[i] = [4]byte{
					byte(frac * 255),
					0,
					byte((1 - frac) * 255),
					255,
				}
			case i == 99:
				table[i] = [4]byte{0, 255, 255, 255}
			case i == 100:
				table[i] = [4]byte{160, 0, 255, 255}
			case i == 255:
				table[i] = [4]byte{0, 0, 0, 0}
			default:
				table[i] = [4]byte{128, 0, 128, 255}
			}
		}
	case PaletteRaw:
		for i := 0; i < 256; i++ {
			table[i] = [4]byte{byte(i), byte(i), byte(i), 255}
		}
	default: // PaletteMap
		for i := 0; i < 256; i++ {
			switch {
			case i <= 100:
				v := byte(255 - i*255/100)
				table[i] = [4]byte{v, v, v, 255}
			case i == 255:
				table[i] = [4]byte{128, 128, 128, 128}
			default:
				table[i] = [4]byte{128, 0, 128, 255}
			}
		}
	}
	return table
}
