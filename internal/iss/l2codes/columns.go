package l2codes

import "fmt"

// Columns maps genes and background channels to coefficient columns. Gene g
// is column g and background channel c is column NGenes+c. The mapping is
// fixed for a calling session.
type Columns struct {
	NGenes    int
	NChannels int
}

// Width returns G + C.
func (c Columns) Width() int { return c.NGenes + c.NChannels }

// Gene returns the column of gene g.
func (c Columns) Gene(g int) int { return g }

// Background returns the column of background channel ch.
func (c Columns) Background(ch int) int { return c.NGenes + ch }

// IsBackground reports whether col holds a background coefficient.
func (c Columns) IsBackground(col int) bool { return col >= c.NGenes }

// Label names a column using gene names, or "bg<c>" for background columns.
func (c Columns) Label(col int, names []string) string {
	if c.IsBackground(col) {
		return fmt.Sprintf("bg%d", col-c.NGenes)
	}
	if col < len(names) {
		return names[col]
	}
	return fmt.Sprintf("gene_%d", col)
}
