package source

// DefaultTabWidth is the tab width used when none is configured.
const DefaultTabWidth = 8

// ExpandedTabsLength returns the display length of the first toIdx
// characters of line, with each tab advancing to the next tab stop.
// toIdx counts characters (runes), not bytes.
func ExpandedTabsLength(line string, toIdx, tabWidth int) int {
	if tabWidth <= 0 {
		tabWidth = DefaultTabWidth
	}
	length := 0
	idx := 0
	for _, r := range line {
		if idx >= toIdx {
			break
		}
		if r == '\t' {
			length = (length/tabWidth + 1) * tabWidth
		} else {
			length++
		}
		idx++
	}
	// позиция за концом строки: оставшиеся символы считаем по одному
	if idx < toIdx {
		length += toIdx - idx
	}
	return length
}

// CharIndex converts a byte offset within line to a character (rune) index.
func CharIndex(line string, byteOff int) int {
	if byteOff > len(line) {
		byteOff = len(line)
	}
	n := 0
	for range line[:byteOff] {
		n++
	}
	return n
}
