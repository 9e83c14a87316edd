package dirent

import (
	"unicode/utf16"

	"github.com/corvusfs/fatstream/internal/cursor"
)

// loadLongName reconstructs a VFAT long filename by walking backward from
// primary, which must be positioned just past the primary record (i.e. not
// yet Dec'd). It mutates primary freely — callers pass a throwaway copy,
// never the directory decoder's live cursor.
//
// Each continuation record holds ordinal (1-based sequence number, with bit
// 0x40 marking the last one read — the record furthest from the primary
// entry and the one carrying the name's final characters) and three
// UTF-16LE slices. Ordinal 1, immediately before the primary entry, carries
// the name's first characters. The walk stops as soon as any expectation is
// violated, in which case the caller falls back to the short 8.3 name.
func loadLongName(primary *cursor.Cursor) (string, bool) {
	var units []uint16
	buf := make([]byte, DirentSize)

	for ordinal := 1; ordinal <= maxLFNRecords; ordinal++ {
		if err := primary.Dec(2 * DirentSize); err != nil {
			return "", false
		}

		n, err := primary.Read(buf)
		if err != nil || n < DirentSize {
			return "", false
		}
		// Read just advanced the cursor forward by one record, so the net
		// movement this iteration is back-two-forward-one: one record
		// earlier than last time, which is exactly the LFN continuation
		// chain's on-disk order (nearest-to-primary first).

		record := decodeRawLFN(buf)
		if record.Attribute != AttrLongName {
			return "", false
		}
		if int(record.Ordinal&0x1F) != ordinal {
			return "", false
		}

		piece := make([]uint16, 0, lfnUnitsTotal)
		piece = append(piece, record.Name1[:]...)
		piece = append(piece, record.Name2[:]...)
		piece = append(piece, record.Name3[:]...)

		// Ordinal 1 sits nearest the primary entry and carries the name's
		// first characters; higher ordinals walk backward toward the name's
		// tail. So each piece appends onto the end of what's been collected.
		units = append(units, piece...)

		if record.Ordinal&0x40 != 0 {
			break
		}
	}

	if len(units) == 0 {
		return "", false
	}

	return decodeLFNUnits(units), true
}

// decodeLFNUnits converts the concatenated UTF-16LE code units of a VFAT
// long name into a Go string, stopping at the first null terminator or
// 0xFFFF padding unit.
func decodeLFNUnits(units []uint16) string {
	end := len(units)
	for i, u := range units {
		if u == 0x0000 || u == 0xFFFF {
			end = i
			break
		}
	}
	return string(utf16.Decode(units[:end]))
}
