// Package geometry catalogs the well-known FAT volume layouts (floppy disk
// formats, hard-disk partition conventions) as a CSV-driven preset table,
// the same way disko's disks package catalogs raw storage geometries.
package geometry

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/gocarina/gocsv"
)

// Preset describes one well-known FAT volume layout: the BPB field values a
// formatter would write for a disk of this kind. Fields follow the CSV
// column names so gocsv can unmarshal directly into them.
type Preset struct {
	Name            string `csv:"name"`
	Slug            string `csv:"slug"`
	FATBits         uint   `csv:"fat_bits"`
	TotalSectors    uint   `csv:"total_sectors"`
	BytesPerSector  uint   `csv:"bytes_per_sector"`
	SectorsPerClus  uint   `csv:"sectors_per_cluster"`
	ReservedSectors uint   `csv:"reserved_sectors"`
	NumFATs         uint   `csv:"num_fats"`
	MaxRootEntries  uint   `csv:"max_root_entries"`
	MediaDescriptor uint   `csv:"media_descriptor"`
	Notes           string `csv:"notes"`
}

// TotalSizeBytes is the minimum backing stream size a volume using this
// preset requires.
func (p *Preset) TotalSizeBytes() int64 {
	return int64(p.TotalSectors) * int64(p.BytesPerSector)
}

// SectorsPerFAT estimates the number of sectors each FAT copy needs to cover
// every cluster in the volume, rounding up. It's a starting point for a
// formatter, not a substitute for computing the real value from an existing
// BPB.
func (p *Preset) SectorsPerFAT() uint {
	dataSectors := p.TotalSectors - p.ReservedSectors - (p.MaxRootEntries*32+p.BytesPerSector-1)/p.BytesPerSector
	totalClusters := dataSectors / p.SectorsPerClus

	var bitsPerEntry uint
	switch p.FATBits {
	case 12:
		bitsPerEntry = 12
	case 16:
		bitsPerEntry = 16
	default:
		bitsPerEntry = 32
	}

	bytesNeeded := (totalClusters*bitsPerEntry + 7) / 8
	return (bytesNeeded + p.BytesPerSector - 1) / p.BytesPerSector
}

//go:embed presets.csv
var presetsRawCSV string

var presets map[string]Preset

// Lookup returns the named preset (e.g. "floppy144", "cfcard64mb-fat16",
// "cfcard1gb-fat32"). It returns an error if no preset is registered under
// that slug.
func Lookup(slug string) (Preset, error) {
	preset, ok := presets[slug]
	if !ok {
		return Preset{}, fmt.Errorf("no predefined FAT geometry with slug %q", slug)
	}
	return preset, nil
}

// Slugs lists every registered preset slug, in no particular order.
func Slugs() []string {
	out := make([]string, 0, len(presets))
	for slug := range presets {
		out = append(out, slug)
	}
	return out
}

func init() {
	presets = make(map[string]Preset)
	reader := strings.NewReader(presetsRawCSV)
	err := gocsv.UnmarshalToCallback(reader, func(row Preset) error {
		if _, exists := presets[row.Slug]; exists {
			return fmt.Errorf("duplicate geometry preset slug %q", row.Slug)
		}
		presets[row.Slug] = row
		return nil
	})
	if err != nil {
		panic(err)
	}
}
