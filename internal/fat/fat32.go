package fat

import "encoding/binary"

func (t *Table) read32(cluster ClusterID) (ClusterID, error) {
	off := t.ActiveFATOff + int64(cluster)*4
	buf := make([]byte, 4)
	if _, err := t.Stream.ReadAt(buf, off); err != nil {
		return Invalid, err
	}
	return ClusterID(binary.LittleEndian.Uint32(buf) & 0x0FFFFFFF), nil
}

// write32At writes value into cluster's 32-bit entry within the FAT copy at
// fatOff. The top 4 bits of a FAT32 entry are reserved; unlike the source,
// which always overwrites all 32 bits, this preserves whatever those bits
// already held by reading the existing entry first (see the decision record
// in DESIGN.md for why this spec diverges here).
func (t *Table) write32At(fatOff int64, cluster, value ClusterID) error {
	off := fatOff + int64(cluster)*4
	buf := make([]byte, 4)
	if _, err := t.Stream.ReadAt(buf, off); err != nil {
		return err
	}
	existing := binary.LittleEndian.Uint32(buf)
	entry := (existing & 0xF0000000) | (uint32(value) & 0x0FFFFFFF)
	binary.LittleEndian.PutUint32(buf, entry)
	_, err := t.Stream.WriteAt(buf, off)
	return err
}

func readBuf32(data []byte, index int) (ClusterID, bool) {
	byteOff := index * 4
	if byteOff+3 >= len(data) {
		return 0, false
	}
	return ClusterID(binary.LittleEndian.Uint32(data[byteOff:byteOff+4]) & 0x0FFFFFFF), true
}
