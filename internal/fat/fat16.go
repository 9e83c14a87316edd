package fat

import "encoding/binary"

func (t *Table) read16(cluster ClusterID) (ClusterID, error) {
	off := t.ActiveFATOff + int64(cluster)*2
	buf := make([]byte, 2)
	if _, err := t.Stream.ReadAt(buf, off); err != nil {
		return Invalid, err
	}
	return ClusterID(binary.LittleEndian.Uint16(buf)), nil
}

func (t *Table) write16At(fatOff int64, cluster, value ClusterID) error {
	off := fatOff + int64(cluster)*2
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, uint16(value))
	_, err := t.Stream.WriteAt(buf, off)
	return err
}

func readBuf16(data []byte, index int) (ClusterID, bool) {
	byteOff := index * 2
	if byteOff+1 >= len(data) {
		return 0, false
	}
	return ClusterID(binary.LittleEndian.Uint16(data[byteOff : byteOff+2])), true
}
