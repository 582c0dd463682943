package grf

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/Faultbox/midgard-vat/pkg/encoding"
)

// File is one entry to store with Create.
type File struct {
	Name string
	Data []byte
}

// Create writes a GRF 0x200 archive holding files, each zlib-compressed.
// Names are stored in EUC-KR.
func Create(path string, files []File) error {
	var body, table bytes.Buffer
	for _, f := range files {
		compressed, err := deflate(f.Data)
		if err != nil {
			return fmt.Errorf("compressing %s: %w", f.Name, err)
		}
		aligned := (len(compressed) + 7) &^ 7
		offset := body.Len()
		body.Write(compressed)
		body.Write(make([]byte, aligned-len(compressed)))

		table.Write(encoding.UTF8ToEUCKR(f.Name))
		table.WriteByte(0)
		var rec [17]byte
		binary.LittleEndian.PutUint32(rec[0:], uint32(len(compressed)))
		binary.LittleEndian.PutUint32(rec[4:], uint32(aligned))
		binary.LittleEndian.PutUint32(rec[8:], uint32(len(f.Data)))
		rec[12] = flagFile
		binary.LittleEndian.PutUint32(rec[13:], uint32(offset))
		table.Write(rec[:])
	}

	compressedTable, err := deflate(table.Bytes())
	if err != nil {
		return fmt.Errorf("compressing file table: %w", err)
	}

	header := Header{
		TableOffset: uint32(body.Len()),
		FileCount:   uint32(len(files)) + 7,
		Version:     version200,
	}
	copy(header.Magic[:], grfMagic)

	var out bytes.Buffer
	_ = binary.Write(&out, binary.LittleEndian, header)
	out.Write(body.Bytes())
	_ = binary.Write(&out, binary.LittleEndian, [2]uint32{uint32(len(compressedTable)), uint32(table.Len())})
	out.Write(compressedTable)

	return os.WriteFile(path, out.Bytes(), 0o644)
}

func deflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
