// Package pcapio wraps gopacket/pcapgo for reading offline capture
// files, exposing just the raw bytes, capture metadata, and file-size
// progress both CLIs need.
//
//go:generate mockgen -source=reader.go -destination=mock/packetdatasource.go -package=mock_pcapio
package pcapio

import (
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcapgo"
)

// Reader sequentially reads packets from a pcap or pcapng file, tracking
// how many bytes of the underlying file have been consumed so callers
// can report read progress.
type Reader struct {
	f      *os.File
	size   int64
	handle packetDataSource
}

type packetDataSource interface {
	ReadPacketData() (data []byte, ci gopacket.CaptureInfo, err error)
}

// Open opens path, sniffing pcap vs pcapng via gopacket's format
// detection, as the capture example in the reference capture tool does.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	r := &Reader{f: f, size: info.Size()}

	if ngr, err := pcapgo.NewNgReader(f, pcapgo.DefaultNgReaderOptions); err == nil {
		r.handle = ngr
		return r, nil
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}
	pr, err := pcapgo.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open %s: not a recognized pcap/pcapng file: %w", path, err)
	}
	r.handle = pr
	return r, nil
}

// Next returns the next packet's raw bytes and capture metadata, or
// io.EOF when the file is exhausted.
func (r *Reader) Next() ([]byte, gopacket.CaptureInfo, error) {
	return r.handle.ReadPacketData()
}

// BytesRead reports the current file offset, used to compute a
// percentage-complete progress figure.
func (r *Reader) BytesRead() (int64, error) {
	return r.f.Seek(0, io.SeekCurrent)
}

// Size returns the total file size in bytes.
func (r *Reader) Size() int64 { return r.size }

// Close releases the underlying file.
func (r *Reader) Close() error { return r.f.Close() }
