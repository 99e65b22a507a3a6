package pcapio

import (
	"errors"
	"io"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/google/gopacket"
	"github.com/stretchr/testify/require"

	mock_pcapio "github.com/Enchufa2/nantools/internal/pcapio/mock"
)

// newMockReader builds a Reader around handle without touching the
// filesystem, so Next's delegation to the underlying packetDataSource can
// be exercised against scripted sequences instead of on-disk fixtures.
func newMockReader(handle packetDataSource, size int64) *Reader {
	return &Reader{size: size, handle: handle}
}

func TestReader_Next_DelegatesToHandle(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSrc := mock_pcapio.NewMockPacketDataSource(ctrl)
	want := []byte{1, 2, 3}
	ci := gopacket.CaptureInfo{CaptureLength: 3, Length: 3}
	mockSrc.EXPECT().ReadPacketData().Return(want, ci, nil)

	r := newMockReader(mockSrc, 1024)
	data, gotCI, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, want, data)
	require.Equal(t, ci, gotCI)
}

func TestReader_Next_PropagatesEOF(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSrc := mock_pcapio.NewMockPacketDataSource(ctrl)
	mockSrc.EXPECT().ReadPacketData().Return(nil, gopacket.CaptureInfo{}, io.EOF)

	r := newMockReader(mockSrc, 1024)
	_, _, err := r.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestReader_Next_PropagatesError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSrc := mock_pcapio.NewMockPacketDataSource(ctrl)
	wantErr := errors.New("truncated record")
	mockSrc.EXPECT().ReadPacketData().Return(nil, gopacket.CaptureInfo{}, wantErr)

	r := newMockReader(mockSrc, 1024)
	_, _, err := r.Next()
	require.ErrorIs(t, err, wantErr)
}

func TestReader_Size(t *testing.T) {
	r := newMockReader(mock_pcapio.NewMockPacketDataSource(gomock.NewController(t)), 4096)
	require.EqualValues(t, 4096, r.Size())
}
