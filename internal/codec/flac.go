package codec

import (
	"errors"
	"fmt"
	"io"

	"github.com/mewkiz/flac"
)

// flacDecoder は FLAC をデコードして WAV のバイト列を出力する ByteDecoder
type flacDecoder struct {
	stream *flac.Stream

	channels       int
	bytesPerSample int
	shift          uint // コンテナのビット深度に揃えるための左シフト量
	totalBytes     int64

	pending    []byte // まだ返していないデコード済みデータ
	headerDone bool
	eof        bool
}

// OpenFLAC は FLAC ファイルを開き、WAV を出力する Source を返す
func OpenFLAC(path string) (Source, error) {
	dec, err := newFLACDecoder(path)
	if err != nil {
		return nil, err
	}
	return NewByteSource(dec), nil
}

func newFLACDecoder(path string) (*flacDecoder, error) {
	stream, err := flac.Open(path)
	if err != nil {
		return nil, fmt.Errorf("FLACファイルを開けません: %w", err)
	}

	info := stream.Info
	channels := int(info.NChannels)
	bps := int(info.BitsPerSample)
	if channels <= 0 || channels > maxPCMChannels || bps <= 0 || bps > maxPCMBitsPerSample {
		stream.Close()
		return nil, fmt.Errorf("未対応のFLACストリーム: channels=%d bps=%d", channels, bps)
	}

	bytesPerSample := (bps + 7) / 8
	d := &flacDecoder{
		stream:         stream,
		channels:       channels,
		bytesPerSample: bytesPerSample,
		shift:          uint(bytesPerSample*8 - bps),
		totalBytes:     UnknownLength,
	}

	// STREAMINFO にサンプル数が無い場合は総バイト数が分からない
	dataSize := ^uint32(0)
	if info.NSamples > 0 {
		size := int64(info.NSamples) * int64(channels) * int64(d.bytesPerSample)
		d.totalBytes = size + WAVHeaderSize
		if size < int64(^uint32(0)) {
			dataSize = uint32(size)
		}
	}
	d.pending = WAVHeader(channels, int(info.SampleRate), d.bytesPerSample*8, dataSize)

	return d, nil
}

// Decode はヘッダとデコード済みサンプルを p に書き込む
func (d *flacDecoder) Decode(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if len(d.pending) == 0 {
			if d.headerDone && d.eof {
				break
			}
			d.headerDone = true
			if err := d.nextFrame(); err != nil {
				return n, err
			}
			continue
		}

		c := copy(p[n:], d.pending)
		d.pending = d.pending[c:]
		n += c
	}
	return n, nil
}

// nextFrame は次のフレームをデコードして pending に積む
func (d *flacDecoder) nextFrame() error {
	frame, err := d.stream.ParseNext()
	if errors.Is(err, io.EOF) {
		d.eof = true
		return nil
	}
	if err != nil {
		d.eof = true
		return fmt.Errorf("FLACフレームのデコードに失敗: %w", err)
	}
	if len(frame.Subframes) != d.channels {
		d.eof = true
		return fmt.Errorf("チャンネル数が一致しません: %d", len(frame.Subframes))
	}

	samples := len(frame.Subframes[0].Samples)
	buf := make([]byte, 0, samples*d.channels*d.bytesPerSample)
	for i := 0; i < samples; i++ {
		for ch := 0; ch < d.channels; ch++ {
			buf = appendSample(buf, frame.Subframes[ch].Samples[i]<<d.shift, d.bytesPerSample)
		}
	}
	d.pending = buf
	return nil
}

// appendSample はサンプルをリトルエンディアンで追加する。8bitは符号なし
func appendSample(buf []byte, sample int32, bytesPerSample int) []byte {
	if bytesPerSample == 1 {
		return append(buf, byte(sample+128))
	}
	for i := 0; i < bytesPerSample; i++ {
		buf = append(buf, byte(sample>>(8*i)))
	}
	return buf
}

// EndOfStream はすべてのデータを返し終えたかどうか
func (d *flacDecoder) EndOfStream() bool {
	return d.headerDone && d.eof && len(d.pending) == 0
}

// TotalBytes はヘッダを含む出力の総バイト数
func (d *flacDecoder) TotalBytes() int64 {
	return d.totalBytes
}

// Close はストリームとファイルを閉じる
func (d *flacDecoder) Close() error {
	return d.stream.Close()
}
