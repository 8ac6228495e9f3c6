package codec

import (
	"encoding/binary"
)

// WAVHeaderSize は PCM WAV ヘッダのバイト数
const WAVHeaderSize = 44

// PCM (フォーマット1) のヘッダで表せる範囲。
// これを超えるチャンネル数やビット深度は WAVE_FORMAT_EXTENSIBLE が必要になる
const (
	maxPCMChannels      = 2
	maxPCMBitsPerSample = 16
)

// WAVHeader は PCM WAV のヘッダを作成する。dataSize はサンプルデータのバイト数。
//
// フォーマットは常に PCM (1) なので、channels は2以下、bitsPerSample は16以下を前提とする
func WAVHeader(channels, sampleRate, bitsPerSample int, dataSize uint32) []byte {
	bytesPerSample := (bitsPerSample + 7) / 8
	blockAlign := channels * bytesPerSample

	h := make([]byte, 0, WAVHeaderSize)
	h = append(h, "RIFF"...)
	h = binary.LittleEndian.AppendUint32(h, riffSize(dataSize))
	h = append(h, "WAVEfmt "...)
	h = binary.LittleEndian.AppendUint32(h, 16) // fmtチャンク長
	h = binary.LittleEndian.AppendUint16(h, 1)  // PCM
	h = binary.LittleEndian.AppendUint16(h, uint16(channels))
	h = binary.LittleEndian.AppendUint32(h, uint32(sampleRate))
	h = binary.LittleEndian.AppendUint32(h, uint32(sampleRate*blockAlign))
	h = binary.LittleEndian.AppendUint16(h, uint16(blockAlign))
	h = binary.LittleEndian.AppendUint16(h, uint16(bitsPerSample))
	h = append(h, "data"...)
	h = binary.LittleEndian.AppendUint32(h, dataSize)
	return h
}

func riffSize(dataSize uint32) uint32 {
	if dataSize > ^uint32(0)-36 {
		return ^uint32(0)
	}
	return dataSize + 36
}
