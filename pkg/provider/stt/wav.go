package stt

import "encoding/binary"

// bitsPerSample is fixed at 16 for the raw PCM accepted by Request.
const bitsPerSample = 16

// EncodeWAV wraps raw 16-bit signed little-endian PCM data in a standard
// RIFF/WAV container.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	bps := bitsPerSample
	byteRate := sampleRate * channels * bps / 8
	blockAlign := channels * bps / 8
	dataSize := len(pcm)

	buf := make([]byte, 44+dataSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize)) // file size − 8
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], uint16(bps))

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], pcm)

	return buf
}

// WithContainer returns r unchanged unless it carries raw PCM, in which case
// the audio is wrapped in a WAV container and MIMEType becomes MIMEWAV.
// defaultRate is used when r.SampleRate is unset.
func (r Request) WithContainer(defaultRate int) Request {
	if !r.IsRawPCM() {
		return r
	}
	sr := r.SampleRate
	if sr <= 0 {
		sr = defaultRate
	}
	ch := r.Channels
	if ch <= 0 {
		ch = 1
	}
	r.Audio = EncodeWAV(r.Audio, sr, ch)
	r.MIMEType = MIMEWAV
	r.SampleRate = sr
	r.Channels = ch
	return r
}
