package tts

import "encoding/base64"

// Audio is synthesised speech ready to hand to a client.
type Audio struct {
	// Data is the encoded audio (e.g., MP3 bytes).
	Data []byte

	// ContentType is the MIME type of Data (e.g., "audio/mpeg").
	ContentType string
}

// Base64 returns Data encoded with standard base64. A nil receiver yields "".
func (a *Audio) Base64() string {
	if a == nil || len(a.Data) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString(a.Data)
}

// Common content types.
const (
	ContentTypeMP3 = "audio/mpeg"
	ContentTypePCM = "audio/pcm"
	ContentTypeOgg = "audio/ogg"
)
