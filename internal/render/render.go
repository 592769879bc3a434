package render

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"strconv"
	"unicode/utf8"
)

const (
	// KeySize is the edge length of a key image in pixels.
	KeySize = 144
	// MaxTextWidth is the widest a line may be, leaving a margin inside KeySize.
	MaxTextWidth = 136
	// MinFontSize is used when no larger size fits.
	MinFontSize = 20

	// glyphAdvance is the advance width of a monospace glyph relative to the font size.
	glyphAdvance = 0.6

	secondsPerMinute = 60
	secondsPerHour   = 3600
	maxMinutes       = 99

	imagePrefix = "data:image/svg+xml;base64,"
)

// fontSizes are tried from largest to smallest.
var fontSizes = [...]int{56, 44, 36, 28, MinFontSize}

// Number formats a counter value.
func Number(v int64) string {
	return strconv.FormatInt(v, 10)
}

// MMSS formats seconds as MM:SS with minutes capped at 99.
func MMSS(totalSecs uint64) string {
	mins := min(totalSecs/secondsPerMinute, maxMinutes)
	return fmt.Sprintf("%02d:%02d", mins, totalSecs%secondsPerMinute)
}

// HHMMSS formats seconds as HH:MM:SS from one hour on and as MM:SS below.
func HHMMSS(totalSecs uint64) string {
	if totalSecs < secondsPerHour {
		return fmt.Sprintf("%02d:%02d", totalSecs/secondsPerMinute, totalSecs%secondsPerMinute)
	}

	return fmt.Sprintf("%02d:%02d:%02d",
		totalSecs/secondsPerHour,
		(totalSecs%secondsPerHour)/secondsPerMinute,
		totalSecs%secondsPerMinute,
	)
}

// FontSize returns the largest size at which text fits on one line.
func FontSize(text string) int {
	glyphs := utf8.RuneCountInString(text)

	for _, size := range fontSizes {
		if float64(glyphs)*float64(size)*glyphAdvance <= MaxTextWidth {
			return size
		}
	}

	return MinFontSize
}

// SVG draws text centered on a blank key.
func SVG(text string) []byte {
	var escaped bytes.Buffer

	// Writes to a bytes.Buffer cannot fail.
	_ = xml.EscapeText(&escaped, []byte(text))

	var out bytes.Buffer

	fmt.Fprintf(&out,
		`<svg xmlns="http://www.w3.org/2000/svg" width="%[1]d" height="%[1]d" viewBox="0 0 %[1]d %[1]d">`+
			`<rect width="100%%" height="100%%" fill="#000000"/>`+
			`<text x="50%%" y="50%%" fill="#ffffff" font-family="monospace" font-size="%[2]d" `+
			`text-anchor="middle" dominant-baseline="central">%[3]s</text></svg>`,
		KeySize, FontSize(text), escaped.String(),
	)

	return out.Bytes()
}

// Image returns the key image for text as a data URL accepted by setImage.
func Image(text string) string {
	return imagePrefix + base64.StdEncoding.EncodeToString(SVG(text))
}
