package engine

import "strings"

// VisionPrompt is the instruction sent to vision language models. The models
// occasionally echo markup around the answer, so their output goes through
// CleanVisionText before use.
const VisionPrompt = "Perform OCR on this image. Return ONLY the raw extracted text with:\n" +
	"- No formatting\n" +
	"- No XML/HTML tags\n" +
	"- No markdown\n" +
	"- No explanations\n" +
	"- Preserve line breaks accurately from the visual layout.\n" +
	"If no text found, return 'NO_TEXT_FOUND'"

// NoTextSentinel is the marker models return when the image has no text.
const NoTextSentinel = "NO_TEXT_FOUND"

// CleanVisionText strips tag artifacts some models append to the answer.
func CleanVisionText(text string) string {
	if text == "</image>" {
		return ""
	}
	return strings.TrimSuffix(text, "</image>")
}
