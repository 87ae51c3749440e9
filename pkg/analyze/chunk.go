package analyze

import (
	"strings"
	"unicode/utf8"
)

// Chunk is one contiguous segment of the analyzed text. Chunks cover the
// text completely and without overlap, so adding Start to a chunk-relative
// offset yields the absolute position.
type Chunk struct {
	Index int
	Start int
	End   int
	Text  string
}

// SplitText cuts text into chunks of at most chunkSize bytes. Each cut
// starts from the hard boundary and seeks backward for a sentence
// terminator in the last 30% of the window, then a word boundary in the
// last 20%, and only then cuts hard, so entities rarely straddle chunks.
// The splitter never produces a zero-length chunk.
func SplitText(text string, chunkSize int) []Chunk {
	if chunkSize <= 0 || len(text) <= chunkSize {
		return []Chunk{{Index: 0, Start: 0, End: len(text), Text: text}}
	}

	chunks := make([]Chunk, 0, len(text)/chunkSize+1)
	offset := 0
	for offset < len(text) {
		end := offset + chunkSize
		if end >= len(text) {
			end = len(text)
		} else {
			end = seekBoundary(text, offset, end)
		}
		chunks = append(chunks, Chunk{
			Index: len(chunks),
			Start: offset,
			End:   end,
			Text:  text[offset:end],
		})
		offset = end
	}
	return chunks
}

// seekBoundary moves the hard cut at end back to a friendlier position.
// Cuts land just after the terminator so the sentence or word stays whole
// and the next chunk starts clean.
func seekBoundary(text string, offset, end int) int {
	window := end - offset

	sentenceFloor := offset + window*7/10
	if i := strings.LastIndexByte(text[sentenceFloor:end], '.'); i >= 0 {
		if cut := sentenceFloor + i + 1; cut > offset {
			return cut
		}
	}

	wordFloor := offset + window*8/10
	if i := strings.LastIndexByte(text[wordFloor:end], ' '); i >= 0 {
		if cut := wordFloor + i + 1; cut > offset {
			return cut
		}
	}

	// A hard cut may land inside a multibyte rune; back up to its start.
	cut := end
	for cut > offset+1 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return cut
}
