package service

import (
	"slices"
	"unicode"
	"unicode/utf8"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"voxedit/internal/models"
	"voxedit/internal/service"
)

/*
 * The transformer code here was mostly taken from
 * github.com/lithammer/fuzzysearch/fuzzy. It is not public
 * for external use, so it is copied and customised.
 */

var (
	normalizeTransformer transform.Transformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	transformer                                = transform.Chain(normalizeTransformer, unicodeFoldTransformer{})
)

type segmentRank struct {
	segment models.VideoSegment
	rank    int
}

func rankCmp(r1, r2 segmentRank) int {
	return r1.rank - r2.rank
}

// Search returns segments ranked by closeness of their
// edited text to the query, best first. maxResp <= 0
// means no limit.
func (p *Project) Search(query string, maxResp int) ([]models.VideoSegment, error) {
	p.mutex.RLock()
	if !p.loaded {
		p.mutex.RUnlock()
		return nil, service.ErrProjectNotLoaded
	}
	segments := make([]models.VideoSegment, 0, len(p.project.Segments))
	for _, s := range p.project.Segments {
		segments = append(segments, cloneSegment(s))
	}
	p.mutex.RUnlock()

	ranked := rankSegments(segments, query)

	out := make([]models.VideoSegment, 0, len(ranked))
	for _, r := range ranked {
		if maxResp > 0 && len(out) == maxResp {
			break
		}
		out = append(out, r.segment)
	}

	return out, nil
}

// rankSegments ranks non-silence segments by Levenshtein
// distance between normalized edited text and query.
// The returned slice is sorted by rank ascending.
func rankSegments(segments []models.VideoSegment, query string) []segmentRank {
	needle := stringTransform(query)

	out := make([]segmentRank, 0, len(segments))
	for _, s := range segments {
		if s.IsSilence {
			continue
		}
		text := stringTransform(s.EditedText)
		if !fuzzy.Match(needle, text) {
			continue
		}
		out = append(out, segmentRank{
			segment: s,
			rank:    fuzzy.LevenshteinDistance(text, needle),
		})
	}

	slices.SortFunc(out, rankCmp)

	return out
}

func stringTransform(s string) (transformed string) {
	var err error
	transformed, _, err = transform.String(transformer, s)
	if err != nil {
		transformed = s
	}

	return
}

type unicodeFoldTransformer struct{ transform.NopResetter }

func (unicodeFoldTransformer) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	// Converting src to a string allocates.
	// In theory, it need not; see https://go.dev/issue/27148.
	// It is possible to write this loop using utf8.DecodeRune
	// and thereby avoid allocations, but it is noticeably slower.
	// So just let's wait for the compiler to get smarter.
	for _, r := range string(src) {
		if r == utf8.RuneError {
			// Go spec for ranging over a string says:
			// If the iteration encounters an invalid UTF-8 sequence,
			// the second value will be 0xFFFD, the Unicode replacement character,
			// and the next iteration will advance a single byte in the string.
			nSrc++
		} else {
			nSrc += utf8.RuneLen(r)
		}
		r = unicode.ToLower(r)
		x := utf8.RuneLen(r)
		if x > len(dst[nDst:]) {
			err = transform.ErrShortDst
			break
		}
		nDst += utf8.EncodeRune(dst[nDst:], r)
	}
	return nDst, nSrc, err
}
