package answer

import (
	"regexp"
	"strconv"

	"github.com/dndsage/oracle/corpus"
	"github.com/dndsage/oracle/services/assembler"
	"go.uber.org/zap"
)

// Citation identifies one context entry the generated answer referenced.
type Citation struct {
	Number     int               `json:"number"`
	PassageID  string            `json:"passage_id"`
	SourceType corpus.SourceType `json:"source_type"`
	Name       string            `json:"name"`
	Source     string            `json:"source,omitempty"`
	URL        string            `json:"url,omitempty"`
	Score      float32           `json:"relevance_score"`
}

// Result is the final answer-with-sources payload returned to the caller.
// It is created per query and never cached.
type Result struct {
	Answer      string     `json:"answer"`
	Citations   []Citation `json:"citations"`
	ContextUsed int        `json:"context_used"`
}

// citationMarker matches the numbering scheme the assembler renders ([n])
// plus the "Document n" phrasing models tend to fall back to.
var citationMarker = regexp.MustCompile(`(?i)\[(\d+)\]|\bdocument\s+(\d+)`)

// Service pairs raw generated text with the citation metadata of the
// passages it referenced.
type Service struct {
	logger *zap.Logger
}

// New creates a new answer packager.
func New(logger *zap.Logger) *Service {
	return &Service{logger: logger}
}

// Package extracts the citation numbers appearing in raw and restricts the
// citation list to exactly those context entries, in order of first
// reference. Extraction is best-effort: an answer citing nothing, or in a
// format the marker pattern misses, passes through with an empty citation
// list rather than failing. Answer delivery is never blocked by citation
// format variance.
func (s *Service) Package(raw string, block *assembler.ContextBlock) *Result {
	result := &Result{
		Answer:    raw,
		Citations: []Citation{},
	}
	if block != nil {
		result.ContextUsed = len(block.Entries)
	}
	if block == nil || block.Empty() {
		return result
	}

	seen := make(map[int]bool)
	for _, match := range citationMarker.FindAllStringSubmatch(raw, -1) {
		digits := match[1]
		if digits == "" {
			digits = match[2]
		}
		number, err := strconv.Atoi(digits)
		if err != nil {
			continue
		}
		if seen[number] {
			continue
		}
		entry := block.Entry(number)
		if entry == nil {
			s.logger.Debug("answer cites number outside context block",
				zap.Int("number", number))
			continue
		}
		seen[number] = true

		p := entry.Passage
		result.Citations = append(result.Citations, Citation{
			Number:     entry.Number,
			PassageID:  p.ID,
			SourceType: p.SourceType,
			Name:       p.DisplayName(),
			Source:     p.Metadata["source"],
			URL:        p.Metadata["url"],
			Score:      entry.Score,
		})
	}

	return result
}
