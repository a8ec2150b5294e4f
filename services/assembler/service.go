package assembler

import (
	"fmt"
	"strings"

	"github.com/dndsage/oracle/corpus"
	"github.com/dndsage/oracle/services/search"
	"go.uber.org/zap"
)

// Entry is one passage included in a context block, with the citation
// number assigned to it.
type Entry struct {
	Number  int
	Passage *corpus.Passage
	Score   float32
}

// ContextBlock is the token-bounded, numbered context handed to the
// generation provider. Entries are numbered 1..M in inclusion order and
// Text is the rendering the prompt embeds verbatim.
type ContextBlock struct {
	Entries    []Entry
	Text       string
	TokenCount int
}

// Empty reports whether no passage made it into the block. An empty block
// is a valid state meaning "no grounding available", not an error.
func (b *ContextBlock) Empty() bool { return len(b.Entries) == 0 }

// Entry returns the entry with the given citation number, or nil.
func (b *ContextBlock) Entry(number int) *Entry {
	if number < 1 || number > len(b.Entries) {
		return nil
	}
	return &b.Entries[number-1]
}

// Service assembles ranked passages into context blocks.
type Service struct {
	logger *zap.Logger
}

// New creates a new assembler service.
func New(logger *zap.Logger) *Service {
	return &Service{logger: logger}
}

// Build walks the ranked passages in order (highest similarity first) and
// greedily includes each one whose token_count still fits the budget. A
// passage that alone exceeds the remaining budget is skipped whole, never
// truncated: cutting a stat block or spell description mid-text would
// destroy its meaning.
func (s *Service) Build(ranked []search.RankedPassage, maxContextTokens int) *ContextBlock {
	block := &ContextBlock{}

	var sb strings.Builder
	for _, rp := range ranked {
		if block.TokenCount+rp.Passage.TokenCount > maxContextTokens {
			s.logger.Debug("passage skipped, over token budget",
				zap.String("passage_id", rp.Passage.ID),
				zap.Int("token_count", rp.Passage.TokenCount),
				zap.Int("remaining", maxContextTokens-block.TokenCount))
			continue
		}

		number := len(block.Entries) + 1
		block.Entries = append(block.Entries, Entry{
			Number:  number,
			Passage: rp.Passage,
			Score:   rp.Score,
		})
		block.TokenCount += rp.Passage.TokenCount

		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[%d] %s", number, rp.Passage.Text)
	}

	block.Text = sb.String()
	return block
}
