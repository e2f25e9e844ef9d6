package ingest

import (
	"crypto/sha256"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/veilletech/triage-cli/internal/model"
)

var (
	urlRe        = regexp.MustCompile(`https?://\S+|www\.\S+`)
	mentionRe    = regexp.MustCompile(`@\w+`)
	hashtagRe    = regexp.MustCompile(`#\w+`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// CleanerOptions selects which noise classes to strip. Hashtags often carry
// the topic in operator feeds, so stripping them defaults off.
type CleanerOptions struct {
	RemoveURLs     bool
	RemoveMentions bool
	RemoveHashtags bool
}

// Cleaner normalizes record text before classification. Case and accents
// stay untouched: matching happens inside the strategies and the original
// text is what lands in exports.
type Cleaner struct {
	opts CleanerOptions
}

func NewCleaner(opts CleanerOptions) *Cleaner {
	return &Cleaner{opts: opts}
}

// Clean strips the configured noise and collapses whitespace.
func (c *Cleaner) Clean(text string) string {
	if c.opts.RemoveURLs {
		text = urlRe.ReplaceAllString(text, "")
	}
	if c.opts.RemoveMentions {
		text = mentionRe.ReplaceAllString(text, "")
	}
	if c.opts.RemoveHashtags {
		text = hashtagRe.ReplaceAllString(text, "")
	}
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}

// CleanRecords cleans every record's text; records left empty are dropped.
func (c *Cleaner) CleanRecords(records []model.Record) []model.Record {
	out := make([]model.Record, 0, len(records))
	for _, rec := range records {
		rec.Text = c.Clean(rec.Text)
		if rec.Text == "" {
			continue
		}
		out = append(out, rec)
	}
	if dropped := len(records) - len(out); dropped > 0 {
		zap.L().Info("records emptied by cleaning dropped", zap.Int("dropped", dropped))
	}
	return out
}

// Dedupe removes records whose text hashes identically, keeping the first
// occurrence and the original order.
func Dedupe(records []model.Record) []model.Record {
	seen := make(map[[32]byte]bool, len(records))
	out := make([]model.Record, 0, len(records))
	for _, rec := range records {
		sum := sha256.Sum256([]byte(rec.Text))
		if seen[sum] {
			continue
		}
		seen[sum] = true
		out = append(out, rec)
	}
	if dropped := len(records) - len(out); dropped > 0 {
		zap.L().Info("duplicate records dropped", zap.Int("dropped", dropped))
	}
	return out
}
