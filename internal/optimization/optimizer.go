package optimization

import (
	"fmt"
	"hash/fnv"
	"log/slog"
	"math/rand"
	"sort"
	"strings"

	"github.com/opencontainers/go-digest"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"clipforge/internal/config"
	"clipforge/internal/editing"
	"clipforge/internal/logging"
	"clipforge/internal/media"
	"clipforge/internal/services"
)

const modelVersion = "metadata/1"

const maxKeywords = 8

// Optimizer generates platform metadata for a rendered clip. Given identical
// inputs it produces identical output: template choice is keyed on a hash of
// the clip fingerprint and source title. Exploration mode swaps the hash for
// a seeded random pick so operators can trial template variants.
type Optimizer struct {
	cfg    config.Optimization
	titler cases.Caser
	logger *slog.Logger
}

func NewOptimizer(cfg config.Optimization, logger *slog.Logger) *Optimizer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Optimizer{
		cfg:    cfg,
		titler: cases.Title(language.English),
		logger: logger,
	}
}

// ModelVersion identifies the metadata generation strategy for ledger entries.
func (o *Optimizer) ModelVersion() string { return modelVersion }

// Optimize builds the metadata record for a clip. The thumbnail timestamp is
// the midpoint of the highest-scoring planned segment, expressed in output
// clip time.
func (o *Optimizer) Optimize(desc media.Descriptor, plan editing.Plan, clipDigest digest.Digest) (MetadataRecord, error) {
	if len(plan.Segments) == 0 {
		return MetadataRecord{}, services.Wrap(services.ErrValidation, "optimize", "plan", "edit plan has no segments", nil)
	}

	subject := o.subject(desc)
	pick := o.picker(desc.Title, clipDigest)

	title := fmt.Sprintf(titleTemplates[pick(len(titleTemplates))], subject)
	description := fmt.Sprintf(descriptionTemplates[pick(len(descriptionTemplates))], subject)

	record := MetadataRecord{
		Title:                     title,
		Description:               description,
		Tags:                      o.tags(desc),
		ThumbnailTimestampSeconds: thumbnailTimestamp(plan),
		EngagementScore:           engagementScore(plan),
		ModelVersion:              modelVersion,
	}
	o.logger.Debug("metadata generated",
		logging.String("title", record.Title),
		logging.Int("tags", len(record.Tags)))
	return record, nil
}

// picker returns a bounded index chooser: FNV-keyed in deterministic mode,
// seeded random in exploration mode.
func (o *Optimizer) picker(title string, clipDigest digest.Digest) func(n int) int {
	if o.cfg.Exploration {
		rng := rand.New(rand.NewSource(o.cfg.ExplorationSeed))
		return func(n int) int { return rng.Intn(n) }
	}
	h := fnv.New64a()
	h.Write([]byte(title))
	h.Write([]byte(clipDigest.String()))
	sum := h.Sum64()
	calls := 0
	return func(n int) int {
		calls++
		return int((sum / uint64(calls)) % uint64(n))
	}
}

func (o *Optimizer) subject(desc media.Descriptor) string {
	title := strings.TrimSpace(desc.Title)
	if title == "" {
		title = "this video"
	}
	return o.titler.String(title)
}

// tags merges configured hashtags, extracted keywords, and trending tags in
// that priority order, deduplicated and capped at MaxTags.
func (o *Optimizer) tags(desc media.Descriptor) []string {
	seen := make(map[string]struct{})
	var tags []string
	add := func(tag string) {
		tag = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(tag), "#"))
		if tag == "" {
			return
		}
		if _, dup := seen[tag]; dup {
			return
		}
		if o.cfg.MaxTags > 0 && len(tags) >= o.cfg.MaxTags {
			return
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}

	for _, tag := range o.cfg.Hashtags {
		add(tag)
	}
	for _, kw := range extractKeywords(desc) {
		add(kw)
	}
	for _, tag := range o.cfg.TrendingTags {
		add(tag)
	}
	return tags
}

// extractKeywords pulls the most frequent non-stopword terms from the source
// title, description, and keyword list. Ties break alphabetically so the
// result is stable.
func extractKeywords(desc media.Descriptor) []string {
	counts := make(map[string]int)
	scan := func(text string) {
		for _, word := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
			return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
		}) {
			if len(word) < 3 {
				continue
			}
			if _, skip := stopwords[word]; skip {
				continue
			}
			counts[word]++
		}
	}
	scan(desc.Title)
	scan(desc.Description)
	for _, kw := range desc.Keywords {
		scan(kw)
	}

	words := make([]string, 0, len(counts))
	for word := range counts {
		words = append(words, word)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})
	if len(words) > maxKeywords {
		words = words[:maxKeywords]
	}
	return words
}

// thumbnailTimestamp maps the midpoint of the best planned segment into
// output clip time by summing the durations preceding it.
func thumbnailTimestamp(plan editing.Plan) float64 {
	best := 0
	for i, seg := range plan.Segments {
		if seg.Segment.Score > plan.Segments[best].Segment.Score {
			best = i
		}
	}
	var offset float64
	for _, seg := range plan.Segments[:best] {
		offset += seg.Duration()
	}
	return offset + plan.Segments[best].Duration()/2
}

// engagementScore predicts clip engagement as the duration-weighted mean of
// segment importance.
func engagementScore(plan editing.Plan) float64 {
	var weighted, total float64
	for _, seg := range plan.Segments {
		weighted += seg.Segment.Score * seg.Duration()
		total += seg.Duration()
	}
	if total <= 0 {
		return 0
	}
	return weighted / total
}
